package netease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyrics-sync/internal/logging"
)

var logger = logging.Component("netease")

// DefaultBaseURL 网易云音乐 API 地址
const DefaultBaseURL = "https://music.163.com"

// ErrNoLyrics is returned when a song exists but carries no LRC text.
var ErrNoLyrics = errors.New("no lyrics")

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	cookie         string
	maxRetries     int
	requestTimeout time.Duration
	backoff        time.Duration
}

// NewClient 创建新的网易云音乐客户端，cookie 可为空
func NewClient(baseURL, cookie string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		baseURL:        strings.TrimRight(baseURL, "/"),
		cookie:         cookie,
		maxRetries:     3,
		requestTimeout: 10 * time.Second,
		backoff:        500 * time.Millisecond,
	}
}

// Name 获取提供商名称
func (c *Client) Name() string { return "netease" }

// Lyrics searches for the song and returns its LRC text.
func (c *Client) Lyrics(ctx context.Context, title, artist string, duration float64) (string, error) {
	songID, err := c.SearchSong(ctx, title, artist)
	if err != nil {
		return "", err
	}
	return c.GetLyrics(ctx, songID)
}

// SearchSong 搜索歌曲，返回歌曲ID
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	q := url.Values{}
	q.Set("s", strings.TrimSpace(title+" "+artist))
	q.Set("type", "1")
	q.Set("limit", "30")
	searchURL := c.baseURL + "/api/search/get/web?" + q.Encode()
	logger.Debug().Str("url", searchURL).Msg("Searching song")

	req, err := c.newRequest(ctx, searchURL)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	var searchResp NeteaseSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(searchResp.Result.Songs) == 0 {
		return "", fmt.Errorf("no songs found for '%s'", title)
	}

	songID := findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}
	return strconv.Itoa(songID), nil
}

// GetLyrics 根据歌曲ID获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	q := url.Values{}
	q.Set("os", "pc")
	q.Set("id", songID)
	q.Set("lv", "-1")
	lyricURL := c.baseURL + "/api/song/lyric?" + q.Encode()
	logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	req, err := c.newRequest(ctx, lyricURL)
	if err != nil {
		return "", fmt.Errorf("failed to create lyric request: %w", err)
	}
	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("failed to send lyric request: %w", err)
	}
	defer resp.Body.Close()

	var lyricResp NeteaseLyricResponse
	if err := json.NewDecoder(resp.Body).Decode(&lyricResp); err != nil {
		return "", fmt.Errorf("failed to decode lyric response: %w", err)
	}
	if strings.TrimSpace(lyricResp.Lrc.Lyric) == "" {
		return "", fmt.Errorf("song %s: %w", songID, ErrNoLyrics)
	}
	return lyricResp.Lrc.Lyric, nil
}

func (c *Client) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	// 设置Cookie
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("Referer", c.baseURL)
	return req, nil
}

// doRequestWithRetry 对 5xx 和网络错误重试，其余状态直接返回错误
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && c.backoff > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(c.backoff * time.Duration(i)):
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			logger.Warn().Err(err).Int("attempt", i+1).Msg("Request failed")
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("API request failed with status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, lastErr
		}
		logger.Warn().Int("status", resp.StatusCode).Int("attempt", i+1).Msg("Request failed")
	}
	return nil, lastErr
}

// findBestMatch 找到最佳匹配的歌曲
func findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string) int {
	for _, song := range resp.Result.Songs {
		// 判断歌曲名包含关系
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}

		// artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				logger.Info().Str("song", song.Name).Str("artist", artist.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	// 如果没有找到完全匹配的，返回第一个匹配标题的
	first := resp.Result.Songs[0]
	if containsIgnoreCase(first.Name, targetTitle) {
		logger.Info().Str("song", first.Name).Int("id", first.ID).Msg("Using first matching song")
		return first.ID
	}
	return 0
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
