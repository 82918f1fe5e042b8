package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyrics-sync/internal/logging"
)

var logger = logging.Component("lrclib")

// ErrNoSyncedLyrics is returned when a track exists but has no timed lyrics.
var ErrNoSyncedLyrics = errors.New("no synced lyrics")

// Client LRCLib客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端
func NewClient(baseURL string, maxRetries int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// Search 按歌名和歌手搜索
func (c *Client) Search(ctx context.Context, title, artist string) (LRCLibSearchResponse, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	resp, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var results LRCLibSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	logger.Info().Int("results", len(results)).Str("title", title).Str("artist", artist).Msg("Search finished")
	return results, nil
}

// get 带重试的 GET 请求
func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Info().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "lyrics-sync/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned error status")

		// 4xx 重试没有意义
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return nil, fmt.Errorf("request failed: %w", lastErr)
}

// SyncedLyrics returns the LRC text of the best match. duration is the
// track length in seconds, 0 when unknown.
func (c *Client) SyncedLyrics(ctx context.Context, title, artist string, duration float64) (string, *LRCLibResponse, error) {
	results, err := c.Search(ctx, title, artist)
	if err != nil {
		return "", nil, err
	}

	var synced LRCLibSearchResponse
	for _, r := range results {
		if r.SyncedLyrics != "" {
			synced = append(synced, r)
		}
	}
	if len(synced) == 0 {
		if len(results) == 0 {
			return "", nil, fmt.Errorf("no lyrics found for '%s - %s'", artist, title)
		}
		return "", nil, fmt.Errorf("'%s - %s': %w", artist, title, ErrNoSyncedLyrics)
	}

	best := findBestMatch(synced, title, artist, int(duration))
	logger.Info().
		Str("track", best.TrackName).
		Str("artist", best.ArtistName).
		Float64("duration", best.Duration).
		Msg("Selected synced lyrics")
	return best.SyncedLyrics, best, nil
}

// Name 获取提供商名称
func (c *Client) Name() string { return "lrclib" }

// Lyrics is SyncedLyrics without the matched record.
func (c *Client) Lyrics(ctx context.Context, title, artist string, duration float64) (string, error) {
	text, _, err := c.SyncedLyrics(ctx, title, artist, duration)
	return text, err
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func findBestMatch(responses LRCLibSearchResponse, targetTitle, targetArtist string, targetDuration int) *LRCLibResponse {
	if len(responses) == 0 {
		return nil
	}

	var exactMatches []*LRCLibResponse
	var titleMatches []*LRCLibResponse

	for i := range responses {
		response := &responses[i]

		// 完全匹配（标题+艺术家）
		if containsIgnoreCase(response.TrackName, targetTitle) && containsIgnoreCase(response.ArtistName, targetArtist) {
			exactMatches = append(exactMatches, response)
		} else if containsIgnoreCase(response.TrackName, targetTitle) {
			titleMatches = append(titleMatches, response)
		}
	}

	// 如果有精确匹配，优先从精确匹配中筛选时长
	matchPool := exactMatches
	if len(matchPool) == 0 {
		matchPool = titleMatches
	}
	if len(matchPool) == 0 {
		matchPool = make([]*LRCLibResponse, len(responses))
		for i := range responses {
			matchPool[i] = &responses[i]
		}
	}

	if targetDuration > 0 {
		const maxDurationDiff = 3 // 最大允许3秒误差
		bestMatch := matchPool[0]
		minDiff := abs(int(bestMatch.Duration) - targetDuration)

		for _, m := range matchPool {
			diff := abs(int(m.Duration) - targetDuration)
			if diff <= maxDurationDiff {
				return m
			}
			if diff < minDiff {
				minDiff = diff
				bestMatch = m
			}
		}

		logger.Debug().Int("diff", minDiff).Msg("Using closest duration match")
		return bestMatch
	}

	return matchPool[0]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
