package netease

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string) *Client {
	c := NewClient(url, "")
	c.backoff = time.Millisecond
	return c
}

// TestClientRetry 测试重试机制
func TestClientRetry(t *testing.T) {
	var requestCount int32

	// 前两次请求失败，第三次成功
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"result":{"songs":[{"id":123,"name":"Test Song","artists":[{"name":"Test Artist"}]}]}}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("创建请求失败: %v", err)
	}

	resp, err := client.doRequestWithRetry(req)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if n := atomic.LoadInt32(&requestCount); n != 3 {
		t.Errorf("预期请求次数为3，实际为%d", n)
	}
}

func TestClientNoRetryOnClientError(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).SearchSong(context.Background(), "song", "artist"); err == nil {
		t.Fatal("expected error for 403")
	}
	if n := atomic.LoadInt32(&requestCount); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

// TestTimeout 测试超时机制
func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := testClient(server.URL).SearchSong(ctx, "song", "artist"); err == nil {
		t.Error("预期请求超时失败，但请求成功了")
	}
}

func TestLyrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/get/web", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "MUSIC_U=abc" {
			t.Errorf("cookie = %q", r.Header.Get("Cookie"))
		}
		w.Write([]byte(`{"result":{"songs":[
			{"id":1,"name":"Other","artists":[{"name":"Nobody"}]},
			{"id":42,"name":"Test Song","artists":[{"name":"Someone"},{"name":"Test Artist"}]}
		]}}`))
	})
	mux.HandleFunc("/api/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "42":
			w.Write([]byte(`{"lrc":{"lyric":"[00:01.00]hello\n"}}`))
		default:
			w.Write([]byte(`{"lrc":{"lyric":""}}`))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "MUSIC_U=abc")

	text, err := client.Lyrics(context.Background(), "test song", "test artist", 0)
	if err != nil {
		t.Fatalf("Lyrics: %v", err)
	}
	if text != "[00:01.00]hello\n" {
		t.Errorf("text = %q", text)
	}

	if _, err := client.GetLyrics(context.Background(), "7"); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v, want ErrNoLyrics", err)
	}
}

func TestFindBestMatch(t *testing.T) {
	var resp NeteaseSearchResponse
	body := `{"result":{"songs":[{"id":9,"name":"Song Title","artists":[]}]}}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}

	if got := findBestMatch(resp, "unknown", "songtitle"); got != 9 {
		t.Errorf("title-only match = %d, want 9", got)
	}
	if got := findBestMatch(resp, "unknown", "different"); got != 0 {
		t.Errorf("no match = %d, want 0", got)
	}
}
