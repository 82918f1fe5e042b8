package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetchWritesAndCaches(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id":1,"trackName":"Song","artistName":"Band","duration":200,
			"syncedLyrics":"[00:02.00]second\n[00:01.00]first"}]`))
	}))
	defer server.Close()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("LRCLIB_URL", server.URL)
	out := filepath.Join(t.TempDir(), "song.lrc")

	got := execute(t, "fetch", "Band", "Song", "--out", out, "--provider", "lrclib")
	if !strings.Contains(got, "saved 2 lines from lrclib") {
		t.Errorf("output = %q", got)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[00:01.00]first\n[00:02.00]second\n" {
		t.Errorf("file = %q", data)
	}

	got = execute(t, "fetch", "band", "song", "--out", out, "--provider", "lrclib")
	if !strings.Contains(got, "already downloaded") {
		t.Errorf("second fetch output = %q", got)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}
