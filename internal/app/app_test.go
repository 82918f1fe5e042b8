package app

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyrics-sync/internal/config"
	"lyrics-sync/internal/player"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	lrcPath := filepath.Join(dir, "song.lrc")
	if err := os.WriteFile(lrcPath, []byte("[00:00.00]intro\n[01:00.00]later\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.App.SocketPath = filepath.Join(dir, "s.sock")
	cfg.App.LyricsFile = lrcPath
	cfg.App.Watch = false
	cfg.Player.Source = "clock"
	cfg.Player.TickInterval = 10 * time.Millisecond
	return cfg
}

func TestRunBroadcastsActiveLine(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var conn net.Conn
	var err error
	for i := 0; i < 200; i++ {
		conn, err = net.Dial("unix", cfg.App.SocketPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		cancel()
		t.Fatalf("read: %v", err)
	}
	if line != "intro\n" {
		t.Errorf("line = %q, want %q", line, "intro\n")
	}

	if got := len(a.Session().Lyrics.Lines()); got != 2 {
		t.Errorf("lines = %d, want 2", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartRejectsUnknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Player.Source = "winamp"
	a := New(cfg)
	defer a.Close()

	if err := a.Start(); err == nil {
		t.Fatal("Start accepted an unknown source")
	}
}

func TestStartMissingLyrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.LyricsFile = filepath.Join(t.TempDir(), "missing.lrc")
	a := New(cfg)

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded without the lyrics file")
	}
}

func TestOpenSourceClock(t *testing.T) {
	a := New(testConfig(t))
	defer a.Close()

	src, err := a.OpenSource(player.KindClock)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Name() != "clock" {
		t.Errorf("Name = %q", src.Name())
	}
}
