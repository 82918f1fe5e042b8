package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/player"
)

func writeLRC(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	var usage *UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("FromContext err = %v, want *UsageError", err)
	}
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("err does not wrap ErrNoSession: %v", err)
	}

	s := New()
	defer s.Close()
	got, err := FromContext(NewContext(context.Background(), s))
	if err != nil || got != s {
		t.Errorf("FromContext = %v, %v", got, err)
	}
}

func TestMustFromContextPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("MustFromContext did not panic")
		}
		if _, ok := r.(*UsageError); !ok {
			t.Errorf("panic value = %T, want *UsageError", r)
		}
	}()
	MustFromContext(context.Background())
}

func TestLoadLyrics(t *testing.T) {
	dir := t.TempDir()
	good := writeLRC(t, dir, "a.lrc", "[ar:Someone]\n[00:20.00]two\n[00:10.00]one\n")
	empty := writeLRC(t, dir, "b.lrc", "[ar:Nobody]\nno timestamps here\n")

	s := New()
	defer s.Close()

	n, err := s.LoadLyrics(good)
	if err != nil || n != 2 {
		t.Fatalf("LoadLyrics = %d, %v", n, err)
	}
	if lines := s.Lyrics.Lines(); lines[0].Text != "one" {
		t.Errorf("first line = %q, want %q", lines[0].Text, "one")
	}

	n, err = s.LoadLyrics(empty)
	if err != nil || n != 0 {
		t.Fatalf("LoadLyrics(empty) = %d, %v", n, err)
	}
	if got := len(s.Lyrics.Lines()); got != 2 {
		t.Errorf("lines after empty load = %d, want previous 2", got)
	}
	if s.LyricsPath() != good {
		t.Errorf("LyricsPath = %q, want %q", s.LyricsPath(), good)
	}

	if _, err := s.LoadLyrics(filepath.Join(dir, "missing.lrc")); err == nil {
		t.Error("expected error for missing file")
	}
}

func waitIndex(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Lyrics.Index() != want {
		if time.Now().After(deadline) {
			t.Fatalf("index = %d, want %d", s.Lyrics.Index(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionAudio(t *testing.T) {
	s := New()
	defer s.Close()

	if err := s.LoadMedia("file:///a.mp3"); !errors.Is(err, ErrNoAudio) {
		t.Errorf("LoadMedia without audio err = %v", err)
	}

	s.LoadText("[00:10.00]a\n[00:20.00]b\n")
	first := player.NewClock(time.Hour)
	s.SetAudio(first)

	if err := first.Seek(21); err != nil {
		t.Fatal(err)
	}
	waitIndex(t, s, 1)

	tr, ok := s.Transport()
	if !ok {
		t.Fatal("clock has no transport")
	}
	tr.Seek(5)
	waitIndex(t, s, lyrics.NoLine)

	second := player.NewClock(time.Hour)
	s.SetAudio(second)
	if _, err := first.Position(); !errors.Is(err, player.ErrClosed) {
		t.Error("previous audio source was not closed")
	}
	if err := s.LoadMedia("file:///b.mp3"); err != nil {
		t.Errorf("LoadMedia: %v", err)
	}
	if second.Media() != "file:///b.mp3" {
		t.Errorf("Media = %q", second.Media())
	}
}

func TestSessionWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeLRC(t, dir, "song.lrc", "[00:01.00]old\n")

	s := New()
	defer s.Close()
	if _, err := s.LoadLyrics(path); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 4)
	s.Lyrics.Subscribe(func(c lyrics.Change) {
		if c.Kind == lyrics.LinesReplaced {
			changed <- struct{}{}
		}
	})
	if err := s.Watch(path, 20*time.Millisecond); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	writeLRC(t, dir, "song.lrc", "[00:01.00]new\n[00:02.00]more\n")

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("lyrics were not reloaded")
	}
	if got := s.Lyrics.Lines()[0].Text; got != "new" {
		t.Errorf("line after reload = %q, want %q", got, "new")
	}
}

func TestSessionClose(t *testing.T) {
	s := New()
	clock := player.NewClock(time.Hour)
	s.SetAudio(clock)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := clock.Position(); !errors.Is(err, player.ErrClosed) {
		t.Error("audio source not closed with session")
	}
}

func TestSetAudioAfterClose(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	clock := player.NewClock(time.Hour)
	s.SetAudio(clock)
	if _, err := clock.Position(); !errors.Is(err, player.ErrClosed) {
		t.Error("source set after Close was not closed")
	}
	if s.Audio() != nil {
		t.Error("closed session kept the source")
	}
}
