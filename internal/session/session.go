// Package session holds the state shared by every display and control
// surface: the lyric store, the synchronizer and the audio source.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/player"
	"lyrics-sync/internal/synchronizer"
	"lyrics-sync/pkg/lrc"
)

var logger = logging.Component("session")

// ErrNoAudio is returned by media operations when no audio source is set.
var ErrNoAudio = errors.New("no audio source")

// Session 一次歌词同步会话
type Session struct {
	ID     uuid.UUID
	Lyrics *lyrics.Store
	Sync   *synchronizer.Synchronizer

	mu      sync.Mutex
	audio   player.Source
	path    string
	watcher *lyrics.Watcher
	closed  bool
}

func New() *Session {
	store := lyrics.NewStore()
	s := &Session{
		ID:     uuid.New(),
		Lyrics: store,
		Sync:   synchronizer.New(store),
	}
	logger.Debug().Str("session", s.ID.String()).Msg("Session created")
	return s
}

// SetAudio replaces the audio source. The session owns the source and
// closes the previous one; after Close it closes src right away.
func (s *Session) SetAudio(src player.Source) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if src != nil {
			src.Close()
		}
		return
	}
	prev := s.audio
	s.audio = src
	s.mu.Unlock()

	s.Sync.SetSource(src)
	if prev != nil && prev != src {
		if err := prev.Close(); err != nil {
			logger.Warn().Err(err).Str("source", prev.Name()).Msg("Failed to close audio source")
		}
	}
}

func (s *Session) Audio() player.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

// LoadMedia hands a media URI to the audio source if it accepts one.
func (s *Session) LoadMedia(media string) error {
	src := s.Audio()
	if src == nil {
		return ErrNoAudio
	}
	loader, ok := src.(player.Loader)
	if !ok {
		return fmt.Errorf("audio source %s cannot load media", src.Name())
	}
	return loader.Load(media)
}

// Transport returns the audio source's transport controls, if any.
func (s *Session) Transport() (player.Transport, bool) {
	t, ok := s.Audio().(player.Transport)
	return t, ok
}

// LoadText parses raw LRC text into the store. Text without any timed
// line leaves the current lyrics untouched. It reports the number of lines
// loaded.
func (s *Session) LoadText(text string) int {
	lines := lrc.Parse(text)
	if len(lines) == 0 {
		logger.Warn().Msg("No timed lines found, keeping current lyrics")
		return 0
	}
	s.Lyrics.Replace(lines)
	return len(lines)
}

// LoadLyrics reads and loads an LRC file.
func (s *Session) LoadLyrics(path string) (int, error) {
	text, err := lyrics.ReadText(path)
	if err != nil {
		return 0, err
	}
	n := s.LoadText(text)
	if n > 0 {
		s.mu.Lock()
		s.path = path
		s.mu.Unlock()
		logger.Info().Str("path", path).Int("lines", n).Msg("Lyrics loaded")
	} else {
		logger.Warn().Str("path", path).Msg("Lyrics file has no timed lines")
	}
	return n, nil
}

// LyricsPath returns the file the current lyrics came from.
func (s *Session) LyricsPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Watch reloads path whenever it changes. Only one file is watched at a
// time.
func (s *Session) Watch(path string, debounce time.Duration) error {
	w, err := lyrics.NewWatcher(path, debounce, func() error {
		_, err := s.LoadLyrics(path)
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return w.Close()
	}
	prev := s.watcher
	s.watcher = w
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// Close stops the watcher, detaches the synchronizer and closes the audio
// source.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w, audio := s.watcher, s.audio
	s.watcher, s.audio = nil, nil
	s.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	s.Sync.Close()
	if audio != nil {
		errs = append(errs, audio.Close())
	}
	return errors.Join(errs...)
}
