// Package synchronizer keeps the active lyric line in step with a playback
// position source.
package synchronizer

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/player"
	"lyrics-sync/pkg/lrc"
)

var logger = logging.Component("synchronizer")

// attachment binds one time-update subscription to one generation of the
// lyric sequence. Samples from a detached attachment are dropped.
type attachment struct {
	gen    uint64
	lines  []lrc.Line
	source player.Source
	cancel func()
	active atomic.Bool
}

// Synchronizer 监听播放进度并更新当前歌词行
type Synchronizer struct {
	store *lyrics.Store
	subID uuid.UUID

	mu     sync.Mutex
	source player.Source
	offset float64
	att    *attachment
	closed bool
}

// New creates a synchronizer for store. It has no source until SetSource.
func New(store *lyrics.Store) *Synchronizer {
	s := &Synchronizer{store: store}
	s.subID = store.Subscribe(s.onChange)
	return s
}

func (s *Synchronizer) onChange(c lyrics.Change) {
	if c.Kind != lyrics.LinesReplaced {
		return
	}
	s.reconcile()
}

// SetSource switches the playback source; nil detaches. The previous
// source is not closed.
func (s *Synchronizer) SetSource(src player.Source) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.source = src
	s.mu.Unlock()

	if src == nil {
		logger.Info().Msg("Source detached")
	} else {
		logger.Info().Str("source", src.Name()).Msg("Source attached")
	}
	s.reconcile()
}

// Source returns the current playback source, or nil.
func (s *Synchronizer) Source() player.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// SetOffset shifts lyric timing by offset seconds; positive shows lines
// earlier. The active line is re-evaluated immediately.
func (s *Synchronizer) SetOffset(offset float64) {
	s.mu.Lock()
	s.offset = offset
	att := s.att
	s.mu.Unlock()

	logger.Info().Float64("offset", offset).Msg("Sync offset changed")
	if att != nil {
		s.evaluate(att)
	}
}

// AdjustOffset adds delta to the current offset and returns the new value.
func (s *Synchronizer) AdjustOffset(delta float64) float64 {
	s.mu.Lock()
	next := s.offset + delta
	s.mu.Unlock()
	s.SetOffset(next)
	return next
}

// Offset returns the current sync offset in seconds.
func (s *Synchronizer) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Attached reports whether a time-update subscription is live.
func (s *Synchronizer) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.att != nil
}

// Resync evaluates the current source position right away.
func (s *Synchronizer) Resync() {
	s.mu.Lock()
	att := s.att
	s.mu.Unlock()
	if att != nil {
		s.evaluate(att)
	}
}

// reconcile attaches to the source only while both a source and a
// non-empty sequence exist, always against the latest generation.
func (s *Synchronizer) reconcile() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.detachLocked()

	snap := s.store.Snapshot()
	if s.source == nil || len(snap.Lines) == 0 {
		s.mu.Unlock()
		return
	}

	att := &attachment{gen: snap.Generation, lines: snap.Lines, source: s.source}
	att.active.Store(true)
	att.cancel = s.source.OnTimeUpdate(func(pos float64) { s.apply(att, pos) })
	s.att = att
	s.mu.Unlock()

	logger.Debug().Uint64("generation", att.gen).Int("lines", len(att.lines)).Msg("Attached to time updates")
	s.evaluate(att)
}

func (s *Synchronizer) detachLocked() {
	if s.att == nil {
		return
	}
	s.att.active.Store(false)
	s.att.cancel()
	s.att = nil
}

func (s *Synchronizer) evaluate(att *attachment) {
	pos, err := att.source.Position()
	if err != nil {
		logger.Debug().Err(err).Str("source", att.source.Name()).Msg("Failed to read position")
		return
	}
	s.apply(att, pos)
}

func (s *Synchronizer) apply(att *attachment, pos float64) {
	if !att.active.Load() {
		return
	}
	s.mu.Lock()
	offset := s.offset
	s.mu.Unlock()

	index := lyrics.ActiveIndex(att.lines, pos+offset)
	if s.store.SetActive(att.gen, index) {
		ev := logger.Debug().Int("index", index).Float64("player_time", pos)
		if index != lyrics.NoLine {
			ev = ev.Float64("lyric_time", att.lines[index].Time).Str("lyric", att.lines[index].Text)
		}
		ev.Msg("Active line changed")
	}
}

// Close detaches from the source and the store. The source itself stays
// open.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.detachLocked()
	s.mu.Unlock()

	s.store.Unsubscribe(s.subID)
}
