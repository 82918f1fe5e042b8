package lyrics

import (
	"sync"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/pkg/lrc"
)

// NoLine 还没有到达任何一行歌词
const NoLine = -1

var logger = logging.Component("lyrics-store")

// ActiveIndex returns the index of the last line whose time has been reached
// at t, or NoLine. It scans from the end so a boundary sample belongs to the
// later line. The result depends only on (lines, t).
func ActiveIndex(lines []lrc.Line, t float64) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if t >= lines[i].Time {
			return i
		}
	}
	return NoLine
}

// ChangeKind 状态变化类型
type ChangeKind int

const (
	// LinesReplaced 歌词序列被整体替换，索引重置为 NoLine
	LinesReplaced ChangeKind = iota
	// ActiveChanged 当前行发生变化
	ActiveChanged
)

func (k ChangeKind) String() string {
	switch k {
	case LinesReplaced:
		return "lines_replaced"
	case ActiveChanged:
		return "active_changed"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after every state transition.
type Change struct {
	Kind       ChangeKind
	Generation uint64
	Lines      []lrc.Line
	Index      int
	Previous   int
}

// Current returns the active line, if any.
func (c Change) Current() (lrc.Line, bool) {
	if c.Index < 0 || c.Index >= len(c.Lines) {
		return lrc.Line{}, false
	}
	return c.Lines[c.Index], true
}

// Snapshot 某一时刻的只读状态
type Snapshot struct {
	Generation uint64
	Lines      []lrc.Line
	Index      int
}

// Current returns the active line, if any.
func (s Snapshot) Current() (lrc.Line, bool) {
	return Change{Lines: s.Lines, Index: s.Index}.Current()
}

type observer struct {
	id uuid.UUID
	fn func(Change)
}

// Store owns the current lyric sequence and active index. Writers are the
// file loader (Replace) and the synchronizer (SetActive); everything else
// reads snapshots or subscribes.
//
// Changes are queued under the same lock as the mutation and delivered in
// that order by whichever writer is not already inside a delivery, so an
// observer may itself write to the store.
type Store struct {
	mu         sync.RWMutex
	lines      []lrc.Line
	index      int
	generation uint64

	pending    []Change
	delivering bool

	obsMu     sync.Mutex
	observers []observer
}

// NewStore 创建空的歌词状态
func NewStore() *Store {
	return &Store{index: NoLine}
}

// Replace swaps in a new sequence atomically, resets the active index and
// returns the new generation.
func (s *Store) Replace(lines []lrc.Line) uint64 {
	owned := append([]lrc.Line(nil), lines...)

	s.mu.Lock()
	prev := s.index
	s.lines = owned
	s.index = NoLine
	s.generation++
	gen := s.generation
	s.pending = append(s.pending, Change{
		Kind:       LinesReplaced,
		Generation: gen,
		Lines:      owned,
		Index:      NoLine,
		Previous:   prev,
	})
	s.mu.Unlock()

	logger.Info().Int("lines_count", len(owned)).Uint64("generation", gen).Msg("Lyrics replaced")

	s.deliver()
	return gen
}

// SetActive records index as computed against generation gen. Writes for a
// superseded generation or an out of range index are rejected. It reports
// whether the active index changed.
func (s *Store) SetActive(gen uint64, index int) bool {
	s.mu.Lock()
	if gen != s.generation {
		current := s.generation
		s.mu.Unlock()
		logger.Debug().Uint64("generation", gen).Uint64("current", current).Msg("Dropping stale index")
		return false
	}
	if index < NoLine || index >= len(s.lines) || index == s.index {
		s.mu.Unlock()
		return false
	}
	prev := s.index
	s.index = index
	s.pending = append(s.pending, Change{
		Kind:       ActiveChanged,
		Generation: gen,
		Lines:      s.lines,
		Index:      index,
		Previous:   prev,
	})
	s.mu.Unlock()

	s.deliver()
	return true
}

// Snapshot returns the current state. Lines must not be modified.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Generation: s.generation, Lines: s.lines, Index: s.index}
}

// Lines returns a copy of the current sequence.
func (s *Store) Lines() []lrc.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]lrc.Line(nil), s.lines...)
}

// Index returns the active index.
func (s *Store) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Subscribe registers fn for every subsequent change and returns a handle for
// Unsubscribe. fn must not block.
func (s *Store) Subscribe(fn func(Change)) uuid.UUID {
	id := uuid.New()
	s.obsMu.Lock()
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.obsMu.Unlock()
	return id
}

// Unsubscribe removes the observer registered under id.
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.obsMu.Lock()
		observers := append([]observer(nil), s.observers...)
		s.obsMu.Unlock()

		for _, o := range observers {
			o.fn(c)
		}

		s.mu.Lock()
	}

	s.delivering = false
	s.mu.Unlock()
}
