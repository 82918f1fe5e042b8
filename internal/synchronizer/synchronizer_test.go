package synchronizer

import (
	"errors"
	"sync"
	"testing"

	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/player"
	"lyrics-sync/pkg/lrc"
)

type fakeSource struct {
	mu        sync.Mutex
	pos       float64
	err       error
	next      int
	listeners map[int]func(float64)
}

func newFakeSource(pos float64) *fakeSource {
	return &fakeSource{pos: pos, listeners: make(map[int]func(float64))}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Position() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, f.err
}

func (f *fakeSource) OnTimeUpdate(fn func(float64)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeSource) Close() error { return nil }

// emit 模拟播放器的 timeupdate 事件
func (f *fakeSource) emit(pos float64) {
	f.mu.Lock()
	f.pos = pos
	fns := make([]func(float64), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(pos)
	}
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

var _ player.Source = (*fakeSource)(nil)

var song = []lrc.Line{
	{Time: 10, Text: "a"},
	{Time: 20, Text: "b"},
	{Time: 30, Text: "c"},
}

func TestSyncFollowsTimeUpdates(t *testing.T) {
	store := lyrics.NewStore()
	store.Replace(song)
	src := newFakeSource(0)

	s := New(store)
	defer s.Close()
	s.SetSource(src)

	steps := []struct {
		pos  float64
		want int
	}{
		{5, lyrics.NoLine},
		{10, 0},
		{25, 1},
		{31, 2},
		{12, 0},
		{0, lyrics.NoLine},
	}
	for _, step := range steps {
		src.emit(step.pos)
		if got := store.Index(); got != step.want {
			t.Errorf("at %v index = %d, want %d", step.pos, got, step.want)
		}
	}
}

func TestSyncAttachDiscipline(t *testing.T) {
	store := lyrics.NewStore()
	src := newFakeSource(0)
	s := New(store)
	defer s.Close()

	s.SetSource(src)
	if s.Attached() || src.count() != 0 {
		t.Fatal("attached without lyrics")
	}

	store.Replace(song)
	if !s.Attached() || src.count() != 1 {
		t.Fatalf("not attached after lyrics loaded (listeners=%d)", src.count())
	}

	store.Replace(song[:1])
	if src.count() != 1 {
		t.Errorf("listeners after replace = %d, want 1", src.count())
	}

	store.Replace(nil)
	if s.Attached() || src.count() != 0 {
		t.Error("still attached after lyrics cleared")
	}

	store.Replace(song)
	s.SetSource(nil)
	if s.Attached() || src.count() != 0 {
		t.Error("still attached after source removed")
	}
}

func TestSyncEvaluatesImmediatelyOnReplace(t *testing.T) {
	store := lyrics.NewStore()
	src := newFakeSource(25)
	s := New(store)
	defer s.Close()
	s.SetSource(src)

	store.Replace(song)
	if got := store.Index(); got != 1 {
		t.Fatalf("index after load = %d, want 1", got)
	}

	// 新歌词的第一行在 40 秒，当前 25 秒还没有到
	store.Replace([]lrc.Line{{Time: 40, Text: "late"}})
	if got := store.Index(); got != lyrics.NoLine {
		t.Errorf("index after replace = %d, want %d", got, lyrics.NoLine)
	}
}

func TestSyncSwitchSource(t *testing.T) {
	store := lyrics.NewStore()
	store.Replace(song)
	first := newFakeSource(12)
	second := newFakeSource(35)

	s := New(store)
	defer s.Close()
	s.SetSource(first)
	if store.Index() != 0 {
		t.Fatalf("index = %d, want 0", store.Index())
	}

	s.SetSource(second)
	if first.count() != 0 {
		t.Error("old source still has listeners")
	}
	if store.Index() != 2 {
		t.Errorf("index after switch = %d, want 2", store.Index())
	}

	first.emit(10)
	if store.Index() != 2 {
		t.Error("detached source changed the index")
	}
}

func TestSyncOffset(t *testing.T) {
	store := lyrics.NewStore()
	store.Replace(song)
	src := newFakeSource(19.6)

	s := New(store)
	defer s.Close()
	s.SetSource(src)
	if store.Index() != 0 {
		t.Fatalf("index = %d, want 0", store.Index())
	}

	s.SetOffset(0.5)
	if store.Index() != 1 {
		t.Errorf("index with +0.5 offset = %d, want 1", store.Index())
	}
	if got := s.AdjustOffset(-1); got != -0.5 {
		t.Errorf("AdjustOffset = %v, want -0.5", got)
	}
	if store.Index() != 0 {
		t.Errorf("index with -0.5 offset = %d, want 0", store.Index())
	}
}

func TestSyncPositionError(t *testing.T) {
	store := lyrics.NewStore()
	src := newFakeSource(0)
	src.err = errors.New("no player")

	s := New(store)
	defer s.Close()
	s.SetSource(src)
	store.Replace(song)

	if store.Index() != lyrics.NoLine {
		t.Errorf("index = %d, want %d", store.Index(), lyrics.NoLine)
	}
	src.emit(21)
	if store.Index() != 1 {
		t.Errorf("index after update = %d, want 1", store.Index())
	}
}

func TestSyncClose(t *testing.T) {
	store := lyrics.NewStore()
	store.Replace(song)
	src := newFakeSource(0)

	s := New(store)
	s.SetSource(src)
	s.Close()
	s.Close()

	if src.count() != 0 {
		t.Error("listeners remain after Close")
	}
	store.Replace(song)
	if src.count() != 0 {
		t.Error("closed synchronizer re-attached")
	}
}
