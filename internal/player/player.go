// Package player provides playback position sources: an in-process clock,
// playerctl and MPRIS over D-Bus.
package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed source.
var ErrClosed = errors.New("player source closed")

// Source 播放进度来源：可读取当前时间，并在时间变化时通知监听者
type Source interface {
	Name() string
	// Position returns the playback position in seconds.
	Position() (float64, error)
	// OnTimeUpdate registers fn for position samples, delivered in order
	// from a single goroutine. The returned cancel stops delivery.
	OnTimeUpdate(fn func(position float64)) (cancel func())
	Close() error
}

// Loader is implemented by sources that accept an external media URI.
type Loader interface {
	Load(media string) error
}

// Transport is implemented by sources that can be controlled.
type Transport interface {
	Play() error
	Pause() error
	Seek(position float64) error
}

type listener struct {
	fn     func(float64)
	active atomic.Bool
}

// listeners keeps the registered time-update callbacks. start runs when the
// first listener attaches and stop when the last one leaves, so polling
// sources only poll while someone is listening.
type listeners struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*listener
	order   []uuid.UUID

	start func()
	stop  func()
}

func (l *listeners) add(fn func(float64)) func() {
	id := uuid.New()
	entry := &listener{fn: fn}
	entry.active.Store(true)

	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[uuid.UUID]*listener)
	}
	l.entries[id] = entry
	l.order = append(l.order, id)
	first := len(l.entries) == 1
	l.mu.Unlock()

	if first && l.start != nil {
		l.start()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners) remove(id uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	entry.active.Store(false)
	delete(l.entries, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
	last := len(l.entries) == 0
	l.mu.Unlock()

	if last && l.stop != nil {
		l.stop()
	}
}

func (l *listeners) emit(position float64) {
	l.mu.Lock()
	snapshot := make([]*listener, 0, len(l.order))
	for _, id := range l.order {
		snapshot = append(snapshot, l.entries[id])
	}
	l.mu.Unlock()

	for _, entry := range snapshot {
		// 已取消的监听者不再回调
		if entry.active.Load() {
			entry.fn(position)
		}
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *listeners) clear() {
	l.mu.Lock()
	for _, entry := range l.entries {
		entry.active.Store(false)
	}
	l.entries = nil
	l.order = nil
	l.mu.Unlock()
}

// Kind 播放源类型
type Kind string

const (
	KindClock     Kind = "clock"
	KindPlayerctl Kind = "playerctl"
	KindMPRIS     Kind = "mpris"
)

// ParseKind validates a configured source name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindClock, KindPlayerctl, KindMPRIS:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("unknown player source: %q", name)
	}
}
