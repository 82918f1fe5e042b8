package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lyrics-sync/internal/lyrics"
	"lyrics-sync/pkg/lrc"
)

type fakeBroker struct {
	mu        sync.Mutex
	published []string
	keys      map[string]string
	err       error
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, channel+" "+string(message.([]byte)))
	return nil
}

func (f *fakeBroker) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]string)
	}
	f.keys[key] = string(value.([]byte))
	return nil
}

func TestNewEvent(t *testing.T) {
	session := uuid.New()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lines := []lrc.Line{{Time: 10, Text: "a"}, {Time: 20, Text: "b"}}

	ev := NewEvent(session, lyrics.Change{Kind: lyrics.ActiveChanged, Generation: 3, Lines: lines, Index: 1, Previous: 0}, at)
	if ev.Kind != "active_changed" || ev.Index != 1 || ev.Text != "b" || ev.Time != 20 || ev.Lines != 2 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Session != session.String() || ev.Generation != 3 || !ev.At.Equal(at) {
		t.Errorf("event metadata = %+v", ev)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("event id %q is not a uuid: %v", ev.ID, err)
	}

	none := NewEvent(session, lyrics.Change{Kind: lyrics.LinesReplaced, Lines: lines, Index: lyrics.NoLine}, at)
	if none.Text != "" || none.Index != lyrics.NoLine {
		t.Errorf("inactive event = %+v", none)
	}
}

func TestPublisherObserve(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, "lyrics", uuid.New())

	store := lyrics.NewStore()
	p.Observe(store)
	gen := store.Replace([]lrc.Line{{Time: 1, Text: "hello"}})
	store.SetActive(gen, 0)
	p.Close()
	p.Close()

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 2 {
		t.Fatalf("published %d events, want 2", len(broker.published))
	}

	var last Event
	if err := json.Unmarshal([]byte(broker.keys["lyrics:last"]), &last); err != nil {
		t.Fatalf("last value: %v", err)
	}
	if last.Text != "hello" || last.Kind != "active_changed" {
		t.Errorf("last event = %+v", last)
	}

	// 关闭后不再发布
	store.SetActive(gen, lyrics.NoLine)
	if len(broker.published) != 2 {
		t.Errorf("event published after Close")
	}
}

func TestPublishError(t *testing.T) {
	broker := &fakeBroker{err: errors.New("connection refused")}
	p := NewPublisher(broker, "lyrics", uuid.New())
	if err := p.Publish(Event{Text: "x"}); err == nil {
		t.Error("expected broker error")
	}
}
