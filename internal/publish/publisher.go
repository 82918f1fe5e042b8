// Package publish pushes active-line changes to a Redis pub/sub channel as
// JSON events.
package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/lyrics"
)

var logger = logging.Component("publisher")

// lastLineTTL bounds how long the latest line stays readable under the
// channel key after the daemon stops.
const lastLineTTL = 10 * time.Minute

// Broker is the subset of the Redis client the publisher needs.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Event is the JSON payload sent for every change.
type Event struct {
	ID         string    `json:"id"`
	Session    string    `json:"session"`
	Kind       string    `json:"kind"`
	Generation uint64    `json:"generation"`
	Index      int       `json:"index"`
	Time       float64   `json:"time,omitempty"`
	Text       string    `json:"text"`
	Lines      int       `json:"lines"`
	At         time.Time `json:"at"`
}

// NewEvent builds the payload for c.
func NewEvent(session uuid.UUID, c lyrics.Change, at time.Time) Event {
	ev := Event{
		ID:         uuid.New().String(),
		Session:    session.String(),
		Kind:       c.Kind.String(),
		Generation: c.Generation,
		Index:      c.Index,
		Lines:      len(c.Lines),
		At:         at.UTC(),
	}
	if line, ok := c.Current(); ok {
		ev.Time = line.Time
		ev.Text = line.Text
	}
	return ev
}

// Publisher 将歌词变化发布到 Redis 频道
type Publisher struct {
	broker  Broker
	channel string
	session uuid.UUID
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}

	store *lyrics.Store
	subID uuid.UUID
}

func NewPublisher(broker Broker, channel string, session uuid.UUID) *Publisher {
	return &Publisher{
		broker:  broker,
		channel: channel,
		session: session,
		timeout: 2 * time.Second,
		now:     time.Now,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
}

// Observe starts publishing changes of store from a separate goroutine.
// Events are dropped while the queue is full.
func (p *Publisher) Observe(store *lyrics.Store) {
	p.store = store
	p.subID = store.Subscribe(func(c lyrics.Change) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		select {
		case p.events <- NewEvent(p.session, c, p.now()):
		default:
			logger.Warn().Int("index", c.Index).Msg("Publish queue full, dropping event")
		}
	})
	go p.loop()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for ev := range p.events {
		if err := p.Publish(ev); err != nil {
			logger.Error().Err(err).Str("channel", p.channel).Msg("Failed to publish lyric event")
		}
	}
}

// Publish sends ev to the channel and stores it as the channel's latest
// value.
func (p *Publisher) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.broker.Publish(ctx, p.channel, payload); err != nil {
		return err
	}
	return p.broker.SetWithExpiration(ctx, p.channel+":last", payload, lastLineTTL)
}

// Close stops observing and waits for queued events to be sent.
func (p *Publisher) Close() {
	if p.store == nil {
		return
	}
	p.store.Unsubscribe(p.subID)
	p.store = nil

	p.mu.Lock()
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.done
}
