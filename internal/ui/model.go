package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/session"
)

const (
	seekStep       = 5.0
	fineOffsetStep = 0.1
	offsetStep     = 0.5
)

// RefreshMsg carries the latest store snapshot into the update loop.
type RefreshMsg struct {
	Snapshot lyrics.Snapshot
}

type Model struct {
	sess    *session.Session
	refresh chan lyrics.Snapshot
	subID   uuid.UUID

	snap     lyrics.Snapshot
	playing  bool
	status   string
	width    int
	height   int
	quitting bool
}

// NewModel subscribes to the session's store. Refreshes are coalesced:
// only the latest snapshot waits for the update loop.
func NewModel(sess *session.Session) Model {
	m := Model{
		sess:    sess,
		refresh: make(chan lyrics.Snapshot, 1),
		snap:    sess.Lyrics.Snapshot(),
	}
	if p, ok := sess.Audio().(interface{ Playing() bool }); ok {
		m.playing = p.Playing()
	}

	refresh := m.refresh
	store := sess.Lyrics
	m.subID = store.Subscribe(func(lyrics.Change) {
		snap := store.Snapshot()
		select {
		case <-refresh:
		default:
		}
		select {
		case refresh <- snap:
		default:
		}
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return m.listen()
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.refresh
		if !ok {
			return nil
		}
		return RefreshMsg{Snapshot: snap}
	}
}

func (m Model) Lines() int          { return len(m.snap.Lines) }
func (m Model) CurrentIndex() int   { return m.snap.Index }
func (m Model) SyncOffset() float64 { return m.sess.Sync.Offset() }
func (m Model) IsQuitting() bool    { return m.quitting }

// Stop detaches the model from the store.
func (m Model) Stop() {
	m.sess.Lyrics.Unsubscribe(m.subID)
}
