package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case RefreshMsg:
		m.snap = msg.Snapshot
		return m, m.listen()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.Stop()
		return m, tea.Quit

	case " ", "p":
		m.togglePlayback()
		return m, nil

	case "left", "h":
		m.seekBy(-seekStep)
		return m, nil

	case "right", "l":
		m.seekBy(seekStep)
		return m, nil

	case "up", "k", "+", "=":
		m.adjustOffset(fineOffsetStep)
		return m, nil

	case "down", "j", "-":
		m.adjustOffset(-fineOffsetStep)
		return m, nil

	case "]":
		m.adjustOffset(offsetStep)
		return m, nil

	case "[":
		m.adjustOffset(-offsetStep)
		return m, nil

	case "0":
		m.sess.Sync.SetOffset(0)
		m.status = "offset reset"
		return m, nil
	}

	return m, nil
}

func (m *Model) togglePlayback() {
	t, ok := m.sess.Transport()
	if !ok {
		m.status = "source has no transport controls"
		return
	}

	var err error
	if m.playing {
		err = t.Pause()
	} else {
		err = t.Play()
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.playing = !m.playing
	m.status = ""
}

func (m *Model) seekBy(delta float64) {
	t, ok := m.sess.Transport()
	if !ok {
		m.status = "source has no transport controls"
		return
	}
	pos, err := m.sess.Audio().Position()
	if err != nil {
		m.status = err.Error()
		return
	}
	if err := t.Seek(pos + delta); err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

func (m *Model) adjustOffset(delta float64) {
	next := m.sess.Sync.AdjustOffset(delta)
	m.status = fmt.Sprintf("offset %+.1fs", next)
}
