package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lyrics-sync/pkg/lrc"
)

var (
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C2E7")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true)
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	header := m.renderHeader()
	body := height - 2
	if body < 1 {
		body = 1
	}

	var lines []string
	lines = append(lines, header, "")
	if len(m.snap.Lines) == 0 {
		lines = append(lines, centerText(dimStyle.Italic(true).Render("no lyrics loaded"), len("no lyrics loaded"), width))
	} else {
		lines = append(lines, m.renderLyrics(body, width)...)
	}
	if m.status != "" {
		lines = append(lines, statusStyle.Render(m.status))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHeader() string {
	source := "no source"
	if src := m.sess.Audio(); src != nil {
		source = src.Name()
		if pos, err := src.Position(); err == nil {
			source += " " + formatClock(pos)
		}
	}
	return headerStyle.Render(fmt.Sprintf("%s  offset %+.1fs  %d lines", source, m.sess.Sync.Offset(), len(m.snap.Lines)))
}

// renderLyrics keeps the active line in the middle of a window of height
// rows; before the first line is reached the window starts at the top.
func (m Model) renderLyrics(height, width int) []string {
	lines := m.snap.Lines
	active := m.snap.Index

	start := 0
	if active >= 0 {
		start = active - height/2
	}
	if start > len(lines)-height {
		start = len(lines) - height
	}
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		text := lines[i].Text
		if text == "" {
			text = "♪"
		}
		style := dimStyle
		if i == active {
			style = activeStyle
			text = "> " + text
		}
		out = append(out, centerText(style.Render(text), lipgloss.Width(text), width))
	}
	return out
}

func centerText(rendered string, visible, width int) string {
	pad := (width - visible) / 2
	if pad <= 0 {
		return rendered
	}
	return strings.Repeat(" ", pad) + rendered
}

func formatClock(t float64) string {
	return strings.Trim(lrc.FormatTimestamp(t), "[]")
}
