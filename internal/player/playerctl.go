package player

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"lyrics-sync/internal/logging"
)

// Playerctl reads the position of whatever player playerctl controls.
type Playerctl struct {
	player string
	run    func(args ...string) ([]byte, error)
	poll   *poller
}

// NewPlayerctl 创建 playerctl 播放源，player 为空时使用 playerctl 的默认播放器
func NewPlayerctl(player string, interval time.Duration) *Playerctl {
	p := &Playerctl{player: player, run: runPlayerctl}
	logger := logging.Component("playerctl").With().Str("player", player).Logger()
	p.poll = newPoller(interval, p.Position, logger)
	return p
}

func runPlayerctl(args ...string) ([]byte, error) {
	return exec.Command("playerctl", args...).Output()
}

func (p *Playerctl) command(args ...string) ([]byte, error) {
	if p.player != "" {
		args = append([]string{"--player", p.player}, args...)
	}
	out, err := p.run(args...)
	if err != nil {
		return nil, fmt.Errorf("playerctl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func (p *Playerctl) Name() string { return string(KindPlayerctl) }

func (p *Playerctl) Position() (float64, error) {
	out, err := p.command("position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid playerctl position %q: %w", strings.TrimSpace(string(out)), err)
	}
	return seconds, nil
}

// CurrentSong returns "artist - title" of the playing track.
func (p *Playerctl) CurrentSong() (string, error) {
	out, err := p.command("metadata", "--format", `{{artist}} - {{title}}`)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (p *Playerctl) OnTimeUpdate(fn func(float64)) func() {
	return p.poll.subscribe(fn)
}

func (p *Playerctl) Load(media string) error {
	_, err := p.command("open", media)
	return err
}

func (p *Playerctl) Play() error {
	_, err := p.command("play")
	return err
}

func (p *Playerctl) Pause() error {
	_, err := p.command("pause")
	return err
}

func (p *Playerctl) Seek(position float64) error {
	if position < 0 {
		position = 0
	}
	_, err := p.command("position", strconv.FormatFloat(position, 'f', 3, 64))
	if err == nil {
		p.poll.push(position)
	}
	return err
}

func (p *Playerctl) Close() error {
	p.poll.close()
	return nil
}
