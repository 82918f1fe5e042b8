package player

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"lyrics-sync/internal/logging"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// MPRIS reads playback position from an MPRIS player on the session bus.
// Position is polled; Seeked signals are forwarded immediately.
type MPRIS struct {
	bus     *dbus.Conn
	service string
	poll    *poller

	mu       sync.Mutex
	signals  chan *dbus.Signal
	done     chan struct{}
	wg       sync.WaitGroup
	seekRule string
}

// NewMPRIS 连接指定的 MPRIS 服务，例如 org.mpris.MediaPlayer2.spotify
func NewMPRIS(bus *dbus.Conn, service string, interval time.Duration) (*MPRIS, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service == "" {
		return nil, errors.New("empty mpris service name")
	}
	if !strings.HasPrefix(service, mprisPrefix) {
		service = mprisPrefix + service
	}

	m := &MPRIS{
		bus:     bus,
		service: service,
		seekRule: fmt.Sprintf(
			"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
			service, mprisPlayerIface, mprisPath,
		),
	}
	logger := logging.Component("mpris").With().Str("service", service).Logger()
	m.poll = newPoller(interval, m.Position, logger)
	m.poll.listeners.start = m.start
	m.poll.listeners.stop = m.stop
	return m, nil
}

func (m *MPRIS) Name() string { return string(KindMPRIS) }

// Service returns the bus name of the player.
func (m *MPRIS) Service() string { return m.service }

func (m *MPRIS) object() dbus.BusObject {
	return m.bus.Object(m.service, mprisPath)
}

func (m *MPRIS) Position() (float64, error) {
	prop, err := m.object().GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("failed to get position property: %w", err)
	}
	micros, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	return microsToSeconds(micros), nil
}

func microsToSeconds(micros int64) float64 {
	if micros < 0 {
		return 0
	}
	return float64(micros) / 1e6
}

func (m *MPRIS) OnTimeUpdate(fn func(float64)) func() {
	return m.poll.subscribe(fn)
}

func (m *MPRIS) start() {
	m.poll.startLoop()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}

	err := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, m.seekRule).Err
	if err != nil {
		m.poll.logger.Warn().Err(err).Msg("Failed to add seeked match, falling back to polling only")
		return
	}

	m.signals = make(chan *dbus.Signal, 10)
	m.done = make(chan struct{})
	m.bus.Signal(m.signals)

	m.wg.Add(1)
	go m.signalLoop(m.signals, m.done)
}

func (m *MPRIS) stop() {
	m.poll.stopLoop()

	m.mu.Lock()
	signals, done := m.signals, m.done
	m.signals, m.done = nil, nil
	m.mu.Unlock()

	if done == nil {
		return
	}
	m.bus.RemoveSignal(signals)
	close(done)
	m.wg.Wait()
	if err := m.bus.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, m.seekRule).Err; err != nil {
		m.poll.logger.Debug().Err(err).Msg("Failed to remove seeked match")
	}
}

func (m *MPRIS) signalLoop(signals <-chan *dbus.Signal, done <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if pos, ok := seekedPosition(sig); ok {
				m.poll.push(pos)
			}
		case <-done:
			return
		}
	}
}

func seekedPosition(sig *dbus.Signal) (float64, bool) {
	if sig == nil || sig.Name != mprisPlayerIface+".Seeked" || sig.Path != mprisPath {
		return 0, false
	}
	if len(sig.Body) < 1 {
		return 0, false
	}
	micros, ok := sig.Body[0].(int64)
	if !ok {
		return 0, false
	}
	return microsToSeconds(micros), true
}

func (m *MPRIS) Load(media string) error {
	return m.object().Call(mprisPlayerIface+".OpenUri", 0, media).Err
}

func (m *MPRIS) Play() error {
	return m.object().Call(mprisPlayerIface+".Play", 0).Err
}

func (m *MPRIS) Pause() error {
	return m.object().Call(mprisPlayerIface+".Pause", 0).Err
}

// Seek sets the absolute position of the current track.
func (m *MPRIS) Seek(position float64) error {
	if position < 0 {
		position = 0
	}
	prop, err := m.object().GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return fmt.Errorf("failed to get metadata property: %w", err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return fmt.Errorf("unexpected metadata type %T", prop.Value())
	}
	trackID, ok := trackObjectPath(metadata)
	if !ok {
		return errors.New("player did not report mpris:trackid")
	}
	return m.object().Call(mprisPlayerIface+".SetPosition", 0, trackID, int64(position*1e6)).Err
}

func trackObjectPath(metadata map[string]dbus.Variant) (dbus.ObjectPath, bool) {
	variant, ok := metadata["mpris:trackid"]
	if !ok {
		return "", false
	}
	switch v := variant.Value().(type) {
	case dbus.ObjectPath:
		return v, v.IsValid()
	case string:
		p := dbus.ObjectPath(v)
		return p, p.IsValid()
	default:
		return "", false
	}
}

func (m *MPRIS) Close() error {
	m.stop()
	m.poll.close()
	return nil
}

// PlayerInfo describes an MPRIS player found on the bus.
type PlayerInfo struct {
	Service  string
	Identity string
}

// ListPlayers returns the MPRIS players currently on the session bus.
func ListPlayers(bus *dbus.Conn) ([]PlayerInfo, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []PlayerInfo
	for _, name := range filterMPRIS(names) {
		players = append(players, PlayerInfo{Service: name, Identity: identity(bus, name)})
	}
	return players, nil
}

func filterMPRIS(names []string) []string {
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func identity(bus *dbus.Conn, service string) string {
	variant, err := bus.Object(service, mprisPath).GetProperty(mprisRootIface + ".Identity")
	if err != nil {
		return ""
	}
	id, _ := variant.Value().(string)
	return id
}
