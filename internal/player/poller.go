package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval 外部播放器的轮询间隔
const DefaultPollInterval = 200 * time.Millisecond

// poller samples an external player on an interval and fans the samples out
// to the registered listeners. It only polls while listeners exist.
type poller struct {
	interval time.Duration
	sample   func() (float64, error)
	logger   zerolog.Logger

	listeners listeners

	mu     sync.Mutex
	stop   chan struct{}
	extra  chan float64
	closed bool
	wg     sync.WaitGroup
}

func newPoller(interval time.Duration, sample func() (float64, error), logger zerolog.Logger) *poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &poller{interval: interval, sample: sample, logger: logger}
	p.listeners.start = p.startLoop
	p.listeners.stop = p.stopLoop
	return p
}

func (p *poller) subscribe(fn func(float64)) func() {
	return p.listeners.add(fn)
}

// push delivers an out-of-band position (e.g. a seek notification) through
// the polling goroutine so listeners still see samples in order.
func (p *poller) push(position float64) {
	p.mu.Lock()
	extra := p.extra
	p.mu.Unlock()
	if extra == nil {
		return
	}
	select {
	case extra <- position:
	default:
	}
}

func (p *poller) startLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stop != nil {
		return
	}
	stop := make(chan struct{})
	extra := make(chan float64, 4)
	p.stop = stop
	p.extra = extra

	p.wg.Add(1)
	go p.loop(stop, extra)
}

func (p *poller) stopLoop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.extra = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (p *poller) loop(stop <-chan struct{}, extra <-chan float64) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failed := false
	for {
		select {
		case <-ticker.C:
			pos, err := p.sample()
			if err != nil {
				// 播放器未运行时只记录一次
				if !failed {
					p.logger.Warn().Err(err).Msg("Failed to read player position")
					failed = true
				}
				continue
			}
			if failed {
				p.logger.Info().Msg("Player position available again")
				failed = false
			}
			p.listeners.emit(pos)
		case pos := <-extra:
			p.listeners.emit(pos)
		case <-stop:
			return
		}
	}
}

func (p *poller) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.listeners.clear()
	p.stopLoop()
	p.wg.Wait()
}
