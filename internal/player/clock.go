package player

import (
	"sync"
	"time"

	"lyrics-sync/internal/logging"
)

// DefaultTickInterval 与浏览器 timeupdate 事件的频率接近
const DefaultTickInterval = 250 * time.Millisecond

var clockLogger = logging.Component("clock")

// Clock is an in-process playback clock. It produces time updates on every
// tick while playing and once after each transport change, the way a media
// element fires timeupdate. All updates are sampled and delivered by one
// goroutine, so a transport change is never followed by an older position.
type Clock struct {
	mu      sync.Mutex
	now     func() time.Time
	tick    time.Duration
	base    float64
	anchor  time.Time
	playing bool
	media   string
	closed  bool

	listeners listeners
	stopTick  chan struct{}
	tickReq   chan struct{}
	wake      chan struct{}
	wg        sync.WaitGroup
}

// NewClock 创建一个暂停在 0 秒的时钟
func NewClock(tick time.Duration) *Clock {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	c := &Clock{now: time.Now, tick: tick}
	c.listeners.start = c.startTicker
	c.listeners.stop = c.stopTicker
	return c
}

func (c *Clock) Name() string { return string(KindClock) }

func (c *Clock) position() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.now().Sub(c.anchor).Seconds()
}

// Position returns the current clock position in seconds.
func (c *Clock) Position() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	return c.position(), nil
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Media returns the last loaded media URI.
func (c *Clock) Media() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media
}

func (c *Clock) OnTimeUpdate(fn func(float64)) func() {
	return c.listeners.add(fn)
}

// Load resets the clock to zero, paused, for a new media source.
func (c *Clock) Load(media string) error {
	return c.update(func() {
		c.media = media
		c.base = 0
		c.playing = false
		clockLogger.Info().Str("media", media).Msg("Media loaded")
	})
}

func (c *Clock) Play() error {
	return c.update(func() {
		if c.playing {
			return
		}
		c.anchor = c.now()
		c.playing = true
	})
}

func (c *Clock) Pause() error {
	return c.update(func() {
		if !c.playing {
			return
		}
		c.base = c.position()
		c.playing = false
	})
}

// Seek moves the clock; negative positions clamp to zero.
func (c *Clock) Seek(position float64) error {
	if position < 0 {
		position = 0
	}
	return c.update(func() {
		c.base = position
		c.anchor = c.now()
	})
}

func (c *Clock) update(apply func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	apply()
	wake := c.wake
	c.mu.Unlock()

	notify(wake)
	return nil
}

// Tick asks the delivery goroutine for a sample; it is emitted only if the
// clock is playing.
func (c *Clock) Tick() {
	c.mu.Lock()
	req := c.tickReq
	c.mu.Unlock()
	notify(req)
}

// notify 非阻塞通知，已有未处理的通知时合并
func notify(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// sample reads the position at delivery time and emits it. force emits
// even while paused.
func (c *Clock) sample(force bool) {
	c.mu.Lock()
	if c.closed || (!force && !c.playing) {
		c.mu.Unlock()
		return
	}
	pos := c.position()
	c.mu.Unlock()

	c.listeners.emit(pos)
}

func (c *Clock) startTicker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	tickReq := make(chan struct{}, 1)
	wake := make(chan struct{}, 1)
	c.stopTick, c.tickReq, c.wake = stop, tickReq, wake

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sample(false)
			case <-tickReq:
				c.sample(false)
			case <-wake:
				c.sample(true)
			case <-stop:
				return
			}
		}
	}()
}

func (c *Clock) stopTicker() {
	c.mu.Lock()
	stop := c.stopTick
	c.stopTick, c.tickReq, c.wake = nil, nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (c *Clock) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.listeners.clear()
	c.stopTicker()
	c.wg.Wait()
	return nil
}
