package player

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestClock() (*Clock, *fakeNow) {
	fn := &fakeNow{t: time.Unix(1700000000, 0)}
	c := NewClock(time.Hour)
	c.now = fn.now
	return c, fn
}

func recv(t *testing.T, updates <-chan float64) float64 {
	t.Helper()
	select {
	case pos := <-updates:
		return pos
	case <-time.After(2 * time.Second):
		t.Fatal("no time update delivered")
		return 0
	}
}

func expectNone(t *testing.T, updates <-chan float64) {
	t.Helper()
	select {
	case pos := <-updates:
		t.Errorf("unexpected update %v", pos)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClockTransport(t *testing.T) {
	c, fn := newTestClock()
	defer c.Close()

	updates := make(chan float64, 16)
	cancel := c.OnTimeUpdate(func(pos float64) { updates <- pos })
	defer cancel()

	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := recv(t, updates); got != 0 {
		t.Errorf("update after Play = %v, want 0", got)
	}

	fn.advance(2500 * time.Millisecond)
	c.Tick()
	if got := recv(t, updates); got != 2.5 {
		t.Errorf("tick update = %v, want 2.5", got)
	}

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := recv(t, updates); got != 2.5 {
		t.Errorf("update after Pause = %v, want 2.5", got)
	}

	// 暂停时 tick 不产生更新
	fn.advance(10 * time.Second)
	c.Tick()
	expectNone(t, updates)

	pos, err := c.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != 2.5 {
		t.Errorf("Position after pause = %v, want 2.5", pos)
	}
}

// A tick sampled before a seek must not be the last thing listeners see.
func TestClockSeekWhileListenerBusy(t *testing.T) {
	c, fn := newTestClock()
	defer c.Close()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	updates := make(chan float64, 16)
	var first sync.Once
	cancel := c.OnTimeUpdate(func(pos float64) {
		first.Do(func() {
			entered <- struct{}{}
			<-release
		})
		updates <- pos
	})
	defer cancel()

	c.Play()
	fn.advance(50 * time.Second)
	c.Pause()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never called")
	}

	// 监听者仍在处理旧样本时后退
	if err := c.Seek(10); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	close(release)

	var last float64
	for {
		select {
		case pos := <-updates:
			last = pos
			continue
		case <-time.After(200 * time.Millisecond):
		}
		break
	}
	if last != 10 {
		t.Errorf("last delivered position = %v, want 10", last)
	}
}

func TestClockSeekAndLoad(t *testing.T) {
	c, fn := newTestClock()
	defer c.Close()

	c.Play()
	if err := c.Seek(42); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	fn.advance(time.Second)
	if pos, _ := c.Position(); pos != 43 {
		t.Errorf("Position = %v, want 43", pos)
	}

	c.Seek(-3)
	if pos, _ := c.Position(); pos != 0 {
		t.Errorf("negative seek Position = %v, want 0", pos)
	}

	if err := c.Load("file:///music/song.mp3"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Playing() {
		t.Error("clock still playing after Load")
	}
	if c.Media() != "file:///music/song.mp3" {
		t.Errorf("Media = %q", c.Media())
	}
	if pos, _ := c.Position(); pos != 0 {
		t.Errorf("Position after Load = %v, want 0", pos)
	}
}

func TestClockCancelStopsDelivery(t *testing.T) {
	c, _ := newTestClock()
	defer c.Close()

	updates := make(chan float64, 16)
	cancel := c.OnTimeUpdate(func(pos float64) { updates <- pos })
	c.Play()
	recv(t, updates)
	cancel()
	cancel()
	c.Tick()
	c.Seek(5)

	expectNone(t, updates)
	if n := c.listeners.count(); n != 0 {
		t.Errorf("listener count = %d, want 0", n)
	}
}

func TestClockClose(t *testing.T) {
	c, _ := newTestClock()
	c.OnTimeUpdate(func(float64) {})

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Position(); !errors.Is(err, ErrClosed) {
		t.Errorf("Position after Close err = %v, want ErrClosed", err)
	}
	if err := c.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("Play after Close err = %v, want ErrClosed", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"clock", "playerctl", "mpris"} {
		if _, err := ParseKind(name); err != nil {
			t.Errorf("ParseKind(%q): %v", name, err)
		}
	}
	if _, err := ParseKind("vlc"); err == nil {
		t.Error("ParseKind accepted unknown source")
	}
}
