package lyrics

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lyrics-sync/internal/logging"
)

var watchLogger = logging.Component("lyrics-watcher")

// Watcher calls reload whenever the watched lyric file is written, created or
// renamed into place. Bursts of events inside the debounce window collapse
// into a single reload.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func() error

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// NewWatcher 监听歌词文件所在目录。编辑器保存时常常是先写临时文件再重命名，
// 所以监听目录而不是文件本身。
func NewWatcher(path string, debounce time.Duration, reload func() error) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		reload:   reload,
		watcher:  fw,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	watchLogger.Info().Str("path", abs).Dur("debounce", debounce).Msg("Watching lyrics file")
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				watchLogger.Debug().Str("op", event.Op.String()).Msg("Lyrics file changed")
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLogger.Error().Err(err).Msg("Watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.mu.Unlock()

	if err := w.reload(); err != nil {
		watchLogger.Error().Err(err).Str("path", w.path).Msg("Failed to reload lyrics")
	}
}

// Close stops watching; no reload runs after Close returns, except one
// that had already started.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
