package i3block

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/lyrics"
)

// sigRTMin is SIGRTMIN on Linux; i3blocks maps "signal=N" to SIGRTMIN+N.
const sigRTMin = 34

var logger = logging.Component("i3block")

// Controller writes the active lyric line to a file read by an i3blocks
// block and signals i3blocks to refresh it.
type Controller struct {
	outputFile string
	signal     int

	pid       int
	pidMutex  sync.RWMutex
	ticker    *time.Ticker
	stopChan  chan struct{}
	isRunning bool
	runMutex  sync.Mutex

	findPID func() (int, error)

	store *lyrics.Store
	subID uuid.UUID
}

// NewController creates a controller writing to outputFile and sending
// SIGRTMIN+signal on each change.
func NewController(outputFile string, signal int) *Controller {
	return &Controller{
		outputFile: outputFile,
		signal:     signal,
		pid:        -1,
		stopChan:   make(chan struct{}),
		findPID:    findI3blocksPID,
	}
}

// Start begins monitoring the i3blocks PID every 10 seconds
func (c *Controller) Start() error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.isRunning {
		return fmt.Errorf("controller is already running")
	}

	if err := c.refreshPID(); err != nil {
		logger.Warn().Err(err).Msg("i3blocks not found yet")
	}

	c.ticker = time.NewTicker(10 * time.Second)
	c.isRunning = true

	go c.monitorLoop(c.ticker, c.stopChan)

	logger.Info().Str("output_file", c.outputFile).Int("signal", c.signal).Msg("i3block controller started")
	return nil
}

// Stop stops the controller
func (c *Controller) Stop() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.store != nil {
		c.store.Unsubscribe(c.subID)
		c.store = nil
	}
	if !c.isRunning {
		return
	}

	close(c.stopChan)
	c.ticker.Stop()
	c.isRunning = false

	logger.Info().Msg("i3block controller stopped")
}

func (c *Controller) monitorLoop(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(); err != nil {
				logger.Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-stop:
			return
		}
	}
}

// refreshPID updates the stored PID of the i3blocks process
func (c *Controller) refreshPID() error {
	pid, err := c.findPID()
	if err != nil {
		pid = -1
	}

	c.pidMutex.Lock()
	oldPID := c.pid
	c.pid = pid
	c.pidMutex.Unlock()

	if oldPID != pid {
		logger.Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return err
}

func findI3blocksPID() (int, error) {
	output, err := exec.Command("pgrep", "-x", "i3blocks").Output()
	if err != nil {
		return findI3blocksPIDAlternative()
	}
	return parsePgrep(string(output))
}

// parsePgrep takes the first PID when several are listed
func parsePgrep(output string) (int, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return -1, fmt.Errorf("i3blocks process not found")
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// findI3blocksPIDAlternative falls back to scanning ps output
func findI3blocksPIDAlternative() (int, error) {
	output, err := exec.Command("ps", "aux").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}
	return parsePS(string(output))
}

func parsePS(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "i3blocks") || strings.Contains(line, "grep") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if pid, err := strconv.Atoi(fields[1]); err == nil {
			return pid, nil
		}
	}
	return -1, fmt.Errorf("i3blocks process not found with alternative method")
}

// GetPID returns the current stored PID
func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Observe writes and signals on every active-line change of store.
func (c *Controller) Observe(store *lyrics.Store) {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	c.store = store
	c.subID = store.Subscribe(func(ch lyrics.Change) {
		line, _ := ch.Current()
		if err := c.Update(line.Text); err != nil {
			logger.Debug().Err(err).Msg("Failed to update i3block")
		}
	})
}

// Update writes text to the output file and asks i3blocks to refresh.
func (c *Controller) Update(text string) error {
	if err := os.WriteFile(c.outputFile, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.outputFile, err)
	}
	return c.Signal()
}

// Signal sends SIGRTMIN+signal to the i3blocks process
func (c *Controller) Signal() error {
	pid := c.GetPID()
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d, i3blocks process not found", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig := syscall.Signal(sigRTMin + c.signal)
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", int(sig), pid, err)
	}
	return nil
}

// IsRunning returns whether the controller is currently running
func (c *Controller) IsRunning() bool {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	return c.isRunning
}
