package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/lyrics"
)

var logger = logging.Component("ipc")

const (
	// clientQueueSize 每个客户端最多积压的行数，超过即断开
	clientQueueSize = 16
	writeTimeout   = 2 * time.Second
)

// client is one subscriber. Lines are queued by Broadcast and written by
// the client's own goroutine, so a slow reader never blocks the sender.
type client struct {
	conn net.Conn
	send chan string
}

// Server broadcasts the active lyric line, one line per message, to every
// client connected to a unix socket.
type Server struct {
	socketPath      string
	listener        net.Listener
	clientConns     map[net.Conn]*client
	clientConnsLock sync.Mutex
	lyrics          string
	hasLyrics       bool
	lockFile        *os.File
	lockFilePath    string
	wg              sync.WaitGroup

	store *lyrics.Store
	subID uuid.UUID
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		clientConns:  make(map[net.Conn]*client),
		lockFilePath: socketPath + ".lock",
	}
}

func (s *Server) checkAndCleanOldLock() error {
	// 检查锁文件是否存在
	if _, err := os.Stat(s.lockFilePath); os.IsNotExist(err) {
		return nil
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return nil
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		// 锁文件为空或 PID 格式不正确
		logger.Warn().Err(err).Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return nil
	}

	if !isProcessRunning(pid) {
		logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return nil
	}

	logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
	return nil
}

func isProcessRunning(pid int) bool {
	// kill(pid, 0) 只检查进程是否存在
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	if err := s.checkAndCleanOldLock(); err != nil {
		logger.Warn().Err(err).Msg("Failed to clean old lock file")
	}

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// 尝试获取独占锁
	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyrics-sync instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := file.Truncate(0); err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

func (s *Server) Start() error {
	// 首先尝试获取进程锁
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Observe broadcasts the current line of store, then every change until
// Close.
func (s *Server) Observe(store *lyrics.Store) {
	s.store = store
	s.subID = store.Subscribe(func(c lyrics.Change) {
		line, _ := c.Current()
		s.Broadcast(line.Text)
	})
	if line, ok := store.Snapshot().Current(); ok {
		s.Broadcast(line.Text)
	}
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	c := &client{conn: conn, send: make(chan string, clientQueueSize)}

	// 新客户端先收到当前歌词
	s.clientConnsLock.Lock()
	s.clientConns[conn] = c
	if s.hasLyrics {
		c.send <- s.lyrics
	}
	s.clientConnsLock.Unlock()

	logger.Info().Msg("Client connected")

	s.wg.Add(1)
	go s.writeLoop(c)

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	s.removeClient(c)
	logger.Info().Msg("Client disconnected")
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()
	for text := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.conn.Write([]byte(text + "\n")); err != nil {
			logger.Error().Err(err).Msg("Failed to write to client, removing")
			s.removeClient(c)
			return
		}
	}
}

// removeClient closes the connection and the queue once.
func (s *Server) removeClient(c *client) {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	s.removeClientLocked(c)
}

func (s *Server) removeClientLocked(c *client) {
	if s.clientConns[c.conn] != c {
		return
	}
	delete(s.clientConns, c.conn)
	close(c.send)
	c.conn.Close()
}

// Broadcast queues text for all connected clients and remembers it for
// clients that connect later. It never blocks: a client whose queue is
// full is disconnected.
func (s *Server) Broadcast(text string) {
	text = strings.ReplaceAll(text, "\n", " ")

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	s.lyrics = text
	s.hasLyrics = true

	for _, c := range s.clientConns {
		select {
		case c.send <- text:
		default:
			logger.Warn().Msg("Client is not reading, removing")
			s.removeClientLocked(c)
		}
	}
}

func (s *Server) Close() {
	if s.store != nil {
		s.store.Unsubscribe(s.subID)
		s.store = nil
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.clientConnsLock.Lock()
	for _, c := range s.clientConns {
		s.removeClientLocked(c)
	}
	s.clientConnsLock.Unlock()

	s.wg.Wait()
	if s.listener != nil {
		os.Remove(s.socketPath)
		s.listener = nil
	}
	s.releaseLock()
}
