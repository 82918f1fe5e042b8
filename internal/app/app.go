package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"lyrics-sync/internal/config"
	"lyrics-sync/internal/i3block"
	"lyrics-sync/internal/ipc"
	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/player"
	"lyrics-sync/internal/publish"
	"lyrics-sync/internal/session"
	"lyrics-sync/pkg/redis"
)

var logger = logging.Component("app")

type App struct {
	cfg  *config.Config
	sess *session.Session

	ipcServer *ipc.Server
	i3        *i3block.Controller
	publisher *publish.Publisher
	redis     *redis.Client
	bus       *dbus.Conn
}

func New(cfg *config.Config) *App {
	return &App{
		cfg:  cfg,
		sess: session.New(),
	}
}

func (a *App) Config() *config.Config    { return a.cfg }
func (a *App) Session() *session.Session { return a.sess }

// OpenSource creates the audio source named by kind.
func (a *App) OpenSource(kind player.Kind) (player.Source, error) {
	switch kind {
	case player.KindClock:
		return player.NewClock(a.cfg.Player.TickInterval), nil

	case player.KindPlayerctl:
		p := player.NewPlayerctl(a.cfg.Player.Name, a.cfg.Player.PollInterval)
		if song, err := p.CurrentSong(); err == nil {
			logger.Info().Str("song", song).Msg("Current song")
		}
		return p, nil

	case player.KindMPRIS:
		if a.bus == nil {
			bus, err := dbus.ConnectSessionBus()
			if err != nil {
				return nil, fmt.Errorf("failed to connect to session bus: %w", err)
			}
			a.bus = bus
		}
		return player.NewMPRIS(a.bus, a.cfg.Player.MprisService, a.cfg.Player.PollInterval)

	default:
		return nil, fmt.Errorf("unknown player source: %q", kind)
	}
}

// Start loads the configured lyrics and audio source and starts every
// enabled display surface.
func (a *App) Start() error {
	kind, err := player.ParseKind(a.cfg.Player.Source)
	if err != nil {
		return err
	}
	src, err := a.OpenSource(kind)
	if err != nil {
		return err
	}
	a.sess.Sync.SetOffset(a.cfg.Player.SyncOffset)
	a.sess.SetAudio(src)

	if err := a.startDisplays(); err != nil {
		return err
	}

	if a.cfg.App.AudioFile != "" {
		if err := a.sess.LoadMedia(a.cfg.App.AudioFile); err != nil {
			logger.Warn().Err(err).Str("audio", a.cfg.App.AudioFile).Msg("Failed to load media")
		}
	}

	if path := a.cfg.App.LyricsFile; path != "" {
		if _, err := a.sess.LoadLyrics(path); err != nil {
			return err
		}
		if a.cfg.App.Watch {
			if err := a.sess.Watch(path, a.cfg.App.ReloadDebounce); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to watch lyrics file")
			}
		}
	} else {
		logger.Warn().Msg("No lyrics file configured")
	}

	// 内置时钟没有外部播放器驱动，启动后直接开始计时
	if clock, ok := src.(*player.Clock); ok {
		if err := clock.Play(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) startDisplays() error {
	a.ipcServer = ipc.NewServer(a.cfg.App.SocketPath)
	if err := a.ipcServer.Start(); err != nil {
		a.ipcServer = nil
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	a.ipcServer.Observe(a.sess.Lyrics)

	if a.cfg.I3Block.Enabled {
		a.i3 = i3block.NewController(a.cfg.I3Block.OutputFile, a.cfg.I3Block.Signal)
		if err := a.i3.Start(); err != nil {
			return err
		}
		a.i3.Observe(a.sess.Lyrics)
	}

	if a.cfg.Redis.Enabled {
		client, err := redis.NewClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			logger.Error().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Failed to connect to Redis, publishing disabled")
		} else {
			a.redis = client
			a.publisher = publish.NewPublisher(client, a.cfg.Redis.Channel, a.sess.ID)
			a.publisher.Observe(a.sess.Lyrics)
			logger.Info().Str("channel", a.cfg.Redis.Channel).Msg("Publishing lyric events to Redis")
		}
	}
	return nil
}

// Run starts the app and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		a.Close()
		return err
	}
	logger.Info().Str("session", a.sess.ID.String()).Msg("lyrics-sync running")

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return a.Close()
}

// Close stops every surface, then the session.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.i3 != nil {
		a.i3.Stop()
		a.i3 = nil
	}
	if a.ipcServer != nil {
		a.ipcServer.Close()
		a.ipcServer = nil
	}
	errs = append(errs, a.sess.Close())
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
		a.bus = nil
	}
	return errors.Join(errs...)
}
