package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"lyrics-sync/internal/logging"
)

var logger = logging.Component("config")

const (
	AppName               = "lyrics-sync"
	DefaultSocketPath     = "/tmp/lyrics_sync.sock"
	DefaultLogLevel       = "info"
	DefaultReloadDebounce = 200 * time.Millisecond
	DefaultSource         = "clock"
	DefaultMprisService   = "org.mpris.MediaPlayer2.spotify"
	DefaultPollInterval   = 200 * time.Millisecond
	DefaultTickInterval   = 250 * time.Millisecond
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisChannel   = "lyrics-sync:active"
	DefaultI3BlockFile    = "/tmp/lyrics"
	DefaultI3BlockSignal  = 21
	DefaultLrclibURL      = "https://lrclib.net/api"
	DefaultLrclibRetries  = 3
	DefaultLrclibTimeout  = 10 * time.Second
	DefaultNeteaseURL     = "https://music.163.com"
)

// DefaultProviders 歌词下载的默认提供商顺序
var DefaultProviders = []string{"lrclib", "netease"}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath     string `toml:"socket_path"`
		LogLevel       string `toml:"log_level"`
		LyricsFile     string `toml:"lyrics_file"`
		AudioFile      string `toml:"audio_file"`
		Watch          *bool  `toml:"watch"`
		ReloadDebounce string `toml:"reload_debounce"`
	} `toml:"app"`

	Player struct {
		Source       string   `toml:"source"`
		Name         string   `toml:"name"`
		MprisService string   `toml:"mpris_service"`
		PollInterval string   `toml:"poll_interval"`
		TickInterval string   `toml:"tick_interval"`
		SyncOffset   *float64 `toml:"sync_offset"`
	} `toml:"player"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`

	I3Block struct {
		Enabled    bool   `toml:"enabled"`
		OutputFile string `toml:"output_file"`
		Signal     int    `toml:"signal"`
	} `toml:"i3block"`

	Lrclib struct {
		BaseURL string `toml:"base_url"`
		Retries int    `toml:"retries"`
		Timeout string `toml:"timeout"`
	} `toml:"lrclib"`

	Fetch struct {
		Providers     []string `toml:"providers"`
		CacheFile     string   `toml:"cache_file"`
		NeteaseURL    string   `toml:"netease_url"`
		NeteaseCookie string   `toml:"netease_cookie"`
	} `toml:"fetch"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath     string
	LogLevel       string
	LyricsFile     string
	AudioFile      string
	Watch          bool
	ReloadDebounce time.Duration
}

// PlayerConfig 播放源配置
type PlayerConfig struct {
	Source       string
	Name         string
	MprisService string
	PollInterval time.Duration
	TickInterval time.Duration
	SyncOffset   float64
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// I3BlockConfig i3blocks 输出配置
type I3BlockConfig struct {
	Enabled    bool
	OutputFile string
	Signal     int
}

// LrclibConfig lrclib 下载配置
type LrclibConfig struct {
	BaseURL string
	Retries int
	Timeout time.Duration
}

// FetchConfig 歌词下载配置
type FetchConfig struct {
	Providers     []string
	CacheFile     string
	NeteaseURL    string
	NeteaseCookie string
}

// Config 主配置结构
type Config struct {
	App     AppConfig
	Player  PlayerConfig
	Redis   RedisConfig
	I3Block I3BlockConfig
	Lrclib  LrclibConfig
	Fetch   FetchConfig
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:     DefaultSocketPath,
			LogLevel:       DefaultLogLevel,
			Watch:          true,
			ReloadDebounce: DefaultReloadDebounce,
		},
		Player: PlayerConfig{
			Source:       DefaultSource,
			MprisService: DefaultMprisService,
			PollInterval: DefaultPollInterval,
			TickInterval: DefaultTickInterval,
		},
		Redis: RedisConfig{
			Addr:    DefaultRedisAddr,
			Channel: DefaultRedisChannel,
		},
		I3Block: I3BlockConfig{
			OutputFile: DefaultI3BlockFile,
			Signal:     DefaultI3BlockSignal,
		},
		Lrclib: LrclibConfig{
			BaseURL: DefaultLrclibURL,
			Retries: DefaultLrclibRetries,
			Timeout: DefaultLrclibTimeout,
		},
		Fetch: FetchConfig{
			Providers:  append([]string(nil), DefaultProviders...),
			CacheFile:  CachePath(),
			NeteaseURL: DefaultNeteaseURL,
		},
	}
}

// Path 获取配置文件路径
func Path() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName, "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", AppName, "config.toml")
}

// loadTomlConfig 加载TOML配置文件
func loadTomlConfig(path string) (*TomlConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info().Str("path", path).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var config TomlConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Loaded config")
	return &config, nil
}

// Load builds the configuration from defaults, the TOML file at path (or
// Path() when empty), then the environment. A .env file in the working
// directory is loaded first if present.
func Load(path string) *Config {
	_ = godotenv.Load()

	if path == "" {
		path = Path()
	}

	tomlConfig, err := loadTomlConfig(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to load config file, using defaults")
		tomlConfig = &TomlConfig{}
	}

	config := Default()
	config.applyToml(tomlConfig)
	config.applyEnv()
	return config
}

// CachePath 获取下载缓存索引路径
func CachePath() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName, "fetch_cache.list")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".cache", AppName, "fetch_cache.list")
}

func (c *Config) applyToml(t *TomlConfig) {
	// App
	if t.App.SocketPath != "" {
		c.App.SocketPath = t.App.SocketPath
	}
	if t.App.LogLevel != "" {
		c.App.LogLevel = t.App.LogLevel
	}
	if t.App.LyricsFile != "" {
		c.App.LyricsFile = t.App.LyricsFile
	}
	if t.App.AudioFile != "" {
		c.App.AudioFile = t.App.AudioFile
	}
	if t.App.Watch != nil {
		c.App.Watch = *t.App.Watch
	}
	c.App.ReloadDebounce = parseDurationOrDefault("app.reload_debounce", t.App.ReloadDebounce, c.App.ReloadDebounce)

	// Player
	if t.Player.Source != "" {
		c.Player.Source = t.Player.Source
	}
	if t.Player.Name != "" {
		c.Player.Name = t.Player.Name
	}
	if t.Player.MprisService != "" {
		c.Player.MprisService = t.Player.MprisService
	}
	c.Player.PollInterval = parseDurationOrDefault("player.poll_interval", t.Player.PollInterval, c.Player.PollInterval)
	c.Player.TickInterval = parseDurationOrDefault("player.tick_interval", t.Player.TickInterval, c.Player.TickInterval)
	if t.Player.SyncOffset != nil {
		c.Player.SyncOffset = *t.Player.SyncOffset
	}

	// Redis
	c.Redis.Enabled = t.Redis.Enabled
	if t.Redis.Addr != "" {
		c.Redis.Addr = t.Redis.Addr
	}
	if t.Redis.Password != "" {
		c.Redis.Password = t.Redis.Password
	}
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}
	if t.Redis.Channel != "" {
		c.Redis.Channel = t.Redis.Channel
	}

	// i3block
	c.I3Block.Enabled = t.I3Block.Enabled
	if t.I3Block.OutputFile != "" {
		c.I3Block.OutputFile = t.I3Block.OutputFile
	}
	if t.I3Block.Signal != 0 {
		c.I3Block.Signal = t.I3Block.Signal
	}

	// lrclib
	if t.Lrclib.BaseURL != "" {
		c.Lrclib.BaseURL = t.Lrclib.BaseURL
	}
	if t.Lrclib.Retries > 0 {
		c.Lrclib.Retries = t.Lrclib.Retries
	}
	c.Lrclib.Timeout = parseDurationOrDefault("lrclib.timeout", t.Lrclib.Timeout, c.Lrclib.Timeout)

	// fetch
	if len(t.Fetch.Providers) > 0 {
		c.Fetch.Providers = t.Fetch.Providers
	}
	if t.Fetch.CacheFile != "" {
		c.Fetch.CacheFile = t.Fetch.CacheFile
	}
	if t.Fetch.NeteaseURL != "" {
		c.Fetch.NeteaseURL = t.Fetch.NeteaseURL
	}
	if t.Fetch.NeteaseCookie != "" {
		c.Fetch.NeteaseCookie = t.Fetch.NeteaseCookie
	}
}

func (c *Config) applyEnv() {
	setString(&c.App.SocketPath, "LYRICS_SYNC_SOCKET")
	setString(&c.App.LogLevel, "LYRICS_SYNC_LOG_LEVEL")
	setString(&c.App.LyricsFile, "LYRICS_SYNC_LRC")
	setString(&c.App.AudioFile, "LYRICS_SYNC_AUDIO")
	setString(&c.Player.Source, "LYRICS_SYNC_SOURCE")
	setString(&c.Player.MprisService, "MPRIS_SERVICE")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Lrclib.BaseURL, "LRCLIB_URL")
	setString(&c.Fetch.NeteaseCookie, "NETEASE_COOKIE")

	if v := os.Getenv("SYNC_OFFSET"); v != "" {
		offset, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn().Str("value", v).Msg("Invalid SYNC_OFFSET, ignoring")
		} else {
			c.Player.SyncOffset = offset
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseDurationOrDefault(key, s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		logger.Warn().Str("key", key).Str("value", s).Msg("Invalid duration format, using default")
		return defaultValue
	}
	return d
}
