// Package config loads runtime settings with viper.
//
// Settings come from an optional nostr-torrent.{json,yaml,toml} file in the
// working directory or ./config, overridden by NOSTR_TORRENT_* environment
// variables (dots become underscores: NOSTR_TORRENT_SEARCH_GRACE_PERIOD).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the decoded configuration
type Config struct {
	Relays   []string       `mapstructure:"relays"`
	Search   SearchConfig   `mapstructure:"search"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// SearchConfig controls relay searches
type SearchConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	GracePeriod  time.Duration `mapstructure:"grace_period"` // wait after the last EOSE before closing
	CapResults   bool          `mapstructure:"cap_results"`  // also cap accepted results at the limit
}

// RelayConfig controls individual relay connections
type RelayConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// TransferConfig controls the torrent client
type TransferConfig struct {
	DataDir  string   `mapstructure:"data_dir"`
	Trackers []string `mapstructure:"trackers"`
	NoUpload bool     `mapstructure:"no_upload"`
}

// CacheConfig selects the announcement cache backend
type CacheConfig struct {
	Backend         string        `mapstructure:"backend"` // "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url"`
	MaxEntries      int           `mapstructure:"max_entries"`
	AnnouncementTTL time.Duration `mapstructure:"announcement_ttl"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	configName = "nostr-torrent"
	envPrefix  = "NOSTR_TORRENT"

	reloadDebounce = 500 * time.Millisecond
)

// DefaultRelays are queried when no relay list is configured
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://offchain.pub",
	"wss://nos.lol",
	"wss://eden.nostr.land",
	"wss://relay.nostr.band",
}

// DefaultTrackers are always added to a torrent's announce list
var DefaultTrackers = []string{
	"wss://tracker.openwebtorrent.com",
	"wss://tracker.btorrent.xyz",
	"wss://tracker.webtorrent.dev",
	"wss://tracker.files.fm:7073/announce",
}

var (
	cachedConfig atomic.Value // *Config

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("relays", DefaultRelays)

	v.SetDefault("search.default_limit", 100)
	v.SetDefault("search.max_limit", 200)
	v.SetDefault("search.grace_period", "500ms")
	v.SetDefault("search.cap_results", false)

	v.SetDefault("relay.handshake_timeout", "10s")

	v.SetDefault("transfer.data_dir", "downloads")
	v.SetDefault("transfer.trackers", DefaultTrackers)
	v.SetDefault("transfer.no_upload", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.max_entries", 5000)
	v.SetDefault("cache.announcement_ttl", "30m")

	v.SetDefault("server.port", "8080")

	v.SetDefault("log.level", "info")
}

// New builds a viper instance with defaults and environment bindings and reads
// the config file if one exists. configFile may be empty to use the search path.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("config file not found, using defaults")
	} else {
		slog.Info("loaded configuration", "path", v.ConfigFileUsed())
	}

	return v, nil
}

// Decode unmarshals and sanitizes the settings held by v
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// sanitize repairs values that would make searches misbehave
func (c *Config) sanitize() {
	if len(c.Relays) == 0 {
		c.Relays = DefaultRelays
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 200
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		c.Search.DefaultLimit = c.Search.MaxLimit
	}
	if c.Search.GracePeriod < 0 {
		c.Search.GracePeriod = 0
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
}

// Init loads the configuration into the process-wide cache and watches the
// config file for changes.
func Init(configFile string) error {
	v, err := New(configFile)
	if err != nil {
		return err
	}

	cfg, err := Decode(v)
	if err != nil {
		return err
	}
	cachedConfig.Store(cfg)

	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		// Debounce to avoid reading partial writes
		debounceMu.Lock()
		defer debounceMu.Unlock()

		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(reloadDebounce, func() {
			cfg, err := Decode(v)
			if err != nil {
				slog.Error("config reload failed, keeping previous", "path", e.Name, "error", err)
				return
			}
			cachedConfig.Store(cfg)
			slog.Info("configuration reloaded", "path", e.Name, "relays", len(cfg.Relays))
		})
	})
	v.WatchConfig()

	return nil
}

// Get returns the current configuration, or defaults if Init was never called
func Get() *Config {
	if cfg, ok := cachedConfig.Load().(*Config); ok {
		return cfg
	}
	v := viper.New()
	setDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		// Defaults always decode
		panic(err)
	}
	return cfg
}

// Set replaces the current configuration
func Set(cfg *Config) {
	cachedConfig.Store(cfg)
}
