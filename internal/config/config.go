// Package config loads finwatch configuration from ~/.finwatch/config.yaml,
// an optional project overlay, and FINWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/record"
)

// Source kinds.
const (
	SourceSim   = "sim"
	SourceHTTP  = "http"
	SourceRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete finwatch configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Source    SourceConfig    `yaml:"source"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
}

// EngineConfig holds the engine tunables.
type EngineConfig struct {
	InterItemDelay    time.Duration `yaml:"inter_item_delay"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	RefreshBatchSize  int           `yaml:"refresh_batch_size"`
	RefreshBatchDelay time.Duration `yaml:"refresh_batch_delay"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	Pacing            string        `yaml:"pacing"`
}

// SourceConfig selects and configures the data source.
type SourceConfig struct {
	Kind  string            `yaml:"kind"`
	HTTP  HTTPSourceConfig  `yaml:"http"`
	Redis RedisSourceConfig `yaml:"redis"`
	Sim   SimSourceConfig   `yaml:"sim"`
}

// HTTPSourceConfig configures the HTTP data source.
type HTTPSourceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
}

// RedisSourceConfig configures the Redis data source.
type RedisSourceConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// SimSourceConfig configures the simulated data source.
type SimSourceConfig struct {
	Latency  time.Duration `yaml:"latency"`
	FailKeys []string      `yaml:"fail_keys,omitempty"`
	Seed     uint64        `yaml:"seed"`
}

// NotifyConfig configures event publishing.
type NotifyConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
	Buffer  int      `yaml:"buffer"`
}

// WatchlistConfig locates the watchlist file.
type WatchlistConfig struct {
	File        string `yaml:"file"`
	DefaultView string `yaml:"default_view"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := engine.DefaultOptions()
	dir, err := GetConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), ".finwatch")
	}

	return &Config{
		Engine: EngineConfig{
			InterItemDelay:    opts.InterItemDelay,
			RefreshInterval:   opts.RefreshInterval,
			RefreshBatchSize:  opts.RefreshBatchSize,
			RefreshBatchDelay: opts.RefreshBatchDelay,
			CacheTTL:          opts.FullCacheTTL,
			Pacing:            opts.PacingPolicy,
		},
		Source: SourceConfig{
			Kind: SourceSim,
			HTTP: HTTPSourceConfig{
				Timeout:      10 * time.Second,
				RetryMax:     3,
				RetryWaitMin: 500 * time.Millisecond,
				RetryWaitMax: 5 * time.Second,
			},
			Redis: RedisSourceConfig{Addr: "localhost:6379"},
			Sim:   SimSourceConfig{Latency: 150 * time.Millisecond},
		},
		Notify: NotifyConfig{
			Kafka: KafkaConfig{Topic: "finwatch.events", Buffer: 256},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(dir, "logs", "finwatch.log"),
		},
		Watchlist: WatchlistConfig{
			File:        filepath.Join(dir, "watchlist.yaml"),
			DefaultView: "default",
		},
	}
}

// New returns the effective configuration: defaults, then the global config
// file if present, then environment overrides. A broken config file is
// ignored here; `finwatch config validate` reports it.
func New() *Config {
	cfg := Default()
	if path, err := ConfigFilePath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if loaded, loadErr := Load(path); loadErr == nil {
				cfg = loaded
			}
		}
	}
	_ = cfg.ApplyEnv(os.LookupEnv)
	return cfg
}

// Load reads the config file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// EngineOptions converts the engine section to engine.Options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		InterItemDelay:    c.Engine.InterItemDelay,
		RefreshInterval:   c.Engine.RefreshInterval,
		RefreshBatchSize:  c.Engine.RefreshBatchSize,
		RefreshBatchDelay: c.Engine.RefreshBatchDelay,
		FullCacheTTL:      c.Engine.CacheTTL,
		PacingPolicy:      c.Engine.Pacing,
	}
}

// SimFailKeys parses the simulated failing keys.
func (c *Config) SimFailKeys() ([]record.Key, error) {
	return record.ParseKeys(c.Source.Sim.FailKeys)
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.EngineOptions().Validate(); err != nil {
		return fmt.Errorf("%w: engine: %w", ErrInvalidConfig, err)
	}

	switch c.Source.Kind {
	case SourceSim:
		if _, err := c.SimFailKeys(); err != nil {
			return fmt.Errorf("%w: source.sim.fail_keys: %w", ErrInvalidConfig, err)
		}
	case SourceHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return fmt.Errorf("%w: source.http.base_url is required", ErrInvalidConfig)
		}
	case SourceRedis:
		if c.Source.Redis.Addr == "" {
			return fmt.Errorf("%w: source.redis.addr is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: source.kind %q (want %s, %s or %s)",
			ErrInvalidConfig, c.Source.Kind, SourceSim, SourceHTTP, SourceRedis)
	}

	if c.Notify.Kafka.Enabled {
		if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
			return fmt.Errorf("%w: notify.kafka needs brokers and topic when enabled", ErrInvalidConfig)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Keys lists the supported `config show` sections.
func Keys() []string {
	keys := make([]string, 0, len(knownTopLevelKeys))
	for k := range knownTopLevelKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
