package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. MP3FETCH_PORT.
const EnvPrefix = "MP3FETCH_"

const (
	defaultPort               = 8080
	defaultDataDir            = "downloads"
	defaultMaxConcurrentTasks = 3
	defaultCollectionWorkers  = 3
	defaultPollInterval       = time.Second
	defaultAudioFormat        = "mp3"
	defaultAudioQuality       = "192"
	defaultProbeTimeout       = 60 * time.Second
	defaultProgressInterval   = 500 * time.Millisecond
	defaultRetention          = 24 * time.Hour
	defaultEventsTopic        = "mp3fetch.tasks"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config describes runtime configuration for the service.
type Config struct {
	Port               int           `yaml:"port" env:"PORT, overwrite"`
	DataDir            string        `yaml:"data_dir" env:"DATA_DIR, overwrite"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS, overwrite"`
	CollectionWorkers  int           `yaml:"collection_workers" env:"COLLECTION_WORKERS, overwrite"`
	PollInterval       time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL, overwrite"`

	Acquire AcquireConfig `yaml:"acquire"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
}

type AcquireConfig struct {
	AudioFormat      string        `yaml:"audio_format" env:"AUDIO_FORMAT, overwrite"`
	AudioQuality     string        `yaml:"audio_quality" env:"AUDIO_QUALITY, overwrite"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT, overwrite"`
	ProgressInterval time.Duration `yaml:"progress_interval" env:"PROGRESS_INTERVAL, overwrite"`
	// CollectionLimit caps playlist members; 0 means unlimited.
	CollectionLimit int  `yaml:"collection_limit" env:"COLLECTION_LIMIT, overwrite"`
	NativePlaylist  bool `yaml:"native_playlist" env:"NATIVE_PLAYLIST, overwrite"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend" env:"STORE_BACKEND, overwrite"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR, overwrite"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD, overwrite"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB, overwrite"`
	Retention     time.Duration `yaml:"retention" env:"RETENTION, overwrite"`
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS, overwrite"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC, overwrite"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:               defaultPort,
		DataDir:            defaultDataDir,
		MaxConcurrentTasks: defaultMaxConcurrentTasks,
		CollectionWorkers:  defaultCollectionWorkers,
		PollInterval:       defaultPollInterval,
		Acquire: AcquireConfig{
			AudioFormat:      defaultAudioFormat,
			AudioQuality:     defaultAudioQuality,
			ProbeTimeout:     defaultProbeTimeout,
			ProgressInterval: defaultProgressInterval,
		},
		Store: StoreConfig{
			Backend:   StoreMemory,
			RedisAddr: "localhost:6379",
			Retention: defaultRetention,
		},
		Events: EventsConfig{Topic: defaultEventsTopic},
	}
}

// Load reads YAML config from path and applies MP3FETCH_* environment
// overrides. A missing or empty file yields defaults.
func Load(path string) (Config, error) {
	return LoadWithLookuper(context.Background(), path, envconfig.OsLookuper())
}

// LoadWithLookuper is Load with an explicit environment source.
func LoadWithLookuper(ctx context.Context, path string, lookuper envconfig.Lookuper) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	if err := readFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(fileData, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cfg.Acquire.AudioFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.Acquire.AudioFormat)), ".")
	if cfg.Acquire.AudioFormat == "" {
		cfg.Acquire.AudioFormat = defaultAudioFormat
	}
	if cfg.Acquire.AudioQuality == "" {
		cfg.Acquire.AudioQuality = defaultAudioQuality
	}
	if cfg.Acquire.ProbeTimeout <= 0 {
		cfg.Acquire.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.Acquire.ProgressInterval <= 0 {
		cfg.Acquire.ProgressInterval = defaultProgressInterval
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaultEventsTopic
	}
	brokers := cfg.Events.Brokers[:0]
	for _, b := range cfg.Events.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	cfg.Events.Brokers = brokers
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	// values < 1 are not allowed for concurrency settings
	if c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("invalid max_concurrent_tasks: %d (must be >= 1)", c.MaxConcurrentTasks)
	}
	if c.CollectionWorkers < 1 {
		return fmt.Errorf("invalid collection_workers: %d (must be >= 1)", c.CollectionWorkers)
	}
	if c.Acquire.CollectionLimit < 0 {
		return fmt.Errorf("invalid acquire.collection_limit: %d", c.Acquire.CollectionLimit)
	}
	switch c.Store.Backend {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
