package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func noEnv() envconfig.Lookuper {
	return envconfig.MapLookuper(map[string]string{})
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Port != 8080 || cfg.DataDir != "downloads" || cfg.MaxConcurrentTasks != 3 || cfg.CollectionWorkers != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Acquire.AudioFormat != "mp3" || cfg.Acquire.AudioQuality != "192" || cfg.Store.Backend != StoreMemory {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadWithLookuper(context.Background(), "not_exists.yml", noEnv())
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Port != defaultPort || cfg.PollInterval != time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	path := writeConfig(t, `port: 9090
data_dir: testdata
max_concurrent_tasks: 2
collection_workers: 4
poll_interval: 250ms
acquire:
  audio_format: .MP3
  probe_timeout: 30s
  collection_limit: 25
store:
  backend: Redis
  redis_addr: cache:6379
  retention: 2h
events:
  brokers: ["kafka:9092", " "]
`)
	cfg, err := LoadWithLookuper(context.Background(), path, noEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DataDir != "testdata" || cfg.MaxConcurrentTasks != 2 || cfg.CollectionWorkers != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.Acquire.ProbeTimeout != 30*time.Second {
		t.Fatalf("durations not parsed: %+v", cfg)
	}
	if cfg.Acquire.AudioFormat != "mp3" || cfg.Acquire.AudioQuality != "192" || cfg.Acquire.CollectionLimit != 25 {
		t.Fatalf("acquire not normalized: %+v", cfg.Acquire)
	}
	if cfg.Store.Backend != StoreRedis || cfg.Store.Retention != 2*time.Hour {
		t.Fatalf("store not parsed: %+v", cfg.Store)
	}
	if len(cfg.Events.Brokers) != 1 || cfg.Events.Topic != defaultEventsTopic {
		t.Fatalf("events not normalized: %+v", cfg.Events)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 9090\nmax_concurrent_tasks: 2\n")
	env := envconfig.MapLookuper(map[string]string{
		"MP3FETCH_PORT":          "7070",
		"MP3FETCH_DATA_DIR":      "/srv/music",
		"MP3FETCH_STORE_BACKEND": "file",
		"MP3FETCH_KAFKA_BROKERS": "k1:9092,k2:9092",
		"PORT":                   "1",
	})
	cfg, err := LoadWithLookuper(context.Background(), path, env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7070 || cfg.DataDir != "/srv/music" || cfg.Store.Backend != StoreFile {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.MaxConcurrentTasks != 2 {
		t.Fatalf("file value should survive without override, got %d", cfg.MaxConcurrentTasks)
	}
	if len(cfg.Events.Brokers) != 2 {
		t.Fatalf("expected two brokers, got %v", cfg.Events.Brokers)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	for _, content := range []string{
		"max_concurrent_tasks: 0\n",
		"collection_workers: -1\n",
		"store:\n  backend: postgres\n",
		"acquire:\n  collection_limit: -5\n",
		"port: [\n",
	} {
		path := writeConfig(t, content)
		if _, err := LoadWithLookuper(context.Background(), path, noEnv()); err == nil {
			t.Fatalf("expected error for %q", content)
		}
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
