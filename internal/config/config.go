// Package config loads chatsync settings: defaults, then a YAML file, then
// environment overrides (optionally seeded from a .env file).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/starrybamboo/chatsync/internal/transition"
)

// Remote backend kinds.
const (
	RemoteMemory   = "memory"
	RemoteHTTP     = "http"
	RemoteRedis    = "redis"
	RemotePostgres = "postgres"
	RemoteSQLite   = "sqlite"
)

// Environment variables that override file settings.
const (
	EnvRemote    = "CHATSYNC_REMOTE"
	EnvRemoteURL = "CHATSYNC_REMOTE_URL"
	EnvQueueDB   = "CHATSYNC_QUEUE_DB"
	EnvOrigin    = "CHATSYNC_ORIGIN"
)

type Config struct {
	// Origin is this replica's CRDT origin. Empty means a fresh UUIDv7 per
	// process, which never collides with earlier runs.
	Origin     string           `yaml:"origin"`
	Remote     RemoteConfig     `yaml:"remote"`
	Queue      QueueConfig      `yaml:"queue"`
	Transition TransitionConfig `yaml:"transition"`
	Retry      RetryConfig      `yaml:"retry"`
	Server     ServerConfig     `yaml:"server"`
}

type RemoteConfig struct {
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	RedisDB int           `yaml:"redis_db"`
	Prefix  string        `yaml:"prefix"`
	Timeout time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	Path string `yaml:"path"`
}

type TransitionConfig struct {
	FadeOut     time.Duration `yaml:"fade_out"`
	FadeIn      time.Duration `yaml:"fade_in"`
	Frame       time.Duration `yaml:"frame"`
	TargetLevel float64       `yaml:"target_level"`
}

type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxTries        uint          `yaml:"max_tries"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

func DefaultConfig() Config {
	tc := transition.DefaultConfig()
	return Config{
		Remote: RemoteConfig{
			Kind:    RemoteHTTP,
			URL:     "http://127.0.0.1:8787",
			Prefix:  "chatsync:doc:",
			Timeout: 5 * time.Second,
		},
		Queue: QueueConfig{Path: defaultStatePath("queue.db")},
		Transition: TransitionConfig{
			FadeOut:     tc.FadeOut,
			FadeIn:      tc.FadeIn,
			Frame:       tc.Frame,
			TargetLevel: tc.TargetLevel,
		},
		Retry: RetryConfig{
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			MaxTries:        8,
		},
		Server: ServerConfig{
			Addr:   "127.0.0.1:8787",
			DBPath: defaultStatePath("snapshots.db"),
		},
	}
}

func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatsync-" + name
	}
	return filepath.Join(home, ".local", "state", "chatsync", name)
}

// Load builds the effective configuration. path may be empty (defaults and
// environment only); a named file that does not exist is an error.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode layers YAML over cfg. Unknown keys are rejected so typos surface.
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRemote); ok && v != "" {
		cfg.Remote.Kind = v
	}
	if v, ok := lookup(EnvRemoteURL); ok && v != "" {
		cfg.Remote.URL = v
	}
	if v, ok := lookup(EnvQueueDB); ok && v != "" {
		cfg.Queue.Path = v
	}
	if v, ok := lookup(EnvOrigin); ok {
		cfg.Origin = v
	}
	if v, ok := lookup("CHATSYNC_REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATSYNC_REDIS_DB: %w", err)
		}
		cfg.Remote.RedisDB = n
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Remote.Kind {
	case RemoteMemory, RemoteSQLite:
	case RemoteHTTP, RemoteRedis, RemotePostgres:
		if c.Remote.URL == "" {
			return fmt.Errorf("config: remote.url is required for %s", c.Remote.Kind)
		}
	default:
		return fmt.Errorf("config: unknown remote.kind %q", c.Remote.Kind)
	}
	if c.Queue.Path == "" {
		return errors.New("config: queue.path is required")
	}
	if c.Transition.Frame <= 0 {
		return fmt.Errorf("config: transition.frame must be positive, got %s", c.Transition.Frame)
	}
	if c.Transition.FadeIn < 0 || c.Transition.FadeOut < 0 {
		return errors.New("config: transition fades must not be negative")
	}
	if c.Transition.TargetLevel <= 0 || c.Transition.TargetLevel > 1 {
		return fmt.Errorf("config: transition.target_level must be in (0, 1], got %v", c.Transition.TargetLevel)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return errors.New("config: retry intervals must be positive and max >= initial")
	}
	return nil
}

// TransitionConfig converts the transition section for the coordinator.
func (c Config) TransitionConfig() transition.Config {
	return transition.Config{
		FadeOut:     c.Transition.FadeOut,
		FadeIn:      c.Transition.FadeIn,
		Frame:       c.Transition.Frame,
		TargetLevel: c.Transition.TargetLevel,
	}
}
