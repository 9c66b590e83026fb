// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type CuratorConfig struct {
	Token   string `yaml:"token"`
	Workers int    `yaml:"workers"` // polling workers
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"` // /metrics and /healthz
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	URL string `yaml:"url"` // NATS server URL
}

type StageConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // drop stale dialog stages after this
	SweepInterval time.Duration `yaml:"sweep_interval"` // capped at 5m
}

// ModerationDefaults are the base settings every newly registered bot starts
// with. Per-bot overrides live in the bots.settings column.
type ModerationDefaults struct {
	PublishDelay  time.Duration `yaml:"publish_delay"`
	RequiredVotes int           `yaml:"required_votes"`
	VoteTimeout   time.Duration `yaml:"vote_timeout"`
	TextMin       int           `yaml:"text_min"`
	TextMax       int           `yaml:"text_max"`
}

type Config struct {
	Curator    CuratorConfig      `yaml:"curator"`
	Log        LogConfig          `yaml:"log"`
	Admin      AdminConfig        `yaml:"admin"`
	Database   DatabaseConfig     `yaml:"database"`
	Redis      RedisConfig        `yaml:"redis"`
	Queue      QueueConfig        `yaml:"queue"`
	Stage      StageConfig        `yaml:"stage"`
	Moderation ModerationDefaults `yaml:"moderation"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads and validates the YAML config. requireCurator distinguishes the
// curator process (needs its own bot token) from the holder, whose tokens come
// from the bots table.
func Load(path string, dev bool, requireCurator bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Curator.Workers <= 0 {
		cfg.Curator.Workers = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Stage.TTL <= 0 {
		cfg.Stage.TTL = 2 * time.Hour
	}
	if cfg.Stage.SweepInterval <= 0 || cfg.Stage.SweepInterval > 5*time.Minute {
		cfg.Stage.SweepInterval = 5 * time.Minute
	}
	if cfg.Moderation.PublishDelay <= 0 {
		cfg.Moderation.PublishDelay = 15 * time.Minute
	}
	if cfg.Moderation.RequiredVotes <= 0 {
		cfg.Moderation.RequiredVotes = 2
	}
	if cfg.Moderation.VoteTimeout <= 0 {
		cfg.Moderation.VoteTimeout = 24 * time.Hour
	}
	if cfg.Moderation.TextMin <= 0 {
		cfg.Moderation.TextMin = 50
	}
	if cfg.Moderation.TextMax <= 0 {
		cfg.Moderation.TextMax = 1000
	}

	// Minimal validation
	if requireCurator && cfg.Curator.Token == "" {
		return nil, errors.New("curator.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Queue.URL == "" {
		return nil, errors.New("queue.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
