package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Report    ReportConfig    `yaml:"report"`
}

type InputConfig struct {
	Log              string `yaml:"log"`
	InactivityPeriod string `yaml:"inactivity_period"` // path to the threshold file
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	MaxConnections   int           `yaml:"max_connections"`
	HistoryLimit     int           `yaml:"history_limit"`
	ProgressEvery    int           `yaml:"progress_every"`
}

type PrivacyConfig struct {
	MaskClientIDs  bool     `yaml:"mask_client_ids"`
	AllowedClients []string `yaml:"allowed_clients"`
	BlockedClients []string `yaml:"blocked_clients"`
}

type ReportConfig struct {
	Markdown bool   `yaml:"markdown"`
	Style    string `yaml:"style"`
}

func defaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Log:              "./input/log.csv",
			InactivityPeriod: "./input/inactivity_period.txt",
		},
		Output: OutputConfig{
			Path: "./output/sessionization.txt",
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Broadcast: BroadcastConfig{
			Throttle:         100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
			MaxConnections:   32,
			HistoryLimit:     10000,
			ProgressEvery:    10000,
		},
		Report: ReportConfig{
			Style: "auto",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects settings the server and broadcaster cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Broadcast.Throttle <= 0 {
		return fmt.Errorf("broadcast.throttle must be positive, got %v", c.Broadcast.Throttle)
	}
	if c.Broadcast.SnapshotInterval <= 0 {
		return fmt.Errorf("broadcast.snapshot_interval must be positive, got %v", c.Broadcast.SnapshotInterval)
	}
	if c.Broadcast.MaxConnections <= 0 {
		return fmt.Errorf("broadcast.max_connections must be positive, got %d", c.Broadcast.MaxConnections)
	}
	if c.Broadcast.HistoryLimit <= 0 {
		return fmt.Errorf("broadcast.history_limit must be positive, got %d", c.Broadcast.HistoryLimit)
	}
	if c.Broadcast.ProgressEvery < 0 {
		return fmt.Errorf("broadcast.progress_every must not be negative, got %d", c.Broadcast.ProgressEvery)
	}
	return nil
}

func (p PrivacyConfig) NewPrivacyFilter() *session.PrivacyFilter {
	return &session.PrivacyFilter{
		MaskClientIDs:  p.MaskClientIDs,
		AllowedClients: p.AllowedClients,
		BlockedClients: p.BlockedClients,
	}
}
