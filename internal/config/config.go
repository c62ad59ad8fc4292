package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"routectl/internal/scoring"
)

const (
	DefaultListen             = "127.0.0.1:8470"
	DefaultHistoryLimit       = 1024
	DefaultTunnelRetention    = 1024
	DefaultMonitorIntervalSec = 15
	DefaultBusyThresholdPct   = 90.0
	DefaultBaseRuntimeSec     = 30.0
)

// Config holds engine, server and monitor settings.
type Config struct {
	Engine  *EngineConfig  `yaml:"engine,omitempty"`
	Server  *ServerConfig  `yaml:"server,omitempty"`
	Monitor *MonitorConfig `yaml:"monitor,omitempty"`
}

// EngineConfig configures the routing engine itself.
type EngineConfig struct {
	Weights         scoring.Weights `yaml:"weights"`
	HistoryLimit    int             `yaml:"history_limit"`
	TunnelRetention int             `yaml:"tunnel_retention"`
	SnapshotPath    string          `yaml:"snapshot_path"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// MonitorConfig configures the local host monitor that feeds metric
// updates for one node.
type MonitorConfig struct {
	NodeID           string  `yaml:"node_id"`
	IntervalSec      int     `yaml:"interval_sec"`
	BusyThresholdPct float64 `yaml:"busy_threshold_pct"`
	BaseRuntimeSec   float64 `yaml:"base_runtime_sec"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields. The weight sum
// is checked here so a bad config fails before engine construction.
func Validate(cfg Config) error {
	if cfg.Engine == nil {
		return fmt.Errorf("config must contain an engine section")
	}
	if err := cfg.Engine.Weights.Validate(); err != nil {
		return fmt.Errorf("engine.weights: %w", err)
	}
	if cfg.Monitor != nil && cfg.Monitor.NodeID == "" {
		return fmt.Errorf("monitor.node_id is required")
	}
	return nil
}

// ApplyDefaults fills in default values when empty. An all-zero weight
// block means "unset" and receives the stock profile; explicit zero weights
// on individual signals are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine == nil {
		cfg.Engine = &EngineConfig{}
	}
	if cfg.Engine.Weights.IsZero() {
		cfg.Engine.Weights = scoring.Default()
	}
	if cfg.Engine.HistoryLimit == 0 {
		cfg.Engine.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Engine.TunnelRetention == 0 {
		cfg.Engine.TunnelRetention = DefaultTunnelRetention
	}

	if cfg.Server != nil && cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}

	if cfg.Monitor != nil {
		if cfg.Monitor.IntervalSec == 0 {
			cfg.Monitor.IntervalSec = DefaultMonitorIntervalSec
		}
		if cfg.Monitor.BusyThresholdPct == 0 {
			cfg.Monitor.BusyThresholdPct = DefaultBusyThresholdPct
		}
		if cfg.Monitor.BaseRuntimeSec == 0 {
			cfg.Monitor.BaseRuntimeSec = DefaultBaseRuntimeSec
		}
	}
}
