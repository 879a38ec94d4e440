package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8080"
	DefaultTimeout     = 30 * time.Second
	DefaultStatePath   = "configs/cli_state.json"
	DefaultHistoryPath = "/tmp/execsvc_cli_history"
)

// Config holds CLI configuration.
type Config struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	StatePath   string        `yaml:"statePath"`
	HistoryPath string        `yaml:"historyPath"`
	PrettyJSON  *bool         `yaml:"prettyJSON"`
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = DefaultHistoryPath
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
}
