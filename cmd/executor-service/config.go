package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"execsvc/internal/common/cache"
	"execsvc/internal/executor/sandbox/engine"
	"execsvc/internal/executor/sandbox/spec"
	"execsvc/internal/executor/service"
	"execsvc/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultRateWindow      = time.Minute
	defaultRedisTimeout    = 200 * time.Millisecond
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// RateLimitConfig holds the per client rate limit.
type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Window       time.Duration `yaml:"window"`
	IPMax        int           `yaml:"ipMax"`
	FailOpen     bool          `yaml:"failOpen"`
	RedisTimeout time.Duration `yaml:"redisTimeout"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize       int           `yaml:"poolSize"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	WorkRoot       string        `yaml:"workRoot"`
	CalldataMode   string        `yaml:"calldataMode"`
	OverflowPolicy string        `yaml:"overflowPolicy"`
	Env            []string      `yaml:"env"`
	DrainGrace     time.Duration `yaml:"drainGrace"`
	SpawnAttempts  int           `yaml:"spawnAttempts"`
}

// LimitsConfig holds the request ceilings. Environment variables win.
type LimitsConfig struct {
	MaxExecutable int64 `yaml:"maxExecutable"`
	MaxCalldata   int64 `yaml:"maxCalldata"`
	MaxTimeout    int64 `yaml:"maxTimeout"`
	MaxStdout     int64 `yaml:"maxStdout"`
	MaxStderr     int64 `yaml:"maxStderr"`
}

// AppConfig holds executor-service config.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Logger    logger.Config     `yaml:"logger"`
	Redis     cache.RedisConfig `yaml:"redis"`
	RateLimit RateLimitConfig   `yaml:"rateLimit"`
	Worker    WorkerConfig      `yaml:"worker"`
	Sandbox   SandboxConfig     `yaml:"sandbox"`
	Limits    LimitsConfig      `yaml:"limits"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the optional YAML file, then the limit variables
// from lookupEnv. Any missing limit is an error.
func loadAppConfig(path string, lookupEnv func(string) (string, bool)) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := applyLimitEnv(&cfg.Limits, lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Limits.toSpec().Validate(); err != nil {
		return nil, err
	}
	if _, err := spec.ParseCalldataMode(cfg.Sandbox.CalldataMode); err != nil {
		return nil, fmt.Errorf("sandbox.calldataMode: %w", err)
	}
	if _, err := spec.ParseOverflowPolicy(cfg.Sandbox.OverflowPolicy); err != nil {
		return nil, fmt.Errorf("sandbox.overflowPolicy: %w", err)
	}
	if cfg.RateLimit.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required when rate limiting is enabled")
	}

	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		// A response can only be written after the longest allowed run.
		cfg.Server.WriteTimeout = time.Duration(cfg.Limits.MaxTimeout)*time.Millisecond + 10*time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = defaultRateWindow
	}
	if cfg.RateLimit.RedisTimeout == 0 {
		cfg.RateLimit.RedisTimeout = defaultRedisTimeout
	}
	return &cfg, nil
}

func applyLimitEnv(limits *LimitsConfig, lookupEnv func(string) (string, bool)) error {
	targets := []struct {
		name string
		dst  *int64
	}{
		{"MAX_EXECUTABLE", &limits.MaxExecutable},
		{"MAX_CALLDATA", &limits.MaxCalldata},
		{"MAX_TIMEOUT", &limits.MaxTimeout},
		{"MAX_STDOUT", &limits.MaxStdout},
		{"MAX_STDERR", &limits.MaxStderr},
	}
	for _, target := range targets {
		raw, ok := lookupEnv(target.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", target.name, err)
		}
		*target.dst = value
	}
	return nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (l LimitsConfig) toSpec() spec.Limits {
	return spec.Limits{
		MaxExecutable: l.MaxExecutable,
		MaxCalldata:   l.MaxCalldata,
		MaxTimeoutMs:  l.MaxTimeout,
		MaxStdout:     l.MaxStdout,
		MaxStderr:     l.MaxStderr,
	}
}

func (s SandboxConfig) toEngineConfig() engine.Config {
	// Both values were checked in loadAppConfig.
	mode, _ := spec.ParseCalldataMode(s.CalldataMode)
	policy, _ := spec.ParseOverflowPolicy(s.OverflowPolicy)
	return engine.Config{
		CalldataMode:   mode,
		OverflowPolicy: policy,
		Env:            s.Env,
		DrainGrace:     s.DrainGrace,
		SpawnAttempts:  s.SpawnAttempts,
	}
}

func (w WorkerConfig) toServiceConfig() service.Config {
	return service.Config{
		PoolSize:       w.PoolSize,
		AcquireTimeout: w.AcquireTimeout,
	}
}
