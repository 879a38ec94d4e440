package engine

import (
	"time"

	"execsvc/internal/executor/sandbox/spec"
)

const (
	defaultDrainGrace    = 200 * time.Millisecond
	defaultSpawnAttempts = 5
	defaultSpawnBackoff  = 5 * time.Millisecond
)

// Config controls sandbox engine behavior.
type Config struct {
	CalldataMode   spec.CalldataMode
	OverflowPolicy spec.OverflowPolicy
	// Env is the child environment. Nil inherits the service environment.
	Env []string
	// DrainGrace bounds how long output is still read after the process
	// has been decided, before the pipes are closed.
	DrainGrace    time.Duration
	SpawnAttempts int
	SpawnBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.CalldataMode == "" {
		c.CalldataMode = spec.CalldataStdin
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = spec.OverflowFail
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = defaultDrainGrace
	}
	if c.SpawnAttempts <= 0 {
		c.SpawnAttempts = defaultSpawnAttempts
	}
	if c.SpawnBackoff <= 0 {
		c.SpawnBackoff = defaultSpawnBackoff
	}
	return c
}
