package scheduler

import "time"

// MinSweepInterval is the floor for the dispatcher tick. Settings below it
// are clamped, never rejected.
const MinSweepInterval = 30 * time.Second

type Config struct {
	// Polling
	SweepInterval time.Duration
	BatchSize     int

	// Cross-replica sweep lock
	LockKey string
	LockTTL time.Duration

	// Shutdown
	ShutdownTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		SweepInterval:   60 * time.Second,
		BatchSize:       100,
		LockKey:         "scheduler:sweep:lock",
		LockTTL:         5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.SweepInterval < MinSweepInterval {
		c.SweepInterval = MinSweepInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.LockKey == "" {
		c.LockKey = "scheduler:sweep:lock"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return nil
}
