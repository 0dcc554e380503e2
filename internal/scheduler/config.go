package scheduler

import (
	"time"

	"github.com/smallbiznis/schoolride/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// EnabledJobs limits which jobs run. Empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Worker.SchedulerEnabled,
		RunInterval: cfg.Worker.SchedulerInterval,
		BatchSize:   cfg.Worker.BatchSize,
		JobTimeout:  cfg.Worker.JobTimeout,
		EnabledJobs: cfg.Worker.EnabledJobs,
	}.withDefaults()
}
