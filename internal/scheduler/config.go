package scheduler

import (
	"time"

	"github.com/smallbiznis/macrolog/internal/config"
)

// Config controls how often maintenance runs and how long audit rows live.
type Config struct {
	RunInterval    time.Duration
	JobTimeout     time.Duration
	AuditRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    5 * time.Minute,
		JobTimeout:     30 * time.Second,
		AuditRetention: 30 * 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Scheduler.RunInterval,
		AuditRetention: cfg.Scheduler.AuditRetention,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.AuditRetention <= 0 {
		c.AuditRetention = defaults.AuditRetention
	}
	return c
}
