// internal/workers/notification/send-notification/config.go
package sendnotification

import (
	"time"

	"ops-notifications/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
}

func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{
		Timeout:       30 * time.Second,
		MaxJobsActive: 5,
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	return cfg
}
