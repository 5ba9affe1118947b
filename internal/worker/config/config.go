package config

import (
	"fmt"
	"time"

	pkgconfig "lumia-advisor/pkg/config"

	"github.com/go-playground/validator/v10"
)

// Config holds the signal-service configuration.
type Config struct {
	App      pkgconfig.App      `mapstructure:"app"`
	Logger   pkgconfig.Logger   `mapstructure:"logger"`
	Database pkgconfig.Database `mapstructure:"database"`
	Redis    pkgconfig.Redis    `mapstructure:"redis"`
	Telegram pkgconfig.Telegram `mapstructure:"telegram"`
	Worker   Worker             `mapstructure:"worker"`
	Metrics  Metrics            `mapstructure:"metrics"`
}

// Worker holds the batch scheduling and stream consumption tunables.
type Worker struct {
	// CronSchedule fires the daily signal sweep, weekday evenings after
	// market close by default.
	CronSchedule string `mapstructure:"cron_schedule" default:"30 18 * * 1-5" validate:"required"`
	// BackfillDays is how many trailing days each sweep enqueues per
	// asset, letting late price loads heal themselves.
	BackfillDays int `mapstructure:"backfill_days" default:"1" validate:"gte=1"`

	StreamReadTimeout     time.Duration `mapstructure:"stream_read_timeout" default:"30s"`
	StreamRetryInterval   time.Duration `mapstructure:"stream_retry_interval" default:"30s"`
	StreamMaxIdleDuration time.Duration `mapstructure:"stream_max_idle_duration" default:"1m"`
	StreamMaxRetry        int           `mapstructure:"stream_max_retry" default:"3" validate:"gte=1"`
}

// Metrics holds the Prometheus endpoint configuration.
type Metrics struct {
	Port int `mapstructure:"port" default:"9091"`
}

// Load reads and validates the signal-service configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := pkgconfig.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}
	return &cfg, nil
}
