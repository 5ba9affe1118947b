package config

import (
	"fmt"

	"lumia-advisor/internal/engine"
	pkgconfig "lumia-advisor/pkg/config"

	"github.com/go-playground/validator/v10"
)

// Config holds the api-service configuration.
type Config struct {
	App      pkgconfig.App      `mapstructure:"app"`
	Logger   pkgconfig.Logger   `mapstructure:"logger"`
	Database pkgconfig.Database `mapstructure:"database"`
	Redis    pkgconfig.Redis    `mapstructure:"redis"`
	API      pkgconfig.API      `mapstructure:"api" validate:"required"`
	Advisor  Advisor            `mapstructure:"advisor"`
}

// Advisor holds the analysis and allocation tunables.
type Advisor struct {
	// AnalysisCacheTTL bounds how long a computed single-asset
	// recommendation is served from cache.
	AnalysisCacheTTL string `mapstructure:"analysis_cache_ttl" default:"5m" validate:"required"`
	// Presets overrides the built-in allocation weight vectors when set.
	Presets *engine.Presets `mapstructure:"presets"`
}

// AllocationPresets resolves the configured presets, falling back to the
// built-in vectors.
func (c *Config) AllocationPresets() engine.Presets {
	if c.Advisor.Presets != nil {
		return *c.Advisor.Presets
	}
	return engine.DefaultPresets()
}

// Load reads and validates the api-service configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := pkgconfig.Load(path, &cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid api config: %w", err)
	}
	if err := cfg.AllocationPresets().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
