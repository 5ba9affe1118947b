package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// App holds application configuration.
type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// Logger holds logger configuration.
type Logger struct {
	Level    string `mapstructure:"level" default:"info"`
	Encoding string `mapstructure:"encoding" default:"json"`
}

// Database holds database configuration.
type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" default:"5432"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode" default:"disable"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" default:"5"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" default:"25"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime" default:"30m"`
	LogLevel        string `mapstructure:"log_level" default:"warn"`
}

// Redis holds Redis configuration.
type Redis struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" default:"6379"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size" default:"10"`
	StreamMaxLen int64  `mapstructure:"stream_max_len" default:"10000"`
}

// API holds HTTP server configuration.
type API struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" default:"8080"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Load reads configuration from a yaml file (with environment variable
// overrides) into the given config struct, applying struct-tag defaults first.
func Load(path string, config interface{}) error {
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file, falling back to environment variables")
	}

	return viper.Unmarshal(config)
}
