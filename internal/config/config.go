package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`

	PlayerTimeout time.Duration `mapstructure:"player_timeout"`
	DefaultRounds int           `mapstructure:"default_rounds"`
	DefaultTimer  int           `mapstructure:"default_timer"`

	// RateLimit caps /api requests per device per second; 0 disables
	// the limiter.
	RateLimit int `mapstructure:"rate_limit"`

	// StatsDSN points at the sqlite stats database; empty disables
	// stats recording entirely.
	StatsDSN string `mapstructure:"stats_dsn"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8787)
	v.SetDefault("static_path", "./web")
	v.SetDefault("player_timeout", "30s")
	v.SetDefault("default_rounds", 10)
	v.SetDefault("default_timer", 20)
	v.SetDefault("rate_limit", 20)
	v.SetDefault("stats_dsn", "")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
