package main

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	API struct {
		BaseURL     string        `mapstructure:"API_BASE_URL"`
		AuthBaseURL string        `mapstructure:"AUTH_BASE_URL"`
		Timeout     time.Duration `mapstructure:"API_TIMEOUT"`
		RateLimit   float64       `mapstructure:"API_RATE_LIMIT"`
		RateBurst   int           `mapstructure:"API_RATE_BURST"`
	} `mapstructure:",squash"`

	Store struct {
		Backend      string `mapstructure:"STORE_BACKEND"`
		Path         string `mapstructure:"STORE_PATH"`
		PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
		MaxOpenConns int    `mapstructure:"POSTGRES_MAX_OPEN_CONNS"`
		MaxIdleConns int    `mapstructure:"POSTGRES_MAX_IDLE_CONNS"`
	} `mapstructure:",squash"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	MirrorMaxAge  time.Duration `mapstructure:"MIRROR_MAX_AGE"`

	// RabbitMQURL enables cross-process mirror invalidation when set.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
}

var defaults = map[string]any{
	"ENVIRONMENT":             "development",
	"LOG_LEVEL":               "warn",
	"API_BASE_URL":            "https://blog-hqx2.onrender.com",
	"AUTH_BASE_URL":           "http://localhost:8000",
	"API_TIMEOUT":             "15s",
	"API_RATE_LIMIT":          5.0,
	"API_RATE_BURST":          5,
	"STORE_BACKEND":           "sqlite",
	"STORE_PATH":              "blogist.db",
	"POSTGRES_DSN":            "",
	"POSTGRES_MAX_OPEN_CONNS": 10,
	"POSTGRES_MAX_IDLE_CONNS": 5,
	"SESSION_SECRET":          "",
	"MIRROR_MAX_AGE":          "10m",
	"RABBITMQ_URL":            "",
}

// loadConfig reads the .env style file at path, when it exists, and lets
// environment variables override it.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
