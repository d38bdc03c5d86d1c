// Package config loads runtime configuration from the environment.
package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken      string `env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" env-default:"gdrive.json"`
	// WorkDir holds transient source/intermediate/encoded files. It is
	// shared across concurrent requests.
	WorkDir     string `env:"WORK_DIR" env-default:"."`
	BitrateKbps int    `env:"BITRATE_KBPS" env-default:"32"`
	// MaxConcurrentJobs of zero runs pipelines unbounded.
	MaxConcurrentJobs int64  `env:"MAX_CONCURRENT_JOBS" env-default:"0"`
	LogLevel          string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON           bool   `env:"LOG_JSON" env-default:"false"`
	Debug             bool   `env:"DEBUG" env-default:"false"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("failed to read environment variables: " + err.Error())
	}
	return cfg
}
