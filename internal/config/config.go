package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config is the server configuration. Every field can be set from the
// environment or a .env file.
type Config struct {
	Addr            string        `env:"PICKBAN_ADDR"             envDefault:":8080"`
	LogLevel        string        `env:"PICKBAN_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"PICKBAN_LOG_FORMAT"       envDefault:"json"`
	IdleTimeout     time.Duration `env:"PICKBAN_IDLE_TIMEOUT"     envDefault:"2h"`
	AllowedOrigins  []string      `env:"PICKBAN_ALLOWED_ORIGINS"  envSeparator:","`
	PingInterval    time.Duration `env:"PICKBAN_WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"PICKBAN_WS_WRITE_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"PICKBAN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ArchiveMode     string        `env:"PICKBAN_ARCHIVE_MODE"     envDefault:"memory"`
	DatabaseURL     string        `env:"PICKBAN_DATABASE_URL"`
	ArchiveBuffer   int           `env:"PICKBAN_ARCHIVE_BUFFER"   envDefault:"64"`
}

// Load reads the given .env files (".env" when none are named), then parses
// the environment. Missing files are ignored; variables already set win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("PICKBAN_ADDR must not be empty"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("PICKBAN_LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		err = multierr.Append(err, fmt.Errorf("PICKBAN_LOG_FORMAT %q is not json or console", c.LogFormat))
	}
	if c.IdleTimeout < 0 {
		err = multierr.Append(err, errors.New("PICKBAN_IDLE_TIMEOUT must not be negative"))
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("websocket and shutdown timeouts must be positive"))
	}
	switch c.ArchiveMode {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			err = multierr.Append(err, errors.New("PICKBAN_DATABASE_URL is required when PICKBAN_ARCHIVE_MODE=postgres"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("PICKBAN_ARCHIVE_MODE %q is not memory or postgres", c.ArchiveMode))
	}
	if c.ArchiveBuffer <= 0 {
		err = multierr.Append(err, errors.New("PICKBAN_ARCHIVE_BUFFER must be positive"))
	}
	return err
}
