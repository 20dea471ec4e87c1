package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the server settings read from the environment
type Config struct {
	HTTPAddr string `env:"CHOPSTICKS_HTTP_ADDR" envDefault:"localhost:8080"`

	// Storage
	StoreDriver string `env:"CHOPSTICKS_STORE_DRIVER" envDefault:"memory"`
	StorePath   string `env:"CHOPSTICKS_STORE_PATH"`
	Container   string `env:"CHOPSTICKS_CONTAINER" envDefault:"chopsticks_game_service"`

	// Identity
	JWTSecret      string `env:"CHOPSTICKS_JWT_SECRET"`
	RejectSelfJoin bool   `env:"CHOPSTICKS_REJECT_SELF_JOIN" envDefault:"false"`

	// Retention
	Retention     time.Duration `env:"CHOPSTICKS_RETENTION" envDefault:"24h"`
	SweepInterval time.Duration `env:"CHOPSTICKS_SWEEP_INTERVAL" envDefault:"1h"`

	LogLevel string `env:"CHOPSTICKS_LOG_LEVEL" envDefault:"info"`

	// Tunnel
	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// Load reads an optional .env file and parses the environment into a Config.
// A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "file", "sqlite", "bolt":
		if c.StorePath == "" {
			return fmt.Errorf("%w: store driver %q requires CHOPSTICKS_STORE_PATH", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	if c.Container == "" {
		return fmt.Errorf("%w: container name is empty", ErrInvalidConfig)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("%w: retention must be positive", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}

// Durable reports whether games survive a restart
func (c *Config) Durable() bool {
	return c.StoreDriver != "memory"
}
