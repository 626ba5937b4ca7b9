package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the server and the MCP tool mode need.
type Config struct {
	HTTPAddr        string        `env:"FORMGATE_ADDR" envDefault:":8080"`
	FrontendURL     string        `env:"FORMGATE_FRONTEND_URL" envDefault:"http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"FORMGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"FORMGATE_REQUEST_TIMEOUT" envDefault:"30s"`

	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Driver       string        `env:"FORMGATE_DB_DRIVER" envDefault:"sqlite"`
	DSN          string        `env:"FORMGATE_DB_DSN" envDefault:"formgate.db"`
	MaxOpenConns int           `env:"FORMGATE_DB_MAX_OPEN_CONNS" envDefault:"10"`
	Timeout      time.Duration `env:"FORMGATE_DB_TIMEOUT" envDefault:"5s"`
}

type AuthConfig struct {
	JWTSecret string        `env:"FORMGATE_JWT_SECRET"`
	TokenTTL  time.Duration `env:"FORMGATE_ADMIN_TOKEN_TTL" envDefault:"24h"`
}

type LogConfig struct {
	Level  string `env:"FORMGATE_LOG_LEVEL" envDefault:"info"`
	Format string `env:"FORMGATE_LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file from the working directory and then
// parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}
	return nil
}

// MinJWTSecretLen is the shortest accepted HMAC secret, in bytes.
const MinJWTSecretLen = 32

var (
	ErrJWTSecretMissing  = errors.New("FORMGATE_JWT_SECRET is required")
	ErrJWTSecretTooShort = fmt.Errorf("FORMGATE_JWT_SECRET must be at least %d bytes", MinJWTSecretLen)
)

// CheckSecret reports whether the admin token secret is usable. Commands
// that sign or verify admin tokens call it before doing any work.
func (a AuthConfig) CheckSecret() error {
	switch {
	case a.JWTSecret == "":
		return ErrJWTSecretMissing
	case len(a.JWTSecret) < MinJWTSecretLen:
		return ErrJWTSecretTooShort
	}
	return nil
}
