// Package config loads the YAML configuration of the opsync binaries.
// Missing keys keep their defaults; command-line flags override the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig конфигурация сервера синхронизации
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// DSN - путь к файлу SQLite или postgres:// URL
	DSN string `yaml:"dsn"`
	// JWTSecret - если пуст, авторизация устройств отключена
	JWTSecret      string        `yaml:"jwt_secret"`
	LogLevel       string        `yaml:"log_level"`
	ConflictWindow time.Duration `yaml:"conflict_window"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	// RateLimit - запросов в минуту на устройство; 0 отключает ограничение
	RateLimit int `yaml:"rate_limit"`
}

// ClientConfig конфигурация клиента (устройства)
type ClientConfig struct {
	Server   string `yaml:"server"`
	DB       string `yaml:"db"`
	Token    string `yaml:"token"`
	DeviceID string `yaml:"device_id"`
	Strategy string `yaml:"strategy"`
	LogLevel string `yaml:"log_level"`

	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`

	SyncInterval  time.Duration `yaml:"sync_interval"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	RetryBase     time.Duration `yaml:"retry_base"`
	RetryMax      time.Duration `yaml:"retry_max"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// DefaultServer returns the server defaults
func DefaultServer() ServerConfig {
	return ServerConfig{
		Listen:         ":8080",
		DSN:            "opsync-server.db",
		LogLevel:       "info",
		ConflictWindow: 60 * time.Second,
		TokenTTL:       30 * 24 * time.Hour,
	}
}

// DefaultClient returns the client defaults
func DefaultClient() ClientConfig {
	return ClientConfig{
		Server:        "http://localhost:8080",
		DB:            "opsync-client.db",
		Strategy:      "last_write_wins",
		LogLevel:      "info",
		BatchSize:     50,
		MaxRetries:    5,
		SyncInterval:  30 * time.Second,
		BatchTimeout:  15 * time.Second,
		RetryBase:     time.Second,
		RetryMax:      5 * time.Minute,
		ProbeInterval: 10 * time.Second,
	}
}

// LoadServer reads the server config. An empty path yields the defaults.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServer()
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads the client config. An empty path yields the defaults.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClient()
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load накладывает значения из файла поверх уже заполненных умолчаний
func load(path string, out any) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks the server settings
func (c *ServerConfig) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	case c.DSN == "":
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	case c.ConflictWindow <= 0:
		return fmt.Errorf("%w: conflict_window must be positive", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Validate checks the client settings
func (c *ClientConfig) Validate() error {
	switch {
	case c.Server == "":
		return fmt.Errorf("%w: server is required", ErrInvalidConfig)
	case c.DB == "":
		return fmt.Errorf("%w: db is required", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalidConfig)
	case c.SyncInterval <= 0:
		return fmt.Errorf("%w: sync_interval must be positive", ErrInvalidConfig)
	case c.BatchTimeout <= 0:
		return fmt.Errorf("%w: batch_timeout must be positive", ErrInvalidConfig)
	case c.RetryBase < 0 || c.RetryMax < 0 || c.ProbeInterval < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug, info, warn or error to a slog level.
// An empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return level, nil
}
