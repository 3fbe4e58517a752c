// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat relay.
package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const (
	// DefaultListenAddr is the TCP chat endpoint used when none is configured.
	DefaultListenAddr = "0.0.0.0:8080"
	// DefaultQueueCapacity bounds each peer's outbound queue.
	DefaultQueueCapacity = 500
	// DefaultMaxLineLength bounds one inbound line, in bytes.
	DefaultMaxLineLength = 4096
)

var validate = validator.New()

// RateLimitConfig defines the parameters for per-peer chat line rate limiting.
// A Burst of zero disables rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=0" validate:"gte=0"`
	RefillInterval time.Duration `env:"RATE_LIMIT_INTERVAL,default=1s" validate:"gte=0"`
}

// Config holds the relay configuration.
type Config struct {
	ListenAddr      string        `env:"LISTEN_ADDR,default=0.0.0.0:8080" validate:"required"`
	WebSocketAddr   string        `env:"WEBSOCKET_ADDR"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8081"`
	QueueCapacity   int           `env:"QUEUE_CAPACITY,default=500" validate:"gte=1"`
	MaxLineLength   int           `env:"MAX_LINE_LENGTH,default=4096" validate:"gte=1"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gte=0"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=1m" validate:"gte=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gte=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	RateLimit       RateLimitConfig
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		AllowedOrigins:  "http://localhost:8081",
		QueueCapacity:   DefaultQueueCapacity,
		MaxLineLength:   DefaultMaxLineLength,
		WriteTimeout:    10 * time.Second,
		StatsInterval:   time.Minute,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "INFO",
		RateLimit: RateLimitConfig{
			Burst:          0,
			RefillInterval: time.Second,
		},
	}
}

// NewConfigFromEnv creates a Config from environment variables. A .env file in
// the working directory is loaded first when present; variables already set in
// the environment win over the file.
func NewConfigFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := NewConfig()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Origins returns the allowed WebSocket origins as a trimmed list.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// Print writes the effective configuration as a table.
func (c *Config) Print(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"LISTEN_ADDR", c.ListenAddr},
		{"WEBSOCKET_ADDR", lo.Ternary(c.WebSocketAddr == "", "(disabled)", c.WebSocketAddr)},
		{"ALLOWED_ORIGINS", c.AllowedOrigins},
		{"QUEUE_CAPACITY", strconv.Itoa(c.QueueCapacity)},
		{"MAX_LINE_LENGTH", strconv.Itoa(c.MaxLineLength)},
		{"WRITE_TIMEOUT", c.WriteTimeout.String()},
		{"RATE_LIMIT_BURST", lo.Ternary(c.RateLimit.Burst == 0, "(disabled)", strconv.Itoa(c.RateLimit.Burst))},
		{"RATE_LIMIT_INTERVAL", c.RateLimit.RefillInterval.String()},
		{"STATS_INTERVAL", c.StatsInterval.String()},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout.String()},
		{"LOG_LEVEL", c.LogLevel},
	})
	table.Render()
}

func parseOrigins(origins string) []string {
	parts := lo.Map(strings.Split(origins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
