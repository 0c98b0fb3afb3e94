// Package config loads bridge settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config is the process configuration.
type Config struct {
	AppID       string        `env:"Y8_APP_ID"`
	AdsID       string        `env:"Y8_ADS_ID"`
	Addr        string        `env:"Y8BRIDGE_ADDR" envDefault:":8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	TraceStdout bool          `env:"Y8BRIDGE_TRACE_STDOUT"`
	TraceSample float64       `env:"Y8BRIDGE_TRACE_SAMPLE" envDefault:"1"`
	LogLevel    string        `env:"Y8BRIDGE_LOG_LEVEL" envDefault:"info"`
	SaveRate    float64       `env:"Y8BRIDGE_SAVE_RATE" envDefault:"2"`
	SaveBurst   int           `env:"Y8BRIDGE_SAVE_BURST" envDefault:"4"`
	PollWait    time.Duration `env:"Y8BRIDGE_POLL_WAIT" envDefault:"25s"`
	MCPStdio    bool          `env:"Y8BRIDGE_MCP_STDIO"`
	HostLocale  string        `env:"Y8BRIDGE_HOST_LOCALE" envDefault:"en-US"`

	// StrictPayloads validates response bodies against per-kind schemas.
	StrictPayloads bool `env:"Y8BRIDGE_STRICT_PAYLOADS"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given dotenv files (missing files are skipped; variables
// already set win) and parses the environment into a Config.
func Load(dotenvFiles ...string) (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AdsID = strings.TrimSpace(cfg.AdsID)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects save limiter settings that would block every save.
func (c Config) validate() error {
	if c.SaveRate <= 0 {
		return fmt.Errorf("Y8BRIDGE_SAVE_RATE must be positive, got %v", c.SaveRate)
	}
	if c.SaveBurst < 1 {
		return fmt.Errorf("Y8BRIDGE_SAVE_BURST must be at least 1, got %d", c.SaveBurst)
	}
	return nil
}

// HostTag parses HostLocale, defaulting to American English.
func (c Config) HostTag() language.Tag {
	if tag, err := language.Parse(c.HostLocale); err == nil {
		return tag
	}
	return language.AmericanEnglish
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
