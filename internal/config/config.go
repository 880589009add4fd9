// Package config loads the client runtime configuration from an optional
// config.yaml overlaid by LANTERN_-prefixed environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server ServerConfig `koanf:"server"`
	Stream StreamConfig `koanf:"stream"`
	Cache  CacheConfig  `koanf:"cache"`
}

type ServerConfig struct {
	// BaseURL is the game server root, e.g. https://api.nightwell.example
	BaseURL string `koanf:"base_url"`
	// APIKey authenticates the client build. Supports ${VAR} substitution.
	APIKey string `koanf:"api_key"`
	// Timeout is a duration string for non-streaming requests, like "15s".
	Timeout string `koanf:"timeout"`
}

type StreamConfig struct {
	// PacingInterval is the transcript reveal cadence, like "50ms".
	PacingInterval string `koanf:"pacing_interval"`
	// SettleGrace bounds the post-settlement drain wait, like "200ms".
	SettleGrace string `koanf:"settle_grace"`
	// LoadingInterval is the loading-label rotation cadence, like "450ms".
	LoadingInterval string `koanf:"loading_interval"`
}

type CacheConfig struct {
	// Path is the SQLite cache database location.
	Path string `koanf:"path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (file absence is not an error) and
// the environment, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config.
	if err := k.Load(env.Provider("LANTERN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LANTERN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.base_url") {
		k.Set("server.base_url", "http://localhost:8080")
	}
	if !k.Exists("server.timeout") {
		k.Set("server.timeout", "15s")
	}
	if !k.Exists("stream.pacing_interval") {
		k.Set("stream.pacing_interval", "50ms")
	}
	if !k.Exists("stream.settle_grace") {
		k.Set("stream.settle_grace", "200ms")
	}
	if !k.Exists("stream.loading_interval") {
		k.Set("stream.loading_interval", "450ms")
	}
	if !k.Exists("cache.path") {
		k.Set("cache.path", "./data/lantern.db")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Server.APIKey = substituteEnvVars(cfg.Server.APIKey)

	return &cfg, nil
}

// RequestTimeout parses the configured timeout, falling back to 15s.
func (c ServerConfig) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, 15*time.Second)
}

// Pacing parses the reveal cadence, falling back to 50ms.
func (c StreamConfig) Pacing() time.Duration {
	return parseDuration(c.PacingInterval, 50*time.Millisecond)
}

// Grace parses the settlement drain bound, falling back to 200ms.
func (c StreamConfig) Grace() time.Duration {
	return parseDuration(c.SettleGrace, 200*time.Millisecond)
}

// Loading parses the label rotation cadence, falling back to 450ms.
func (c StreamConfig) Loading() time.Duration {
	return parseDuration(c.LoadingInterval, 450*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
