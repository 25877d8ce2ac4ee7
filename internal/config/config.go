// Package config loads runtime settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	InferenceURL      string
	InferenceAPIKey   string
	InferenceJWT      string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	SampleInterval float64 // simulated seconds between decision requests
	RequestTimeout time.Duration

	MemoryDecayRate  float64
	MemoryMin        float64
	MemoryMax        float64
	MemoryStep       float64
	MemoryCapacity   int
	MemoryEncounters int

	BackoffFailures int
	BackoffCooldown float64 // simulated seconds

	RedisURL    string
	DebugAddr   string
	DebugSecret string

	LogLevel string
	LogFile  string
	Debug    bool
}

// Load reads configuration from environment variables with sensible defaults.
// Values that fail to parse are reported rather than silently replaced.
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		InferenceURL:      envOrDefault("INFERENCE_URL", "http://localhost:8000/decide"),
		InferenceAPIKey:   os.Getenv("INFERENCE_API_KEY"),
		InferenceJWT:      os.Getenv("INFERENCE_JWT_SECRET"),
		OAuthTokenURL:     os.Getenv("INFERENCE_OAUTH_TOKEN_URL"),
		OAuthClientID:     os.Getenv("INFERENCE_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("INFERENCE_OAUTH_CLIENT_SECRET"),

		SampleInterval: p.float("SAMPLE_INTERVAL", 5),
		RequestTimeout: p.duration("REQUEST_TIMEOUT", 10*time.Second),

		MemoryDecayRate:  p.float("MEMORY_DECAY_RATE", 0.001),
		MemoryMin:        p.float("MEMORY_MIN", 0),
		MemoryMax:        p.float("MEMORY_MAX", 1),
		MemoryStep:       p.float("MEMORY_STEP", 0.1),
		MemoryCapacity:   p.int("MEMORY_CAPACITY", 256),
		MemoryEncounters: p.int("MEMORY_ENCOUNTERS", 10),

		BackoffFailures: p.int("BACKOFF_FAILURES", 3),
		BackoffCooldown: p.float("BACKOFF_COOLDOWN", 30),

		RedisURL:    os.Getenv("REDIS_URL"),
		DebugAddr:   os.Getenv("DEBUG_ADDR"),
		DebugSecret: envOrDefault("DEBUG_SECRET", "dev-secret-change-me"),

		LogLevel: envOrDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
		Debug:    p.bool("DEBUG", false),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if _, err := url.ParseRequestURI(c.InferenceURL); err != nil {
		errs = append(errs, fmt.Errorf("INFERENCE_URL: %w", err))
	}
	if c.SampleInterval <= 0 {
		errs = append(errs, errors.New("SAMPLE_INTERVAL must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.MemoryMax < c.MemoryMin {
		errs = append(errs, fmt.Errorf("MEMORY_MAX (%v) is below MEMORY_MIN (%v)", c.MemoryMax, c.MemoryMin))
	}
	if c.MemoryDecayRate < 0 || c.MemoryStep < 0 {
		errs = append(errs, errors.New("MEMORY_DECAY_RATE and MEMORY_STEP must not be negative"))
	}
	if c.MemoryCapacity <= 0 {
		errs = append(errs, errors.New("MEMORY_CAPACITY must be positive"))
	}
	if c.OAuthTokenURL != "" && c.OAuthClientID == "" {
		errs = append(errs, errors.New("INFERENCE_OAUTH_CLIENT_ID is required with INFERENCE_OAUTH_TOKEN_URL"))
	}
	return errors.Join(errs...)
}

// CredentialMode names the bearer source the inference client will use.
func (c *Config) CredentialMode() string {
	switch {
	case c.OAuthTokenURL != "":
		return "oauth"
	case c.InferenceJWT != "":
		return "jwt"
	case c.InferenceAPIKey != "":
		return "static"
	default:
		return "none"
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type parser struct {
	errs []error
}

func (p *parser) float(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func (p *parser) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

// duration accepts Go duration strings or a bare number of seconds.
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
