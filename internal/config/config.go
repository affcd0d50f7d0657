package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the companion chat service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool
	LogLevel                 string

	DatabaseURL string

	GenerationMode            string
	GenerationAPIKey          string
	GenerationBaseURL         string
	GenerationModel           string
	GenerationHTTPURL         string
	GenerationTimeout         time.Duration
	GenerationTemperature     float64
	GenerationTopP            float64
	GenerationTopK            int
	GenerationMaxOutputTokens int

	ContextWindow int
	PersonaName   string
}

// LoadDotEnv copies variables from the given .env files (default ".env")
// into the process environment. Variables already set win, and a missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                  envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace:          envOrDefault("APP_METRICS_NAMESPACE", "companion"),
		LogLevel:                  strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		DatabaseURL:               stringsTrimSpace("DATABASE_URL"),
		GenerationMode:            strings.ToLower(envOrDefault("GENERATION_MODE", "auto")),
		GenerationAPIKey:          stringsTrimSpace("GENERATION_API_KEY"),
		GenerationBaseURL:         stringsTrimSpace("GENERATION_BASE_URL"),
		GenerationModel:           envOrDefault("GENERATION_MODEL", "gemini-2.0-flash"),
		GenerationHTTPURL:         stringsTrimSpace("GENERATION_HTTP_URL"),
		PersonaName:               stringsTrimSpace("PERSONA_NAME"),
		ShutdownTimeout:           15 * time.Second,
		SessionInactivityTimeout:  0,
		GenerationTimeout:         30 * time.Second,
		GenerationTemperature:     0.9,
		GenerationTopP:            0.95,
		GenerationTopK:            40,
		GenerationMaxOutputTokens: 1024,
		ContextWindow:             8,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTemperature, err = floatFromEnv("GENERATION_TEMPERATURE", cfg.GenerationTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTopP, err = floatFromEnv("GENERATION_TOP_P", cfg.GenerationTopP)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTopK, err = intFromEnv("GENERATION_TOP_K", cfg.GenerationTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationMaxOutputTokens, err = intFromEnv("GENERATION_MAX_OUTPUT_TOKENS", cfg.GenerationMaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}

	switch cfg.GenerationMode {
	case "auto", "openai", "http", "mock":
	default:
		return Config{}, fmt.Errorf("GENERATION_MODE must be one of auto|openai|http|mock, got %q", cfg.GenerationMode)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel)
	}
	if cfg.SessionInactivityTimeout < 0 {
		return Config{}, fmt.Errorf("SESSION_INACTIVITY_TIMEOUT must be >= 0")
	}
	if cfg.GenerationTimeout < 0 {
		return Config{}, fmt.Errorf("GENERATION_TIMEOUT must be >= 0")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_WINDOW must be positive")
	}
	if cfg.GenerationMaxOutputTokens <= 0 {
		return Config{}, fmt.Errorf("GENERATION_MAX_OUTPUT_TOKENS must be positive")
	}
	if cfg.GenerationTemperature < 0 || cfg.GenerationTemperature > 2 {
		return Config{}, fmt.Errorf("GENERATION_TEMPERATURE must be within [0, 2]")
	}
	if cfg.GenerationTopP <= 0 || cfg.GenerationTopP > 1 {
		return Config{}, fmt.Errorf("GENERATION_TOP_P must be within (0, 1]")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
