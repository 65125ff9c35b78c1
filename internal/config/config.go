package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr  = ":8080"
	defaultDBPath      = "opwatch.db"
	defaultFrequencyMS = 1000
	defaultTimeoutMS   = 30_000

	envListenAddr  = "OPWATCH_LISTEN_ADDR"
	envDBPath      = "OPWATCH_DB_PATH"
	envLogLevel    = "OPWATCH_LOG_LEVEL"
	envFrequencyMS = "OPWATCH_DEFAULT_FREQUENCY_MS"
	envTimeoutMS   = "OPWATCH_DEFAULT_TIMEOUT_MS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Defaults applied to watches that omit their own values.
	DefaultFrequencyMS int64
	DefaultTimeoutMS   int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:         defaultListenAddr,
		DBPath:             defaultDBPath,
		LogLevel:           slog.LevelInfo,
		DefaultFrequencyMS: defaultFrequencyMS,
		DefaultTimeoutMS:   defaultTimeoutMS,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if n, ok := parsePositiveInt(os.Getenv(envFrequencyMS)); ok {
		cfg.DefaultFrequencyMS = n
	}
	if n, ok := parsePositiveInt(os.Getenv(envTimeoutMS)); ok {
		cfg.DefaultTimeoutMS = n
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parsePositiveInt parses s as a positive int64. Empty, malformed, and
// non-positive values are rejected so defaults stay in effect.
func parsePositiveInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
