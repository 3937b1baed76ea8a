package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "cascade.db"

	envListenAddr = "CASCADE_LISTEN_ADDR"
	envDBPath     = "CASCADE_DB_PATH"
	envLogLevel   = "CASCADE_LOG_LEVEL"
	envGatewayURL = "CASCADE_GATEWAY_URL"
	envAgentURL   = "CASCADE_AGENT_URL"
)

// Config holds application configuration loaded from environment variables.
// GatewayURL and AgentURL are optional; when empty the server falls back to
// the simulated gateway, which resolves every action locally.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	GatewayURL string
	AgentURL   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
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
	cfg.GatewayURL = os.Getenv(envGatewayURL)
	cfg.AgentURL = os.Getenv(envAgentURL)

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

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
