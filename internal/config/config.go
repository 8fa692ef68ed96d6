// Package config loads configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string // empty disables the separate metrics listener

	// Logging
	LogLevel  string
	LogFormat string

	// Shared directory. Empty means "create a fresh temporary directory
	// and remove it entirely at shutdown".
	SharedDir string

	// Uploads
	MaxUploadSize int64

	// Chat
	ChatHistory int

	// Discovery
	ScanTimeoutMs int
	ScanPorts     []int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8000"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		SharedDir:     envOr("SHARED_DIR", ""),
		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 500<<20),
		ChatHistory:   envInt("CHAT_HISTORY", 100),
		ScanTimeoutMs: envInt("SCAN_TIMEOUT_MS", 100),
		ScanPorts:     envPorts("SCAN_PORTS", []int{80, 8000, 8080, 3000, 5000}),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envPorts(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var ports []int
	for _, part := range strings.Split(v, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || p < 1 || p > 65535 {
			return fallback
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return fallback
	}
	return ports
}
