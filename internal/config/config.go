package config

import "time"

// ServerConfig holds configuration for the sweepd daemon.
type ServerConfig struct {
	Addr           string        // Listen address (default ":8080")
	LogLevel       string        // Log level: debug, info, warn, error
	LogFormat      string        // Log format: text, json
	DBPath         string        // SQLite database path (":memory:" for testing)
	PollInterval   time.Duration // Completion-poll interval
	ReportInterval time.Duration // Progress/ETA report interval
	WorkDir        string        // Root directory for local substrate environments
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		PollInterval:   5 * time.Second,
		ReportInterval: 30 * time.Second,
	}
}
