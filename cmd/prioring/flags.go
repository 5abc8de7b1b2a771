package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	LogLevel        string // empty means use the config file
	LogFormat       string
	MetricsPort     int // -1 means use the config file
	Duration        time.Duration
	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	ShowSchema      bool
	Validate        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	var configs string

	// Flags fall back to environment variables
	fs.StringVar(&configs, "config",
		getEnv("PRIORING_CONFIG", "configs/example.yaml"),
		"Comma separated config files, later files override earlier ones (env: PRIORING_CONFIG)")
	fs.StringVar(&configs, "c",
		getEnv("PRIORING_CONFIG", "configs/example.yaml"),
		"Shorthand for -config")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("PRIORING_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: PRIORING_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("PRIORING_LOG_FORMAT", ""),
		"Log format: json, text (env: PRIORING_LOG_FORMAT)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("PRIORING_METRICS_PORT", -1),
		"Metrics port, overrides the config file (env: PRIORING_METRICS_PORT)")

	fs.DurationVar(&cfg.Duration, "duration",
		getEnvDuration("PRIORING_DURATION", 0),
		"Stop after this long, 0 runs until interrupted (env: PRIORING_DURATION)")

	fs.DurationVar(&cfg.HealthInterval, "health-interval",
		getEnvDuration("PRIORING_HEALTH_INTERVAL", 5*time.Second),
		"Ring health check interval (env: PRIORING_HEALTH_INTERVAL)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("PRIORING_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: PRIORING_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.ShowSchema, "schema", false, "Print the config JSON Schema and exit")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs.Output(), fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, path := range strings.Split(configs, ",") {
		if path = strings.TrimSpace(path); path != "" {
			cfg.ConfigPaths = append(cfg.ConfigPaths, path)
		}
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp || cfg.ShowSchema {
		return nil
	}

	if len(cfg.ConfigPaths) == 0 {
		return fmt.Errorf("no config file given")
	}
	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.LogLevel)) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !slices.Contains([]string{"json", "text"}, strings.ToLower(cfg.LogFormat)) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < -1 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration: %s", cfg.Duration)
	}
	if cfg.HealthInterval <= 0 {
		return fmt.Errorf("invalid health interval: %s", cfg.HealthInterval)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - priority ring buffer pipeline

Usage: %s [options]

Options:
`, appName, appName)
	fs.SetOutput(w)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run the example rings for ten seconds
  %[1]s --config=configs/example.yaml --duration=10s

  # Layer an override on top of a base config
  %[1]s --config=configs/base.yaml,configs/prod.json

  # Run with debug logging
  %[1]s --log-level=debug --log-format=text

  # Validate configuration only
  %[1]s --validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
