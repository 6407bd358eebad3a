package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/c360/cvsync/report"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ReportFormat    string
	ReportPath      string
	Schedule        string
	Once            bool
	Ontologies      string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	usage func()
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("CVSYNC_CONFIG", "configs/cvsync.json"),
		"Path to configuration file (env: CVSYNC_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("CVSYNC_CONFIG", "configs/cvsync.json"),
		"Path to configuration file (env: CVSYNC_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("CVSYNC_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: CVSYNC_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("CVSYNC_LOG_FORMAT", "json"),
		"Log format: json, text (env: CVSYNC_LOG_FORMAT)")

	fs.StringVar(&cfg.ReportFormat, "report-format",
		getEnv("CVSYNC_REPORT_FORMAT", "yaml"),
		"Run report format: yaml, json (env: CVSYNC_REPORT_FORMAT)")
	fs.StringVar(&cfg.ReportPath, "report",
		getEnv("CVSYNC_REPORT", "-"),
		"Run report destination, - for stdout (env: CVSYNC_REPORT)")

	fs.StringVar(&cfg.Schedule, "schedule",
		getEnv("CVSYNC_SCHEDULE", ""),
		"Cron expression for periodic runs, overrides schedule.cron (env: CVSYNC_SCHEDULE)")
	fs.BoolVar(&cfg.Once, "once",
		getEnvBool("CVSYNC_ONCE", false),
		"Run one reconciliation and exit even when a schedule is configured (env: CVSYNC_ONCE)")
	fs.StringVar(&cfg.Ontologies, "ontologies",
		getEnv("CVSYNC_ONTOLOGIES", ""),
		"Comma separated ontology ids to reconcile, default all (env: CVSYNC_ONTOLOGIES)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("CVSYNC_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: CVSYNC_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}
	cfg.usage = fs.Usage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if _, err := report.ParseFormat(cfg.ReportFormat); err != nil {
		return fmt.Errorf("invalid report format: %s", cfg.ReportFormat)
	}
	if cfg.Schedule != "" {
		if _, err := cron.Parse(cfg.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	return nil
}

// ontologyIDs splits the --ontologies flag.
func (c *CLIConfig) ontologyIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.Ontologies, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - controlled vocabulary reconciliation

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Reconcile every configured ontology once
  %s --config=/etc/cvsync/cvsync.json

  # Reconcile PSI-MI then PSI-MOD, JSON report to a file
  %s --ontologies=MI,MOD --report-format=json --report=/tmp/run.json

  # Reconcile every night at 02:30
  %s --schedule="0 30 2 * * *"

  # Validate configuration only
  %s --validate

Environment variables are also read from a .env file (CVSYNC_ENV_FILE).

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
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
