// Package main implements cvupdate, which reconciles the stored controlled
// vocabulary against ontology snapshots, once or on a cron schedule.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	"github.com/c360/cvsync/config"
	"github.com/c360/cvsync/health"
	"github.com/c360/cvsync/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "cvupdate"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Schedule != "" {
		cfg.Schedule.Cron = cliCfg.Schedule
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	metricsServer := startMetricsServer(cfg, registry, monitor)

	a, err := newApp(ctx, cfg, cliCfg, logger, registry, monitor)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		a.close(shutdownCtx)
		if metricsServer != nil {
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("Stopping metrics server", "error", err)
			}
		}
	}()

	if cfg.Schedule.Cron == "" || cliCfg.Once {
		_, err := a.runOnce(ctx)
		return err
	}
	return runScheduled(ctx, a, cfg.Schedule.Cron)
}

// initializeCLI loads .env, parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	if err := loadDotEnv(getEnv("CVSYNC_ENV_FILE", ".env")); err != nil {
		return nil, nil, false, err
	}

	cliCfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}
	if cliCfg.ShowHelp {
		cliCfg.usage()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting cvupdate",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadDotEnv exports the variables of an env file. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig loads and validates configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry, monitor *health.Monitor) *metric.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	server.SetHealthMonitor(monitor, appName)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()
	slog.Info("Metrics server started", "address", server.Address(), "path", cfg.Metrics.Path)
	return server
}

// runScheduled triggers a reconciliation on every cron tick until ctx ends.
func runScheduled(ctx context.Context, a *app, expr string) error {
	c := cron.New()
	err := c.AddFunc(expr, func() {
		if _, err := a.runOnce(ctx); err != nil {
			slog.Error("Scheduled reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}

	c.Start()
	slog.Info("Reconciliation scheduled", "cron", expr)

	<-ctx.Done()
	slog.Info("Received shutdown signal")
	c.Stop()

	// Wait for a run in flight to observe the cancelled context.
	a.runMu.Lock()
	defer a.runMu.Unlock()
	slog.Info("cvupdate shutdown complete")
	return nil
}
