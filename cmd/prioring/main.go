// Package main runs prioring rings from a config file: one producer per lane
// feeding each ring, a drainer popping in priority order and a worker pool
// consuming the drained items. Metrics and ring health are served over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/c360/prioring/config"
	"github.com/c360/prioring/health"
	"github.com/c360/prioring/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "prioring"
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

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	switch {
	case cliCfg.ShowVersion:
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	case cliCfg.ShowHelp:
		printDetailedHelp(os.Stdout, fs)
		return nil
	case cliCfg.ShowSchema:
		_, err := os.Stdout.Write(config.Schema())
		return err
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, runID)
	slog.SetDefault(logger)

	slog.Info("Starting prioring",
		"version", Version,
		"build_time", BuildTime,
		"config", strings.Join(cliCfg.ConfigPaths, ","),
		"rings", cfg.RingNames())

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cliCfg.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cliCfg.Duration)
		defer stop()
	}

	return runPipelines(ctx, cfg, cliCfg, logger)
}

// loadConfig merges the config layers and applies CLI overrides
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range cliCfg.ConfigPaths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(cliCfg.LogLevel)
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = strings.ToLower(cliCfg.LogFormat)
	}
	if cliCfg.MetricsPort >= 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runPipelines registers every ring, runs until ctx is done and shuts down
// in order: producers and drainers, final flush, pools, rings.
func runPipelines(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	pipelines := make([]*pipeline, 0, len(cfg.Rings))
	defer func() {
		for _, p := range pipelines {
			if err := p.close(); err != nil {
				slog.Warn("Failed to unregister ring", "ring", p.name, "error", err)
			}
		}
	}()

	for _, name := range cfg.RingNames() {
		p, err := newPipeline(name, cfg.Rings[name], registry, logger)
		if err != nil {
			return err
		}
		pipelines = append(pipelines, p)
	}

	monitor := health.NewMonitor()
	checker := health.NewRingChecker(monitor, registry.CoreMetrics())
	rings := make(map[string]health.Ring, len(pipelines))
	for _, p := range pipelines {
		rings[p.name] = p.ring
	}
	checker.CheckAll(appName, rings)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		server.Handle("/rings", health.Handler(appName, monitor))
		if err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				slog.Warn("Failed to stop metrics server", "error", err)
			}
		}()
		slog.Info("Metrics server listening", "address", server.Address(), "path", cfg.Metrics.Path)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	errCh := make(chan error, len(pipelines))
	for _, p := range pipelines {
		if err := p.start(runCtx, &wg, errCh); err != nil {
			cancelRun()
			wg.Wait()
			for _, started := range pipelines {
				_ = started.pool.Stop(time.Second)
			}
			return err
		}
	}
	slog.Info("Pipelines started", "count", len(pipelines))

	runErr := watch(runCtx, checker, rings, cliCfg.HealthInterval, errCh)
	cancelRun()
	wg.Wait()
	slog.Info("Shutting down", "timeout", cliCfg.ShutdownTimeout)

	deadline := time.Now().Add(cliCfg.ShutdownTimeout)
	for _, p := range pipelines {
		if err := p.flush(time.Until(deadline)); err != nil {
			slog.Warn("Pipeline did not drain cleanly", "ring", p.name, "error", err)
		}
	}

	final := checker.CheckAll(appName, rings)
	for _, p := range pipelines {
		logSummary(p.summary())
	}
	slog.Info("prioring shutdown complete", "health", final.Status)

	return runErr
}

// watch checks ring health every interval until ctx is done or a pipeline
// fails.
func watch(ctx context.Context, checker *health.RingChecker, rings map[string]health.Ring, interval time.Duration, errCh <-chan error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]string, len(rings))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			for name, ring := range rings {
				status := checker.Check(name, ring)
				if last[name] != status.Status {
					slog.Info("Ring health changed", "ring", name, "status", status.Status, "message", status.Message)
					last[name] = status.Status
				}
			}
		}
	}
}

func logSummary(s ringSummary) {
	data, err := json.Marshal(s)
	if err != nil {
		slog.Warn("Failed to encode ring summary", "ring", s.Ring, "error", err)
		return
	}
	slog.Info("Ring summary",
		"ring", s.Ring,
		"pushes", s.Stats.Pushes,
		"pops", s.Stats.Pops,
		"full_rejections", s.Stats.FullRejections,
		"full_rate", s.Stats.FullRate,
		"detail", string(data))
}
