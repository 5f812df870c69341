// Package main provides the entry point for salesdesk-proxy, the
// development proxy that forwards /api/* to the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/salesdesk-go/internal/cli/config"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/salesdesk-go/internal/infra/confloader"
	"github.com/yndnr/salesdesk-go/internal/infra/shutdown"
	"github.com/yndnr/salesdesk-go/internal/proxy"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
	"github.com/yndnr/salesdesk-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", config.DefaultConfigPath(), "Path to configuration file")
		addr        = flag.String("addr", "", "Listen address (overrides proxy.addr)")
		upstream    = flag.String("upstream", "", "Backend URL (overrides proxy.upstream)")
		noWatch     = flag.Bool("no-watch", false, "Do not reload on config file changes")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("salesdesk-proxy %s\n", buildinfo.String())
		return nil
	}

	overrides := map[string]any{}
	if *addr != "" {
		overrides["proxy.addr"] = *addr
	}
	if *upstream != "" {
		overrides["proxy.upstream"] = *upstream
	}

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Output = os.Stdout
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting salesdesk-proxy",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	srv, err := proxy.New(cfg.Proxy,
		proxy.WithLogger(log),
		proxy.WithMetrics(metric.NewRegistry()),
	)
	if err != nil {
		return err
	}

	handler := shutdown.NewHandler(10*time.Second, shutdown.WithLogger(log))

	if !*noWatch {
		watcher, err := watchConfig(*configFile, overrides, srv, log)
		if err != nil {
			log.Warn("config reload disabled", "error", err)
		} else {
			handler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if err := srv.Start(); err != nil {
		return err
	}
	handler.OnShutdown("http server", srv.Shutdown)

	log.Info("proxy started, press Ctrl+C to stop")
	if err := handler.Wait(context.Background()); err != nil {
		return err
	}
	log.Info("proxy stopped")
	return nil
}

// loadConfig loads and validates the shared configuration.
func loadConfig(path string, overrides map[string]any) (*config.CLIConfig, error) {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchConfig reloads CORS origins and log level when the file changes.
// An invalid edit is logged and the running config is kept.
func watchConfig(path string, overrides map[string]any, srv *proxy.Server, log logger.Logger) (*confloader.Watcher, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, err
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(path, overrides)
		if err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		srv.Reload(cfg)
	})
	w.StartAsync()
	return w, nil
}
