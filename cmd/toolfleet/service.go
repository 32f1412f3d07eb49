package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/toolfleet/toolfleet/internal/api"
	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/config"
	"github.com/toolfleet/toolfleet/internal/dispatch"
	"github.com/toolfleet/toolfleet/internal/lock"
	"github.com/toolfleet/toolfleet/internal/log"
	"github.com/toolfleet/toolfleet/internal/registry"
	"github.com/toolfleet/toolfleet/internal/store"
	"github.com/toolfleet/toolfleet/internal/toolkit"
	"github.com/toolfleet/toolfleet/internal/worker"
)

func loadConfigOrDiscover(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfig()
		if err != nil {
			return nil, "", err
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// buildStore opens the configured job store. The returned closer is non-nil
// for backends holding a connection.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := store.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store.NewSQLiteStore(db), db.Close, nil
	case "redis":
		rs, err := store.NewRedisStore(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis store unreachable: %w", err)
		}
		return rs, rs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Backend {
	case "redis":
		return broker.NewRedisBroker(cfg.Broker.RedisURL)
	case "inproc":
		return broker.NewInProc(), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Broker.Backend)
	}
}

// lockDir derives where PID locks live: next to the sqlite database, or
// ./data when the store is remote.
func lockDir(cfg *config.Config) string {
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path != "" {
		return filepath.Dir(cfg.Store.Path)
	}
	return "./data"
}

func runServerStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfigOrDiscover(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("toolfleet server starting", "version", version, "config", resolvedPath)

	if !cfg.API.Enabled {
		logger.Error("api.enabled is false; the request server has nothing to serve")
		return 1
	}

	pidLock, err := lock.Acquire(filepath.Join(lockDir(cfg), "server.lock"))
	if err != nil {
		logger.Error("failed to acquire PID lock (another server may be running)", "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open job store", "backend", cfg.Store.Backend, "error", err)
		return 1
	}
	defer closeIgnore(closeStore)
	logger.Info("job store opened", "backend", cfg.Store.Backend)

	b, err := buildBroker(cfg)
	if err != nil {
		logger.Error("failed to connect broker", "backend", cfg.Broker.Backend, "error", err)
		return 1
	}

	queue := dispatch.ResolveQueue(os.Getenv("TOOLFLEET_QUEUE"), cfg.Broker.Queue)
	d := dispatch.New(st, b, queue)

	apiServer := api.New(api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
	}, d, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("toolfleet server running (press Ctrl+C to stop)", "listen", cfg.API.Listen, "queue", queue)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("toolfleet server stopped")
	return 0
}

func runWorkerStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	queueFlag := fs.String("queue", "", "Queue to consume (overrides config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfigOrDiscover(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("toolfleet worker starting", "version", version, "config", resolvedPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open job store", "backend", cfg.Store.Backend, "error", err)
		return 1
	}
	defer closeIgnore(closeStore)
	logger.Info("job store opened", "backend", cfg.Store.Backend)

	b, err := buildBroker(cfg)
	if err != nil {
		logger.Error("failed to connect broker", "backend", cfg.Broker.Backend, "error", err)
		return 1
	}

	catalog := toolkit.FromConfig(cfg.Toolkits, log.WithComponent("toolkit"))
	reg := registry.New(catalog, b, log.WithComponent("registry"))
	logger.Info("toolkit catalog loaded", "toolkits", catalog.Slugs())

	queue := dispatch.ResolveQueue(*queueFlag, os.Getenv("TOOLFLEET_QUEUE"), cfg.Broker.Queue)
	w := worker.New(b, worker.NewRunner(st, reg), queue)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := w.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	logger.Info("toolfleet worker running (press Ctrl+C to stop)", "queue", queue)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("toolfleet worker stopped")
	return 0
}

func closeIgnore(close func() error) {
	if close != nil {
		_ = close()
	}
}
