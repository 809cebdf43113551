package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/moeckpt/internal/checkpoint"
	"github.com/yndnr/moeckpt/internal/expert"
	"github.com/yndnr/moeckpt/internal/infra/buildinfo"
	"github.com/yndnr/moeckpt/internal/infra/confloader"
	"github.com/yndnr/moeckpt/internal/infra/shutdown"
	"github.com/yndnr/moeckpt/internal/server/config"
	"github.com/yndnr/moeckpt/internal/server/httpserver"
	"github.com/yndnr/moeckpt/internal/telemetry/logger"
	"github.com/yndnr/moeckpt/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("moeckpt-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting moeckpt-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	metrics := metric.NewRegistry()

	storeCfg, err := config.ToStoreConfig(cfg, log, metrics)
	if err != nil {
		return err
	}
	store, err := checkpoint.NewStore(storeCfg, buildExperts(cfg))
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}
	metrics.MustRegister(metric.NewDiskCollector(store.SnapshotCounts))

	// Missing checkpoints are normal on first boot; corrupt ones are logged
	// and the expert keeps its initial state.
	ctx := context.Background()
	store.LoadAll(ctx)

	sched, err := checkpoint.NewScheduler(store, cfg.Checkpoint.Period, checkpoint.WithLogger(log))
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	handler := shutdown.NewHandler(shutdownTimeout, log)

	// Hooks run in reverse order of registration.
	if cfg.Checkpoint.SaveOnShutdown {
		handler.OnShutdown("final save", func(ctx context.Context) error {
			_, err := store.SaveAll(ctx)
			return err
		})
	}
	handler.OnShutdown("scheduler", func(context.Context) error {
		sched.Stop()
		return nil
	})

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			handler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := httpserver.New(addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Store:   store,
			Metrics: metrics.Handler(),
			Ready:   func() bool { return sched.State() == checkpoint.StateRunning },
			Logger:  log,
		}))
		ln, err := srv.Listen()
		if err != nil {
			handler.Trigger()
			_ = handler.Wait(ctx)
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		handler.OnShutdown("http server", srv.Shutdown)

		go func() {
			log.Info("admin server listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil {
				log.Error("admin server error", "error", err)
				handler.Trigger()
			}
		}()
	}

	log.Info("server started",
		"components", store.Components(),
		"period", cfg.Checkpoint.Period)
	if err := handler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

func buildExperts(cfg *config.ServerConfig) map[string]checkpoint.StateSource {
	sources := make(map[string]checkpoint.StateSource, len(cfg.Experts.Names))
	for i, name := range cfg.Experts.Names {
		sources[name] = expert.New(name, cfg.Experts.Dim, uint64(i)+1)
	}
	return sources
}

// watchConfig reloads log.level when the config file changes. Other settings
// need a restart.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		log.Info("log level updated", "level", cfg.Log.Level)
	})
	w.StartAsync()
	return w, nil
}
