package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nuance-dev/convierto-sub000/internal/api"
	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/cache"
	"github.com/nuance-dev/convierto-sub000/internal/converter"
	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/middleware"
	"github.com/nuance-dev/convierto-sub000/internal/resource"
	"github.com/nuance-dev/convierto-sub000/internal/startup"
	"github.com/nuance-dev/convierto-sub000/internal/watcher"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize the media backend
	local := backend.NewLocal()
	backend.InitVips()
	defer backend.ShutdownVips()
	startup.LogBackendInit(local.Tools())

	// Resource pool and cache manager
	pool := resource.NewPool(nil)
	cm, err := cache.New(config.CacheDir, config.CacheRetention, pool.IsFileActive)
	if err != nil {
		startup.LogFatal("Cache initialization error: %v", err)
	}

	// Sweep opportunistically whenever the pool drains, and on a timer as
	// a backstop.
	pool.OnIdle(func() { cm.Sweep() })
	go func() {
		ticker := time.NewTicker(config.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			cm.Sweep()
		}
	}()

	// Conversion coordinator
	engineCfg := engine.DefaultConfig()
	engineCfg.MaxConcurrent = config.MaxConcurrent
	engineCfg.MaxAttempts = config.MaxAttempts
	engineCfg.MediaTimeout = config.MediaTimeout
	engineCfg.DocumentTimeout = config.DocumentTimeout
	engineCfg.Options.Quality = config.Quality

	coord := engine.New(engineCfg, pool, cm, converter.NewFactory(local))
	startup.LogCoordinatorInit(config.MaxConcurrent, config.MaxAttempts)

	// Drop-directory watcher
	watchCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	var dropWatcher *watcher.Watcher
	if config.WatcherEnabled {
		dropWatcher, err = watcher.New(config.DropDir, config.DropTarget, coord)
		if err != nil {
			startup.LogFatal("Watcher initialization error: %v", err)
		}
		go func() {
			if err := dropWatcher.Start(watchCtx); err != nil {
				logging.Error("Watcher stopped: %v", err)
			}
		}()
		startup.LogWatcherStarted(config.DropDir, config.DropTarget)
	}

	// HTTP surface
	h := api.New(coord, config)
	router := mux.NewRouter()
	h.Register(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, stopWatcher, dropWatcher)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, stopWatcher context.CancelFunc, dropWatcher *watcher.Watcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if dropWatcher != nil {
		stopWatcher()
		if err := dropWatcher.Close(); err != nil {
			logging.Warn("Watcher close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Watcher stopped")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
