// Command slepau-chunk serves the user-owned permissioned content graph:
// chunk CRUD over REST and live fan-out over WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talebox/slepau/config"
	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/chunkgraph"
	"github.com/talebox/slepau/internal/circuitbreaker"
	"github.com/talebox/slepau/internal/common/snapshot"
	"github.com/talebox/slepau/internal/fanout"
	"github.com/talebox/slepau/internal/httpapi"
	"github.com/talebox/slepau/internal/logging"
	"github.com/talebox/slepau/internal/metrics"
	"github.com/talebox/slepau/internal/tokenkernel"
	"github.com/talebox/slepau/internal/tracing"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: "slepau-chunk",
	})
	if err != nil {
		logger.Error("could not set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	key, err := cfg.LoadKey()
	if err != nil {
		logger.Error("could not load token key", "error", err)
		os.Exit(1)
	}

	// This service never issues tokens, only validates them, so the store
	// backing the kernel's Login path is never exercised here.
	kernel, err := tokenkernel.New(accessstore.New(), key, cfg.ExternalURL)
	if err != nil {
		logger.Error("could not build token kernel", "error", err)
		os.Exit(1)
	}

	graph := chunkgraph.NewDB()
	snapOpts := snapshot.Options{
		Path:         cfg.DBPath,
		BackupDir:    cfg.DBBackupFolder,
		MirrorURL:    cfg.DBInit,
		MagicBean:    cfg.MirrorBean,
		Pretty:       !cfg.Release,
		BackupPeriod: 2 * time.Hour,
		Breaker:      circuitbreaker.New(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	graph.Load(ctx, snapOpts, logger)

	bus := fanout.NewBus()
	fanoutHandler := &fanout.Handler{Bus: bus, Graph: graph, Access: accessstore.New(), Logger: logger}

	reg := metrics.New()
	chunkAPI := &httpapi.ChunkAPI{
		Graph:     graph,
		Bus:       bus,
		Fanout:    fanoutHandler,
		MagicBean: cfg.MirrorBean,
		Logger:    logger,
	}

	shutdown := make(chan struct{})
	r := httpapi.NewRouter(logger, reg, "slepau-chunk")
	r.Use(kernel.WithClaims)
	r.Use(httpapi.WithShutdown(shutdown))
	httpapi.Healthz(r)
	httpapi.Metrics(r, reg)
	chunkAPI.Mount(r)

	go snapshot.BackupLoop(ctx, snapOpts, graph.Snapshot, logger)

	httpServer := &http.Server{
		Addr:              cfg.Socket,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("slepau-chunk listening", "addr", cfg.Socket)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	close(shutdown)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	cancel()
	if err := graph.Save(snapOpts, logger); err != nil {
		logger.Error("final save failed", "error", err)
	}
	logger.Info("shutdown complete")
}
