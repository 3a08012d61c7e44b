// Command slepau-auth serves the capability-based auth kernel and the
// multi-tenant access store: login, registration, password reset, and the
// site/user/admin administration surface.
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
	"github.com/talebox/slepau/internal/circuitbreaker"
	"github.com/talebox/slepau/internal/common/snapshot"
	"github.com/talebox/slepau/internal/httpapi"
	"github.com/talebox/slepau/internal/idempotency"
	"github.com/talebox/slepau/internal/logging"
	"github.com/talebox/slepau/internal/metrics"
	"github.com/talebox/slepau/internal/ratelimit"
	"github.com/talebox/slepau/internal/tokenkernel"
	"github.com/talebox/slepau/internal/tracing"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: "slepau-auth",
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

	store := accessstore.New()
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
	store.Load(ctx, snapOpts, logger)

	kernel, err := tokenkernel.New(store, key, cfg.ExternalURL)
	if err != nil {
		logger.Error("could not build token kernel", "error", err)
		os.Exit(1)
	}

	loginLimiter := ratelimit.New(1, 1, 5*time.Second, ratelimit.WithMaxKeys(10000))
	registerLimiter := ratelimit.New(1, 1, 10*time.Second, ratelimit.WithMaxKeys(10000))
	resetLimiter := ratelimit.New(1, 1, 10*time.Second, ratelimit.WithMaxKeys(10000))
	defer loginLimiter.Stop()
	defer registerLimiter.Stop()
	defer resetLimiter.Stop()

	reg := metrics.New()

	idemCache := idempotency.New(10*time.Minute, 10000)
	defer idemCache.Stop()

	auth := &httpapi.AuthAPI{
		Store:           store,
		Kernel:          kernel,
		MagicBean:       cfg.MirrorBean,
		Logger:          logger,
		LoginLimiter:    loginLimiter,
		RegisterLimiter: registerLimiter,
		ResetLimiter:    resetLimiter,
		Idempotency:     idemCache,
	}
	admin := &httpapi.AdminAPI{Store: store}

	r := httpapi.NewRouter(logger, reg, "slepau-auth")
	r.Use(kernel.WithClaims)
	httpapi.Healthz(r)
	httpapi.Metrics(r, reg)
	auth.Mount(r)
	r.Route("/admin/v1", admin.Mount)

	go snapshot.BackupLoop(ctx, snapOpts, store.Snapshot, logger)

	httpServer := &http.Server{
		Addr:              cfg.Socket,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("slepau-auth listening", "addr", cfg.Socket)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	cancel()
	if err := store.Save(snapOpts, logger); err != nil {
		logger.Error("final save failed", "error", err)
	}
	logger.Info("shutdown complete")
}
