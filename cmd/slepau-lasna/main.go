// Command slepau-lasna runs the reverse TCP tunnel, either as the public
// server multiplexing device control/data connections, or as a device
// client dialing out to that server and forwarding a local service.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talebox/slepau/config"
	"github.com/talebox/slepau/internal/events"
	"github.com/talebox/slepau/internal/health"
	"github.com/talebox/slepau/internal/httpapi"
	"github.com/talebox/slepau/internal/logging"
	"github.com/talebox/slepau/internal/tokenkernel"
	"github.com/talebox/slepau/internal/tracing"
	"github.com/talebox/slepau/internal/tunnel"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: "slepau-lasna",
	})
	if err != nil {
		logger.Error("could not set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	switch cfg.LasnaMode {
	case "server":
		runServer(cfg, logger)
	case "":
		logger.Error("LASNA_MODE not set; expected \"server\" or the tunnel server address")
		os.Exit(1)
	default:
		runDeviceClient(cfg, logger)
	}
}

func runServer(cfg *config.Config, logger *slog.Logger) {
	registry := tunnel.NewRegistry()

	var audit *tunnel.AuditLog
	if cfg.AuditDSN != "" {
		a, err := tunnel.OpenAuditLog(cfg.AuditDSN)
		if err != nil {
			logger.Warn("audit log disabled", "error", err)
		} else {
			audit = a
			defer audit.Close()
		}
	}

	bus := events.NewBus()
	tracker := health.NewTracker(health.DefaultConfig(), health.WithEventBus(bus))

	srv := &tunnel.Server{Registry: registry, Logger: logger, Audit: audit, Health: tracker, Events: bus}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.ServeDevicePort(ctx, cfg.DevicePort); err != nil {
			logger.Error("device port error", "error", err)
		}
	}()
	go func() {
		if err := srv.ServeClientPort(ctx, cfg.ClientPort); err != nil {
			logger.Error("client port error", "error", err)
		}
	}()

	key, err := cfg.LoadKey()
	if err != nil {
		logger.Error("could not load token key", "error", err)
		os.Exit(1)
	}
	kernel, err := tokenkernel.New(nil, key, cfg.ExternalURL)
	if err != nil {
		logger.Error("could not build token kernel", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(tracing.Middleware("slepau-lasna.admin"))
	httpapi.Healthz(r)
	r.Route("/admin", func(r chi.Router) {
		r.Use(kernel.WithClaims, tokenkernel.AuthRequired, tokenkernel.OnlySupers)
		r.Mount("/devices", srv.AdminRoutes())
	})

	adminServer := &http.Server{
		Addr:              cfg.AdminSocket,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("lasna admin listening", "addr", cfg.AdminSocket)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin listen error", "error", err)
		}
	}()

	logger.Info("slepau-lasna server mode", "device_port", cfg.DevicePort, "client_port", cfg.ClientPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = adminServer.Shutdown(shutdownCtx)
	cancel()
}

func runDeviceClient(cfg *config.Config, logger *slog.Logger) {
	if cfg.DeviceID == "" {
		logger.Error("LASNA_DEVICE_ID must be set in device-client mode")
		os.Exit(1)
	}
	id, err := tunnel.ParseDeviceID(cfg.DeviceID)
	if err != nil {
		logger.Error("bad LASNA_DEVICE_ID", "error", err)
		os.Exit(1)
	}

	localAddr := cfg.LocalAddr
	if localAddr == "" {
		localAddr = tunnel.DefaultLocalAddr
	}

	client := &tunnel.DeviceClient{
		ServerAddr: cfg.LasnaMode,
		LocalAddr:  localAddr,
		DeviceID:   id,
		Logger:     logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("slepau-lasna device mode", "server", cfg.LasnaMode, "device", id.String(), "local_addr", localAddr)
	if err := client.Run(ctx); err != nil {
		logger.Error("device client stopped", "error", err)
		os.Exit(1)
	}
}
