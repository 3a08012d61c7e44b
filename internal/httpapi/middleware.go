// Package httpapi assembles the ambient HTTP middleware chain and mounts
// the auth, admin, and content-graph route groups used by the slepau
// service binaries.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/talebox/slepau/internal/logging"
	"github.com/talebox/slepau/internal/metrics"
	"github.com/talebox/slepau/internal/tracing"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MiB
	admissionLimit  = 100
	requestTimeout  = 30 * time.Second
)

// NewRouter builds a chi.Router with the ambient middleware stack installed:
// request id, trace propagation, redacting request logger, recoverer, CORS,
// admission control, and a body-size limit. Route groups are mounted by the
// caller. serviceName labels the root trace span (a no-op label when
// tracing.Setup was never called).
func NewRouter(logger *slog.Logger, reg *metrics.Registry, serviceName string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing.Middleware(serviceName + ".request"))
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(bodySizeLimit)
	r.Use(admission(admissionLimit))
	r.Use(instrument(reg))
	return r
}

// bodySizeLimit caps request bodies to maxBodyBytes, rejecting anything
// larger before a handler ever reads it.
func bodySizeLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// admission caps the number of concurrently in-flight requests, rejecting
// anything beyond n with 503 rather than queuing unboundedly.
func admission(n int) func(http.Handler) http.Handler {
	sem := make(chan struct{}, n)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "server busy", http.StatusServiceUnavailable)
			}
		})
	}
}

// instrument records request counts and latency per route/method/status.
func instrument(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reg == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reg.RequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
			reg.RequestLatency.WithLabelValues(route, r.Method).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}

// Healthz mounts a liveness probe endpoint.
func Healthz(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Metrics mounts the Prometheus exposition endpoint.
func Metrics(r chi.Router, reg *metrics.Registry) {
	r.Handle("/metrics", reg.Handler())
}

// shutdownKey is used to attach a service's shutdown channel to request
// context, so long-lived handlers (the WebSocket stream) can observe it.
type shutdownKey struct{}

// WithShutdown attaches a shutdown channel to every request's context.
func WithShutdown(done <-chan struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shutdownKey{}, done)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func shutdownFromContext(ctx context.Context) <-chan struct{} {
	if c, ok := ctx.Value(shutdownKey{}).(<-chan struct{}); ok {
		return c
	}
	return nil
}
