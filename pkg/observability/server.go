package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"

	readHeaderTimeout = 5 * time.Second
)

// ErrNoMetricsHandler is returned by NewMetricsServer when Prometheus export
// was not enabled in Init.
var ErrNoMetricsHandler = errors.New("prometheus metrics handler not configured")

// ReadyCheck reports whether the running workload is healthy.
type ReadyCheck func(ctx context.Context) error

// MetricsServer exposes /metrics, /healthz and /readyz while a workload runs.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// ServerConfig configures NewMetricsServer.
type ServerConfig struct {
	// Addr is the listen address. Port 0 picks a free port; see Addr.
	Addr string

	// Metrics serves the scrape endpoint, usually Providers.MetricsHandler.
	Metrics http.Handler

	// Tracer records one server span per request. Nil disables tracing.
	Tracer trace.Tracer

	// Logger receives serve errors. Nil discards them.
	Logger *slog.Logger

	// Checks back /readyz.
	Checks []ReadyCheck
}

// NewMetricsServer starts serving in the background.
func NewMetricsServer(ctx context.Context, cfg ServerConfig) (*MetricsServer, error) {
	if cfg.Metrics == nil {
		return nil, ErrNoMetricsHandler
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", cfg.Metrics)
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(cfg.Checks...))

	var handler http.Handler = mux
	if cfg.Tracer != nil {
		handler = HTTPMiddleware(cfg.Tracer, mux)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.WarnContext(ctx, "metrics server stopped", slog.Any("error", serveErr))
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (ms *MetricsServer) Addr() string {
	return ms.listener.Addr().String()
}

// Close gracefully shuts down the server.
func (ms *MetricsServer) Close(ctx context.Context) error {
	err := ms.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}

// HealthHandler answers liveness checks with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeStatus(rw, http.StatusOK, statusOK)
	})
}

// ReadyHandler runs checks in order and answers 503 on the first failure.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			err := check(req.Context())
			if err != nil {
				writeStatus(rw, http.StatusServiceUnavailable, statusUnavailable)

				return
			}
		}

		writeStatus(rw, http.StatusOK, statusOK)
	})
}

func writeStatus(rw http.ResponseWriter, code int, status string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	// A failed write means the client hung up.
	_ = json.NewEncoder(rw).Encode(map[string]string{"status": status})
}
