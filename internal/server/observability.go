// Observability surface: the gRPC metrics/logging interceptor and the
// HTTP listener serving Prometheus metrics, pprof, and the storage
// engine's health signal.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/horizondb/horizon/internal/logger"
	"github.com/horizondb/horizon/internal/metrics"
)

// GrpcMetricsInterceptor counts, times, and logs every unary RPC.
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		m.GrpcRequestsInFlight.Inc()
		start := time.Now()

		resp, err := handler(ctx, req)

		elapsed := time.Since(start)
		m.GrpcRequestsInFlight.Dec()

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		m.RecordGrpcRequest(info.FullMethod, outcome, elapsed)
		log.LogGrpcRequest(info.FullMethod, elapsed, err)

		return resp, err
	}
}

// ObservabilityServer is the HTTP side channel next to the gRPC listener:
// /metrics, /health, /ready, and the pprof handlers.
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer builds the listener. health is consulted on
// every /health and /ready request; it should exercise the storage
// stack's real read path (Server.Healthy does) rather than report a
// constant.
func NewObservabilityServer(port int, log *logger.Logger, health func() error) *ObservabilityServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler("healthy", health))
	mux.HandleFunc("/ready", healthHandler("ready", health))

	// pprof.Index serves the full profile catalog (heap, goroutine, ...)
	// under the /debug/pprof/ prefix; only the four special handlers need
	// their own routes.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &ObservabilityServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// healthHandler answers 200 with okStatus, or 503 carrying the health
// error, as JSON.
func healthHandler(okStatus string, health func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unavailable","error":%q}`, err.Error())
			return
		}
		fmt.Fprintf(w, `{"status":%q}`, okStatus)
	}
}

// Start serves until Shutdown or a listener error.
func (o *ObservabilityServer) Start() error {
	o.log.Info("observability server listening").
		Str("addr", o.server.Addr).
		Str("endpoints", "/metrics /health /ready /debug/pprof/").
		Send()

	if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("observability server: %w", err)
	}
	return nil
}

// Shutdown stops the listener, draining in-flight requests until ctx
// expires.
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Info("observability server shutting down").Send()
	return o.server.Shutdown(ctx)
}
