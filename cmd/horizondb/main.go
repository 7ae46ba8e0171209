// Command horizondb runs the storage core behind a gRPC front end: one
// process serving a single database file, with a second HTTP listener
// exposing Prometheus metrics, pprof, and health/readiness endpoints.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/horizondb/horizon/internal/config"
	"github.com/horizondb/horizon/internal/horizonpb"
	"github.com/horizondb/horizon/internal/logger"
	"github.com/horizondb/horizon/internal/metrics"
	"github.com/horizondb/horizon/internal/server"
	"github.com/horizondb/horizon/pkg/engine"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log := logger.NewLogger(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info("horizondb starting").
		Str("db", cfg.DBPath).
		Str("grpc_addr", cfg.GRPCAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Int("buffer_pool_capacity", cfg.BufferPoolCapacity).
		Send()

	m := metrics.New()

	srv, err := server.NewServer(engine.Config{
		Path:               cfg.DBPath,
		BufferPoolCapacity: cfg.BufferPoolCapacity,
		Metrics:            m,
		Log:                *log.GetZerolog(),
	})
	if err != nil {
		log.Fatal("failed to open database").Err(err).Send()
	}
	defer srv.Close()

	obs := server.NewObservabilityServer(addrPort(cfg.MetricsAddr), log, srv.Healthy)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("observability server stopped").Err(err).Send()
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen").Err(err).Send()
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(100*1024*1024),
		grpc.MaxSendMsgSize(100*1024*1024),
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	horizonpb.RegisterStorageServer(grpcServer, srv)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.LogServerShutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(ctx)
		grpcServer.GracefulStop()
	}()

	log.LogServerReady(addrPort(cfg.GRPCAddr))
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatal("failed to serve").Err(err).Send()
	}
}

// addrPort extracts the numeric port from a "host:port"-style listen
// address; NewObservabilityServer wants the bare port number.
func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
