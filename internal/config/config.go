// Package config parses the demo binary's command-line flags into the
// settings internal/server, internal/logger, and internal/metrics need to
// wire a running instance.
package config

import "flag"

// Config is the fully parsed command-line configuration for cmd/horizondb.
type Config struct {
	DBPath             string
	GRPCAddr           string
	MetricsAddr        string
	BufferPoolCapacity int
	LogLevel           string
	LogPretty          bool
}

// Parse registers and parses the flag set against args (os.Args[1:] in
// normal use; a literal slice in tests).
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("horizondb", flag.ContinueOnError)

	cfg := Config{}
	fs.StringVar(&cfg.DBPath, "db", "horizon.db", "path to the database file")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", ":50051", "address the gRPC storage service listens on")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "address the Prometheus/pprof/health HTTP server listens on")
	fs.IntVar(&cfg.BufferPoolCapacity, "buffer-pool-capacity", 1024, "number of frames in the buffer pool")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", false, "pretty-print logs for local development")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
