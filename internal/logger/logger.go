// Package logger configures the zerolog-backed structured logging shared
// by the storage core and its gRPC front end. Each storage package tags
// its own component field on the plain zerolog.Logger it is handed; this
// package only builds the root logger and carries the front end's
// request and lifecycle event helpers.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// Logger wraps the root zerolog logger every component derives from.
type Logger struct {
	zlog zerolog.Logger
}

// NewLogger builds the root logger. An unknown level string falls back
// to info rather than failing startup.
func NewLogger(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(output).Level(level).With().
		Timestamp().
		Str("service", "horizondb")
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	return &Logger{zlog: ctx.Logger()}
}

// GetZerolog returns the underlying zerolog logger, for handoff to
// pkg/engine and the storage packages below it (each of which takes a
// plain zerolog.Logger rather than this wrapper, to avoid a pkg/ ->
// internal/ dependency).
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) event(ev *zerolog.Event, msg string) *zerolog.Event {
	return ev.Str("msg", msg)
}

// Debug starts a debug-level event carrying msg.
func (l *Logger) Debug(msg string) *zerolog.Event { return l.event(l.zlog.Debug(), msg) }

// Info starts an info-level event carrying msg.
func (l *Logger) Info(msg string) *zerolog.Event { return l.event(l.zlog.Info(), msg) }

// Warn starts a warn-level event carrying msg.
func (l *Logger) Warn(msg string) *zerolog.Event { return l.event(l.zlog.Warn(), msg) }

// Error starts an error-level event carrying msg.
func (l *Logger) Error(msg string) *zerolog.Event { return l.event(l.zlog.Error(), msg) }

// Fatal starts a fatal-level event carrying msg; sending it exits the
// process.
func (l *Logger) Fatal(msg string) *zerolog.Event { return l.event(l.zlog.Fatal(), msg) }

// LogGrpcRequest records one completed gRPC request, at error level when
// the handler failed.
func (l *Logger) LogGrpcRequest(method string, duration time.Duration, err error) {
	ev := l.zlog.Info()
	if err != nil {
		ev = l.zlog.Error().Err(err)
	}
	ev.Str("component", "grpc").
		Str("method", method).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogServerReady records that the gRPC listener is accepting connections.
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("horizondb server ready to accept connections")
}

// LogServerShutdown records the start of a graceful shutdown.
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("horizondb server shutting down")
}
