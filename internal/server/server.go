// Package server implements the gRPC storage service: a thin front end
// over pkg/engine, exposing Get/Put/Delete/ScanRange/Begin/Commit/Rollback
// plus Stats/Health.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/horizondb/horizon/internal/horizonpb"
	"github.com/horizondb/horizon/pkg/engine"
	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/txn"
)

// Server implements horizonpb.StorageServer over a single engine.Engine.
// The engine serialises storage work behind its own mutex; mu here only
// guards the server's map of open transaction handles, which concurrent
// RPC handlers touch directly.
type Server struct {
	eng       *engine.Engine
	startTime time.Time

	mu       sync.Mutex
	txnsByID map[uint64]*txn.Transaction
}

// NewServer opens the engine described by cfg and wires a Server over it.
func NewServer(cfg engine.Config) (*Server, error) {
	eng, err := engine.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Server{
		eng:       eng,
		startTime: time.Now(),
		txnsByID:  make(map[uint64]*txn.Transaction),
	}, nil
}

// Close flushes and closes the underlying engine.
func (s *Server) Close() error {
	return s.eng.Close()
}

func (s *Server) Get(ctx context.Context, req *horizonpb.GetRequest) (*horizonpb.GetResponse, error) {
	value, found, err := s.eng.Get(req.Key)
	if err != nil {
		return nil, translateError(err)
	}
	return &horizonpb.GetResponse{Value: value, Found: found}, nil
}

func (s *Server) Put(ctx context.Context, req *horizonpb.PutRequest) (*horizonpb.PutResponse, error) {
	if err := s.eng.Put(req.Key, req.Value); err != nil {
		return nil, translateError(err)
	}
	return &horizonpb.PutResponse{Ok: true}, nil
}

func (s *Server) Delete(ctx context.Context, req *horizonpb.DeleteRequest) (*horizonpb.DeleteResponse, error) {
	found, err := s.eng.Delete(req.Key)
	if err != nil {
		return nil, translateError(err)
	}
	return &horizonpb.DeleteResponse{Found: found}, nil
}

func (s *Server) ScanRange(req *horizonpb.ScanRangeRequest, stream horizonpb.StorageScanRangeServer) error {
	entries, err := s.eng.ScanRange(req.Start, req.End)
	if err != nil {
		return translateError(err)
	}
	for _, e := range entries {
		if err := stream.Send(&horizonpb.ScanRangeResponse{Key: e.Key, Value: e.Value}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Begin(ctx context.Context, req *horizonpb.BeginRequest) (*horizonpb.BeginResponse, error) {
	t := s.eng.Begin(txn.IsolationLevel(req.Isolation))
	s.mu.Lock()
	s.txnsByID[uint64(t.ID)] = t
	s.mu.Unlock()
	return &horizonpb.BeginResponse{TxnId: uint64(t.ID)}, nil
}

func (s *Server) Commit(ctx context.Context, req *horizonpb.CommitRequest) (*horizonpb.CommitResponse, error) {
	s.mu.Lock()
	t, ok := s.txnsByID[req.TxnId]
	s.mu.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown transaction %d", req.TxnId)
	}
	if err := s.eng.Commit(t); err != nil {
		return nil, translateError(err)
	}
	s.mu.Lock()
	delete(s.txnsByID, req.TxnId)
	s.mu.Unlock()
	return &horizonpb.CommitResponse{Ok: true}, nil
}

func (s *Server) Rollback(ctx context.Context, req *horizonpb.RollbackRequest) (*horizonpb.RollbackResponse, error) {
	s.mu.Lock()
	t, ok := s.txnsByID[req.TxnId]
	s.mu.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown transaction %d", req.TxnId)
	}
	if err := s.eng.Rollback(t); err != nil {
		return nil, translateError(err)
	}
	s.mu.Lock()
	delete(s.txnsByID, req.TxnId)
	s.mu.Unlock()
	return &horizonpb.RollbackResponse{Ok: true}, nil
}

func (s *Server) Stats(ctx context.Context, req *horizonpb.StatsRequest) (*horizonpb.StatsResponse, error) {
	stats := s.eng.Stats()
	return &horizonpb.StatsResponse{
		PageCount:      stats.PageCount,
		BufferPoolSize: int32(stats.BufferPoolSize),
		WalFrameCount:  stats.WALFrameCount,
		Uptime:         timestamppb.New(s.startTime),
	}, nil
}

func (s *Server) Health(ctx context.Context, req *horizonpb.HealthRequest) (*horizonpb.HealthResponse, error) {
	return &horizonpb.HealthResponse{Ok: s.eng.Ping() == nil}, nil
}

// Healthy reports whether the engine can still serve a read; the
// observability listener's /health and /ready endpoints consult it.
func (s *Server) Healthy() error {
	return s.eng.Ping()
}

// translateError maps a herrors sentinel to the gRPC status code a client
// can act on.
func translateError(err error) error {
	switch {
	case errors.Is(err, herrors.ErrPageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, herrors.ErrReadOnly):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, herrors.ErrBufferPoolFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, herrors.ErrTransaction):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, herrors.ErrCorruptDatabase), errors.Is(err, herrors.ErrDeserialization):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, herrors.ErrKeyTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
