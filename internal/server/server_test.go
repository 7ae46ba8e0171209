// Integration tests for the gRPC storage service, exercised over an
// in-memory bufconn listener.
package server

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/internal/horizonpb"
	"github.com/horizondb/horizon/pkg/engine"
	"github.com/horizondb/horizon/pkg/txn"
)

const bufSize = 1024 * 1024

func setupTestServer(t *testing.T) (horizonpb.StorageClient, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	srv, err := NewServer(engine.Config{Path: dbPath, BufferPoolCapacity: 32, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer()
	horizonpb.RegisterStorageServer(grpcServer, srv)

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	client := horizonpb.NewStorageClient(conn)

	cleanup := func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
		srv.Close()
	}
	return client, cleanup
}

func TestServerPutGet(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Put(ctx, &horizonpb.PutRequest{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	resp, err := client.Get(ctx, &horizonpb.GetRequest{Key: []byte("a")})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.Found || !bytes.Equal(resp.Value, []byte("1")) {
		t.Fatalf("expected found value %q, got found=%v value=%q", "1", resp.Found, resp.Value)
	}
}

func TestServerGetMissingKey(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	resp, err := client.Get(ctx, &horizonpb.GetRequest{Key: []byte("missing")})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Found {
		t.Fatalf("expected not found")
	}
}

func TestServerDelete(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Put(ctx, &horizonpb.PutRequest{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	resp, err := client.Delete(ctx, &horizonpb.DeleteRequest{Key: []byte("a")})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !resp.Found {
		t.Fatalf("expected key to have been found and removed")
	}

	get, err := client.Get(ctx, &horizonpb.GetRequest{Key: []byte("a")})
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if get.Found {
		t.Fatalf("expected key gone after delete")
	}
}

func TestServerScanRange(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	for i := byte(0); i < 10; i++ {
		key := []byte{'k', i}
		if _, err := client.Put(ctx, &horizonpb.PutRequest{Key: key, Value: key}); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	stream, err := client.ScanRange(ctx, &horizonpb.ScanRangeRequest{
		Start: []byte{'k', 2},
		End:   []byte{'k', 5},
	})
	if err != nil {
		t.Fatalf("ScanRange: %v", err)
	}

	var count int
	for {
		_, err := stream.Recv()
		if err != nil {
			break
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 entries in [k2, k5), got %d", count)
	}
}

func TestServerTransactionLifecycle(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	begin, err := client.Begin(ctx, &horizonpb.BeginRequest{Isolation: int32(txn.Snapshot)})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := client.Commit(ctx, &horizonpb.CommitRequest{TxnId: begin.TxnId}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := client.Rollback(ctx, &horizonpb.RollbackRequest{TxnId: begin.TxnId}); err == nil {
		t.Fatalf("expected error rolling back an already-committed transaction")
	}
}

func TestServerUnknownTransactionIdFails(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Commit(ctx, &horizonpb.CommitRequest{TxnId: 999}); err == nil {
		t.Fatalf("expected error committing an unknown transaction id")
	}
}

func TestServerStatsAndHealth(t *testing.T) {
	client, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Put(ctx, &horizonpb.PutRequest{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	stats, err := client.Stats(ctx, &horizonpb.StatsRequest{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PageCount < 2 {
		t.Fatalf("expected page count past the header page, got %d", stats.PageCount)
	}
	if stats.Uptime == nil {
		t.Fatalf("expected uptime start time set")
	}
	started := stats.Uptime.AsTime()
	if started.After(time.Now()) {
		t.Fatalf("server start time in the future: %v", started)
	}
	again, err := client.Stats(ctx, &horizonpb.StatsRequest{})
	if err != nil {
		t.Fatalf("Stats (second call): %v", err)
	}
	if !again.Uptime.AsTime().Equal(started) {
		t.Fatalf("expected a stable start time across Stats calls, got %v then %v", started, again.Uptime.AsTime())
	}

	health, err := client.Health(ctx, &horizonpb.HealthRequest{})
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !health.Ok {
		t.Fatalf("expected healthy response")
	}
}
