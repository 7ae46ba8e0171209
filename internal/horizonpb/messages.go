// Package horizonpb defines the wire messages and gRPC service
// description for the storage core's remote surface. No `.proto` file or
// `protoc`-generated code backs this package (see DESIGN.md): messages
// are plain Go structs with `json` tags, carried over gRPC through the
// hand-written codec in codec.go.
package horizonpb

import "google.golang.org/protobuf/types/known/timestamppb"

// GetRequest looks up a single key in the default table.
type GetRequest struct {
	Key []byte `json:"key"`
}

// GetResponse is the lookup result.
type GetResponse struct {
	Value []byte `json:"value"`
	Found bool   `json:"found"`
}

// PutRequest upserts key/value in the default table.
type PutRequest struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// PutResponse acknowledges a Put.
type PutResponse struct {
	Ok bool `json:"ok"`
}

// DeleteRequest removes a key from the default table.
type DeleteRequest struct {
	Key []byte `json:"key"`
}

// DeleteResponse reports whether the key was present.
type DeleteResponse struct {
	Found bool `json:"found"`
}

// ScanRangeRequest asks for every entry with key in [Start, End).
type ScanRangeRequest struct {
	Start []byte `json:"start"`
	End   []byte `json:"end"`
}

// ScanRangeResponse is one entry of a ScanRange stream.
type ScanRangeResponse struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// BeginRequest starts a transaction at the given isolation level
// (0=ReadCommitted, 1=Snapshot, 2=Serializable — matching pkg/txn.IsolationLevel).
type BeginRequest struct {
	Isolation int32 `json:"isolation"`
}

// BeginResponse carries the new transaction's id.
type BeginResponse struct {
	TxnId uint64 `json:"txn_id"`
}

// CommitRequest commits the named transaction.
type CommitRequest struct {
	TxnId uint64 `json:"txn_id"`
}

// CommitResponse acknowledges a commit.
type CommitResponse struct {
	Ok bool `json:"ok"`
}

// RollbackRequest rolls back the named transaction.
type RollbackRequest struct {
	TxnId uint64 `json:"txn_id"`
}

// RollbackResponse acknowledges a rollback.
type RollbackResponse struct {
	Ok bool `json:"ok"`
}

// StatsRequest has no fields; it asks for a point-in-time snapshot.
type StatsRequest struct{}

// StatsResponse is a snapshot of engine-level counters. Uptime is the
// server's start time, carried as a protobuf well-known Timestamp even
// though every other message here is a hand-rolled struct; clients derive
// elapsed uptime by differencing against their own clock.
type StatsResponse struct {
	PageCount      uint32                 `json:"page_count"`
	BufferPoolSize int32                  `json:"buffer_pool_size"`
	WalFrameCount  uint32                 `json:"wal_frame_count"`
	Uptime         *timestamppb.Timestamp `json:"uptime"`
}

// HealthRequest has no fields.
type HealthRequest struct{}

// HealthResponse reports liveness.
type HealthResponse struct {
	Ok bool `json:"ok"`
}
