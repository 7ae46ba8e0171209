// Package engine is the core facade: it owns the single mutex guarding
// the buffer pool, the default table tree, and the transaction manager, and
// exposes the handful of operations a remote front end or an embedding
// program needs (get/put/delete/scan plus transaction control). It is the
// one place in this module that wires pager, WAL, buffer pool, B+Tree,
// and transaction manager together.
package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/btree"
	"github.com/horizondb/horizon/pkg/bufferpool"
	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
	"github.com/horizondb/horizon/pkg/txn"
	"github.com/horizondb/horizon/pkg/wal"
)

// DefaultBufferPoolCapacity is used when Open is not given an explicit
// capacity.
const DefaultBufferPoolCapacity = 256

// defaultTable names the single table tree the engine facade manages,
// recorded on undo entries.
const defaultTable = "default"

// Metrics aggregates the observability hooks each wired component
// expects; internal/metrics.Metrics satisfies it.
type Metrics interface {
	pager.Metrics
	bufferpool.Metrics
	wal.Metrics
	btree.Metrics
	txn.Metrics
}

// Config controls how Open wires the storage core together.
type Config struct {
	Path               string
	ReadOnly           bool
	BufferPoolCapacity int
	Metrics            Metrics
	Log                zerolog.Logger
}

// Engine is a single open database: one pager, one WAL, one buffer pool,
// one default table tree, and one transaction manager, all guarded by a
// single mutex. There is no intra-request parallelism.
type Engine struct {
	mu sync.Mutex

	pool    *bufferpool.BufferPool
	table   *btree.BTree
	txns    *txn.Manager
	log     zerolog.Logger
	metrics Metrics
}

// Open opens (or creates) a database file at cfg.Path and wires every
// component together, opening the default table tree at the pager's
// schema root (creating one if the file is new).
func Open(cfg Config) (*Engine, error) {
	capacity := cfg.BufferPoolCapacity
	if capacity <= 0 {
		capacity = DefaultBufferPoolCapacity
	}

	p, err := pager.Open(cfg.Path, cfg.ReadOnly, cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics != nil {
		p.SetMetrics(cfg.Metrics)
	}

	w, err := wal.Open(cfg.Path+".wal", cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics != nil {
		w.SetMetrics(cfg.Metrics)
	}

	pool := bufferpool.New(p, w, capacity, cfg.Metrics, cfg.Log)

	txns := txn.New(cfg.Log)
	if cfg.Metrics != nil {
		txns.SetMetrics(cfg.Metrics)
	}

	e := &Engine{pool: pool, txns: txns, log: cfg.Log.With().Str("component", "engine").Logger(), metrics: cfg.Metrics}

	if p.SchemaRoot() == 0 {
		tree, err := btree.Create(pool, cfg.Metrics, cfg.Log)
		if err != nil {
			return nil, err
		}
		if err := p.SetSchemaRoot(tree.RootPage()); err != nil {
			return nil, err
		}
		e.table = tree
	} else {
		e.table = btree.Open(p.SchemaRoot(), cfg.Metrics, cfg.Log)
	}

	return e, nil
}

// Get looks up key in the default table.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Search(e.pool, key)
}

// Put upserts key/value in the default table. Outside an explicit
// transaction the write auto-commits; inside one, an undo entry is
// recorded first so RollbackTxn can reverse it.
func (e *Engine) Put(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txns.IsUserTxnActive() {
		old, found, err := e.table.Search(e.pool, key)
		if err != nil {
			return err
		}
		if found {
			e.txns.RecordUndo(txn.UndoEntry{Kind: txn.UndoUpdate, Table: defaultTable, RootPage: uint32(e.table.RootPage()), Key: key, OldValue: old})
		} else {
			e.txns.RecordUndo(txn.UndoEntry{Kind: txn.UndoInsert, Table: defaultTable, RootPage: uint32(e.table.RootPage()), Key: key})
		}
	}

	if err := e.table.Insert(e.pool, key, value); err != nil {
		return err
	}
	if root := e.table.RootPage(); root != e.pool.Pager().SchemaRoot() {
		if err := e.pool.Pager().SetSchemaRoot(root); err != nil {
			return err
		}
	}
	if !e.txns.IsUserTxnActive() {
		e.txns.AutoCommit()
	}
	return nil
}

// Delete removes key from the default table, reporting whether it was
// present. Inside an explicit transaction the removed value is captured
// for undo.
func (e *Engine) Delete(key []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txns.IsUserTxnActive() {
		old, found, err := e.table.Search(e.pool, key)
		if err != nil {
			return false, err
		}
		if found {
			e.txns.RecordUndo(txn.UndoEntry{Kind: txn.UndoDelete, Table: defaultTable, RootPage: uint32(e.table.RootPage()), Key: key, OldValue: old})
		}
	}

	found, err := e.table.Delete(e.pool, key)
	if err != nil {
		return false, err
	}
	if !e.txns.IsUserTxnActive() {
		e.txns.AutoCommit()
	}
	return found, nil
}

// ScanRange returns every entry with key in [start, end).
func (e *Engine) ScanRange(start, end []byte) ([]btree.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.ScanRange(e.pool, start, end)
}

// ScanAll returns every entry in the default table, in key order.
func (e *Engine) ScanAll() ([]btree.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.ScanAll(e.pool)
}

// Begin starts a transaction at the given isolation level.
func (e *Engine) Begin(level txn.IsolationLevel) *txn.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txns.BeginWithIsolation(level)
}

// BeginTxn opens the explicit user transaction: subsequent Put and Delete
// calls record undo entries until CommitTxn or RollbackTxn closes it.
func (e *Engine) BeginTxn() (*txn.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txns.BeginUserTxn()
}

// CommitTxn commits the explicit user transaction; its mutations are
// already in the tree, so the undo log is simply discarded.
func (e *Engine) CommitTxn(t *txn.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txns.CommitUserTxn(t)
}

// RollbackTxn aborts the explicit user transaction and replays its undo
// log in reverse against the table tree, restoring the state from before
// BeginTxn.
func (e *Engine) RollbackTxn(t *txn.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.txns.RollbackUserTxn(t)
	if err != nil {
		return err
	}
	for _, u := range entries {
		switch u.Kind {
		case txn.UndoInsert:
			if _, err := e.table.Delete(e.pool, u.Key); err != nil {
				return err
			}
		case txn.UndoDelete, txn.UndoUpdate:
			if err := e.table.Insert(e.pool, u.Key, u.OldValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// Commit commits t.
func (e *Engine) Commit(t *txn.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txns.Commit(t)
}

// Rollback rolls back t.
func (e *Engine) Rollback(t *txn.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txns.Rollback(t)
}

// Stats is a point-in-time snapshot of engine-level counters.
type Stats struct {
	PageCount      uint32
	BufferPoolSize int
	WALFrameCount  uint32
}

// Stats reports a snapshot of engine-level counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		PageCount:      e.pool.Pager().PageCount(),
		BufferPoolSize: e.pool.Size(),
		WALFrameCount:  e.pool.WAL().FrameCount(),
	}
}

// Flush writes every dirty page through (checkpointing the WAL and
// syncing the pager).
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.FlushAll()
}

// Close flushes and releases the underlying file handles.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if err := e.pool.WAL().Close(); err != nil {
		return err
	}
	if err := e.pool.Pager().Close(); err != nil {
		return err
	}
	return nil
}

// Ping exercises the read path end to end: it fetches the header page
// through the buffer pool and reports any failure. Health checks use this
// rather than a constant answer.
func (e *Engine) Ping() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.pool.GetPage(0); err != nil {
		return err
	}
	e.pool.Unpin(0)
	return nil
}

// RequireWritable returns ErrReadOnly if the underlying pager was opened
// read-only. It is a standalone check: Put and Delete do not call it, and
// neither does internal/server.
func (e *Engine) RequireWritable() error {
	if e.pool.Pager().ReadOnly() {
		return fmt.Errorf("%w", herrors.ErrReadOnly)
	}
	return nil
}
