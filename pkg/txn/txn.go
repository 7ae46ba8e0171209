// Package txn implements multi-version concurrency control: transaction
// lifecycle, snapshot visibility, and the undo log backing rollback of a
// single active user transaction.
package txn

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
)

// TxnId identifies a transaction. Ids are assigned in increasing order
// starting at 1; 0 is never a valid transaction id.
type TxnId uint64

// IsolationLevel selects how a transaction's snapshot is constructed.
type IsolationLevel int

const (
	// ReadCommitted is recorded on the Transaction; CanSee applies the same
	// start-of-transaction snapshot rule to it as to Snapshot.
	ReadCommitted IsolationLevel = iota
	// Snapshot fixes visibility to writers committed before the
	// transaction began, for the lifetime of the transaction.
	Snapshot
	// Serializable behaves as Snapshot at the visibility layer; conflict
	// detection beyond that is out of scope for this core.
	Serializable
)

// TxnState is the lifecycle state of a transaction.
type TxnState int

const (
	StateActive TxnState = iota
	StateCommitted
	StateAborted
)

// Transaction is a single unit of work with a fixed snapshot of
// concurrently active transactions taken at its start.
type Transaction struct {
	ID            TxnId
	State         TxnState
	Isolation     IsolationLevel
	ActiveAtStart map[TxnId]struct{}
}

// CanSee reports whether rows written by writer are visible to t: a
// transaction always sees its own writes; otherwise it sees writer's work
// only if writer was not concurrently active when t began and writer has a
// lower id than t. Whether writer committed or aborted is not consulted.
func (t *Transaction) CanSee(writer TxnId) bool {
	if writer == t.ID {
		return true
	}
	if _, active := t.ActiveAtStart[writer]; active {
		return false
	}
	return writer < t.ID
}

// UndoEntry records one reversible mutation so RollbackUserTxn can replay
// it in reverse to restore prior state.
type UndoEntry struct {
	Kind     UndoKind
	Table    string
	RootPage uint32
	Key      []byte
	OldValue []byte // populated for Delete and Update
}

type UndoKind int

const (
	UndoInsert UndoKind = iota
	UndoDelete
	UndoUpdate
)

// Metrics is the subset of observability hooks the manager reports
// through; satisfied by internal/metrics.Metrics. Nil is valid and
// records nothing.
type Metrics interface {
	RecordTxnBegin()
	RecordTxnCommit()
	RecordTxnRollback()
}

// Manager tracks every transaction's lifecycle state and the undo log for
// the single active user transaction. One explicit user transaction may be
// open at a time; implicit single-statement writes use AutoCommit.
type Manager struct {
	nextID        atomic.Uint64
	activeTxns    map[TxnId]TxnState
	userTxnActive bool
	undoLog       []UndoEntry
	log           zerolog.Logger
	metrics       Metrics
}

// SetMetrics attaches an observability sink. Safe to call at most once,
// before the Manager is shared across goroutines.
func (m *Manager) SetMetrics(metrics Metrics) { m.metrics = metrics }

// New creates a Manager whose first allocated id is 1.
func New(log zerolog.Logger) *Manager {
	m := &Manager{
		activeTxns: make(map[TxnId]TxnState),
		log:        log.With().Str("component", "txn").Logger(),
	}
	m.nextID.Store(1)
	return m
}

func (m *Manager) allocateID() TxnId {
	return TxnId(m.nextID.Add(1) - 1)
}

// NextId peeks the id that will be assigned to the next transaction,
// without allocating it.
func (m *Manager) NextId() TxnId {
	return TxnId(m.nextID.Load())
}

// activeSnapshot returns the set of transaction ids currently Active.
func (m *Manager) activeSnapshot() map[TxnId]struct{} {
	snap := make(map[TxnId]struct{}, len(m.activeTxns))
	for id, state := range m.activeTxns {
		if state == StateActive {
			snap[id] = struct{}{}
		}
	}
	return snap
}

// Begin starts a Snapshot-isolation transaction.
func (m *Manager) Begin() *Transaction {
	return m.BeginWithIsolation(Snapshot)
}

// BeginWithIsolation starts a transaction at the given isolation level.
func (m *Manager) BeginWithIsolation(level IsolationLevel) *Transaction {
	id := m.allocateID()
	snap := m.activeSnapshot()
	m.activeTxns[id] = StateActive
	if m.metrics != nil {
		m.metrics.RecordTxnBegin()
	}
	return &Transaction{ID: id, State: StateActive, Isolation: level, ActiveAtStart: snap}
}

// Commit marks t Committed. Fails if t is not currently Active.
func (m *Manager) Commit(t *Transaction) error {
	if err := m.requireActive(t); err != nil {
		return err
	}
	t.State = StateCommitted
	m.activeTxns[t.ID] = StateCommitted
	if m.metrics != nil {
		m.metrics.RecordTxnCommit()
	}
	return nil
}

// Rollback marks t Aborted. Fails if t is not currently Active.
func (m *Manager) Rollback(t *Transaction) error {
	if err := m.requireActive(t); err != nil {
		return err
	}
	t.State = StateAborted
	m.activeTxns[t.ID] = StateAborted
	if m.metrics != nil {
		m.metrics.RecordTxnRollback()
	}
	return nil
}

func (m *Manager) requireActive(t *Transaction) error {
	if t.State != StateActive {
		return fmt.Errorf("%w: transaction %d is not active", herrors.ErrTransaction, t.ID)
	}
	return nil
}

// IsCommitted reports whether id names a transaction recorded as
// Committed.
func (m *Manager) IsCommitted(id TxnId) bool {
	return m.activeTxns[id] == StateCommitted
}

// AutoCommit allocates a transaction id and immediately marks it
// Committed, for single-statement writes outside an explicit user
// transaction.
func (m *Manager) AutoCommit() TxnId {
	id := m.allocateID()
	m.activeTxns[id] = StateCommitted
	return id
}

// BeginUserTxn starts the single explicit, user-visible transaction and
// begins recording undo entries against it. Fails TransactionError if a
// user transaction is already in progress.
func (m *Manager) BeginUserTxn() (*Transaction, error) {
	if m.userTxnActive {
		return nil, fmt.Errorf("%w: a user transaction is already active", herrors.ErrTransaction)
	}
	t := m.BeginWithIsolation(Snapshot)
	m.userTxnActive = true
	m.undoLog = m.undoLog[:0]
	return t, nil
}

// IsUserTxnActive reports whether an explicit user transaction is open.
func (m *Manager) IsUserTxnActive() bool {
	return m.userTxnActive
}

// CommitUserTxn commits t and closes the user transaction, discarding its
// undo log.
func (m *Manager) CommitUserTxn(t *Transaction) error {
	if err := m.Commit(t); err != nil {
		return err
	}
	m.userTxnActive = false
	m.undoLog = m.undoLog[:0]
	return nil
}

// RollbackUserTxn rolls back t and returns its undo log in reverse
// (most-recent-first) order for the caller to replay.
func (m *Manager) RollbackUserTxn(t *Transaction) ([]UndoEntry, error) {
	if err := m.Rollback(t); err != nil {
		return nil, err
	}
	m.userTxnActive = false

	reversed := make([]UndoEntry, len(m.undoLog))
	for i, e := range m.undoLog {
		reversed[len(m.undoLog)-1-i] = e
	}
	m.undoLog = m.undoLog[:0]
	return reversed, nil
}

// RecordUndo appends e to the undo log. A no-op unless a user transaction
// is currently active.
func (m *Manager) RecordUndo(e UndoEntry) {
	if !m.userTxnActive {
		return
	}
	m.undoLog = append(m.undoLog, e)
}
