package txn

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestBeginAssignsIncreasingIds(t *testing.T) {
	m := New(testLogger())
	a := m.Begin()
	b := m.Begin()
	if b.ID <= a.ID {
		t.Fatalf("expected increasing ids, got %d then %d", a.ID, b.ID)
	}
}

func TestCommitThenCommitAgainFails(t *testing.T) {
	m := New(testLogger())
	tx := m.Begin()
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := m.Commit(tx); !errors.Is(err, herrors.ErrTransaction) {
		t.Fatalf("expected ErrTransaction on double commit, got %v", err)
	}
}

func TestRollbackThenCommitFails(t *testing.T) {
	m := New(testLogger())
	tx := m.Begin()
	if err := m.Rollback(tx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := m.Commit(tx); !errors.Is(err, herrors.ErrTransaction) {
		t.Fatalf("expected ErrTransaction committing an aborted txn, got %v", err)
	}
}

// TestCanSeeSnapshotIsolation exercises the core visibility rule: a
// transaction sees its own writes, never sees a writer that was still
// active when it began, and sees any writer that committed strictly
// before it started.
func TestCanSeeSnapshotIsolation(t *testing.T) {
	m := New(testLogger())

	writer := m.Begin() // id 1, commits before reader begins
	if err := m.Commit(writer); err != nil {
		t.Fatalf("Commit(writer): %v", err)
	}

	reader := m.Begin() // id 2, writer not active at its start
	if !reader.CanSee(writer.ID) {
		t.Fatalf("expected reader to see writer committed before it began")
	}
	if !reader.CanSee(reader.ID) {
		t.Fatalf("expected a transaction to always see its own writes")
	}

	concurrent := m.Begin() // id 3, active when a 4th txn begins
	lateReader := m.Begin() // id 4, concurrent was active at its start
	if reader.CanSee(concurrent.ID) {
		t.Fatalf("expected reader not to see a writer with a higher id")
	}
	if lateReader.CanSee(concurrent.ID) {
		t.Fatalf("expected lateReader not to see concurrent, which was active at its start")
	}
	if err := m.Commit(concurrent); err != nil {
		t.Fatalf("Commit(concurrent): %v", err)
	}
	// Even after concurrent commits, lateReader's snapshot was fixed at
	// the start: it must still not see concurrent's writes.
	if lateReader.CanSee(concurrent.ID) {
		t.Fatalf("expected lateReader's visibility to remain fixed after concurrent committed later")
	}
}

func TestAutoCommitIsImmediatelyCommitted(t *testing.T) {
	m := New(testLogger())
	id := m.AutoCommit()
	if !m.IsCommitted(id) {
		t.Fatalf("expected auto-committed id to read back committed")
	}
}

func TestUserTxnUndoLogReversedOnRollback(t *testing.T) {
	m := New(testLogger())
	tx, err := m.BeginUserTxn()
	if err != nil {
		t.Fatalf("BeginUserTxn: %v", err)
	}
	if !m.IsUserTxnActive() {
		t.Fatalf("expected user txn active after BeginUserTxn")
	}

	m.RecordUndo(UndoEntry{Kind: UndoInsert, Table: "t", Key: []byte("a")})
	m.RecordUndo(UndoEntry{Kind: UndoInsert, Table: "t", Key: []byte("b")})

	entries, err := m.RollbackUserTxn(tx)
	if err != nil {
		t.Fatalf("RollbackUserTxn: %v", err)
	}
	if m.IsUserTxnActive() {
		t.Fatalf("expected user txn inactive after rollback")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 undo entries, got %d", len(entries))
	}
	if string(entries[0].Key) != "b" || string(entries[1].Key) != "a" {
		t.Fatalf("expected undo entries in reverse order, got %q then %q", entries[0].Key, entries[1].Key)
	}
}

func TestRecordUndoIgnoredWithoutActiveUserTxn(t *testing.T) {
	m := New(testLogger())
	m.RecordUndo(UndoEntry{Kind: UndoInsert, Key: []byte("a")})
	tx, err := m.BeginUserTxn()
	if err != nil {
		t.Fatalf("BeginUserTxn: %v", err)
	}
	entries, err := m.RollbackUserTxn(tx)
	if err != nil {
		t.Fatalf("RollbackUserTxn: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no undo entries recorded before a user txn began, got %d", len(entries))
	}
}

func TestCommitUserTxnClearsUndoLog(t *testing.T) {
	m := New(testLogger())
	tx, err := m.BeginUserTxn()
	if err != nil {
		t.Fatalf("BeginUserTxn: %v", err)
	}
	m.RecordUndo(UndoEntry{Kind: UndoDelete, Key: []byte("a")})
	if err := m.CommitUserTxn(tx); err != nil {
		t.Fatalf("CommitUserTxn: %v", err)
	}
	if m.IsUserTxnActive() {
		t.Fatalf("expected user txn inactive after commit")
	}
}

func TestBeginUserTxnFailsWhileAnotherIsActive(t *testing.T) {
	m := New(testLogger())
	if _, err := m.BeginUserTxn(); err != nil {
		t.Fatalf("BeginUserTxn: %v", err)
	}
	if _, err := m.BeginUserTxn(); !errors.Is(err, herrors.ErrTransaction) {
		t.Fatalf("expected ErrTransaction beginning a second user txn, got %v", err)
	}
}
