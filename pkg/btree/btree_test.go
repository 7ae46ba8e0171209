package btree

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/bufferpool"
	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
	"github.com/horizondb/horizon/pkg/wal"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func newTestPool(t *testing.T, capacity int) *bufferpool.BufferPool {
	t.Helper()
	dir := t.TempDir()
	p, err := pager.Open(filepath.Join(dir, "test.db"), false, testLogger())
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	w, err := wal.Open(filepath.Join(dir, "test.wal"), testLogger())
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	return bufferpool.New(p, w, capacity, nil, testLogger())
}

func key(i int) []byte { return []byte(fmt.Sprintf("key-%05d", i)) }
func val(i int) []byte { return []byte(fmt.Sprintf("value-%05d", i)) }

func TestSearchMissingKeyReturnsFalse(t *testing.T) {
	pool := newTestPool(t, 16)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, ok, err := tree.Search(pool, []byte("nope"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ok {
		t.Fatalf("expected miss on empty tree")
	}
}

func TestInsertAndSearchSingleEntry(t *testing.T) {
	pool := newTestPool(t, 16)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := tree.Insert(pool, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok, err := tree.Search(pool, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("1")) {
		t.Fatalf("got %q want %q", v, "1")
	}
}

func TestUpsertReplacesValueWithoutGrowingCount(t *testing.T) {
	pool := newTestPool(t, 16)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := tree.Insert(pool, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(pool, []byte("a"), []byte("2")); err != nil {
		t.Fatalf("Insert (upsert): %v", err)
	}

	v, ok, err := tree.Search(pool, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("2")) {
		t.Fatalf("got %q want %q", v, "2")
	}

	count, err := tree.Count(pool)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1 after upsert, got %d", count)
	}
}

// TestBulkInsertSplitsAndPreservesOrder inserts enough keys to force
// repeated leaf splits (and a root split into an internal node), then
// verifies every key is found and a full range scan comes back in strictly
// ascending order.
func TestBulkInsertSplitsAndPreservesOrder(t *testing.T) {
	pool := newTestPool(t, 64)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 500
	for i := 0; i < n; i++ {
		if err := tree.Insert(pool, key(i), val(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		v, ok, err := tree.Search(pool, key(i))
		if err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", i, ok, err)
		}
		if !bytes.Equal(v, val(i)) {
			t.Fatalf("key %d: got %q want %q", i, v, val(i))
		}
	}

	entries, err := tree.ScanAll(pool)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			t.Fatalf("scan out of order at index %d: %q >= %q", i, entries[i-1].Key, entries[i].Key)
		}
	}
	count, err := tree.Count(pool)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != n {
		t.Fatalf("Count: got %d want %d", count, n)
	}
}

func TestScanRangeIsHalfOpen(t *testing.T) {
	pool := newTestPool(t, 64)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 200; i++ {
		if err := tree.Insert(pool, key(i), val(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	entries, err := tree.ScanRange(pool, key(50), key(60))
	if err != nil {
		t.Fatalf("ScanRange: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries in [50,60), got %d", len(entries))
	}
	if !bytes.Equal(entries[0].Key, key(50)) {
		t.Fatalf("expected first key 50, got %q", entries[0].Key)
	}
	if !bytes.Equal(entries[len(entries)-1].Key, key(59)) {
		t.Fatalf("expected last key 59, got %q", entries[len(entries)-1].Key)
	}
}

func TestScanFromIsInclusive(t *testing.T) {
	pool := newTestPool(t, 64)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := tree.Insert(pool, key(i), val(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	entries, err := tree.ScanFrom(pool, key(25))
	if err != nil {
		t.Fatalf("ScanFrom: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries from 25..29, got %d", len(entries))
	}
	if !bytes.Equal(entries[0].Key, key(25)) {
		t.Fatalf("expected first key 25, got %q", entries[0].Key)
	}
}

func TestDeleteRemovesKeyWithoutRebalancing(t *testing.T) {
	pool := newTestPool(t, 64)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := tree.Insert(pool, key(i), val(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	deleted, err := tree.Delete(pool, key(5))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected Delete to report found")
	}

	_, ok, err := tree.Search(pool, key(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ok {
		t.Fatalf("expected key 5 gone after delete")
	}

	count, err := tree.Count(pool)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 9 {
		t.Fatalf("expected count 9 after delete, got %d", count)
	}

	deletedAgain, err := tree.Delete(pool, key(5))
	if err != nil {
		t.Fatalf("Delete (repeat): %v", err)
	}
	if deletedAgain {
		t.Fatalf("expected second delete of same key to report not-found")
	}
}

func TestInsertRejectsOversizedKey(t *testing.T) {
	pool := newTestPool(t, 16)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	oversized := bytes.Repeat([]byte{'x'}, MaxKeySize+1)
	err = tree.Insert(pool, oversized, []byte("v"))
	if err == nil {
		t.Fatalf("expected error inserting oversized key")
	}
	if !errors.Is(err, herrors.ErrKeyTooLarge) {
		t.Fatalf("expected ErrKeyTooLarge, got %v", err)
	}
}

func TestOpenWrapsExistingRoot(t *testing.T) {
	pool := newTestPool(t, 16)
	tree, err := Create(pool, nil, testLogger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tree.Insert(pool, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened := Open(tree.RootPage(), nil, testLogger())
	v, ok, err := reopened.Search(pool, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("Search after reopen: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("1")) {
		t.Fatalf("got %q want %q", v, "1")
	}
}
