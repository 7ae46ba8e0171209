package bufferpool

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
	"github.com/horizondb/horizon/pkg/wal"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func newTestPool(t *testing.T, capacity int) *BufferPool {
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
	return New(p, w, capacity, nil, testLogger())
}

func TestAllocateAndReadBack(t *testing.T) {
	bp := newTestPool(t, 4)

	id, err := bp.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	buf, err := bp.GetPageMut(id)
	if err != nil {
		t.Fatalf("GetPageMut: %v", err)
	}
	buf[0] = 0x99
	bp.Unpin(id)

	got, err := bp.GetPage(id)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got[0] != 0x99 {
		t.Fatalf("expected mutated byte to persist in resident frame")
	}
}

func TestEvictionIsStrictLRU(t *testing.T) {
	bp := newTestPool(t, 2)

	a, err := bp.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	bp.Unpin(a)
	b, err := bp.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	bp.Unpin(b)

	// Touch a again so it becomes more recently used than b.
	if _, err := bp.GetPage(a); err != nil {
		t.Fatalf("GetPage(a): %v", err)
	}
	bp.Unpin(a)

	// Allocating a third page must evict b (the LRU unpinned frame), not a.
	c, err := bp.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	bp.Unpin(c)

	if bp.Size() != 2 {
		t.Fatalf("expected pool size to stay at capacity 2, got %d", bp.Size())
	}
	if _, ok := bp.pageTable[a]; !ok {
		t.Fatalf("expected recently-touched page a to remain resident")
	}
	if _, ok := bp.pageTable[b]; ok {
		t.Fatalf("expected LRU page b to have been evicted")
	}
}

func TestBufferPoolFullWhenAllPinned(t *testing.T) {
	bp := newTestPool(t, 1)

	if _, err := bp.AllocatePage(); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	// The sole frame remains pinned (pin count 1); a second allocate must
	// fail BufferPoolFull rather than evict it.
	_, err := bp.AllocatePage()
	if !errors.Is(err, herrors.ErrBufferPoolFull) {
		t.Fatalf("expected BufferPoolFull, got %v", err)
	}
}

func TestFlushAllCheckpointsWAL(t *testing.T) {
	bp := newTestPool(t, 4)

	id, err := bp.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf, err := bp.GetPageMut(id)
	if err != nil {
		t.Fatalf("GetPageMut: %v", err)
	}
	buf[0] = 0x7

	if err := bp.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if bp.WAL().FrameCount() != 0 {
		t.Fatalf("expected WAL to be checkpointed to empty, got %d frames", bp.WAL().FrameCount())
	}

	onDisk, err := bp.Pager().ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(onDisk[:1], []byte{0x7}) {
		t.Fatalf("expected checkpointed page to carry the dirty byte")
	}
}
