// Package bufferpool implements a bounded, pinned, LRU-evicted cache of
// pages sitting between the B+Tree and the WAL/pager layer.
package bufferpool

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
	"github.com/horizondb/horizon/pkg/wal"
)

// frame is one in-memory slot holding a page.
type frame struct {
	data         [pager.PageSize]byte
	pageID       pager.PageId
	dirty        bool
	pinCount     uint32
	lastAccessed uint64
}

// Metrics is the subset of observability hooks the pool reports through;
// satisfied by internal/metrics.Metrics. A nil Metrics is valid and simply
// records nothing.
type Metrics interface {
	RecordBufferPoolHit()
	RecordBufferPoolMiss()
	RecordBufferPoolEviction()
	SetBufferPoolSize(size int)
}

// BufferPool is a fixed-capacity cache of pages. It owns the single pager
// and (optional) WAL beneath it; callers never touch those directly once a
// pool exists.
type BufferPool struct {
	pager         *pager.Pager
	wal           *wal.WAL
	frames        []frame
	capacity      int
	pageTable     map[pager.PageId]int
	accessCounter uint64
	metrics       Metrics
	log           zerolog.Logger
}

// New creates a pool with the given capacity (number of frames). wal may
// be nil, in which case dirty frames are flushed directly to the pager.
func New(p *pager.Pager, w *wal.WAL, capacity int, metrics Metrics, log zerolog.Logger) *BufferPool {
	return &BufferPool{
		pager:     p,
		wal:       w,
		frames:    make([]frame, 0, capacity),
		capacity:  capacity,
		pageTable: make(map[pager.PageId]int, capacity),
		metrics:   metrics,
		log:       log.With().Str("component", "bufferpool").Logger(),
	}
}

// fetch loads pageID into a resident frame, incrementing its pin count,
// and returns the frame index.
func (bp *BufferPool) fetch(pageID pager.PageId) (int, error) {
	if idx, ok := bp.pageTable[pageID]; ok {
		bp.accessCounter++
		bp.frames[idx].lastAccessed = bp.accessCounter
		bp.frames[idx].pinCount++
		bp.recordHit()
		return idx, nil
	}
	bp.recordMiss()

	data, err := bp.readThrough(pageID)
	if err != nil {
		return 0, err
	}

	var idx int
	if len(bp.frames) < bp.capacity {
		idx = len(bp.frames)
		bp.frames = append(bp.frames, frame{data: data, pageID: pageID, pinCount: 1})
	} else {
		idx, err = bp.evictOne()
		if err != nil {
			return 0, err
		}
		oldPageID := bp.frames[idx].pageID
		if mapped, ok := bp.pageTable[oldPageID]; ok && mapped == idx {
			delete(bp.pageTable, oldPageID)
		}
		bp.frames[idx] = frame{data: data, pageID: pageID, pinCount: 1}
	}

	bp.accessCounter++
	bp.frames[idx].lastAccessed = bp.accessCounter
	bp.pageTable[pageID] = idx
	bp.reportSize()
	return idx, nil
}

func (bp *BufferPool) readThrough(pageID pager.PageId) ([pager.PageSize]byte, error) {
	if bp.wal != nil {
		if data, ok, err := bp.wal.ReadPage(pageID); err != nil {
			return data, err
		} else if ok {
			return data, nil
		}
	}
	return bp.pager.ReadPage(pageID)
}

// GetPage returns an immutable view of pageID's bytes.
func (bp *BufferPool) GetPage(pageID pager.PageId) (*[pager.PageSize]byte, error) {
	idx, err := bp.fetch(pageID)
	if err != nil {
		return nil, err
	}
	return &bp.frames[idx].data, nil
}

// GetPageMut returns a mutable view of pageID's bytes and marks the frame
// dirty as a side effect of obtaining the reference.
func (bp *BufferPool) GetPageMut(pageID pager.PageId) (*[pager.PageSize]byte, error) {
	idx, err := bp.fetch(pageID)
	if err != nil {
		return nil, err
	}
	bp.frames[idx].dirty = true
	return &bp.frames[idx].data, nil
}

// Unpin decrements pageID's pin count, saturating at zero.
func (bp *BufferPool) Unpin(pageID pager.PageId) {
	if idx, ok := bp.pageTable[pageID]; ok {
		if bp.frames[idx].pinCount > 0 {
			bp.frames[idx].pinCount--
		}
	}
}

// AllocatePage allocates a fresh page through the pager and admits it into
// the pool, dirty and pinned.
func (bp *BufferPool) AllocatePage() (pager.PageId, error) {
	pageID, err := bp.pager.AllocatePage()
	if err != nil {
		return 0, err
	}

	var idx int
	if len(bp.frames) < bp.capacity {
		idx = len(bp.frames)
		bp.frames = append(bp.frames, frame{pageID: pageID, dirty: true, pinCount: 1})
	} else {
		idx, err = bp.evictOne()
		if err != nil {
			return 0, err
		}
		oldPageID := bp.frames[idx].pageID
		if mapped, ok := bp.pageTable[oldPageID]; ok && mapped == idx {
			delete(bp.pageTable, oldPageID)
		}
		bp.frames[idx] = frame{pageID: pageID, dirty: true, pinCount: 1}
	}

	bp.accessCounter++
	bp.frames[idx].lastAccessed = bp.accessCounter
	bp.pageTable[pageID] = idx
	bp.reportSize()
	return pageID, nil
}

// FreePage drops pageID from the pool if resident and returns it to the
// pager's free list.
func (bp *BufferPool) FreePage(pageID pager.PageId) error {
	if idx, ok := bp.pageTable[pageID]; ok {
		bp.frames[idx].dirty = false
		bp.frames[idx].pinCount = 0
		delete(bp.pageTable, pageID)
	}
	return bp.pager.FreePage(pageID)
}

// evictOne selects the resident frame with pin count 0 and the smallest
// last-used timestamp (strict LRU over unpinned frames), flushing it first
// if dirty. Fails BufferPoolFull if no frame is unpinned.
func (bp *BufferPool) evictOne() (int, error) {
	victim := -1
	var victimAccess uint64
	for i := range bp.frames {
		if bp.frames[i].pinCount != 0 {
			continue
		}
		if victim == -1 || bp.frames[i].lastAccessed < victimAccess {
			victim = i
			victimAccess = bp.frames[i].lastAccessed
		}
	}
	if victim == -1 {
		return 0, fmt.Errorf("%w", herrors.ErrBufferPoolFull)
	}

	if bp.frames[victim].dirty {
		if err := bp.flushFrame(victim); err != nil {
			return 0, err
		}
	}
	if bp.metrics != nil {
		bp.metrics.RecordBufferPoolEviction()
	}
	return victim, nil
}

// flushFrame writes one dirty frame through the WAL (as a non-commit
// frame, txn_id 0) or directly to the pager if there is no WAL.
func (bp *BufferPool) flushFrame(idx int) error {
	f := &bp.frames[idx]
	if !f.dirty {
		return nil
	}
	if bp.wal != nil {
		if err := bp.wal.WriteFrame(f.pageID, f.data[:], 0, false, bp.pager.PageCount()); err != nil {
			return err
		}
	} else if err := bp.pager.WritePage(f.pageID, f.data[:]); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAll writes every dirty resident frame through (checkpointing the
// WAL, if present, and syncing the pager afterward).
func (bp *BufferPool) FlushAll() error {
	for i := range bp.frames {
		if bp.frames[i].dirty {
			if err := bp.flushFrame(i); err != nil {
				return err
			}
		}
	}
	if bp.wal != nil {
		if err := bp.wal.Checkpoint(bp.pager); err != nil {
			return err
		}
	}
	return bp.pager.Sync()
}

func (bp *BufferPool) Pager() *pager.Pager { return bp.pager }
func (bp *BufferPool) WAL() *wal.WAL       { return bp.wal }
func (bp *BufferPool) Size() int           { return len(bp.frames) }
func (bp *BufferPool) Capacity() int       { return bp.capacity }

func (bp *BufferPool) recordHit() {
	if bp.metrics != nil {
		bp.metrics.RecordBufferPoolHit()
	}
}

func (bp *BufferPool) recordMiss() {
	if bp.metrics != nil {
		bp.metrics.RecordBufferPoolMiss()
	}
}

func (bp *BufferPool) reportSize() {
	if bp.metrics != nil {
		bp.metrics.SetBufferPoolSize(len(bp.frames))
	}
}
