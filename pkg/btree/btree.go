// Package btree implements the on-disk B+Tree: the ordered map from
// arbitrary byte-string keys to arbitrary byte-string values underlying
// every table and index. All data lives in leaves; leaves are chained
// left to right so range scans are linear.
package btree

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/bufferpool"
	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
)

// Metrics is the subset of observability hooks the tree reports split
// activity through; satisfied by internal/metrics.Metrics.
type Metrics interface {
	RecordBTreeLeafSplit()
	RecordBTreeInternalSplit()
}

// Entry is one key/value pair stored in the tree.
type Entry struct {
	Key   []byte
	Value []byte
}

// insertOutcome is the result of a recursive insert that may need to
// propagate a split upward: either absorbed (Done), or the child split
// and (SplitKey, NewPage) must be inserted into the parent.
type insertOutcome struct {
	split    bool
	splitKey []byte
	newPage  pager.PageId
}

var doneOutcome = insertOutcome{}

// BTree is a B+Tree rooted at a single page.
type BTree struct {
	rootPage pager.PageId
	metrics  Metrics
	log      zerolog.Logger
}

// Create allocates a fresh, empty leaf page and returns a tree rooted there.
func Create(pool *bufferpool.BufferPool, metrics Metrics, log zerolog.Logger) (*BTree, error) {
	id, err := pool.AllocatePage()
	if err != nil {
		return nil, err
	}
	data, err := pool.GetPageMut(id)
	if err != nil {
		return nil, err
	}
	initLeafPage(data[:])
	pool.Unpin(id)
	return &BTree{rootPage: id, metrics: metrics, log: log.With().Str("component", "btree").Logger()}, nil
}

// Open wraps an existing root page as a tree.
func Open(rootPage pager.PageId, metrics Metrics, log zerolog.Logger) *BTree {
	return &BTree{rootPage: rootPage, metrics: metrics, log: log.With().Str("component", "btree").Logger()}
}

func (t *BTree) RootPage() pager.PageId { return t.rootPage }

// Search looks up a single key, returning (value, true) if found.
func (t *BTree) Search(pool *bufferpool.BufferPool, key []byte) ([]byte, bool, error) {
	leafID, err := t.findLeaf(pool, key)
	if err != nil {
		return nil, false, err
	}
	page, err := pool.GetPage(leafID)
	if err != nil {
		return nil, false, err
	}
	pool.Unpin(leafID)

	n := cellCount(page[:])
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(page[:], i))
		k, v := readLeafCell(page[:], off)
		if bytes.Equal(k, key) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// findLeaf descends from root to the leaf that should contain key: at each
// internal node, the first cell whose key is strictly greater than key
// selects the child; otherwise the rightmost child.
func (t *BTree) findLeaf(pool *bufferpool.BufferPool, key []byte) (pager.PageId, error) {
	current := t.rootPage
	for {
		page, err := pool.GetPage(current)
		if err != nil {
			return 0, err
		}
		pool.Unpin(current)

		if pageType(page[:]) == pageTypeLeaf {
			return current, nil
		}

		n := cellCount(page[:])
		child := trailer(page[:])
		for i := uint16(0); i < n; i++ {
			off := int(cellPtr(page[:], i))
			c, k := readInternalCell(page[:], off)
			if bytes.Compare(key, k) < 0 {
				child = c
				break
			}
		}
		current = pager.PageId(child)
	}
}

// Insert upserts key/value: if key already exists its value is replaced.
func (t *BTree) Insert(pool *bufferpool.BufferPool, key, value []byte) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w: key of %d bytes exceeds MaxKeySize %d", herrors.ErrKeyTooLarge, len(key), MaxKeySize)
	}

	outcome, err := t.insertRecursive(pool, t.rootPage, key, value)
	if err != nil {
		return err
	}
	if !outcome.split {
		return nil
	}

	newRoot, err := pool.AllocatePage()
	if err != nil {
		return err
	}
	data, err := pool.GetPageMut(newRoot)
	if err != nil {
		return err
	}
	initInternalPage(data[:])
	cell := buildInternalCell(uint32(t.rootPage), outcome.splitKey)
	writeCell(data[:], 0, cell)
	setTrailer(data[:], uint32(outcome.newPage))
	pool.Unpin(newRoot)

	t.rootPage = newRoot
	return nil
}

func (t *BTree) insertRecursive(pool *bufferpool.BufferPool, pageID pager.PageId, key, value []byte) (insertOutcome, error) {
	page, err := pool.GetPage(pageID)
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(pageID)

	if pageType(page[:]) == pageTypeLeaf {
		return t.insertIntoLeaf(pool, pageID, key, value)
	}

	n := cellCount(page[:])
	childPage := pager.PageId(trailer(page[:]))
	childIdx := n // default: rightmost child
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(page[:], i))
		c, k := readInternalCell(page[:], off)
		if bytes.Compare(key, k) < 0 {
			childPage = pager.PageId(c)
			childIdx = i
			break
		}
	}

	outcome, err := t.insertRecursive(pool, childPage, key, value)
	if err != nil {
		return doneOutcome, err
	}
	if !outcome.split {
		return doneOutcome, nil
	}
	return t.insertIntoInternal(pool, pageID, childIdx, outcome.splitKey, outcome.newPage)
}

func (t *BTree) insertIntoLeaf(pool *bufferpool.BufferPool, pageID pager.PageId, key, value []byte) (insertOutcome, error) {
	page, err := pool.GetPage(pageID)
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(pageID)

	n := cellCount(page[:])
	insertSlot := n
	existingIdx := n
	found := false
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(page[:], i))
		k, _ := readLeafCell(page[:], off)
		switch bytes.Compare(key, k) {
		case 0:
			existingIdx = i
			found = true
		case -1:
			if insertSlot == n {
				insertSlot = i
			}
		}
		if found {
			break
		}
	}

	if found {
		if err := t.replaceLeafCell(pool, pageID, existingIdx, key, value); err != nil {
			return doneOutcome, err
		}
		return doneOutcome, nil
	}

	cell := buildLeafCell(key, value)
	if hasSpace(page[:], len(cell)) {
		data, err := pool.GetPageMut(pageID)
		if err != nil {
			return doneOutcome, err
		}
		writeCell(data[:], insertSlot, cell)
		pool.Unpin(pageID)
		return doneOutcome, nil
	}

	return t.splitLeaf(pool, pageID, key, value, insertSlot)
}

func (t *BTree) replaceLeafCell(pool *bufferpool.BufferPool, pageID pager.PageId, cellIdx uint16, key, newValue []byte) error {
	oldPage, err := pool.GetPage(pageID)
	if err != nil {
		return err
	}
	pool.Unpin(pageID)

	n := cellCount(oldPage[:])
	nextLeaf := trailer(oldPage[:])

	type kv struct{ k, v []byte }
	entries := make([]kv, 0, n)
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(oldPage[:], i))
		k, v := readLeafCell(oldPage[:], off)
		if i == cellIdx {
			entries = append(entries, kv{key, newValue})
		} else {
			entries = append(entries, kv{k, v})
		}
	}

	data, err := pool.GetPageMut(pageID)
	if err != nil {
		return err
	}
	initLeafPage(data[:])
	setTrailer(data[:], nextLeaf)
	for _, e := range entries {
		slot := cellCount(data[:])
		writeCell(data[:], slot, buildLeafCell(e.k, e.v))
	}
	pool.Unpin(pageID)
	return nil
}

// splitLeaf gathers every current entry plus the new one in sorted order,
// splits at the midpoint, writes the lower half back to pageID, the upper
// half to a freshly allocated sibling, and chains them via next_leaf.
func (t *BTree) splitLeaf(pool *bufferpool.BufferPool, pageID pager.PageId, key, value []byte, insertSlot uint16) (insertOutcome, error) {
	oldPage, err := pool.GetPage(pageID)
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(pageID)

	n := cellCount(oldPage[:])
	oldNextLeaf := trailer(oldPage[:])

	type kv struct{ k, v []byte }
	entries := make([]kv, 0, n+1)
	inserted := false
	for i := uint16(0); i < n; i++ {
		if i == insertSlot && !inserted {
			entries = append(entries, kv{key, value})
			inserted = true
		}
		off := int(cellPtr(oldPage[:], i))
		k, v := readLeafCell(oldPage[:], off)
		entries = append(entries, kv{k, v})
	}
	if !inserted {
		entries = append(entries, kv{key, value})
	}

	total := len(entries)
	splitPoint := total / 2

	newPageID, err := pool.AllocatePage()
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(newPageID)

	left, err := pool.GetPageMut(pageID)
	if err != nil {
		return doneOutcome, err
	}
	initLeafPage(left[:])
	setTrailer(left[:], uint32(newPageID))
	for _, e := range entries[:splitPoint] {
		slot := cellCount(left[:])
		writeCell(left[:], slot, buildLeafCell(e.k, e.v))
	}
	pool.Unpin(pageID)

	right, err := pool.GetPageMut(newPageID)
	if err != nil {
		return doneOutcome, err
	}
	initLeafPage(right[:])
	setTrailer(right[:], oldNextLeaf)
	for _, e := range entries[splitPoint:] {
		slot := cellCount(right[:])
		writeCell(right[:], slot, buildLeafCell(e.k, e.v))
	}
	pool.Unpin(newPageID)

	if t.metrics != nil {
		t.metrics.RecordBTreeLeafSplit()
	}

	return insertOutcome{split: true, splitKey: entries[splitPoint].k, newPage: newPageID}, nil
}

// insertIntoInternal inserts a (key, newChild) separator produced by a
// child split at position slot (the index whose child pointer we
// descended through, or cellCount if we descended through the rightmost
// child). Before the split, cell[slot].child covered keys < key_slot (or
// rightmost covered keys >= key_{n-1}). The child at that position split
// into (left stays at its old page, right = newChild) separated by
// splitKey, so a new cell (oldChild, splitKey) is inserted at slot and the
// old cell[slot] (or the rightmost pointer) is repointed to newChild.
func (t *BTree) insertIntoInternal(pool *bufferpool.BufferPool, pageID pager.PageId, slot uint16, splitKey []byte, newChild pager.PageId) (insertOutcome, error) {
	page, err := pool.GetPage(pageID)
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(pageID)

	n := cellCount(page[:])
	rightmost := trailer(page[:])

	type entry struct {
		child uint32
		key   []byte
	}
	cells := make([]entry, 0, n+1)
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(page[:], i))
		c, k := readInternalCell(page[:], off)
		cells = append(cells, entry{c, k})
	}

	var newRightmost uint32
	if slot < n {
		oldChild := cells[slot].child
		cells[slot].child = uint32(newChild)
		cells = append(cells, entry{})
		copy(cells[slot+1:], cells[slot:len(cells)-1])
		cells[slot] = entry{child: oldChild, key: splitKey}
		newRightmost = rightmost
	} else {
		cells = append(cells, entry{child: rightmost, key: splitKey})
		newRightmost = uint32(newChild)
	}

	totalCellBytes := 0
	for _, e := range cells {
		totalCellBytes += internalCellSize(e.key)
	}
	needed := headerSize + len(cells)*cellPtrSize + totalCellBytes

	if needed <= pager.PageSize {
		data, err := pool.GetPageMut(pageID)
		if err != nil {
			return doneOutcome, err
		}
		initInternalPage(data[:])
		setTrailer(data[:], newRightmost)
		for _, e := range cells {
			s := cellCount(data[:])
			writeCell(data[:], s, buildInternalCell(e.child, e.key))
		}
		pool.Unpin(pageID)
		return doneOutcome, nil
	}

	// Internal node must split: push up the median key, whose child
	// becomes the rightmost child of the left node.
	total := len(cells)
	splitPoint := total / 2
	promotedKey := cells[splitPoint].key
	leftRightmost := cells[splitPoint].child

	newPageID, err := pool.AllocatePage()
	if err != nil {
		return doneOutcome, err
	}
	pool.Unpin(newPageID)

	left, err := pool.GetPageMut(pageID)
	if err != nil {
		return doneOutcome, err
	}
	initInternalPage(left[:])
	setTrailer(left[:], leftRightmost)
	for _, e := range cells[:splitPoint] {
		s := cellCount(left[:])
		writeCell(left[:], s, buildInternalCell(e.child, e.key))
	}
	pool.Unpin(pageID)

	right, err := pool.GetPageMut(newPageID)
	if err != nil {
		return doneOutcome, err
	}
	initInternalPage(right[:])
	setTrailer(right[:], newRightmost)
	for _, e := range cells[splitPoint+1:] {
		s := cellCount(right[:])
		writeCell(right[:], s, buildInternalCell(e.child, e.key))
	}
	pool.Unpin(newPageID)

	if t.metrics != nil {
		t.metrics.RecordBTreeInternalSplit()
	}

	return insertOutcome{split: true, splitKey: promotedKey, newPage: newPageID}, nil
}

// Delete removes key from its leaf in place, without rebalancing. The
// tree remains correct but may become underutilized.
func (t *BTree) Delete(pool *bufferpool.BufferPool, key []byte) (bool, error) {
	leafID, err := t.findLeaf(pool, key)
	if err != nil {
		return false, err
	}
	page, err := pool.GetPage(leafID)
	if err != nil {
		return false, err
	}
	pool.Unpin(leafID)

	n := cellCount(page[:])
	foundIdx := n
	found := false
	for i := uint16(0); i < n; i++ {
		off := int(cellPtr(page[:], i))
		k, _ := readLeafCell(page[:], off)
		if bytes.Equal(k, key) {
			foundIdx = i
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	nextLeaf := trailer(page[:])
	type kv struct{ k, v []byte }
	entries := make([]kv, 0, n-1)
	for i := uint16(0); i < n; i++ {
		if i == foundIdx {
			continue
		}
		off := int(cellPtr(page[:], i))
		k, v := readLeafCell(page[:], off)
		entries = append(entries, kv{k, v})
	}

	data, err := pool.GetPageMut(leafID)
	if err != nil {
		return false, err
	}
	initLeafPage(data[:])
	setTrailer(data[:], nextLeaf)
	for _, e := range entries {
		slot := cellCount(data[:])
		writeCell(data[:], slot, buildLeafCell(e.k, e.v))
	}
	pool.Unpin(leafID)
	return true, nil
}

// ScanAll returns every entry in key order.
func (t *BTree) ScanAll(pool *bufferpool.BufferPool) ([]Entry, error) {
	leftmost, err := t.findLeftmostLeaf(pool)
	if err != nil {
		return nil, err
	}
	return t.scanLeavesFromPage(pool, leftmost, nil, nil)
}

// ScanFrom returns every entry with key >= startKey, in key order.
func (t *BTree) ScanFrom(pool *bufferpool.BufferPool, startKey []byte) ([]Entry, error) {
	leafID, err := t.findLeaf(pool, startKey)
	if err != nil {
		return nil, err
	}
	return t.scanLeavesFromPage(pool, leafID, startKey, nil)
}

// ScanRange returns every entry with key in [startKey, endKey).
func (t *BTree) ScanRange(pool *bufferpool.BufferPool, startKey, endKey []byte) ([]Entry, error) {
	leafID, err := t.findLeaf(pool, startKey)
	if err != nil {
		return nil, err
	}
	return t.scanLeavesFromPage(pool, leafID, startKey, endKey)
}

// Count sums cell_count over the leaf chain.
func (t *BTree) Count(pool *bufferpool.BufferPool) (uint64, error) {
	current, err := t.findLeftmostLeaf(pool)
	if err != nil {
		return 0, err
	}
	var total uint64
	for {
		page, err := pool.GetPage(current)
		if err != nil {
			return 0, err
		}
		pool.Unpin(current)
		total += uint64(cellCount(page[:]))
		next := trailer(page[:])
		if next == 0 {
			break
		}
		current = pager.PageId(next)
	}
	return total, nil
}

func (t *BTree) findLeftmostLeaf(pool *bufferpool.BufferPool) (pager.PageId, error) {
	current := t.rootPage
	for {
		page, err := pool.GetPage(current)
		if err != nil {
			return 0, err
		}
		pool.Unpin(current)

		if pageType(page[:]) == pageTypeLeaf {
			return current, nil
		}

		n := cellCount(page[:])
		if n == 0 {
			current = pager.PageId(trailer(page[:]))
			continue
		}
		off := int(cellPtr(page[:], 0))
		child, _ := readInternalCell(page[:], off)
		current = pager.PageId(child)
	}
}

func (t *BTree) scanLeavesFromPage(pool *bufferpool.BufferPool, startPage pager.PageId, startKey, endKey []byte) ([]Entry, error) {
	var result []Entry
	current := startPage
	for {
		page, err := pool.GetPage(current)
		if err != nil {
			return nil, err
		}
		pool.Unpin(current)

		n := cellCount(page[:])
		for i := uint16(0); i < n; i++ {
			off := int(cellPtr(page[:], i))
			k, v := readLeafCell(page[:], off)
			if startKey != nil && bytes.Compare(k, startKey) < 0 {
				continue
			}
			if endKey != nil && bytes.Compare(k, endKey) >= 0 {
				return result, nil
			}
			result = append(result, Entry{Key: k, Value: v})
		}

		next := trailer(page[:])
		if next == 0 {
			break
		}
		current = pager.PageId(next)
	}
	return result, nil
}
