// ABOUTME: B+Tree page layout: header, cell pointer array, and the
// ABOUTME: internal/leaf cell encodings cells are read from and written to.
package btree

import (
	"encoding/binary"

	"github.com/horizondb/horizon/pkg/pager"
)

const (
	pageTypeInternal byte = 0x01
	pageTypeLeaf     byte = 0x02

	headerSize  = 8
	cellPtrSize = 2
)

// MaxKeySize bounds a key so that one internal cell plus its pointer, or
// one leaf cell with a value of at most 64 bytes plus its pointer, fits on
// an otherwise-empty page. Value sizes are not bounded. Oversized keys are
// rejected outright rather than overflow-chained.
const MaxKeySize = pager.PageSize - headerSize - cellPtrSize - 4 /*child or value_size*/ - 2 /*key_size*/ - 64 /*margin*/

func pageType(page []byte) byte { return page[0] }

func cellCount(page []byte) uint16 { return binary.BigEndian.Uint16(page[2:4]) }

func setCellCount(page []byte, n uint16) { binary.BigEndian.PutUint16(page[2:4], n) }

// trailer is the rightmost child (internal nodes) or next_leaf (leaf
// nodes), 0 meaning none.
func trailer(page []byte) uint32 { return binary.BigEndian.Uint32(page[4:8]) }

func setTrailer(page []byte, v uint32) { binary.BigEndian.PutUint32(page[4:8], v) }

func cellPtrOffset(i uint16) int { return headerSize + int(i)*cellPtrSize }

func cellPtr(page []byte, i uint16) uint16 {
	return binary.BigEndian.Uint16(page[cellPtrOffset(i):])
}

func setCellPtr(page []byte, i uint16, offset uint16) {
	binary.BigEndian.PutUint16(page[cellPtrOffset(i):], offset)
}

func cellAreaStart(count uint16) int { return headerSize + int(count)*cellPtrSize }

// contentStart returns the lowest cell-body offset currently in use, i.e.
// where free space ends and cell bodies begin. pager.PageSize if empty.
func contentStart(page []byte) int {
	n := cellCount(page)
	if n == 0 {
		return pager.PageSize
	}
	min := uint16(pager.PageSize)
	for i := uint16(0); i < n; i++ {
		if p := cellPtr(page, i); p < min {
			min = p
		}
	}
	return int(min)
}

// readInternalCell parses [child: u32][key_size: u16][key] at off.
func readInternalCell(page []byte, off int) (uint32, []byte) {
	child := binary.BigEndian.Uint32(page[off : off+4])
	keySize := int(binary.BigEndian.Uint16(page[off+4 : off+6]))
	key := make([]byte, keySize)
	copy(key, page[off+6:off+6+keySize])
	return child, key
}

func internalCellSize(key []byte) int { return 4 + 2 + len(key) }

func buildInternalCell(child uint32, key []byte) []byte {
	buf := make([]byte, internalCellSize(key))
	binary.BigEndian.PutUint32(buf[0:4], child)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(key)))
	copy(buf[6:], key)
	return buf
}

// readLeafCell parses [key_size: u16][key][value_size: u32][value] at off.
func readLeafCell(page []byte, off int) ([]byte, []byte) {
	keySize := int(binary.BigEndian.Uint16(page[off : off+2]))
	key := make([]byte, keySize)
	copy(key, page[off+2:off+2+keySize])

	valOff := off + 2 + keySize
	valSize := int(binary.BigEndian.Uint32(page[valOff : valOff+4]))
	value := make([]byte, valSize)
	copy(value, page[valOff+4:valOff+4+valSize])
	return key, value
}

func leafCellSize(key, value []byte) int { return 2 + len(key) + 4 + len(value) }

func buildLeafCell(key, value []byte) []byte {
	buf := make([]byte, leafCellSize(key, value))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(key)))
	copy(buf[2:], key)
	valOff := 2 + len(key)
	binary.BigEndian.PutUint32(buf[valOff:valOff+4], uint32(len(value)))
	copy(buf[valOff+4:], value)
	return buf
}

func initLeafPage(page []byte) {
	for i := range page {
		page[i] = 0
	}
	page[0] = pageTypeLeaf
}

func initInternalPage(page []byte) {
	for i := range page {
		page[i] = 0
	}
	page[0] = pageTypeInternal
}

// hasSpace reports whether a cell of cellBytes, plus one more cell
// pointer, fits in the page's current free gap.
func hasSpace(page []byte, cellBytes int) bool {
	n := cellCount(page)
	ptrsEnd := cellAreaStart(n + 1)
	content := contentStart(page)
	return content >= ptrsEnd+cellBytes
}

// writeCell appends cellData at the bottom of the free gap and inserts its
// pointer at position slot, shifting later pointers up by one.
func writeCell(page []byte, slot uint16, cellData []byte) {
	bodyOffset := contentStart(page) - len(cellData)
	copy(page[bodyOffset:bodyOffset+len(cellData)], cellData)

	n := cellCount(page)
	for i := n; i > slot; i-- {
		setCellPtr(page, i, cellPtr(page, i-1))
	}
	setCellPtr(page, slot, uint16(bodyOffset))
	setCellCount(page, n+1)
}
