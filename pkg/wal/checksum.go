package wal

import "encoding/binary"

// computeChecksum folds data into two 32-bit accumulators seeded by the
// salts: s1 += chunk; s2 += s1, over 4-byte big-endian chunks. This is a
// Fletcher-style rolling sum, not a CRC — reproduced bit-for-bit from the
// frame format's reference layout so WAL files verify across
// implementations.
func (w *WAL) computeChecksum(data []byte) (uint32, uint32) {
	s1, s2 := w.salt[0], w.salt[1]
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		var val uint32
		if end <= len(data) {
			val = binary.BigEndian.Uint32(data[i:end])
		} else {
			var tail [4]byte
			copy(tail[:], data[i:])
			val = binary.BigEndian.Uint32(tail[:])
		}
		s1 += val
		s2 += s1
	}
	return s1, s2
}
