package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/horizondb/horizon/pkg/herrors"
)

// Row is an ordered sequence of Values.
type Row []Value

// Serialize writes the row as [column_count: u16][value_0][value_1]...
func (r Row) Serialize() []byte {
	if len(r) > math.MaxUint16 {
		panic("types: row has more columns than a u16 can address")
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(r)))
	for _, v := range r {
		buf = append(buf, v.Serialize()...)
	}
	return buf
}

// DeserializeRow reads a row and reshapes it to exactly expectedCols: extra
// trailing columns (post-drop-column rows) are truncated, missing columns
// (pre-add-column rows) are NULL-padded.
func DeserializeRow(buf []byte, expectedCols int) (Row, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: truncated row header", herrors.ErrDeserialization)
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	off := 2
	values := make(Row, 0, n)
	for i := 0; i < n; i++ {
		v, used, err := DeserializeValue(buf[off:])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		off += used
	}

	if len(values) > expectedCols {
		values = values[:expectedCols]
	}
	for len(values) < expectedCols {
		values = append(values, NullValue())
	}
	return values, nil
}
