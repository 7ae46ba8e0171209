// Package types implements the dynamically typed Value atom, the Row
// codec, and the MVCC RowVersion envelope. The B+Tree and pkg/engine store
// raw byte strings and do not use this package themselves.
package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/horizondb/horizon/pkg/herrors"
)

// Tag identifies a Value's variant on the wire. Values 0..=4 are fixed by
// the on-disk format and must never change.
type Tag byte

const (
	TagNull    Tag = 0
	TagInteger Tag = 1
	TagReal    Tag = 2
	TagText    Tag = 3
	TagBlob    Tag = 4
)

// Value is a dynamically typed atom: Null, Integer, Real, Text, or Blob.
// Exactly one of the typed fields is meaningful, selected by Tag.
type Value struct {
	Tag     Tag
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

func NullValue() Value           { return Value{Tag: TagNull} }
func IntegerValue(v int64) Value { return Value{Tag: TagInteger, Integer: v} }
func RealValue(v float64) Value  { return Value{Tag: TagReal, Real: v} }
func TextValue(v string) Value   { return Value{Tag: TagText, Text: v} }
func BlobValue(v []byte) Value   { return Value{Tag: TagBlob, Blob: v} }

// Serialize writes one tag byte followed by a fixed 8-byte payload for
// Integer/Real, or a 4-byte big-endian length plus raw bytes for Text/Blob.
func (v Value) Serialize() []byte {
	switch v.Tag {
	case TagNull:
		return []byte{byte(TagNull)}
	case TagInteger:
		buf := make([]byte, 9)
		buf[0] = byte(TagInteger)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.Integer))
		return buf
	case TagReal:
		buf := make([]byte, 9)
		buf[0] = byte(TagReal)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.Real))
		return buf
	case TagText:
		return serializeBytes(byte(TagText), []byte(v.Text))
	case TagBlob:
		return serializeBytes(byte(TagBlob), v.Blob)
	default:
		panic(fmt.Sprintf("types: unknown value tag %d", v.Tag))
	}
}

func serializeBytes(tag byte, data []byte) []byte {
	buf := make([]byte, 1+4+len(data))
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(data)))
	copy(buf[5:], data)
	return buf
}

// DeserializeValue reads one Value from the front of buf and returns it
// along with the number of bytes consumed.
func DeserializeValue(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, fmt.Errorf("%w: empty value buffer", herrors.ErrDeserialization)
	}
	tag := Tag(buf[0])
	switch tag {
	case TagNull:
		return NullValue(), 1, nil
	case TagInteger:
		if len(buf) < 9 {
			return Value{}, 0, fmt.Errorf("%w: truncated integer value", herrors.ErrDeserialization)
		}
		return IntegerValue(int64(binary.BigEndian.Uint64(buf[1:9]))), 9, nil
	case TagReal:
		if len(buf) < 9 {
			return Value{}, 0, fmt.Errorf("%w: truncated real value", herrors.ErrDeserialization)
		}
		return RealValue(math.Float64frombits(binary.BigEndian.Uint64(buf[1:9]))), 9, nil
	case TagText, TagBlob:
		if len(buf) < 5 {
			return Value{}, 0, fmt.Errorf("%w: truncated length-prefixed value", herrors.ErrDeserialization)
		}
		n := binary.BigEndian.Uint32(buf[1:5])
		end := 5 + int(n)
		if len(buf) < end {
			return Value{}, 0, fmt.Errorf("%w: truncated value payload", herrors.ErrDeserialization)
		}
		data := make([]byte, n)
		copy(data, buf[5:end])
		if tag == TagText {
			return TextValue(string(data)), end, nil
		}
		return BlobValue(data), end, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown value tag %d", herrors.ErrDeserialization, tag)
	}
}

// Equal reports whether two Values compare equal under the rules CompareValues
// uses: two NaN Reals are equal, and Integer/Real are compared numerically
// across variants.
func (v Value) Equal(other Value) bool {
	return CompareValues(v, other) == 0
}

// CompareValues implements the total order: Null < {Integer, Real, compared
// numerically across types} < Text (lexicographic) < Blob (lexicographic).
// Two NaN Reals compare equal; a NaN operand otherwise compares greater than
// every non-NaN value of the numeric group, preserving a genuine total order.
func CompareValues(a, b Value) int {
	ag, bg := numericGroup(a.Tag), numericGroup(b.Tag)
	switch {
	case a.Tag == TagNull && b.Tag == TagNull:
		return 0
	case a.Tag == TagNull:
		return -1
	case b.Tag == TagNull:
		return 1
	case ag && bg:
		return compareFloat64(numericValue(a), numericValue(b))
	case ag && b.Tag == TagText:
		return -1
	case ag && b.Tag == TagBlob:
		return -1
	case a.Tag == TagText && bg:
		return 1
	case a.Tag == TagText && b.Tag == TagText:
		return compareBytes([]byte(a.Text), []byte(b.Text))
	case a.Tag == TagText && b.Tag == TagBlob:
		return -1
	case a.Tag == TagBlob && bg:
		return 1
	case a.Tag == TagBlob && b.Tag == TagText:
		return 1
	case a.Tag == TagBlob && b.Tag == TagBlob:
		return compareBytes(a.Blob, b.Blob)
	default:
		panic(fmt.Sprintf("types: incomparable value tags %d/%d", a.Tag, b.Tag))
	}
}

func numericGroup(t Tag) bool { return t == TagInteger || t == TagReal }

func numericValue(v Value) float64 {
	if v.Tag == TagInteger {
		return float64(v.Integer)
	}
	return v.Real
}

// compareFloat64 gives a and b a total order: NaN compares equal to NaN and
// greater than every other value.
func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	}
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
