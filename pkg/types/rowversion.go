package types

import (
	"encoding/binary"
	"fmt"

	"github.com/horizondb/horizon/pkg/herrors"
)

// RowVersion is the MVCC envelope wrapped around a row's raw bytes: the
// transaction that created it, the transaction that deleted it (0 if still
// live), and the row payload.
type RowVersion struct {
	CreatedBy uint64
	DeletedBy uint64
	Data      []byte
}

// rowVersionHeaderSize is the fixed [created_by][deleted_by][data_len] prefix.
const rowVersionHeaderSize = 8 + 8 + 4

// Marshal writes [created_by: u64 BE][deleted_by: u64 BE][data_len: u32 BE][data].
func (rv RowVersion) Marshal() []byte {
	buf := make([]byte, rowVersionHeaderSize+len(rv.Data))
	binary.BigEndian.PutUint64(buf[0:8], rv.CreatedBy)
	binary.BigEndian.PutUint64(buf[8:16], rv.DeletedBy)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(rv.Data)))
	copy(buf[20:], rv.Data)
	return buf
}

// UnmarshalRowVersion is the inverse of Marshal.
func UnmarshalRowVersion(buf []byte) (RowVersion, error) {
	if len(buf) < rowVersionHeaderSize {
		return RowVersion{}, fmt.Errorf("%w: row version too short", herrors.ErrCorruptDatabase)
	}
	createdBy := binary.BigEndian.Uint64(buf[0:8])
	deletedBy := binary.BigEndian.Uint64(buf[8:16])
	n := binary.BigEndian.Uint32(buf[16:20])
	if len(buf[20:]) < int(n) {
		return RowVersion{}, fmt.Errorf("%w: row version data truncated", herrors.ErrCorruptDatabase)
	}
	data := make([]byte, n)
	copy(data, buf[20:20+n])
	return RowVersion{CreatedBy: createdBy, DeletedBy: deletedBy, Data: data}, nil
}

// IsLive reports whether the row version has not been marked deleted.
func (rv RowVersion) IsLive() bool { return rv.DeletedBy == 0 }
