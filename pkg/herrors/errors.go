// Package herrors defines the sentinel error taxonomy shared by every layer
// of the storage core. Callers use errors.Is against these sentinels; no
// layer is permitted to swallow and convert an error into a success.
package herrors

import "errors"

var (
	// ErrIo wraps any failure reported by the filesystem.
	ErrIo = errors.New("horizon: io error")

	// ErrCorruptDatabase indicates header invariants were violated, a bad
	// magic, a truncated WAL frame, or a cell pointer out of range.
	ErrCorruptDatabase = errors.New("horizon: corrupt database")

	// ErrReadOnly indicates a mutation was attempted against a read-only
	// opening.
	ErrReadOnly = errors.New("horizon: read-only")

	// ErrPageNotFound indicates a page id outside the current page count.
	ErrPageNotFound = errors.New("horizon: page not found")

	// ErrBufferPoolFull indicates no unpinned frame is available to evict.
	ErrBufferPoolFull = errors.New("horizon: buffer pool full")

	// ErrTransaction indicates a user transaction state misuse (e.g.
	// committing a transaction that is not active).
	ErrTransaction = errors.New("horizon: transaction error")

	// ErrDeserialization indicates a malformed value or row byte stream.
	ErrDeserialization = errors.New("horizon: deserialization error")

	// ErrNotImplemented marks an optional feature surfaced to callers but
	// not implemented by this core.
	ErrNotImplemented = errors.New("horizon: not implemented")

	// ErrKeyTooLarge indicates a B+Tree key exceeds MaxKeySize and cannot
	// be safely carried as a split separator.
	ErrKeyTooLarge = errors.New("horizon: key too large")
)
