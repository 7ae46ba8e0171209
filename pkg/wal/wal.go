// Package wal implements the write-ahead log: an append-only sequence of
// fixed-size page frames that durably record mutations before they are
// checkpointed into the main database file.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
	"github.com/horizondb/horizon/pkg/pager"
)

const (
	// HeaderSize is the fixed WAL file header: magic, page size,
	// checkpoint sequence, and two salts.
	HeaderSize = 32
	// FrameHeaderSize is the fixed per-frame header preceding page data.
	FrameHeaderSize = 24
	// FrameSize is one full frame: header plus one page of data.
	FrameSize = FrameHeaderSize + pager.PageSize
)

// Metrics is the subset of observability hooks the WAL reports through;
// satisfied by internal/metrics.Metrics. Nil is valid and records nothing.
type Metrics interface {
	RecordWALFrameWrite()
	RecordWALCheckpoint()
}

// Magic identifies a valid Horizon WAL file.
var Magic = [16]byte{'H', 'o', 'r', 'i', 'z', 'o', 'n', 'W', 'A', 'L', ' ', 'v', '0', '1', 0, 0}

// Fixed salts seeding the rolling checksum. They are deliberately not
// randomized per file: WAL files stay byte-comparable across conformant
// implementations and across test runs.
const (
	Salt1 uint32 = 0x12345678
	Salt2 uint32 = 0x9ABCDEF0
)

// WAL is the write-ahead log for one database file.
type WAL struct {
	file          *os.File
	frameCount    uint32
	checkpointSeq uint32
	pageIndex     map[pager.PageId]uint32 // page_id -> most recent frame index
	salt          [2]uint32
	log           zerolog.Logger
	metrics       Metrics
}

// SetMetrics attaches an observability sink. Safe to call at most once,
// before the WAL is shared across goroutines.
func (w *WAL) SetMetrics(m Metrics) { w.metrics = m }

// Open opens an existing WAL file or creates a fresh one. On an existing
// file, every frame header is scanned once to rebuild the page_id -> frame
// index map; a frame whose checksum does not match its page data, or a
// file too short to hold a full frame, ends the scan there. That frame
// and everything after it is treated as absent, as are frames after the
// last commit frame (one with a non-zero commit marker).
func Open(path string, log zerolog.Logger) (*WAL, error) {
	sub := log.With().Str("component", "wal").Logger()

	info, statErr := os.Stat(path)
	exists := statErr == nil

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", herrors.ErrIo, path, err)
	}

	if exists && info.Size() >= HeaderSize {
		return openExisting(file, info.Size(), sub)
	}
	return createFresh(file, sub)
}

func createFresh(file *os.File, log zerolog.Logger) (*WAL, error) {
	w := &WAL{
		file:      file,
		pageIndex: make(map[pager.PageId]uint32),
		salt:      [2]uint32{Salt1, Salt2},
		log:       log,
	}
	if err := w.writeHeader(); err != nil {
		return nil, err
	}
	if err := w.file.Sync(); err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return w, nil
}

func openExisting(file *os.File, fileLen int64, log zerolog.Logger) (*WAL, error) {
	var header [HeaderSize]byte
	if _, err := file.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if [16]byte(header[0:16]) != Magic {
		return nil, fmt.Errorf("%w: invalid WAL magic bytes", herrors.ErrCorruptDatabase)
	}
	if pageSize := binary.BigEndian.Uint32(header[16:20]); pageSize != pager.PageSize {
		return nil, fmt.Errorf("%w: WAL page size mismatch: expected %d, got %d", herrors.ErrCorruptDatabase, pager.PageSize, pageSize)
	}

	w := &WAL{
		file:          file,
		checkpointSeq: binary.BigEndian.Uint32(header[20:24]),
		pageIndex:     make(map[pager.PageId]uint32),
		salt: [2]uint32{
			binary.BigEndian.Uint32(header[24:28]),
			binary.BigEndian.Uint32(header[28:32]),
		},
		log: log,
	}

	dataLen := fileLen - HeaderSize
	maxFrames := uint32(dataLen / FrameSize)

	pending := make(map[pager.PageId]uint32)
	for i := uint32(0); i < maxFrames; i++ {
		offset := int64(HeaderSize) + int64(i)*FrameSize
		var frameHeader [FrameHeaderSize]byte
		if _, err := file.ReadAt(frameHeader[:], offset); err != nil {
			break
		}
		var data [pager.PageSize]byte
		if _, err := file.ReadAt(data[:], offset+FrameHeaderSize); err != nil {
			break
		}
		wantSum1 := binary.BigEndian.Uint32(frameHeader[16:20])
		wantSum2 := binary.BigEndian.Uint32(frameHeader[20:24])
		gotSum1, gotSum2 := w.computeChecksum(data[:])
		if gotSum1 != wantSum1 || gotSum2 != wantSum2 {
			log.Warn().Uint32("frame", i).Msg("wal: checksum mismatch, truncating recovery scan here")
			break
		}

		pageID := pager.PageId(binary.BigEndian.Uint32(frameHeader[0:4]))
		pending[pageID] = i
		if binary.BigEndian.Uint32(frameHeader[4:8]) != 0 {
			for id, idx := range pending {
				w.pageIndex[id] = idx
			}
			pending = make(map[pager.PageId]uint32)
			w.frameCount = i + 1
		}
	}

	return w, nil
}

// WriteFrame appends a new frame recording data for pageID. is_commit
// marks the frame as the last frame of a transaction, recording dbSize
// (the post-commit page count) in the frame header and issuing an
// OS-level data sync before returning.
func (w *WAL) WriteFrame(pageID pager.PageId, data []byte, txnID uint64, isCommit bool, dbSize uint32) error {
	if len(data) != pager.PageSize {
		return fmt.Errorf("%w: frame data must be %d bytes, got %d", herrors.ErrCorruptDatabase, pager.PageSize, len(data))
	}

	sum1, sum2 := w.computeChecksum(data)

	offset := int64(HeaderSize) + int64(w.frameCount)*FrameSize

	var frameHeader [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(frameHeader[0:4], uint32(pageID))
	commitSize := uint32(0)
	if isCommit {
		commitSize = dbSize
	}
	binary.BigEndian.PutUint32(frameHeader[4:8], commitSize)
	binary.BigEndian.PutUint64(frameHeader[8:16], txnID)
	binary.BigEndian.PutUint32(frameHeader[16:20], sum1)
	binary.BigEndian.PutUint32(frameHeader[20:24], sum2)

	if _, err := w.file.WriteAt(frameHeader[:], offset); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if _, err := w.file.WriteAt(data, offset+FrameHeaderSize); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}

	w.pageIndex[pageID] = w.frameCount
	w.frameCount++
	if w.metrics != nil {
		w.metrics.RecordWALFrameWrite()
	}

	if isCommit {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("%w: %v", herrors.ErrIo, err)
		}
	}
	return nil
}

// ReadPage returns the most recent frame's payload for pageID, and
// whether pageID is present in the WAL at all.
func (w *WAL) ReadPage(pageID pager.PageId) ([pager.PageSize]byte, bool, error) {
	var buf [pager.PageSize]byte
	frameIdx, ok := w.pageIndex[pageID]
	if !ok {
		return buf, false, nil
	}
	offset := int64(HeaderSize) + int64(frameIdx)*FrameSize + FrameHeaderSize
	if _, err := w.file.ReadAt(buf[:], offset); err != nil {
		return buf, false, fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return buf, true, nil
}

// ContainsPage reports whether pageID has a frame in the WAL.
func (w *WAL) ContainsPage(pageID pager.PageId) bool {
	_, ok := w.pageIndex[pageID]
	return ok
}

// FrameCount returns the number of frames currently in the WAL.
func (w *WAL) FrameCount() uint32 { return w.frameCount }

// Checkpoint copies every frame, in WAL order, into pager (allocating or
// extending as necessary), syncs the pager, then truncates the WAL back
// to its header and bumps the checkpoint sequence. A no-op on an empty
// WAL.
func (w *WAL) Checkpoint(p *pager.Pager) error {
	if w.frameCount == 0 {
		return nil
	}

	for i := uint32(0); i < w.frameCount; i++ {
		offset := int64(HeaderSize) + int64(i)*FrameSize
		var frameHeader [FrameHeaderSize]byte
		if _, err := w.file.ReadAt(frameHeader[:], offset); err != nil {
			return fmt.Errorf("%w: %v", herrors.ErrIo, err)
		}
		pageID := pager.PageId(binary.BigEndian.Uint32(frameHeader[0:4]))

		var data [pager.PageSize]byte
		if _, err := w.file.ReadAt(data[:], offset+FrameHeaderSize); err != nil {
			return fmt.Errorf("%w: %v", herrors.ErrIo, err)
		}
		if err := p.WritePage(pageID, data[:]); err != nil {
			return err
		}
	}

	if err := p.Sync(); err != nil {
		return err
	}

	w.frameCount = 0
	w.checkpointSeq++
	w.pageIndex = make(map[pager.PageId]uint32)

	if err := w.writeHeader(); err != nil {
		return err
	}
	if err := w.file.Truncate(HeaderSize); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}

	if w.metrics != nil {
		w.metrics.RecordWALCheckpoint()
	}
	w.log.Info().Uint32("checkpoint_seq", w.checkpointSeq).Msg("wal: checkpoint complete")
	return nil
}

// Reset discards all frames without checkpointing, for irrecoverable
// rollback of a session.
func (w *WAL) Reset() error {
	w.frameCount = 0
	w.pageIndex = make(map[pager.PageId]uint32)
	if err := w.file.Truncate(HeaderSize); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return w.file.Sync()
}

func (w *WAL) Close() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}

func (w *WAL) writeHeader() error {
	var header [HeaderSize]byte
	copy(header[0:16], Magic[:])
	binary.BigEndian.PutUint32(header[16:20], pager.PageSize)
	binary.BigEndian.PutUint32(header[20:24], w.checkpointSeq)
	binary.BigEndian.PutUint32(header[24:28], w.salt[0])
	binary.BigEndian.PutUint32(header[28:32], w.salt[1])
	if _, err := w.file.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}
