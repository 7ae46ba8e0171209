// ABOUTME: Page-level file I/O: the file header, free list, and page
// ABOUTME: allocation underneath the WAL and buffer pool.
package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/horizondb/horizon/pkg/herrors"
)

// PageSize is the fixed size of every page in the database file.
const PageSize = 4096

// HeaderSize is the size of the file header occupying the start of page 0.
const HeaderSize = 100

// Magic identifies a valid Horizon database file. Changing page size
// requires a new magic.
var Magic = [16]byte{'H', 'o', 'r', 'i', 'z', 'o', 'n', 'D', 'B', ' ', 'v', '0', '0', '1', 0, 0}

// PageId is a zero-based page number. Page 0 is always the header page.
type PageId uint32

// Metrics is the subset of observability hooks the pager reports through;
// satisfied by internal/metrics.Metrics. Nil is valid and records nothing.
type Metrics interface {
	SetPageCount(count uint32)
}

// Pager translates PageIds to byte ranges of a single file, maintains the
// header and free list, and allocates/frees pages. It performs no caching;
// that is the buffer pool's job.
type Pager struct {
	file          *os.File
	pageCount     uint32
	freeListHead  PageId
	nextTxnID     uint64
	schemaRoot    PageId
	schemaVersion uint32
	readOnly      bool
	log           zerolog.Logger
	metrics       Metrics
}

// SetMetrics attaches an observability sink. Safe to call at most once,
// before the Pager is shared across goroutines.
func (p *Pager) SetMetrics(m Metrics) {
	p.metrics = m
	p.reportPageCount()
}

func (p *Pager) reportPageCount() {
	if p.metrics != nil {
		p.metrics.SetPageCount(p.pageCount)
	}
}

// Open opens an existing database file, or creates one if it does not
// exist and readOnly is false. The directory is fsynced after creating a
// new file so the file's existence itself survives a crash.
func Open(path string, readOnly bool, log zerolog.Logger) (*Pager, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if readOnly && errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: cannot create a new database in read-only mode", herrors.ErrReadOnly)
		}
		return nil, fmt.Errorf("%w: open %s: %v", herrors.ErrIo, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", herrors.ErrIo, path, err)
	}

	p := &Pager{file: file, readOnly: readOnly, log: log.With().Str("component", "pager").Logger()}

	if info.Size() == 0 {
		if readOnly {
			return nil, fmt.Errorf("%w: cannot create a new database in read-only mode", herrors.ErrReadOnly)
		}
		p.pageCount = 1
		p.nextTxnID = 1

		blank := make([]byte, PageSize)
		if _, err := p.file.WriteAt(blank, 0); err != nil {
			return nil, fmt.Errorf("%w: %v", herrors.ErrIo, err)
		}
		if err := p.flushHeader(); err != nil {
			return nil, err
		}
		if err := p.file.Sync(); err != nil {
			return nil, fmt.Errorf("%w: %v", herrors.ErrIo, err)
		}
		if err := syncDir(path); err != nil {
			return nil, err
		}
		p.log.Info().Str("path", path).Msg("created new database file")
		return p, nil
	}

	if info.Size() < PageSize {
		return nil, fmt.Errorf("%w: file is shorter than a single page", herrors.ErrCorruptDatabase)
	}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	p.reportPageCount()
	p.log.Info().Str("path", path).Uint32("page_count", p.pageCount).Msg("opened database file")
	return p, nil
}

// ReadPage returns a copy of the page identified by id.
func (p *Pager) ReadPage(id PageId) ([PageSize]byte, error) {
	var buf [PageSize]byte
	if uint32(id) >= p.pageCount {
		return buf, fmt.Errorf("%w: page %d", herrors.ErrPageNotFound, id)
	}
	if _, err := p.file.ReadAt(buf[:], int64(id)*PageSize); err != nil {
		return buf, fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return buf, nil
}

// WritePage overwrites the page identified by id.
func (p *Pager) WritePage(id PageId, data []byte) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}
	if uint32(id) >= p.pageCount {
		return fmt.Errorf("%w: page %d", herrors.ErrPageNotFound, id)
	}
	if len(data) != PageSize {
		return fmt.Errorf("%w: page data must be %d bytes, got %d", herrors.ErrCorruptDatabase, PageSize, len(data))
	}
	if _, err := p.file.WriteAt(data, int64(id)*PageSize); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}

// AllocatePage pops the free list head if non-empty, else extends the
// file by one zeroed page. The header is persisted before returning.
func (p *Pager) AllocatePage() (PageId, error) {
	if err := p.ensureWritable(); err != nil {
		return 0, err
	}

	if p.freeListHead != 0 {
		id := p.freeListHead
		page, err := p.ReadPage(id)
		if err != nil {
			return 0, err
		}
		next := PageId(binary.BigEndian.Uint32(page[0:4]))
		p.freeListHead = next

		blank := make([]byte, PageSize)
		if err := p.WritePage(id, blank); err != nil {
			return 0, err
		}
		if err := p.flushHeader(); err != nil {
			return 0, err
		}
		return id, nil
	}

	id := PageId(p.pageCount)
	p.pageCount++
	blank := make([]byte, PageSize)
	if _, err := p.file.WriteAt(blank, int64(id)*PageSize); err != nil {
		return 0, fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if err := p.flushHeader(); err != nil {
		return 0, err
	}
	p.reportPageCount()
	return id, nil
}

// FreePage threads id onto the head of the free list.
func (p *Pager) FreePage(id PageId) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: cannot free the header page (page 0)", herrors.ErrCorruptDatabase)
	}
	if uint32(id) >= p.pageCount {
		return fmt.Errorf("%w: page %d", herrors.ErrPageNotFound, id)
	}

	page := make([]byte, PageSize)
	binary.BigEndian.PutUint32(page[0:4], uint32(p.freeListHead))
	if err := p.WritePage(id, page); err != nil {
		return err
	}
	p.freeListHead = id
	return p.flushHeader()
}

// NextTransactionId returns the current counter and increments it in
// memory; callers persist it (via the header) when appropriate.
func (p *Pager) NextTransactionId() uint64 {
	id := p.nextTxnID
	p.nextTxnID++
	return id
}

// Sync requests that the operating system flush all previously written
// bytes to durable storage.
func (p *Pager) Sync() error {
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}

func (p *Pager) SchemaRoot() PageId { return p.schemaRoot }

// SetSchemaRoot sets the schema tree root, persisting it to the header.
func (p *Pager) SetSchemaRoot(root PageId) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}
	p.schemaRoot = root
	return p.flushHeader()
}

// PageCount returns the total number of pages currently in the file.
func (p *Pager) PageCount() uint32 { return p.pageCount }

func (p *Pager) ReadOnly() bool { return p.readOnly }

func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}

func (p *Pager) ensureWritable() error {
	if p.readOnly {
		return fmt.Errorf("%w", herrors.ErrReadOnly)
	}
	return nil
}

// flushHeader stamps every header field at its documented offset,
// preserving bytes [100..4096) of page 0.
func (p *Pager) flushHeader() error {
	var header [HeaderSize]byte
	copy(header[0:16], Magic[:])
	binary.BigEndian.PutUint32(header[16:20], PageSize)
	binary.BigEndian.PutUint32(header[20:24], p.pageCount)
	binary.BigEndian.PutUint32(header[24:28], uint32(p.freeListHead))
	binary.BigEndian.PutUint32(header[28:32], p.schemaVersion)
	binary.BigEndian.PutUint64(header[32:40], p.nextTxnID)
	binary.BigEndian.PutUint32(header[40:44], uint32(p.schemaRoot))
	// header[44:100] reserved, left zero.

	if _, err := p.file.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	return nil
}

func (p *Pager) readHeader() error {
	var header [HeaderSize]byte
	if _, err := p.file.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrIo, err)
	}
	if [16]byte(header[0:16]) != Magic {
		return fmt.Errorf("%w: bad magic", herrors.ErrCorruptDatabase)
	}
	if pageSize := binary.BigEndian.Uint32(header[16:20]); pageSize != PageSize {
		return fmt.Errorf("%w: page size %d does not match %d", herrors.ErrCorruptDatabase, pageSize, PageSize)
	}
	p.pageCount = binary.BigEndian.Uint32(header[20:24])
	p.freeListHead = PageId(binary.BigEndian.Uint32(header[24:28]))
	p.schemaVersion = binary.BigEndian.Uint32(header[28:32])
	p.nextTxnID = binary.BigEndian.Uint64(header[32:40])
	p.schemaRoot = PageId(binary.BigEndian.Uint32(header[40:44]))
	return nil
}

func syncDir(path string) error {
	dir := path
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			dir = dir[:i]
			break
		}
		if i == 0 {
			dir = "."
		}
	}
	if dir == "" {
		dir = "/"
	}
	f, err := os.Open(dir)
	if err != nil {
		// Best-effort: some platforms disallow opening a directory.
		return nil
	}
	defer f.Close()
	_ = f.Sync()
	return nil
}
