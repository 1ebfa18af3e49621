// Package pagefile owns the backing file and its memory map: opening and
// validating the header, bounds-checked page reads, growing the file and
// re-mapping when a commit needs more room, and the atomic copy-then-flush
// that installs a new write epoch.
package pagefile

import (
	"os"
	"sync"

	"github.com/syncdb-io/syncdb/internal/mmap"
	"github.com/syncdb-io/syncdb/internal/page"
)

// PagedFile owns a file and its memory map. The zero value is not usable;
// construct with Open.
//
// mapMu guards the *mmap.Map field itself: readers take RLock for the
// duration of a read transaction (so a concurrent commit's remap cannot
// invalidate the slice they are holding), and a commit takes Lock only for
// the brief window where it may need to grow and remap the file and where
// it copies dirty pages and the header into the map.
type PagedFile struct {
	file  *os.File
	mapMu sync.RWMutex
	m     *mmap.Map
}

// Open opens path for reading and writing, creating it if absent. A
// brand-new file is truncated to 2*page.Size and given a fresh header (see
// NewHeader); the root leaf at page 2 is not created here — that is
// EnsureRootPage's job, called lazily by the first write transaction. The
// returned Header is read back from the mapped file, so callers always see
// what is actually on disk.
func Open(path string) (*PagedFile, Header, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, Header{}, wrapIO(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Header{}, wrapIO(err)
	}

	if info.Size() < int64(2*page.Size) {
		if err := f.Truncate(int64(2 * page.Size)); err != nil {
			f.Close()
			return nil, Header{}, wrapIO(err)
		}
		hdr := NewHeader()
		buf := make([]byte, HeaderSize)
		EncodeHeader(buf, hdr)
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, Header{}, wrapIO(err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, Header{}, wrapIO(err)
		}
	}

	info, err = f.Stat()
	if err != nil {
		f.Close()
		return nil, Header{}, wrapIO(err)
	}

	m, err := mmap.New(int(f.Fd()), int(info.Size()), true)
	if err != nil {
		f.Close()
		return nil, Header{}, wrapIO(err)
	}

	pf := &PagedFile{file: f, m: m}

	hdr, ok := DecodeHeader(m.Data())
	if !ok {
		pf.Close()
		return nil, Header{}, &FormatError{Reason: "file too small for header"}
	}
	if hdr.Magic != Magic {
		pf.Close()
		return nil, Header{}, &MagicError{Found: hdr.Magic, Expected: Magic}
	}

	return pf, hdr, nil
}

// FormatError reports a header that is too small to decode.
type FormatError struct{ Reason string }

func (e *FormatError) Error() string { return "pagefile: " + e.Reason }

// MagicError reports a header whose magic number does not match.
type MagicError struct{ Found, Expected uint32 }

func (e *MagicError) Error() string {
	return "pagefile: invalid magic number"
}

// OutOfBoundsError reports a page id outside the current mapping.
type OutOfBoundsError struct {
	PageID  uint64
	MapSize int
}

func (e *OutOfBoundsError) Error() string {
	return "pagefile: page out of bounds"
}

func wrapIO(err error) error { return &ioError{err} }

type ioError struct{ err error }

func (e *ioError) Error() string { return "pagefile: io: " + e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

// RLock acquires the mapping for shared (read) access. The caller must call
// RUnlock when done; between the two calls, Data/ReadPage return a stable
// slice that is unaffected by a concurrent commit's remap, because a commit
// cannot take the exclusive lock until this RLock is released.
func (pf *PagedFile) RLock() { pf.mapMu.RLock() }

// RUnlock releases a shared lock acquired by RLock.
func (pf *PagedFile) RUnlock() { pf.mapMu.RUnlock() }

// Data returns the currently mapped bytes. The caller must hold RLock or
// Lock.
func (pf *PagedFile) Data() []byte { return pf.m.Data() }

// ReadPage returns a bounds-checked slice of page id's bytes within the
// current mapping. The caller must hold RLock or Lock.
func (pf *PagedFile) ReadPage(id uint64) ([]byte, error) {
	data := pf.m.Data()
	start := id * page.Size
	end := start + page.Size
	if end > uint64(len(data)) {
		return nil, &OutOfBoundsError{PageID: id, MapSize: len(data)}
	}
	return data[start:end], nil
}

// EnsureRootPage grows the file to 3*page.Size (if it is not already that
// large), writes a zeroed leaf header at page 2, sets root_page_id and
// highest_page_id to 2 in header, persists header, and flushes. It is a
// no-op — returning ok=false, header unchanged, without taking any lock —
// when the header already points at a root.
//
// When the root still has to be created, EnsureRootPage takes the
// exclusive lock itself, so the caller must not hold RLock or Lock.
func (pf *PagedFile) EnsureRootPage(header Header) (updated Header, ok bool, err error) {
	if header.RootPageID != 0 {
		return header, false, nil
	}

	pf.mapMu.Lock()
	defer pf.mapMu.Unlock()

	required := int64((RootLeafPageID + 1) * page.Size)
	if int64(len(pf.m.Data())) < required {
		if err := pf.file.Truncate(required); err != nil {
			return header, false, wrapIO(err)
		}
		if err := pf.m.Remap(required); err != nil {
			return header, false, wrapIO(err)
		}
	}

	leafOffset := RootLeafPageID * page.Size
	data := pf.m.Data()
	page.InitLeaf(data[leafOffset:leafOffset+page.Size], RootLeafPageID)

	header.RootPageID = RootLeafPageID
	header.HighestPageID = RootLeafPageID
	EncodeHeader(data[:HeaderSize], header)

	if err := pf.m.Sync(); err != nil {
		return header, false, wrapIO(err)
	}

	return header, true, nil
}

// CommitDirtyPages installs a new write epoch: it grows and remaps the
// file if newHighest requires pages beyond the current mapping, copies
// every dirty page into the map, writes header into the first HeaderSize
// bytes of the map, and flushes. All of this happens under the exclusive
// lock, so no reader can observe a partially-written epoch.
func (pf *PagedFile) CommitDirtyPages(dirty map[uint64][]byte, header Header) error {
	pf.mapMu.Lock()
	defer pf.mapMu.Unlock()

	required := int64(header.HighestPageID+1) * int64(page.Size)
	if required > int64(len(pf.m.Data())) {
		if err := pf.file.Truncate(required); err != nil {
			return wrapIO(err)
		}
		if err := pf.m.Remap(required); err != nil {
			return wrapIO(err)
		}
	}

	data := pf.m.Data()
	for id, buf := range dirty {
		off := id * page.Size
		copy(data[off:off+page.Size], buf)
	}

	EncodeHeader(data[:HeaderSize], header)

	return wrapIOIfErr(pf.m.Sync())
}

func wrapIOIfErr(err error) error {
	if err == nil {
		return nil
	}
	return wrapIO(err)
}

// Close releases the mapping and closes the backing file.
func (pf *PagedFile) Close() error {
	pf.mapMu.Lock()
	defer pf.mapMu.Unlock()

	var first error
	if err := pf.m.Close(); err != nil && first == nil {
		first = err
	}
	if err := pf.file.Close(); err != nil && first == nil {
		first = wrapIO(err)
	}
	return first
}
