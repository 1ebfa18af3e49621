package syncdb

import (
	"sync"

	"github.com/syncdb-io/syncdb/internal/page"
	"github.com/syncdb-io/syncdb/internal/pagefile"
)

// Db is a single open database file. It is safe for concurrent use by
// multiple goroutines: any number of read transactions may run
// concurrently with each other and with a single in-flight write
// transaction, but write transactions themselves are serialized through
// writerMu, matching the single-writer/multi-reader model of the on-disk
// format. Installing a commit, and creating the root page in the first
// write transaction on a fresh database, both wait until every open read
// transaction has been closed.
type Db struct {
	pf *pagefile.PagedFile

	headerMu sync.RWMutex
	header   pagefile.Header

	writerMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

// Open opens path, creating it with a fresh empty database if it does not
// exist. The returned Db must eventually be closed with Close.
func Open(path string) (*Db, error) {
	pf, hdr, err := pagefile.Open(path)
	if err != nil {
		return nil, translatePagefileError(err)
	}
	return &Db{pf: pf, header: hdr}, nil
}

// BeginRead starts a read transaction. The returned ReadTxn observes a
// consistent snapshot of the database as of this call: a commit waits
// until every open ReadTxn, including one held by the committing
// goroutine, has been closed, so no commit lands while it is open. It must
// be closed with Close when done.
func (db *Db) BeginRead() (*ReadTxn, error) {
	db.closeMu.Lock()
	closed := db.closed
	db.closeMu.Unlock()
	if closed {
		return nil, NewError(ErrClosed)
	}

	db.pf.RLock()

	db.headerMu.RLock()
	hdr := db.header
	db.headerMu.RUnlock()

	return &ReadTxn{db: db, header: hdr}, nil
}

// BeginWrite starts a write transaction. Only one write transaction may be
// in flight at a time; BeginWrite blocks until any prior write transaction
// has committed or aborted.
func (db *Db) BeginWrite() (*WriteTxn, error) {
	db.closeMu.Lock()
	closed := db.closed
	db.closeMu.Unlock()
	if closed {
		return nil, NewError(ErrClosed)
	}

	db.writerMu.Lock()

	db.headerMu.RLock()
	hdr := db.header
	db.headerMu.RUnlock()

	if updated, ok, err := db.pf.EnsureRootPage(hdr); err != nil {
		db.writerMu.Unlock()
		return nil, translatePagefileError(err)
	} else if ok {
		hdr = updated
		db.headerMu.Lock()
		db.header = hdr
		db.headerMu.Unlock()
	}

	return &WriteTxn{
		db:       db,
		header:   hdr,
		dirty:    make(map[uint64][]byte),
		released: false,
	}, nil
}

// Commit installs dirty (as produced by a WriteTxn's PrepareCommit) as the
// new durable state and releases the writer lock. Most callers should use
// WriteTxn.Commit instead; this lower-level entry point exists for callers
// that staged a commit's inputs via PrepareCommit and are driving the
// install themselves.
func (db *Db) Commit(dirty map[uint64][]byte, highestPageID, rootPageID uint64) error {
	defer db.writerMu.Unlock()

	db.headerMu.RLock()
	hdr := db.header
	db.headerMu.RUnlock()

	hdr.HighestPageID = highestPageID
	hdr.RootPageID = rootPageID
	hdr.TxID++

	if err := db.pf.CommitDirtyPages(dirty, hdr); err != nil {
		return translatePagefileError(err)
	}

	db.headerMu.Lock()
	db.header = hdr
	db.headerMu.Unlock()

	return nil
}

// abort releases the writer lock without installing any change.
func (db *Db) abort() {
	db.writerMu.Unlock()
}

// Close closes the database file. It must not be called while any
// transaction is open.
func (db *Db) Close() error {
	db.closeMu.Lock()
	defer db.closeMu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.pf.Close(); err != nil {
		return translatePagefileError(err)
	}
	return nil
}

func translatePagefileError(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *pagefile.MagicError:
		return WrapError(ErrInvalidMagic, e)
	case *pagefile.FormatError:
		return WrapError(ErrFileTooSmall, e)
	case *pagefile.OutOfBoundsError:
		return WrapError(ErrPageOutOfBounds, e)
	default:
		return WrapError(ErrIO, err)
	}
}

// pageType reports the decoded page type of a full-size page buffer,
// returning ErrCorruptPageType if the type byte is unrecognized. A type
// that decodes but is wrong for the caller's purpose (a meta or free-list
// page in the middle of a descent) is the caller's problem to reject.
func pageType(buf []byte) (page.Type, error) {
	h, ok := page.DecodeHeader(buf)
	if !ok {
		return 0, NewError(ErrPageFormat)
	}
	switch h.PageType {
	case page.TypeMeta, page.TypeFreeList, page.TypeLeaf, page.TypeBranch:
		return h.PageType, nil
	default:
		return 0, NewError(ErrCorruptPageType)
	}
}
