package syncdb

import (
	"github.com/syncdb-io/syncdb/internal/page"
	"github.com/syncdb-io/syncdb/internal/pagefile"
	"github.com/syncdb-io/syncdb/internal/search"
)

// ReadTxn is a snapshot of the database as of the moment it was started.
// It holds the mapping in shared mode until Close: a writer may begin and
// stage inserts meanwhile, but its commit waits until every open ReadTxn
// has been closed, so a ReadTxn never observes a change committed after it
// started.
//
// A ReadTxn is not safe for concurrent use by multiple goroutines.
type ReadTxn struct {
	db     *Db
	header pagefile.Header
	closed bool
}

// RootPageID returns the page id of this snapshot's root page.
func (r *ReadTxn) RootPageID() uint64 {
	return r.header.RootPageID
}

// Get looks up key and returns its value. ok is false when key is absent.
func (r *ReadTxn) Get(key []byte) ([]byte, bool, error) {
	if r.closed {
		return nil, false, NewError(ErrClosed)
	}
	if len(key) > page.MaxPayload {
		return nil, false, NewError(ErrKeyTooLarge)
	}

	id := r.header.RootPageID
	for {
		buf, err := r.db.pf.ReadPage(id)
		if err != nil {
			return nil, false, translatePagefileError(err)
		}

		h, ok := page.DecodeHeader(buf)
		if !ok {
			return nil, false, NewError(ErrPageFormat)
		}
		body := page.Body(buf)

		switch h.PageType {
		case page.TypeLeaf:
			idx, found, err := search.Leaf(body, int(h.Count), key)
			if err != nil {
				return nil, false, WrapError(ErrPageFormat, err)
			}
			if !found {
				return nil, false, nil
			}
			elem, ok := page.DecodeLeafElement(page.LeafElementAt(body, idx))
			if !ok {
				return nil, false, NewError(ErrPageFormat)
			}
			value := make([]byte, elem.VSize)
			copy(value, body[elem.VPtr:int(elem.VPtr)+int(elem.VSize)])
			return value, true, nil

		case page.TypeBranch:
			if h.Count == 0 {
				return nil, false, NewError(ErrEmptyBranchPage)
			}
			pos, found, err := search.Branch(body, int(h.Count), key)
			if err != nil {
				return nil, false, WrapError(ErrPageFormat, err)
			}
			childIdx := search.ChildIndex(pos, found)
			elem, ok := page.DecodeBranchElement(page.BranchElementAt(body, childIdx))
			if !ok {
				return nil, false, NewError(ErrPageFormat)
			}
			id = elem.PageID

		default:
			// A page of any other type cannot hold the key. On a freshly
			// created database the root has not been materialized yet and
			// the header still points at the meta page; a lookup there is
			// simply a miss, not a structural failure.
			return nil, false, nil
		}
	}
}

// ReadPage returns a copy of a single raw page's bytes as of this
// snapshot. It exists for the diag package, which walks a tree
// page-by-page to check structural invariants; ordinary callers should use
// Get instead.
func (r *ReadTxn) ReadPage(id uint64) ([]byte, error) {
	if r.closed {
		return nil, NewError(ErrClosed)
	}
	buf, err := r.db.pf.ReadPage(id)
	if err != nil {
		return nil, translatePagefileError(err)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// Close releases the snapshot. Get must not be called after Close.
func (r *ReadTxn) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.db.pf.RUnlock()
}
