package syncdb

import (
	"github.com/syncdb-io/syncdb/internal/page"
	"github.com/syncdb-io/syncdb/internal/pagefile"
	"github.com/syncdb-io/syncdb/internal/search"
)

// WriteTxn is the single in-flight write transaction for a Db. Inserts are
// staged into an in-memory dirty-page buffer that shadows the underlying
// mapped file; nothing touches the file until Commit (or the lower-level
// Db.Commit, fed by PrepareCommit) installs the new epoch.
//
// A WriteTxn is not safe for concurrent use by multiple goroutines.
type WriteTxn struct {
	db       *Db
	header   pagefile.Header
	dirty    map[uint64][]byte
	released bool
}

type leafEntry struct {
	key, value []byte
}

// branchEntry is one directory slot of a branch page materialized in
// memory: entries[0].key is always nil (the leftmost, -infinity child).
type branchEntry struct {
	key   []byte
	child uint64
}

// Insert adds key/value to the tree, overwriting any existing value for
// key. It may allocate new pages (on a page split) and, at the root, grow
// the tree by one level.
func (w *WriteTxn) Insert(key, value []byte) error {
	if w.released {
		return NewError(ErrClosed)
	}
	if len(key) > page.MaxPayload {
		return NewError(ErrKeyTooLarge)
	}
	if len(value) > page.MaxPayload {
		return NewError(ErrValueTooLarge)
	}
	// There are no overflow pages, so a pair must fit in a single leaf
	// alongside its directory entry, and the key must fit as a separator in
	// a minimal two-element branch. A record that cannot is unstorable:
	// splitting would never terminate.
	if len(key)+len(value)+page.LeafElementSize > page.BodySize ||
		len(key)+2*page.BranchElementSize > page.BodySize {
		return NewError(ErrPageFull)
	}

	sep, newPageID, split, err := w.insertRecursive(w.header.RootPageID, key, value)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}

	oldRootID := w.header.RootPageID
	newRootID := w.allocatePage()
	buf := make([]byte, page.Size)
	writeBranchPage(buf, newRootID, []branchEntry{
		{key: nil, child: oldRootID},
		{key: sep, child: newPageID},
	})
	w.dirty[newRootID] = buf
	w.header.RootPageID = newRootID

	return nil
}

// insertRecursive descends to the leaf owning key, inserts there, and
// propagates any resulting split back up, rewriting each branch page on
// the path as needed. split is true when pageID's page (the page at this
// level, after accounting for the insert) had to be divided into two; sep
// and newPageID then describe the separator and right sibling to be
// installed in the parent.
func (w *WriteTxn) insertRecursive(pageID uint64, key, value []byte) (sep []byte, newPageID uint64, split bool, err error) {
	buf, err := w.readPage(pageID)
	if err != nil {
		return nil, 0, false, err
	}
	typ, err := pageType(buf)
	if err != nil {
		return nil, 0, false, err
	}
	h, _ := page.DecodeHeader(buf)
	body := page.Body(buf)

	switch typ {
	case page.TypeLeaf:
		return w.insertLeaf(pageID, int(h.Count), body, key, value)

	case page.TypeBranch:
		if h.Count == 0 {
			return nil, 0, false, NewError(ErrEmptyBranchPage)
		}
		pos, found, serr := search.Branch(body, int(h.Count), key)
		if serr != nil {
			return nil, 0, false, WrapError(ErrPageFormat, serr)
		}
		childIdx := search.ChildIndex(pos, found)
		childElem, ok := page.DecodeBranchElement(page.BranchElementAt(body, childIdx))
		if !ok {
			return nil, 0, false, NewError(ErrPageFormat)
		}

		childSep, childNewID, childSplit, err := w.insertRecursive(childElem.PageID, key, value)
		if err != nil {
			return nil, 0, false, err
		}
		if !childSplit {
			return nil, 0, false, nil
		}
		return w.insertBranch(pageID, int(h.Count), body, childIdx, childSep, childNewID)

	default:
		return nil, 0, false, NewError(ErrInvalidPageType)
	}
}

func (w *WriteTxn) insertLeaf(pageID uint64, count int, body []byte, key, value []byte) (sep []byte, newPageID uint64, split bool, err error) {
	idx, found, serr := search.Leaf(body, count, key)
	if serr != nil {
		return nil, 0, false, WrapError(ErrPageFormat, serr)
	}

	entries := materializeLeaf(body, count)
	if found {
		entries[idx].value = value
	} else {
		entries = append(entries, leafEntry{})
		copy(entries[idx+1:], entries[idx:])
		entries[idx] = leafEntry{key: key, value: value}
	}

	if leafFits(entries) {
		buf := make([]byte, page.Size)
		writeLeafPage(buf, pageID, entries)
		w.dirty[pageID] = buf
		return nil, 0, false, nil
	}

	splitIdx := (len(entries) + 1) / 2
	left := entries[:splitIdx]
	right := entries[splitIdx:]

	leftBuf := make([]byte, page.Size)
	writeLeafPage(leftBuf, pageID, left)
	w.dirty[pageID] = leftBuf

	rightID := w.allocatePage()
	rightBuf := make([]byte, page.Size)
	writeLeafPage(rightBuf, rightID, right)
	w.dirty[rightID] = rightBuf

	return right[0].key, rightID, true, nil
}

func (w *WriteTxn) insertBranch(pageID uint64, count int, body []byte, childIdx int, newSep []byte, newChildID uint64) (sep []byte, newPageID uint64, split bool, err error) {
	entries := materializeBranch(body, count)

	insertAt := childIdx + 1
	entries = append(entries, branchEntry{})
	copy(entries[insertAt+1:], entries[insertAt:])
	entries[insertAt] = branchEntry{key: newSep, child: newChildID}

	if branchFits(entries) {
		buf := make([]byte, page.Size)
		writeBranchPage(buf, pageID, entries)
		w.dirty[pageID] = buf
		return nil, 0, false, nil
	}

	splitIdx := len(entries) / 2
	left := entries[:splitIdx]
	right := entries[splitIdx:]

	promoted := right[0].key
	right[0] = branchEntry{key: nil, child: right[0].child}

	leftBuf := make([]byte, page.Size)
	writeBranchPage(leftBuf, pageID, left)
	w.dirty[pageID] = leftBuf

	rightID := w.allocatePage()
	rightBuf := make([]byte, page.Size)
	writeBranchPage(rightBuf, rightID, right)
	w.dirty[rightID] = rightBuf

	return promoted, rightID, true, nil
}

func materializeLeaf(body []byte, count int) []leafEntry {
	entries := make([]leafEntry, count, count+1)
	for i := 0; i < count; i++ {
		e, _ := page.DecodeLeafElement(page.LeafElementAt(body, i))
		entries[i] = leafEntry{
			key:   body[e.KPtr : int(e.KPtr)+int(e.KSize)],
			value: body[e.VPtr : int(e.VPtr)+int(e.VSize)],
		}
	}
	return entries
}

func materializeBranch(body []byte, count int) []branchEntry {
	total := count + 1
	entries := make([]branchEntry, total, total+1)
	for i := 0; i < total; i++ {
		e, _ := page.DecodeBranchElement(page.BranchElementAt(body, i))
		var key []byte
		if i > 0 {
			key = body[e.KPtr : int(e.KPtr)+int(e.KSize)]
		}
		entries[i] = branchEntry{key: key, child: e.PageID}
	}
	return entries
}

func leafFits(entries []leafEntry) bool {
	dirEnd := len(entries) * page.LeafElementSize
	heap := 0
	for _, e := range entries {
		heap += len(e.key) + len(e.value)
	}
	return dirEnd+heap <= page.BodySize
}

func branchFits(entries []branchEntry) bool {
	dirEnd := len(entries) * page.BranchElementSize
	heap := 0
	for i, e := range entries {
		if i == 0 {
			continue
		}
		heap += len(e.key)
	}
	return dirEnd+heap <= page.BodySize
}

// writeLeafPage renders entries (already in sorted key order) into buf as a
// complete leaf page with the given id.
func writeLeafPage(buf []byte, id uint64, entries []leafEntry) {
	for i := range buf {
		buf[i] = 0
	}
	body := page.Body(buf)
	dataOffset := page.BodySize

	for i, e := range entries {
		dataOffset -= len(e.key)
		kptr := dataOffset
		copy(body[kptr:kptr+len(e.key)], e.key)

		dataOffset -= len(e.value)
		vptr := dataOffset
		copy(body[vptr:vptr+len(e.value)], e.value)

		page.EncodeLeafElement(page.LeafElementAt(body, i), page.LeafElement{
			KSize: uint16(len(e.key)),
			VSize: uint16(len(e.value)),
			KPtr:  uint16(kptr),
			VPtr:  uint16(vptr),
		})
	}

	page.EncodeHeader(buf, page.Header{ID: id, PageType: page.TypeLeaf, Count: uint16(len(entries))})
}

// writeBranchPage renders entries (entries[0] is the leftmost child, with a
// nil key) into buf as a complete branch page with the given id.
func writeBranchPage(buf []byte, id uint64, entries []branchEntry) {
	for i := range buf {
		buf[i] = 0
	}
	body := page.Body(buf)
	dataOffset := page.BodySize

	for i, e := range entries {
		if i == 0 {
			page.EncodeBranchElement(page.BranchElementAt(body, i), page.BranchElement{PageID: e.child})
			continue
		}
		dataOffset -= len(e.key)
		kptr := dataOffset
		copy(body[kptr:kptr+len(e.key)], e.key)

		page.EncodeBranchElement(page.BranchElementAt(body, i), page.BranchElement{
			PageID: e.child,
			KSize:  uint16(len(e.key)),
			KPtr:   uint16(kptr),
		})
	}

	page.EncodeHeader(buf, page.Header{ID: id, PageType: page.TypeBranch, Count: uint16(len(entries) - 1)})
}

// readPage returns a private, page.Size-byte copy of pageID's current
// contents — from the dirty buffer if this transaction has already
// written it, otherwise read fresh from the mapped file. The copy is safe
// to slice into and hold onto for the rest of this call tree: it is never
// mutated after return, and no other writer can be running concurrently.
func (w *WriteTxn) readPage(pageID uint64) ([]byte, error) {
	if buf, ok := w.dirty[pageID]; ok {
		return buf, nil
	}
	w.db.pf.RLock()
	defer w.db.pf.RUnlock()
	src, err := w.db.pf.ReadPage(pageID)
	if err != nil {
		return nil, translatePagefileError(err)
	}
	buf := make([]byte, page.Size)
	copy(buf, src)
	return buf, nil
}

// allocatePage reserves a fresh page id beyond the current high-water
// mark. The free list is not consulted: this engine never deletes pages,
// so there is nothing to reclaim (see the free list non-goal).
func (w *WriteTxn) allocatePage() uint64 {
	id := w.header.HighestPageID + 1
	w.header.HighestPageID = id
	return id
}

// PrepareCommit returns this transaction's staged dirty pages and the new
// highest page id / root page id, without installing them. It is the
// building block behind the convenience Commit method, and is exposed for
// callers that want to drive Db.Commit directly (for example, to stage a
// commit's inputs before a later, separately-timed install). After calling
// PrepareCommit the transaction may no longer be used to stage further
// inserts.
func (w *WriteTxn) PrepareCommit() (dirty map[uint64][]byte, highestPageID, rootPageID uint64) {
	w.released = true
	return w.dirty, w.header.HighestPageID, w.header.RootPageID
}

// Commit stages this transaction's writes (via PrepareCommit) and installs
// them as the new durable state in one step.
func (w *WriteTxn) Commit() error {
	if w.released {
		return NewError(ErrClosed)
	}
	dirty, highest, root := w.PrepareCommit()
	return w.db.Commit(dirty, highest, root)
}

// Abort discards this transaction's staged writes and releases the writer
// lock without installing anything.
func (w *WriteTxn) Abort() {
	if w.released {
		return
	}
	w.released = true
	w.db.abort()
}
