// Package diag walks a committed tree end to end and reports structural
// problems: malformed pages, separator keys that do not bound their
// subtree, and page arithmetic that does not add up. The result is a
// structured Report a caller can inspect or assert against in a test.
package diag

import (
	"bytes"
	"fmt"

	"github.com/syncdb-io/syncdb/internal/page"
)

// PageReader reads a single page's raw bytes by id. *syncdb.ReadTxn and a
// raw *pagefile.PagedFile both happen to satisfy a reader with this shape;
// diag takes the narrowest interface it needs so it has no import-cycle
// dependency on the root package.
type PageReader interface {
	ReadPage(id uint64) ([]byte, error)
}

// Finding is a single invariant violation discovered while walking the
// tree.
type Finding struct {
	PageID uint64
	Reason string
}

func (f Finding) String() string {
	return fmt.Sprintf("page %d: %s", f.PageID, f.Reason)
}

// Report is the result of walking a tree.
type Report struct {
	PagesVisited int
	LeafCount    int
	BranchCount  int
	KeyCount     int
	MaxDepth     int
	Findings     []Finding
}

// OK reports whether the walk found no problems.
func (r *Report) OK() bool { return len(r.Findings) == 0 }

func (r *Report) fail(pageID uint64, reason string) {
	r.Findings = append(r.Findings, Finding{PageID: pageID, Reason: reason})
}

// WalkTree walks every page reachable from root and returns a Report. It
// never returns an error itself: I/O or decode failures while reading a
// page are recorded as Findings so a single bad page does not abort the
// whole report.
func WalkTree(pr PageReader, root uint64) *Report {
	r := &Report{}
	walk(pr, root, nil, nil, 1, r)
	return r
}

// CheckInvariants is a convenience wrapper returning a plain error when the
// walk finds any problem, for callers that just want a go/no-go signal.
func CheckInvariants(pr PageReader, root uint64) error {
	r := WalkTree(pr, root)
	if r.OK() {
		return nil
	}
	return fmt.Errorf("diag: %d invariant violation(s), first: %s", len(r.Findings), r.Findings[0])
}

// walk visits pageID, whose keys must all satisfy lo <= key < hi (a nil
// bound means unbounded on that side), recording findings into r.
func walk(pr PageReader, pageID uint64, lo, hi []byte, depth int, r *Report) {
	r.PagesVisited++
	if depth > r.MaxDepth {
		r.MaxDepth = depth
	}

	buf, err := pr.ReadPage(pageID)
	if err != nil {
		r.fail(pageID, fmt.Sprintf("unreadable: %v", err))
		return
	}
	if err := page.Validate(buf); err != nil {
		r.fail(pageID, err.Error())
		return
	}

	h, ok := page.DecodeHeader(buf)
	if !ok {
		r.fail(pageID, "header truncated")
		return
	}
	body := page.Body(buf)

	switch h.PageType {
	case page.TypeLeaf:
		r.LeafCount++
		walkLeaf(h, body, lo, hi, r)
	case page.TypeBranch:
		r.BranchCount++
		walkBranch(pr, h, body, lo, hi, depth, r)
	default:
		r.fail(pageID, "unknown page type")
	}
}

func walkLeaf(h page.Header, body []byte, lo, hi []byte, r *Report) {
	count := int(h.Count)
	var prev []byte
	for i := 0; i < count; i++ {
		e, ok := page.DecodeLeafElement(page.LeafElementAt(body, i))
		if !ok {
			r.fail(h.ID, "leaf element truncated")
			return
		}
		key := body[e.KPtr : int(e.KPtr)+int(e.KSize)]
		if i > 0 && bytes.Compare(prev, key) >= 0 {
			r.fail(h.ID, "leaf keys not strictly increasing")
		}
		if lo != nil && bytes.Compare(key, lo) < 0 {
			r.fail(h.ID, "leaf key below subtree lower bound")
		}
		if hi != nil && bytes.Compare(key, hi) >= 0 {
			r.fail(h.ID, "leaf key at or above subtree upper bound")
		}
		r.KeyCount++
		prev = key
	}
}

func walkBranch(pr PageReader, h page.Header, body []byte, lo, hi []byte, depth int, r *Report) {
	count := int(h.Count)
	if count == 0 {
		r.fail(h.ID, "branch page has no separators")
	}

	var prevSep []byte
	for i := 0; i <= count; i++ {
		e, ok := page.DecodeBranchElement(page.BranchElementAt(body, i))
		if !ok {
			r.fail(h.ID, "branch element truncated")
			return
		}

		var childLo, childHi []byte = lo, hi
		if i == 0 {
			if count > 0 {
				sepElem, _ := page.DecodeBranchElement(page.BranchElementAt(body, 1))
				childHi = body[sepElem.KPtr : int(sepElem.KPtr)+int(sepElem.KSize)]
			}
		} else {
			sep := body[e.KPtr : int(e.KPtr)+int(e.KSize)]
			if prevSep != nil && bytes.Compare(prevSep, sep) >= 0 {
				r.fail(h.ID, "branch separators not strictly increasing")
			}
			childLo = sep
			if i < count {
				nextElem, _ := page.DecodeBranchElement(page.BranchElementAt(body, i+1))
				childHi = body[nextElem.KPtr : int(nextElem.KPtr)+int(nextElem.KSize)]
			}
			prevSep = sep
		}

		walk(pr, e.PageID, childLo, childHi, depth+1, r)
	}
}
