// Package search implements the half-open binary search used to locate a
// key's position within a page's element directory, plus the leaf/branch
// specializations that know how to read a key out of a page body.
package search

import (
	"bytes"

	"github.com/syncdb-io/syncdb/internal/page"
)

// Ordering is the three-way result of comparing an element to a search key.
type Ordering int

const (
	// Less means the element's key is less than the search key.
	Less Ordering = -1
	// Equal means the element's key equals the search key.
	Equal Ordering = 0
	// Greater means the element's key is greater than the search key.
	Greater Ordering = 1
)

// Comparator compares the element at idx against the search key. A non-nil
// error indicates a corrupt element and aborts the search.
type Comparator func(idx int) (Ordering, error)

// Binary performs a half-open binary search over [lo, hi), calling compare
// to order each candidate index against the (implicit) search key.
//
// It returns (idx, true) when compare(idx) == Equal, or (insertPos, false)
// otherwise, where insertPos is the unique index at which the key would
// preserve sorted order. A comparator error propagates immediately.
func Binary(lo, hi int, compare Comparator) (int, bool, error) {
	left, right := lo, hi
	insertPos := hi

	for left < right {
		mid := left + (right-left)/2

		ord, err := compare(mid)
		if err != nil {
			return 0, false, err
		}
		switch ord {
		case Equal:
			return mid, true, nil
		case Less:
			left = mid + 1
			insertPos = left
		case Greater:
			right = mid
			insertPos = mid
		}
	}

	return insertPos, false, nil
}

// Leaf searches a leaf page body's [0, count) elements for key. Returns the
// element index on a match, or the insertion position otherwise.
func Leaf(body []byte, count int, key []byte) (int, bool, error) {
	return Binary(0, count, func(idx int) (Ordering, error) {
		elem, ok := page.DecodeLeafElement(page.LeafElementAt(body, idx))
		if !ok {
			return 0, errCorrupt
		}
		stored := body[elem.KPtr : int(elem.KPtr)+int(elem.KSize)]
		return toOrdering(bytes.Compare(stored, key)), nil
	})
}

// Branch searches a branch page body's [1, count+1) elements for key.
// Element 0 is the leftmost child and carries no separator; it is excluded
// from the search range and treated as -infinity so callers resolve keys
// smaller than every separator to child 0.
func Branch(body []byte, count int, key []byte) (int, bool, error) {
	return Binary(1, count+1, func(idx int) (Ordering, error) {
		elem, ok := page.DecodeBranchElement(page.BranchElementAt(body, idx))
		if !ok {
			return 0, errCorrupt
		}
		if elem.KSize == 0 {
			// Defensive: only element 0 should have ksize == 0, and it is
			// outside [1, count+1). Treat as Greater so a corrupt interior
			// zero-sized element never dereferences a bogus key range.
			return Greater, nil
		}
		stored := body[elem.KPtr : int(elem.KPtr)+int(elem.KSize)]
		return toOrdering(bytes.Compare(stored, key)), nil
	})
}

// ChildIndex applies the child-resolution rule shared by reads and writes:
// on an exact separator match the child at that index owns the key; on a
// miss the child immediately to the left does, saturating at 0 so keys
// smaller than every separator land on the leftmost child.
func ChildIndex(pos int, found bool) int {
	if found {
		return pos
	}
	if pos == 0 {
		return 0
	}
	return pos - 1
}

func toOrdering(c int) Ordering {
	switch {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	default:
		return Equal
	}
}

var errCorrupt = corruptElementError{}

type corruptElementError struct{}

func (corruptElementError) Error() string { return "search: corrupt page element" }
