package search

import (
	"testing"

	"github.com/syncdb-io/syncdb/internal/page"
)

func buildLeafBody(t *testing.T, keys []string) []byte {
	t.Helper()
	body := make([]byte, page.BodySize)
	offset := page.BodySize
	for i, k := range keys {
		key := []byte(k)
		offset -= len(key)
		kptr := offset
		copy(body[kptr:kptr+len(key)], key)
		page.EncodeLeafElement(page.LeafElementAt(body, i), page.LeafElement{
			KSize: uint16(len(key)), VSize: 0, KPtr: uint16(kptr), VPtr: uint16(kptr),
		})
	}
	return body
}

func TestLeafFindsExactMatch(t *testing.T) {
	body := buildLeafBody(t, []string{"a", "c", "e", "g"})
	idx, found, err := Leaf(body, 4, []byte("e"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || idx != 2 {
		t.Fatalf("got (%d, %v), want (2, true)", idx, found)
	}
}

func TestLeafReturnsInsertionPoint(t *testing.T) {
	body := buildLeafBody(t, []string{"a", "c", "e", "g"})
	idx, found, err := Leaf(body, 4, []byte("d"))
	if err != nil {
		t.Fatal(err)
	}
	if found || idx != 2 {
		t.Fatalf("got (%d, %v), want (2, false)", idx, found)
	}
}

func TestLeafEmptyPage(t *testing.T) {
	body := buildLeafBody(t, nil)
	idx, found, err := Leaf(body, 0, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if found || idx != 0 {
		t.Fatalf("got (%d, %v), want (0, false)", idx, found)
	}
}

func buildBranchBody(t *testing.T, seps []string) []byte {
	t.Helper()
	body := make([]byte, page.BodySize)
	page.EncodeBranchElement(page.BranchElementAt(body, 0), page.BranchElement{PageID: 100})
	offset := page.BodySize
	for i, s := range seps {
		key := []byte(s)
		offset -= len(key)
		kptr := offset
		copy(body[kptr:kptr+len(key)], key)
		page.EncodeBranchElement(page.BranchElementAt(body, i+1), page.BranchElement{
			PageID: uint64(101 + i), KSize: uint16(len(key)), KPtr: uint16(kptr),
		})
	}
	return body
}

func TestBranchChildIndexBelowEverything(t *testing.T) {
	body := buildBranchBody(t, []string{"m", "r"})
	pos, found, err := Branch(body, 2, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if ChildIndex(pos, found) != 0 {
		t.Fatalf("expected child 0 for a key below every separator, got %d (found=%v pos=%d)", ChildIndex(pos, found), found, pos)
	}
}

func TestBranchChildIndexExactSeparator(t *testing.T) {
	body := buildBranchBody(t, []string{"m", "r"})
	pos, found, err := Branch(body, 2, []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || ChildIndex(pos, found) != 1 {
		t.Fatalf("expected exact match routing to child 1, got pos=%d found=%v", pos, found)
	}
}

func TestBranchChildIndexBetweenSeparators(t *testing.T) {
	body := buildBranchBody(t, []string{"m", "r"})
	pos, found, err := Branch(body, 2, []byte("p"))
	if err != nil {
		t.Fatal(err)
	}
	if found || ChildIndex(pos, found) != 1 {
		t.Fatalf("expected a key between separators to route to child 1, got pos=%d found=%v child=%d", pos, found, ChildIndex(pos, found))
	}
}

func TestBranchChildIndexAboveEverything(t *testing.T) {
	body := buildBranchBody(t, []string{"m", "r"})
	pos, found, err := Branch(body, 2, []byte("z"))
	if err != nil {
		t.Fatal(err)
	}
	if found || ChildIndex(pos, found) != 2 {
		t.Fatalf("expected a key above every separator to route to the rightmost child, got child=%d", ChildIndex(pos, found))
	}
}

func TestBinarySearchExhaustive(t *testing.T) {
	values := []int{1, 3, 5, 7, 9, 11, 13}
	compare := func(target int) Comparator {
		return func(idx int) (Ordering, error) {
			return toOrdering(values[idx] - target), nil
		}
	}

	for target := 0; target <= 14; target++ {
		idx, found, err := Binary(0, len(values), compare(target))
		if err != nil {
			t.Fatal(err)
		}
		wantFound := false
		wantIdx := len(values)
		for i, v := range values {
			if v == target {
				wantFound = true
				wantIdx = i
				break
			}
			if v > target {
				wantIdx = i
				break
			}
		}
		if found != wantFound || (!found && idx != wantIdx) || (found && idx != wantIdx) {
			t.Fatalf("target %d: got (%d, %v), want (%d, %v)", target, idx, found, wantIdx, wantFound)
		}
	}
}
