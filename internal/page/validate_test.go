package page

import "testing"

func writeTestLeaf(t *testing.T, pairs [][2]string) []byte {
	t.Helper()
	buf := make([]byte, Size)
	body := Body(buf)
	offset := BodySize
	for i, kv := range pairs {
		key, value := []byte(kv[0]), []byte(kv[1])
		offset -= len(value)
		vptr := offset
		copy(body[vptr:vptr+len(value)], value)
		offset -= len(key)
		kptr := offset
		copy(body[kptr:kptr+len(key)], key)
		EncodeLeafElement(LeafElementAt(body, i), LeafElement{
			KSize: uint16(len(key)), VSize: uint16(len(value)),
			KPtr: uint16(kptr), VPtr: uint16(vptr),
		})
	}
	EncodeHeader(buf, Header{ID: 1, PageType: TypeLeaf, Count: uint16(len(pairs))})
	return buf
}

func TestValidateLeafOK(t *testing.T) {
	buf := writeTestLeaf(t, [][2]string{{"a", "1"}, {"b", "22"}, {"c", "333"}})
	if err := Validate(buf); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateLeafDetectsOverlappingDirectory(t *testing.T) {
	buf := writeTestLeaf(t, [][2]string{{"a", "1"}})
	// Corrupt the element to claim a key pointer inside the directory region.
	body := Body(buf)
	EncodeLeafElement(LeafElementAt(body, 0), LeafElement{KSize: 1, VSize: 1, KPtr: 0, VPtr: 1})
	if err := Validate(buf); err == nil {
		t.Fatal("expected validation error for directory/heap overlap")
	}
}

func TestValidateLeafDetectsOverlappingPayloads(t *testing.T) {
	buf := make([]byte, Size)
	body := Body(buf)
	// Two elements whose payload ranges overlap.
	EncodeLeafElement(LeafElementAt(body, 0), LeafElement{KSize: 4, VSize: 4, KPtr: 4000, VPtr: 4004})
	EncodeLeafElement(LeafElementAt(body, 1), LeafElement{KSize: 4, VSize: 4, KPtr: 4002, VPtr: 4072})
	EncodeHeader(buf, Header{ID: 2, PageType: TypeLeaf, Count: 2})
	if err := Validate(buf); err == nil {
		t.Fatal("expected validation error for overlapping payload ranges")
	}
}

func TestValidateBranchSkipsLeftmostSentinel(t *testing.T) {
	buf := make([]byte, Size)
	body := Body(buf)
	EncodeBranchElement(BranchElementAt(body, 0), BranchElement{PageID: 10})
	key := []byte("m")
	kptr := BodySize - len(key)
	copy(body[kptr:], key)
	EncodeBranchElement(BranchElementAt(body, 1), BranchElement{PageID: 11, KSize: uint16(len(key)), KPtr: uint16(kptr)})
	EncodeHeader(buf, Header{ID: 3, PageType: TypeBranch, Count: 1})

	if err := Validate(buf); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
