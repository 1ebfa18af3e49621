package page

import "fmt"

// ValidationError describes a single invariant violation found by Validate.
type ValidationError struct {
	PageID uint64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("page %d: %s", e.PageID, e.Reason)
}

// Validate checks a single decoded page against the layout invariants of
// the on-disk format: the directory must not overlap the payload heap, and
// every element's (kptr, ksize)/(vptr, vsize) range must lie inside the
// heap and not overlap another element's range.
//
// It does not check cross-page invariants (separator ordering, subtree
// bounds); those live in the diag package, which walks the whole tree.
func Validate(pageData []byte) error {
	h, ok := DecodeHeader(pageData)
	if !ok {
		return &ValidationError{Reason: "page shorter than header"}
	}
	body := Body(pageData)

	switch h.PageType {
	case TypeLeaf:
		return validateLeaf(h, body)
	case TypeBranch:
		return validateBranch(h, body)
	default:
		return nil
	}
}

func validateLeaf(h Header, body []byte) error {
	count := int(h.Count)
	directoryEnd := count * LeafElementSize
	type span struct{ lo, hi int }
	var spans []span

	minKptr := BodySize
	for i := 0; i < count; i++ {
		e, ok := DecodeLeafElement(LeafElementAt(body, i))
		if !ok {
			return &ValidationError{PageID: h.ID, Reason: "leaf element truncated"}
		}
		kLo, kHi := int(e.KPtr), int(e.KPtr)+int(e.KSize)
		vLo, vHi := int(e.VPtr), int(e.VPtr)+int(e.VSize)
		if kLo < directoryEnd || kHi > BodySize {
			return &ValidationError{PageID: h.ID, Reason: "leaf key range out of heap"}
		}
		if vLo < directoryEnd || vHi > BodySize {
			return &ValidationError{PageID: h.ID, Reason: "leaf value range out of heap"}
		}
		if kLo < minKptr {
			minKptr = kLo
		}
		spans = append(spans, span{kLo, kHi}, span{vLo, vHi})
	}
	if count > 0 && directoryEnd > minKptr {
		return &ValidationError{PageID: h.ID, Reason: "leaf directory overlaps payload heap"}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].lo < spans[j].hi && spans[j].lo < spans[i].hi {
				return &ValidationError{PageID: h.ID, Reason: "leaf payload ranges overlap"}
			}
		}
	}
	return nil
}

func validateBranch(h Header, body []byte) error {
	count := int(h.Count)
	total := count + 1
	directoryEnd := total * BranchElementSize
	type span struct{ lo, hi int }
	var spans []span

	minKptr := BodySize
	for i := 0; i < total; i++ {
		e, ok := DecodeBranchElement(BranchElementAt(body, i))
		if !ok {
			return &ValidationError{PageID: h.ID, Reason: "branch element truncated"}
		}
		if e.KSize == 0 {
			continue
		}
		lo, hi := int(e.KPtr), int(e.KPtr)+int(e.KSize)
		if lo < directoryEnd || hi > BodySize {
			return &ValidationError{PageID: h.ID, Reason: "branch key range out of heap"}
		}
		if lo < minKptr {
			minKptr = lo
		}
		spans = append(spans, span{lo, hi})
	}
	if minKptr != BodySize && directoryEnd > minKptr {
		return &ValidationError{PageID: h.ID, Reason: "branch directory overlaps payload heap"}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].lo < spans[j].hi && spans[j].lo < spans[i].hi {
				return &ValidationError{PageID: h.ID, Reason: "branch separator ranges overlap"}
			}
		}
	}
	return nil
}
