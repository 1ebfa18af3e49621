// Package page implements the fixed-width, native-endian on-disk page
// format: the 16-byte page header shared by every page, the 8-byte leaf
// element and 16-byte branch element directory entries, and the bounds
// checking that keeps decode a checked transform from untrusted bytes to
// structure rather than a blind pointer cast.
package page

import (
	"encoding/binary"
	"unsafe"
)

// Size is the fixed size of every page on disk, in bytes.
const Size = 4096

// HeaderSize is the size of the page header at the start of every page.
const HeaderSize = 16

// BodySize is the number of bytes available to a page's directory and
// payload heap, i.e. Size - HeaderSize.
const BodySize = Size - HeaderSize

// LeafElementSize is the encoded size of a single leaf directory entry.
const LeafElementSize = 8

// BranchElementSize is the encoded size of a single branch directory entry.
const BranchElementSize = 16

// MaxPayload is the largest key or value this format can address, since
// ksize/vsize are stored as u16.
const MaxPayload = 65535

// Type identifies the role of a page.
type Type uint8

const (
	// TypeMeta marks the database header page (page 0).
	TypeMeta Type = 1
	// TypeFreeList marks the (unused) free-list page (page 1).
	TypeFreeList Type = 2
	// TypeLeaf marks a leaf page holding key/value pairs.
	TypeLeaf Type = 3
	// TypeBranch marks an internal page holding child pointers and
	// separator keys.
	TypeBranch Type = 4
)

// Header is the 16-byte struct at the start of every page.
//
//	offset  size  field
//	0       8     id
//	8       1     page_type
//	9       1     reserved
//	10      2     count
//	12      4     overflow
type Header struct {
	ID        uint64
	PageType  Type
	_reserved uint8
	Count     uint16
	Overflow  uint32
}

// DecodeHeader reads a Header from the start of data. Fails with false when
// data is shorter than HeaderSize.
func DecodeHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	// Page buffers come either from a memory-mapped file (naturally aligned
	// to the OS page size, hence 8-byte aligned) or from a freshly allocated
	// []byte (also guaranteed aligned by the allocator). The unsafe cast is
	// safe in both cases; decodeHeaderSlow below is the fallback for a
	// caller handing us an arbitrary, possibly misaligned, sub-slice.
	if uintptr(unsafe.Pointer(&data[0]))%8 == 0 {
		h := *(*Header)(unsafe.Pointer(&data[0]))
		return h, true
	}
	return decodeHeaderSlow(data), true
}

func decodeHeaderSlow(data []byte) Header {
	return Header{
		ID:       binary.NativeEndian.Uint64(data[0:8]),
		PageType: Type(data[8]),
		Count:    binary.NativeEndian.Uint16(data[10:12]),
		Overflow: binary.NativeEndian.Uint32(data[12:16]),
	}
}

// EncodeHeader writes h into the first HeaderSize bytes of data. data must
// be at least HeaderSize bytes.
func EncodeHeader(data []byte, h Header) {
	_ = data[HeaderSize-1]
	binary.NativeEndian.PutUint64(data[0:8], h.ID)
	data[8] = byte(h.PageType)
	data[9] = 0
	binary.NativeEndian.PutUint16(data[10:12], h.Count)
	binary.NativeEndian.PutUint32(data[12:16], h.Overflow)
}

// LeafElement is a single directory entry in a leaf page: the size and
// offset (relative to the start of the page body) of a key and its value.
type LeafElement struct {
	KSize uint16
	VSize uint16
	KPtr  uint16
	VPtr  uint16
}

// DecodeLeafElement reads a LeafElement from data. Fails with false when
// data is shorter than LeafElementSize.
func DecodeLeafElement(data []byte) (LeafElement, bool) {
	if len(data) < LeafElementSize {
		return LeafElement{}, false
	}
	return LeafElement{
		KSize: binary.NativeEndian.Uint16(data[0:2]),
		VSize: binary.NativeEndian.Uint16(data[2:4]),
		KPtr:  binary.NativeEndian.Uint16(data[4:6]),
		VPtr:  binary.NativeEndian.Uint16(data[6:8]),
	}, true
}

// EncodeLeafElement writes e into the first LeafElementSize bytes of data.
func EncodeLeafElement(data []byte, e LeafElement) {
	_ = data[LeafElementSize-1]
	binary.NativeEndian.PutUint16(data[0:2], e.KSize)
	binary.NativeEndian.PutUint16(data[2:4], e.VSize)
	binary.NativeEndian.PutUint16(data[4:6], e.KPtr)
	binary.NativeEndian.PutUint16(data[6:8], e.VPtr)
}

// BranchElement is a single directory entry in a branch page: a child page
// id plus, for every element but the leftmost, the separator key bounding
// that child's subtree.
type BranchElement struct {
	PageID uint64
	KSize  uint16
	KPtr   uint16
}

// DecodeBranchElement reads a BranchElement from data. Fails with false when
// data is shorter than BranchElementSize.
func DecodeBranchElement(data []byte) (BranchElement, bool) {
	if len(data) < BranchElementSize {
		return BranchElement{}, false
	}
	return BranchElement{
		PageID: binary.NativeEndian.Uint64(data[0:8]),
		KSize:  binary.NativeEndian.Uint16(data[8:10]),
		KPtr:   binary.NativeEndian.Uint16(data[10:12]),
	}, true
}

// EncodeBranchElement writes e into the first BranchElementSize bytes of
// data.
func EncodeBranchElement(data []byte, e BranchElement) {
	_ = data[BranchElementSize-1]
	binary.NativeEndian.PutUint64(data[0:8], e.PageID)
	binary.NativeEndian.PutUint16(data[8:10], e.KSize)
	binary.NativeEndian.PutUint16(data[10:12], e.KPtr)
	for i := 12; i < BranchElementSize; i++ {
		data[i] = 0
	}
}

// Body returns the page body (everything after the header) of a full
// Size-byte page.
func Body(pageData []byte) []byte {
	return pageData[HeaderSize:]
}

// LeafElementAt returns the directory slot for leaf element idx within a
// page body.
func LeafElementAt(body []byte, idx int) []byte {
	off := idx * LeafElementSize
	return body[off : off+LeafElementSize]
}

// BranchElementAt returns the directory slot for branch element idx within
// a page body.
func BranchElementAt(body []byte, idx int) []byte {
	off := idx * BranchElementSize
	return body[off : off+BranchElementSize]
}

// InitLeaf zero-initializes buf (which must be Size bytes) as an empty leaf
// page with the given id.
func InitLeaf(buf []byte, id uint64) {
	for i := range buf {
		buf[i] = 0
	}
	EncodeHeader(buf, Header{ID: id, PageType: TypeLeaf, Count: 0})
}

// InitBranch zero-initializes buf (which must be Size bytes) as an empty
// branch page with the given id and separator count.
func InitBranch(buf []byte, id uint64, count uint16) {
	for i := range buf {
		buf[i] = 0
	}
	EncodeHeader(buf, Header{ID: id, PageType: TypeBranch, Count: count})
}
