package pagefile

import (
	"encoding/binary"

	"github.com/syncdb-io/syncdb/internal/page"
)

// Magic is the header's magic number (the ASCII bytes "sync" read as a
// big-endian u32; it is stored native-endian like every header field).
const Magic uint32 = 0x73796E63

// Version is the only header format version this package understands.
const Version uint32 = 1

// HeaderSize is the size in bytes of the on-disk Header.
const HeaderSize = 48

// FreeListPageID is the fixed page id reserved for the (unimplemented)
// free list.
const FreeListPageID uint64 = 1

// RootLeafPageID is the page id of the initial root leaf of a freshly
// created database.
const RootLeafPageID uint64 = 2

// Header is the 48-byte database header stored at the start of page 0.
//
//	offset  size  field
//	0       4     magic
//	4       4     version
//	8       4     page_size
//	12      4     reserved
//	16      8     root_page_id
//	24      8     free_list_page_id
//	32      8     highest_page_id
//	40      8     tx_id
type Header struct {
	Magic          uint32
	Version        uint32
	PageSize       uint32
	RootPageID     uint64
	FreeListPageID uint64
	HighestPageID  uint64
	TxID           uint64
}

// NewHeader returns the header for a freshly created, empty database. The
// root page id is zero until EnsureRootPage materializes the root leaf at
// page 2; until then the highest allocated page is the reserved free-list
// page, so the two-page file length satisfies the size invariant.
func NewHeader() Header {
	return Header{
		Magic:          Magic,
		Version:        Version,
		PageSize:       page.Size,
		RootPageID:     0,
		FreeListPageID: FreeListPageID,
		HighestPageID:  FreeListPageID,
		TxID:           0,
	}
}

// DecodeHeader reads a Header from the first HeaderSize bytes of data.
func DecodeHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Magic:          binary.NativeEndian.Uint32(data[0:4]),
		Version:        binary.NativeEndian.Uint32(data[4:8]),
		PageSize:       binary.NativeEndian.Uint32(data[8:12]),
		RootPageID:     binary.NativeEndian.Uint64(data[16:24]),
		FreeListPageID: binary.NativeEndian.Uint64(data[24:32]),
		HighestPageID:  binary.NativeEndian.Uint64(data[32:40]),
		TxID:           binary.NativeEndian.Uint64(data[40:48]),
	}, true
}

// EncodeHeader writes h into the first HeaderSize bytes of data.
func EncodeHeader(data []byte, h Header) {
	_ = data[HeaderSize-1]
	binary.NativeEndian.PutUint32(data[0:4], h.Magic)
	binary.NativeEndian.PutUint32(data[4:8], h.Version)
	binary.NativeEndian.PutUint32(data[8:12], h.PageSize)
	binary.NativeEndian.PutUint32(data[12:16], 0)
	binary.NativeEndian.PutUint64(data[16:24], h.RootPageID)
	binary.NativeEndian.PutUint64(data[24:32], h.FreeListPageID)
	binary.NativeEndian.PutUint64(data[32:40], h.HighestPageID)
	binary.NativeEndian.PutUint64(data[40:48], h.TxID)
}
