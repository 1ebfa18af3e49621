//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// New maps length bytes of fd starting at offset 0 for reading and, when
// writable, writing.
func New(fd int, length int, writable bool) (*Map, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}

	handle := windows.Handle(fd)

	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	sizeHigh := uint32(uint64(length) >> 32)
	sizeLow := uint32(length)

	mapping, err := windows.CreateFileMapping(handle, nil, prot, sizeHigh, sizeLow, nil)
	if err != nil {
		return nil, &Error{Op: "CreateFileMapping", Err: err}
	}

	addr, err := windows.MapViewOfFile(mapping, access, 0, 0, uintptr(length))
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, &Error{Op: "MapViewOfFile", Err: err}
	}

	data := addrToSlice(addr, length)

	return &Map{
		data:     data,
		fd:       fd,
		size:     int64(length),
		writable: writable,
		handle:   uintptr(handle),
		mapping:  uintptr(mapping),
	}, nil
}

func addrToSlice(addr uintptr, length int) []byte {
	var data []byte
	sh := (*struct {
		Data uintptr
		Len  int
		Cap  int
	})(unsafe.Pointer(&data))
	sh.Data = addr
	sh.Len = length
	sh.Cap = length
	return data
}

// Sync flushes the mapping to disk synchronously.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	if err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data))); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
	}
	return windows.FlushFileBuffers(windows.Handle(m.fd))
}

// Close releases the mapping.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.data[0]))
	m.data = nil
	m.size = 0
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return &Error{Op: "UnmapViewOfFile", Err: err}
	}
	return windows.CloseHandle(windows.Handle(m.mapping))
}

// Remap resizes the mapping to newSize bytes by unmapping and remapping
// over a file that has already been grown to at least newSize bytes.
func (m *Map) Remap(newSize int64) error {
	if newSize <= 0 {
		return ErrInvalidSize
	}
	if newSize == m.size {
		return nil
	}

	if m.data != nil {
		addr := uintptr(unsafe.Pointer(&m.data[0]))
		windows.UnmapViewOfFile(addr)
	}
	if m.mapping != 0 {
		windows.CloseHandle(windows.Handle(m.mapping))
	}

	access := uint32(windows.FILE_MAP_READ)
	prot := uint32(windows.PAGE_READONLY)
	if m.writable {
		access = windows.FILE_MAP_WRITE
		prot = windows.PAGE_READWRITE
	}

	sizeHigh := uint32(uint64(newSize) >> 32)
	sizeLow := uint32(newSize)

	mapping, err := windows.CreateFileMapping(windows.Handle(m.fd), nil, prot, sizeHigh, sizeLow, nil)
	if err != nil {
		return &Error{Op: "CreateFileMapping", Err: err}
	}
	addr, err := windows.MapViewOfFile(mapping, access, 0, 0, uintptr(newSize))
	if err != nil {
		windows.CloseHandle(mapping)
		return &Error{Op: "MapViewOfFile", Err: err}
	}

	m.mapping = uintptr(mapping)
	m.data = addrToSlice(addr, int(newSize))
	m.size = newSize
	return nil
}
