//go:build linux

package mmap

import (
	"syscall"
	"unsafe"
)

const mremapMaymove = 1

// tryMremap attempts to grow the mapping in place (or relocate it, if the
// kernel chooses to) using the Linux mremap syscall, avoiding the
// munmap+mmap fallback when possible.
func (m *Map) tryMremap(newSize int) ([]byte, error) {
	if m.data == nil || len(m.data) == 0 {
		return nil, syscall.EINVAL
	}

	newAddr, _, errno := syscall.Syscall6(
		syscall.SYS_MREMAP,
		uintptr(unsafe.Pointer(&m.data[0])),
		uintptr(len(m.data)),
		uintptr(newSize),
		mremapMaymove,
		0, 0)
	if errno != 0 {
		return nil, errno
	}

	var newData []byte
	sh := (*struct {
		Data uintptr
		Len  int
		Cap  int
	})(unsafe.Pointer(&newData))
	sh.Data = newAddr
	sh.Len = newSize
	sh.Cap = newSize

	return newData, nil
}
