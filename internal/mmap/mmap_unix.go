//go:build unix

package mmap

import "golang.org/x/sys/unix"

// New maps length bytes of fd starting at offset 0 for reading and, when
// writable, writing.
func New(fd int, length int, writable bool) (*Map, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(fd, 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}

	return &Map{data: data, fd: fd, size: int64(length), writable: writable}, nil
}

// Sync flushes the mapping to disk synchronously.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close releases the mapping.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	m.size = 0
	return err
}

// Remap resizes the mapping to newSize bytes. The file backing fd must
// already have been grown to at least newSize bytes. On Linux this uses
// mremap; elsewhere (and on mremap failure) it falls back to unmap+remap.
func (m *Map) Remap(newSize int64) error {
	if newSize <= 0 {
		return ErrInvalidSize
	}
	if newSize == m.size {
		return nil
	}

	if newData, err := m.tryMremap(int(newSize)); err == nil {
		m.data = newData
		m.size = newSize
		return nil
	}

	prot := unix.PROT_READ
	if m.writable {
		prot |= unix.PROT_WRITE
	}

	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return &Error{Op: "munmap for remap", Err: err}
		}
	}

	newData, err := unix.Mmap(m.fd, 0, int(newSize), prot, unix.MAP_SHARED)
	if err != nil {
		m.data = nil
		m.size = 0
		return &Error{Op: "mmap for remap", Err: err}
	}

	m.data = newData
	m.size = newSize
	return nil
}
