//go:build darwin

package mmap

import "errors"

// tryMremap is not available on macOS; always fail so Remap falls back to
// unmap+remap.
func (m *Map) tryMremap(newSize int) ([]byte, error) {
	return nil, errors.New("mremap not available on darwin")
}
