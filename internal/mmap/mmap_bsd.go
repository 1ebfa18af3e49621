//go:build unix && !linux && !darwin

package mmap

import "errors"

// tryMremap has no portable equivalent outside Linux; always fail so Remap
// falls back to unmap+remap.
func (m *Map) tryMremap(newSize int) ([]byte, error) {
	return nil, errors.New("mremap not available on this platform")
}
