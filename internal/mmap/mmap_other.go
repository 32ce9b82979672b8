//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Map reads size bytes of f into memory. Platforms without unix mmap
// lose the lazy-load property but keep the same reader behavior.
func Map(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, 0)
	if err == io.EOF && n == len(buf) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Unmap is a no-op for the read-into-memory fallback.
func Unmap(b []byte) error {
	return nil
}
