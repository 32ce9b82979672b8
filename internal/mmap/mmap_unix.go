//go:build unix

// Package mmap maps archive files read-only so readers can hand out
// zero-copy views without loading payloads up front.
package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// Map maps size bytes of f starting at offset 0, read-only and shared.
// size must be positive.
func Map(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

// Unmap releases a mapping returned by Map. The slice must not be used
// afterwards.
func Unmap(b []byte) error {
	return unix.Munmap(b)
}
