//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}

// advise is best effort; a refused hint never fails Open.
func advise(data []byte, hint Hint) {
	advice := unix.MADV_SEQUENTIAL
	if hint == WillNeed {
		advice = unix.MADV_WILLNEED
	}
	_ = unix.Madvise(data, advice)
}
