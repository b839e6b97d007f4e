//go:build unix

package pagestore

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var errMmapUnsupported = errors.New("pagestore: mmap unsupported")

// mapFile maps f read-only. Empty files yield an empty slice and a no-op
// unmap, since mmap rejects zero lengths.
func mapFile(f *os.File) ([]byte, func() error, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("data file of %d bytes too large to map", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
