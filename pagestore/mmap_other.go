//go:build !unix

package pagestore

import (
	"errors"
	"os"
)

var errMmapUnsupported = errors.New("pagestore: mmap unsupported")

func mapFile(*os.File) ([]byte, func() error, error) {
	return nil, nil, errMmapUnsupported
}
