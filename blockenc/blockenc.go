// Package blockenc converts transcoded pages into the pixel format of the
// physical cache texture.
//
// Input is an RGBA block stream: the image split into 4×4 texel blocks,
// blocks in row-major order, and each block's 16 texels in row-major order
// (64 bytes per block). This is the layout block-compressed formats
// consume directly.
package blockenc

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// BlockStreamSize is the number of bytes of one 4×4 RGBA block.
const BlockStreamSize = 16 * 4

var (
	// ErrUnknownEncoder is returned by Lookup for unregistered names.
	ErrUnknownEncoder = errors.New("blockenc: unknown encoder")

	// ErrBadSize is returned for dimensions that are not a multiple of 4
	// or buffers of the wrong length.
	ErrBadSize = errors.New("blockenc: bad size")
)

// Encoder turns an RGBA block stream into texture data.
//
// Implementations must be safe for concurrent use.
type Encoder interface {
	// Name returns the registry name.
	Name() string

	// Format returns the texture format the output is laid out for.
	Format() gputypes.TextureFormat

	// Layout returns the bytes per row and the number of rows of a w×h
	// image in the output format. Block formats count rows of blocks.
	Layout(w, h int) (bytesPerRow, rows int)

	// Encode writes the encoded form of a w×h block stream to dst, which
	// must be exactly bytesPerRow*rows long.
	Encode(dst, stream []byte, w, h int) error
}

// EncodedSize returns the output size of e for a w×h image.
func EncodedSize(e Encoder, w, h int) int {
	bpr, rows := e.Layout(w, h)
	return bpr * rows
}

func checkSizes(dst, stream []byte, w, h, outSize int) error {
	if w <= 0 || h <= 0 || w%4 != 0 || h%4 != 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadSize, w, h)
	}
	if len(stream) != w*h*4 {
		return fmt.Errorf("%w: stream of %d bytes for %dx%d", ErrBadSize, len(stream), w, h)
	}
	if len(dst) != outSize {
		return fmt.Errorf("%w: destination of %d bytes, need %d", ErrBadSize, len(dst), outSize)
	}
	return nil
}

var registry = gpucontext.NewRegistry[Encoder](gpucontext.WithPriority(BC3Name, RawName))

func init() {
	Register(BC3Name, func() Encoder { return BC3{} })
	Register(RawName, func() Encoder { return Raw{} })
}

// Register adds an encoder factory under name, replacing any previous one.
func Register(name string, factory func() Encoder) {
	registry.Register(name, factory)
}

// Lookup returns the encoder registered under name. An empty name selects
// the preferred encoder.
func Lookup(name string) (Encoder, error) {
	if name == "" {
		if e := registry.Best(); e != nil {
			return e, nil
		}
		return nil, ErrUnknownEncoder
	}
	if !registry.Has(name) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEncoder, name, registry.Available())
	}
	return registry.Get(name), nil
}
