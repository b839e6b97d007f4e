// Package codec defines the page image codec used by the streaming engine
// and provides a reference implementation.
//
// Every channel of a page is stored without the codec's common header. The
// header is kept once in the page index and prepended again before
// decoding, and per-channel metadata restores any header fields that vary
// between channels.
//
// Codecs are looked up by name through a registry so applications can plug
// in their own implementation:
//
//	codec.Register("mycodec", func() codec.Codec { return myCodec{} })
//	c, err := codec.Lookup("mycodec")
package codec

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/vtstream/pagestore"
)

var (
	// ErrUnknownCodec is returned by Lookup for unregistered names.
	ErrUnknownCodec = errors.New("codec: unknown codec")

	// ErrHeaderMismatch is returned when an encoded image does not start
	// with the codec's header template.
	ErrHeaderMismatch = errors.New("codec: header mismatch")

	// ErrBadDimensions is returned when a decoded image does not match the
	// expected page size.
	ErrBadDimensions = errors.New("codec: bad dimensions")
)

// Codec encodes and decodes one channel of a page.
//
// Pixels are 8-bit BGRA, row-major, without padding.
//
// Implementations must be safe for concurrent use: the transcode workers
// share one instance.
type Codec interface {
	// Name returns the registry name.
	Name() string

	// Header returns the header template shared by every encoded channel.
	Header() []byte

	// Encode compresses a w×h BGRA image. The returned bytes exclude the
	// header template.
	Encode(bgra []byte, w, h int) ([]byte, pagestore.ChannelMeta, error)

	// Decode decompresses one channel into dst, which holds w×h BGRA
	// pixels. header is the template stored in the page index.
	Decode(header, channel []byte, meta pagestore.ChannelMeta, dst []byte, w, h int) error
}

var registry = gpucontext.NewRegistry[Codec](gpucontext.WithPriority(TIFFName))

func init() {
	Register(TIFFName, func() Codec { return TIFF{} })
}

// Register adds a codec factory under name, replacing any previous one.
func Register(name string, factory func() Codec) {
	registry.Register(name, factory)
}

// Lookup returns the codec registered under name. An empty name selects
// the preferred registered codec.
func Lookup(name string) (Codec, error) {
	if name == "" {
		if c := registry.Best(); c != nil {
			return c, nil
		}
		return nil, ErrUnknownCodec
	}
	if !registry.Has(name) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownCodec, name, registry.Available())
	}
	return registry.Get(name), nil
}

// Available lists the registered codec names.
func Available() []string { return registry.Available() }
