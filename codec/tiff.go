package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/tiff"

	"github.com/gogpu/vtstream/pagestore"
)

// TIFFName is the registry name of the TIFF codec.
const TIFFName = "tiff"

// tiffHeader is the little-endian TIFF byte-order mark and magic number.
// The encoder always emits it, so it serves as the shared template.
var tiffHeader = []byte{'I', 'I', 0x2A, 0x00}

// TIFF is a lossless codec storing each channel as a deflate-compressed
// TIFF image with straight alpha.
type TIFF struct{}

// Name implements Codec.
func (TIFF) Name() string { return TIFFName }

// Header implements Codec.
func (TIFF) Header() []byte { return tiffHeader }

// Encode implements Codec.
func (TIFF) Encode(bgra []byte, w, h int) ([]byte, pagestore.ChannelMeta, error) {
	if w <= 0 || h <= 0 || len(bgra) != w*h*4 {
		return nil, pagestore.ChannelMeta{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrBadDimensions, len(bgra), w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(bgra); i += 4 {
		img.Pix[i+0] = bgra[i+2]
		img.Pix[i+1] = bgra[i+1]
		img.Pix[i+2] = bgra[i+0]
		img.Pix[i+3] = bgra[i+3]
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return nil, pagestore.ChannelMeta{}, fmt.Errorf("codec: tiff encode: %w", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, tiffHeader) {
		return nil, pagestore.ChannelMeta{}, ErrHeaderMismatch
	}
	body := out[len(tiffHeader):]
	return body, pagestore.ChannelMeta{RGBSize: int32(len(body))}, nil
}

// Decode implements Codec.
func (TIFF) Decode(header, channel []byte, meta pagestore.ChannelMeta, dst []byte, w, h int) error {
	if !bytes.Equal(header, tiffHeader) {
		return ErrHeaderMismatch
	}
	if len(dst) != w*h*4 {
		return fmt.Errorf("%w: destination of %d bytes for %dx%d", ErrBadDimensions, len(dst), w, h)
	}
	if meta.RGBSize > 0 && int(meta.RGBSize) < len(channel) {
		channel = channel[:meta.RGBSize]
	}

	src := make([]byte, 0, len(header)+len(channel))
	src = append(src, header...)
	src = append(src, channel...)

	img, err := tiff.Decode(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("codec: tiff decode: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("%w: decoded %dx%d, want %dx%d", ErrBadDimensions, b.Dx(), b.Dy(), w, h)
	}

	if n, ok := img.(*image.NRGBA); ok && n.Stride == w*4 {
		for i := 0; i < len(dst); i += 4 {
			dst[i+0] = n.Pix[i+2]
			dst[i+1] = n.Pix[i+1]
			dst[i+2] = n.Pix[i+0]
			dst[i+3] = n.Pix[i+3]
		}
		return nil
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst[i+0] = c.B
			dst[i+1] = c.G
			dst[i+2] = c.R
			dst[i+3] = c.A
			i += 4
		}
	}
	return nil
}
