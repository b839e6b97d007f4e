package blockenc

import "github.com/gogpu/gputypes"

// RawName is the registry name of the uncompressed encoder.
const RawName = "raw"

// Raw lays the block stream back out as linear RGBA8 rows.
type Raw struct{}

// Name implements Encoder.
func (Raw) Name() string { return RawName }

// Format implements Encoder.
func (Raw) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8UnormSrgb }

// Layout implements Encoder.
func (Raw) Layout(w, h int) (int, int) { return w * 4, h }

// Encode implements Encoder.
func (Raw) Encode(dst, stream []byte, w, h int) error {
	if err := checkSizes(dst, stream, w, h, w*h*4); err != nil {
		return err
	}
	bw := w / 4
	for b := 0; b < len(stream)/BlockStreamSize; b++ {
		bx, by := b%bw, b/bw
		block := stream[b*BlockStreamSize:]
		for row := range 4 {
			o := ((by*4+row)*w + bx*4) * 4
			copy(dst[o:o+16], block[row*16:row*16+16])
		}
	}
	return nil
}
