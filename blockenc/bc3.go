package blockenc

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"
)

// BC3Name is the registry name of the BC3 encoder.
const BC3Name = "bc3"

// BC3BlockSize is the encoded size of one 4×4 block: 8 bytes of alpha and
// 8 bytes of color.
const BC3BlockSize = 16

// BC3 encodes blocks as BC3 (DXT5) with sRGB color.
//
// Color endpoints come from the inset bounding box of the block, alpha
// endpoints from its alpha range; every texel then picks the nearest
// palette entry. Quality is in line with a fast real-time encoder.
type BC3 struct{}

// Name implements Encoder.
func (BC3) Name() string { return BC3Name }

// Format implements Encoder.
func (BC3) Format() gputypes.TextureFormat { return gputypes.TextureFormatBC3RGBAUnormSrgb }

// Layout implements Encoder.
func (BC3) Layout(w, h int) (int, int) { return w / 4 * BC3BlockSize, h / 4 }

// Encode implements Encoder.
func (BC3) Encode(dst, stream []byte, w, h int) error {
	blocks := (w / 4) * (h / 4)
	if err := checkSizes(dst, stream, w, h, blocks*BC3BlockSize); err != nil {
		return err
	}
	for b := range blocks {
		EncodeBC3Block(dst[b*BC3BlockSize:b*BC3BlockSize+BC3BlockSize], stream[b*BlockStreamSize:b*BlockStreamSize+BlockStreamSize])
	}
	return nil
}

// EncodeBC3Block encodes 16 RGBA texels into one 16-byte BC3 block.
func EncodeBC3Block(dst, texels []byte) {
	encodeAlpha(dst[:8], texels)
	encodeColor(dst[8:16], texels)
}

func encodeAlpha(dst, texels []byte) {
	lo, hi := byte(255), byte(0)
	for i := 3; i < 64; i += 4 {
		lo = min(lo, texels[i])
		hi = max(hi, texels[i])
	}
	dst[0], dst[1] = hi, lo
	if hi == lo {
		clear(dst[2:8])
		return
	}

	// With a0 > a1 the palette is a0, a1 and six interpolated steps.
	var palette [8]int
	palette[0], palette[1] = int(hi), int(lo)
	for i := 1; i <= 6; i++ {
		palette[i+1] = ((7-i)*int(hi) + i*int(lo)) / 7
	}

	var bits uint64
	for t := range 16 {
		a := int(texels[t*4+3])
		best, bestDist := 0, 1<<30
		for i, p := range palette {
			d := a - p
			if d < 0 {
				d = -d
			}
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		bits |= uint64(best) << (3 * t)
	}
	for i := range 6 {
		dst[2+i] = byte(bits >> (8 * i))
	}
}

func encodeColor(dst, texels []byte) {
	var lo, hi [3]int
	lo = [3]int{255, 255, 255}
	for t := range 16 {
		for c := range 3 {
			v := int(texels[t*4+c])
			lo[c] = min(lo[c], v)
			hi[c] = max(hi[c], v)
		}
	}
	// Inset the box by 1/16 of its extent to reduce endpoint error.
	for c := range 3 {
		inset := (hi[c] - lo[c]) >> 4
		lo[c] += inset
		hi[c] -= inset
	}

	c0 := pack565(hi)
	c1 := pack565(lo)
	if c0 < c1 {
		c0, c1 = c1, c0
	}
	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)
	if c0 == c1 {
		clear(dst[4:8])
		return
	}

	// Four-color mode: c0, c1, 2/3 c0 + 1/3 c1, 1/3 c0 + 2/3 c1.
	var palette [4][3]int
	palette[0] = unpack565(c0)
	palette[1] = unpack565(c1)
	for c := range 3 {
		palette[2][c] = (2*palette[0][c] + palette[1][c]) / 3
		palette[3][c] = (palette[0][c] + 2*palette[1][c]) / 3
	}

	var bits uint32
	for t := range 16 {
		best, bestDist := 0, 1<<30
		for i, p := range palette {
			d := 0
			for c := range 3 {
				e := int(texels[t*4+c]) - p[c]
				d += e * e
			}
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		bits |= uint32(best) << (2 * t)
	}
	binary.LittleEndian.PutUint32(dst[4:], bits)
}

func pack565(c [3]int) uint16 {
	r := (c[0]*31 + 127) / 255
	g := (c[1]*63 + 127) / 255
	b := (c[2]*31 + 127) / 255
	return uint16(r<<11 | g<<5 | b)
}

func unpack565(v uint16) [3]int {
	r := int(v>>11) & 31
	g := int(v>>5) & 63
	b := int(v) & 31
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}
