// Package tile holds the pixel work of the transcode stage: rebuilding the
// bordered page from its decoded interior, the debug overlay, and the
// reordering into a block stream for the block encoder.
package tile

const (
	// Size is the width and height of a page in the cache, border included.
	Size = 128

	// Border is the width of the replicated edge around the interior.
	Border = 4

	// Interior is the width and height of the stored page content.
	Interior = Size - 2*Border

	// Bytes is the size of one page in 8-bit BGRA or RGBA.
	Bytes = Size * Size * 4

	// InteriorBytes is the size of the decoded interior in BGRA.
	InteriorBytes = Interior * Interior * 4
)

// Bordered copies a decoded Interior×Interior BGRA image into the middle of
// dst, a Size×Size BGRA buffer, and fills the border by replicating the
// outermost interior texels. Corners take the corner texel.
func Bordered(dst, interior []byte) {
	const row = Size * 4

	for y := range Interior {
		src := interior[y*Interior*4 : (y+1)*Interior*4]
		d := dst[(y+Border)*row:]
		copy(d[Border*4:], src)

		left := src[:4]
		right := src[len(src)-4:]
		for x := range Border {
			copy(d[x*4:x*4+4], left)
			copy(d[(Size-Border+x)*4:(Size-Border+x)*4+4], right)
		}
	}

	top := dst[Border*row : (Border+1)*row]
	bottom := dst[(Size-Border-1)*row : (Size-Border)*row]
	for y := range Border {
		copy(dst[y*row:(y+1)*row], top)
		copy(dst[(Size-Border+y)*row:(Size-Border+y+1)*row], bottom)
	}
}

// BlockStream converts a Size×Size BGRA image into an RGBA block stream:
// 4×4 blocks in row-major order, texels row-major within each block.
func BlockStream(dst, bgra []byte) {
	const blocks = Size / 4
	o := 0
	for by := range blocks {
		for bx := range blocks {
			for ty := range 4 {
				s := ((by*4+ty)*Size + bx*4) * 4
				for tx := range 4 {
					p := s + tx*4
					dst[o+0] = bgra[p+2]
					dst[o+1] = bgra[p+1]
					dst[o+2] = bgra[p+0]
					dst[o+3] = bgra[p+3]
					o += 4
				}
			}
		}
	}
}
