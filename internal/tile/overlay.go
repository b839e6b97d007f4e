package tile

import (
	"image"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// overlayLine is the BGRA color of the debug frame: red, zero alpha.
var overlayLine = [4]byte{0, 0, 255, 0}

// Overlay marks the interior edges of a Size×Size BGRA page with a red
// frame and prints the page coordinates in the top left corner.
func Overlay(bgra []byte, pageX, pageY int) {
	const first, last = Border, Size - Border - 1

	for y := range Size {
		for x := range Size {
			if x == first || x == last || y == first || y == last {
				copy(bgra[(y*Size+x)*4:], overlayLine[:])
			}
		}
	}

	// The glyphs are white, which reads the same in BGRA and RGBA.
	dst := &image.RGBA{Pix: bgra, Stride: Size * 4, Rect: image.Rect(0, 0, Size, Size)}
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(16, 16+face.Ascent),
	}
	d.DrawString(strconv.Itoa(pageX) + " " + strconv.Itoa(pageY))
}
