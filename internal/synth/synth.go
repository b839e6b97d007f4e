// Package synth generates synthetic page stores for demos and tests.
package synth

import (
	"fmt"

	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/internal/tile"
	"github.com/gogpu/vtstream/pagestore"
)

// cell is the edge of the flat-colored squares pages are made of. Large
// flat areas keep payloads well below the index entry size limit.
const cell = 8

// Filter decides which pages get data. A nil Filter keeps every page.
type Filter func(x, y, mip int) bool

// Interior returns the 120×120 BGRA interior of channel ch of a page.
// Each page has a distinct tint so mixups show up in tests and on screen.
func Interior(x, y, mip, ch int) []byte {
	p := make([]byte, tile.InteriorBytes)
	for py := range tile.Interior {
		for px := range tile.Interior {
			i := (py*tile.Interior + px) * 4
			cx, cy := px/cell, py/cell
			odd := (cx + cy) % 2
			switch ch {
			case 0:
				p[i+0] = byte(x*37 + cx*4)
				p[i+1] = byte(y*53 + cy*4)
				p[i+2] = byte(mip*23 + odd*128)
				p[i+3] = 255
			default:
				p[i+0] = 255
				p[i+1] = byte(128 + odd*32)
				p[i+2] = 128
				p[i+3] = byte(mip * 16)
			}
		}
	}
	return p
}

// Page encodes both channels of a page into a store payload.
func Page(c codec.Codec, x, y, mip int) ([]byte, error) {
	var (
		meta   [2]pagestore.ChannelMeta
		bodies [2][]byte
	)
	for ch := range 2 {
		body, m, err := c.Encode(Interior(x, y, mip, ch), tile.Interior, tile.Interior)
		if err != nil {
			return nil, fmt.Errorf("synth: page (%d,%d)@%d channel %d: %w", x, y, mip, ch, err)
		}
		meta[ch] = m
		bodies[ch] = body
	}
	return pagestore.AppendPayload(nil, meta, bodies[0], bodies[1]), nil
}

// Build writes a store with mips levels. Pages rejected by keep stay
// empty and stream in as placeholders.
func Build(c codec.Codec, mips int, keep Filter) (*pagestore.Writer, error) {
	w, err := pagestore.NewWriter(mips)
	if err != nil {
		return nil, err
	}
	w.SetHeader(c.Header())

	for mip := range mips {
		n := pagestore.PagesPerSide(mip, mips)
		for y := range n {
			for x := range n {
				if keep != nil && !keep(x, y, mip) {
					continue
				}
				payload, err := Page(c, x, y, mip)
				if err != nil {
					return nil, err
				}
				if err := w.Add(x, y, mip, payload); err != nil {
					return nil, err
				}
			}
		}
	}
	return w, nil
}
