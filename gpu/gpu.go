// Package gpu connects the streaming engine to the textures it feeds.
//
// The engine writes two kinds of data: encoded pages into one of the two
// physical cache textures, and changed texel ranges of the indirection
// mip chain. Both go through the Uploader interface. This package provides
// an Uploader for gogpu/wgpu HAL devices, one for gpucontext textures, and
// an in-memory Recorder for tests and headless runs.
package gpu

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vtstream/internal/indirection"
	"github.com/gogpu/vtstream/internal/tile"
)

// TextureID selects a physical cache texture.
type TextureID uint32

const (
	// Channel0 holds the first encoded channel of every page.
	Channel0 TextureID = iota
	// Channel1 holds the second encoded channel.
	Channel1

	// Channels is the number of cache textures.
	Channels = 2
)

// PageSize is the texel size of one cache slot.
const PageSize = tile.Size

// IndirectionTexelSize is the size of one indirection texel as the engine
// hands it over: slot x, slot y, serving mip.
const IndirectionTexelSize = indirection.TexelSize

// IndirectionFormat is the texture format used for the indirection chain.
// Texels are widened to four bytes; the fourth byte is zero.
const IndirectionFormat = gputypes.TextureFormatRGBA8Uint

var (
	// ErrUnknownTexture is returned for a TextureID outside the cache.
	ErrUnknownTexture = errors.New("gpu: unknown texture")

	// ErrOutOfBounds is returned for slots or texel ranges outside their
	// texture.
	ErrOutOfBounds = errors.New("gpu: upload out of bounds")
)

// Uploader receives the data the engine streams to the GPU.
//
// The engine calls an Uploader only from the goroutine that runs its frame
// update.
type Uploader interface {
	// UploadCompressedBlock writes one encoded page to slot (slotX, slotY)
	// of cache texture tex.
	UploadCompressedBlock(tex TextureID, slotX, slotY int, block []byte) error

	// UploadIndirectionTexelRange writes count texels starting at texel
	// offset of mip level mip. texels holds IndirectionTexelSize bytes per
	// texel.
	UploadIndirectionTexelRange(mip, offset, count int, texels []byte) error
}

// Layout describes the textures an Uploader writes to.
type Layout struct {
	// SlotsX and SlotsY are the cache dimensions in pages.
	SlotsX, SlotsY int

	// Mips is the number of indirection levels.
	Mips int

	// Format is the cache texture format.
	Format gputypes.TextureFormat

	// BytesPerRow and Rows describe one encoded page.
	BytesPerRow, Rows int
}

// PageBytes returns the size of one encoded page.
func (l Layout) PageBytes() int { return l.BytesPerRow * l.Rows }

// CacheTextureDescriptor describes one physical cache texture.
func CacheTextureDescriptor(l Layout, label string) gputypes.TextureDescriptor {
	return gputypes.TextureDescriptor{
		Label:         label,
		Size:          gputypes.NewExtent2D(uint32(l.SlotsX*PageSize), uint32(l.SlotsY*PageSize)),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        l.Format,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	}
}

// IndirectionTextureDescriptor describes the indirection mip chain.
func IndirectionTextureDescriptor(l Layout) gputypes.TextureDescriptor {
	side := uint32(indirection.MipWidth(0, l.Mips))
	return gputypes.TextureDescriptor{
		Label:         "vtstream indirection",
		Size:          gputypes.NewExtent2D(side, side),
		MipLevelCount: uint32(l.Mips),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        IndirectionFormat,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	}
}

// widenTexels expands 3-byte indirection texels to the 4-byte texture
// format, appending to dst.
func widenTexels(dst, texels []byte) []byte {
	for i := 0; i+IndirectionTexelSize <= len(texels); i += IndirectionTexelSize {
		dst = append(dst, texels[i], texels[i+1], texels[i+2], 0)
	}
	return dst
}

// rowSpan is a run of texels within one row of a mip.
type rowSpan struct {
	x, y, n int
	first   int // index of the first texel within the range
}

// splitRows breaks a linear texel range of a w-wide mip into row runs.
func splitRows(offset, count, w int) []rowSpan {
	var out []rowSpan
	done := 0
	for done < count {
		i := offset + done
		x, y := i%w, i/w
		n := min(w-x, count-done)
		out = append(out, rowSpan{x: x, y: y, n: n, first: done})
		done += n
	}
	return out
}

func checkSlot(l Layout, tex TextureID, slotX, slotY int, block []byte) error {
	if tex >= Channels {
		return ErrUnknownTexture
	}
	if slotX < 0 || slotY < 0 || slotX >= l.SlotsX || slotY >= l.SlotsY {
		return ErrOutOfBounds
	}
	if len(block) != l.PageBytes() {
		return ErrOutOfBounds
	}
	return nil
}

func checkRange(l Layout, mip, offset, count int, texels []byte) error {
	if mip < 0 || mip >= l.Mips {
		return ErrOutOfBounds
	}
	w := indirection.MipWidth(mip, l.Mips)
	if offset < 0 || count < 0 || offset+count > w*w || len(texels) < count*IndirectionTexelSize {
		return ErrOutOfBounds
	}
	return nil
}
