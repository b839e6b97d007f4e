package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/vtstream/internal/indirection"
)

// RegionUploader writes through gpucontext textures that accept
// sub-rectangle updates, such as textures created by gogpu.
//
// Region updates carry densely packed RGBA rows, so the cache must use the
// raw encoder. Each indirection mip level is a separate texture.
type RegionUploader struct {
	layout      Layout
	cache       [Channels]gpucontext.TextureRegionUpdater
	indirection []gpucontext.TextureRegionUpdater
	scratch     []byte
}

// NewRegionUploader creates an uploader over existing textures.
// indirectionMips must hold one texture per mip level, finest first.
func NewRegionUploader(l Layout, cache [Channels]gpucontext.TextureRegionUpdater, indirectionMips []gpucontext.TextureRegionUpdater) (*RegionUploader, error) {
	if len(indirectionMips) != l.Mips {
		return nil, fmt.Errorf("gpu: %d indirection textures for %d mips", len(indirectionMips), l.Mips)
	}
	if l.BytesPerRow != PageSize*4 || l.Rows != PageSize {
		return nil, fmt.Errorf("gpu: region uploads need linear RGBA pages, layout is %d bytes x %d rows", l.BytesPerRow, l.Rows)
	}
	return &RegionUploader{layout: l, cache: cache, indirection: indirectionMips}, nil
}

// UploadCompressedBlock implements Uploader.
func (u *RegionUploader) UploadCompressedBlock(tex TextureID, slotX, slotY int, block []byte) error {
	if err := checkSlot(u.layout, tex, slotX, slotY, block); err != nil {
		return fmt.Errorf("%w: texture %d slot (%d,%d)", err, tex, slotX, slotY)
	}
	return u.cache[tex].UpdateRegion(slotX*PageSize, slotY*PageSize, PageSize, PageSize, block)
}

// UploadIndirectionTexelRange implements Uploader.
func (u *RegionUploader) UploadIndirectionTexelRange(mip, offset, count int, texels []byte) error {
	if err := checkRange(u.layout, mip, offset, count, texels); err != nil {
		return fmt.Errorf("%w: mip %d texels [%d,%d)", err, mip, offset, offset+count)
	}
	u.scratch = widenTexels(u.scratch[:0], texels[:count*IndirectionTexelSize])
	w := indirection.MipWidth(mip, u.layout.Mips)
	for _, run := range splitRows(offset, count, w) {
		data := u.scratch[run.first*4 : (run.first+run.n)*4]
		if err := u.indirection[mip].UpdateRegion(run.x, run.y, run.n, 1, data); err != nil {
			return fmt.Errorf("gpu: update indirection mip %d row %d: %w", mip, run.y, err)
		}
	}
	return nil
}
