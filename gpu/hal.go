//go:build !nogpu

package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vtstream/internal/indirection"
)

// HALUploader writes pages and indirection texels to textures it creates
// on a gogpu/wgpu HAL device.
//
// Thread Safety: HALUploader is safe for concurrent use. Texture handles
// are guarded by a mutex; uploads go straight to the queue.
type HALUploader struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	layout Layout

	cache       [Channels]hal.Texture
	indirection hal.Texture

	scratch []byte
}

// NewHALUploader creates the two cache textures and the indirection chain
// on device and returns an uploader writing through queue.
func NewHALUploader(device hal.Device, queue hal.Queue, l Layout) (*HALUploader, error) {
	u := &HALUploader{device: device, queue: queue, layout: l}

	for ch := range Channels {
		desc := CacheTextureDescriptor(l, fmt.Sprintf("vtstream cache %d", ch))
		tex, err := device.CreateTexture(halDescriptor(desc))
		if err != nil {
			u.Destroy()
			return nil, fmt.Errorf("gpu: create cache texture %d: %w", ch, err)
		}
		u.cache[ch] = tex
	}

	tex, err := device.CreateTexture(halDescriptor(IndirectionTextureDescriptor(l)))
	if err != nil {
		u.Destroy()
		return nil, fmt.Errorf("gpu: create indirection texture: %w", err)
	}
	u.indirection = tex

	slogger().Debug("gpu: textures created",
		"slots", fmt.Sprintf("%dx%d", l.SlotsX, l.SlotsY),
		"format", l.Format.String(),
		"mips", l.Mips,
	)
	return u, nil
}

func halDescriptor(d gputypes.TextureDescriptor) *hal.TextureDescriptor {
	return &hal.TextureDescriptor{
		Label: d.Label,
		Size: hal.Extent3D{
			Width:              d.Size.Width,
			Height:             d.Size.Height,
			DepthOrArrayLayers: d.Size.DepthOrArrayLayers,
		},
		MipLevelCount: d.MipLevelCount,
		SampleCount:   d.SampleCount,
		Dimension:     d.Dimension,
		Format:        d.Format,
		Usage:         d.Usage,
	}
}

// CacheTexture returns the HAL texture of a cache channel.
func (u *HALUploader) CacheTexture(tex TextureID) hal.Texture {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if tex >= Channels {
		return nil
	}
	return u.cache[tex]
}

// IndirectionTexture returns the HAL texture of the indirection chain.
func (u *HALUploader) IndirectionTexture() hal.Texture {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.indirection
}

// UploadCompressedBlock implements Uploader.
func (u *HALUploader) UploadCompressedBlock(tex TextureID, slotX, slotY int, block []byte) error {
	if err := checkSlot(u.layout, tex, slotX, slotY, block); err != nil {
		return fmt.Errorf("%w: texture %d slot (%d,%d)", err, tex, slotX, slotY)
	}
	u.mu.RLock()
	dstTex := u.cache[tex]
	u.mu.RUnlock()
	if dstTex == nil {
		return ErrUnknownTexture
	}

	dst := &hal.ImageCopyTexture{
		Texture:  dstTex,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: uint32(slotX * PageSize), Y: uint32(slotY * PageSize), Z: 0},
		Aspect:   gputypes.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(u.layout.BytesPerRow),
		RowsPerImage: uint32(u.layout.Rows),
	}
	size := &hal.Extent3D{Width: PageSize, Height: PageSize, DepthOrArrayLayers: 1}

	if err := u.queue.WriteTexture(dst, block, layout, size); err != nil {
		return fmt.Errorf("gpu: write page to slot (%d,%d): %w", slotX, slotY, err)
	}
	return nil
}

// UploadIndirectionTexelRange implements Uploader. The range is split
// into row runs since a texture write covers a rectangle.
func (u *HALUploader) UploadIndirectionTexelRange(mip, offset, count int, texels []byte) error {
	if err := checkRange(u.layout, mip, offset, count, texels); err != nil {
		return fmt.Errorf("%w: mip %d texels [%d,%d)", err, mip, offset, offset+count)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.indirection == nil {
		return ErrUnknownTexture
	}

	u.scratch = widenTexels(u.scratch[:0], texels[:count*IndirectionTexelSize])
	w := indirection.MipWidth(mip, u.layout.Mips)

	for _, run := range splitRows(offset, count, w) {
		dst := &hal.ImageCopyTexture{
			Texture:  u.indirection,
			MipLevel: uint32(mip),
			Origin:   hal.Origin3D{X: uint32(run.x), Y: uint32(run.y), Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		}
		layout := &hal.ImageDataLayout{BytesPerRow: uint32(run.n * 4), RowsPerImage: 1}
		size := &hal.Extent3D{Width: uint32(run.n), Height: 1, DepthOrArrayLayers: 1}
		data := u.scratch[run.first*4 : (run.first+run.n)*4]
		if err := u.queue.WriteTexture(dst, data, layout, size); err != nil {
			return fmt.Errorf("gpu: write indirection mip %d row %d: %w", mip, run.y, err)
		}
	}
	return nil
}

// Destroy releases every texture. The uploader must not be used after.
func (u *HALUploader) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for ch, tex := range u.cache {
		if tex != nil {
			u.device.DestroyTexture(tex)
			u.cache[ch] = nil
		}
	}
	if u.indirection != nil {
		u.device.DestroyTexture(u.indirection)
		u.indirection = nil
	}
}
