package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/vtstream/internal/indirection"
)

// Recorder is an Uploader that keeps the uploaded data in memory.
//
// It mirrors the cache textures slot by slot and the indirection chain
// texel by texel, which makes it suitable for headless runs and for
// checking what the engine streamed.
//
// Thread safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	layout Layout
	slots  [Channels][][]byte
	mips   [][]byte

	blockUploads int
	rangeUploads int
	texels       int
	failWith     error
}

// NewRecorder creates a recorder for the given layout.
func NewRecorder(l Layout) *Recorder {
	r := &Recorder{layout: l, mips: make([][]byte, l.Mips)}
	for ch := range r.slots {
		r.slots[ch] = make([][]byte, l.SlotsX*l.SlotsY)
	}
	for mip := range r.mips {
		w := indirection.MipWidth(mip, l.Mips)
		r.mips[mip] = make([]byte, w*w*IndirectionTexelSize)
	}
	return r
}

// FailWith makes every following upload return err. Pass nil to resume.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// UploadCompressedBlock implements Uploader.
func (r *Recorder) UploadCompressedBlock(tex TextureID, slotX, slotY int, block []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if err := checkSlot(r.layout, tex, slotX, slotY, block); err != nil {
		return fmt.Errorf("%w: texture %d slot (%d,%d), %d bytes", err, tex, slotX, slotY, len(block))
	}
	i := slotY*r.layout.SlotsX + slotX
	r.slots[tex][i] = append(r.slots[tex][i][:0], block...)
	r.blockUploads++
	return nil
}

// UploadIndirectionTexelRange implements Uploader.
func (r *Recorder) UploadIndirectionTexelRange(mip, offset, count int, texels []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if err := checkRange(r.layout, mip, offset, count, texels); err != nil {
		return fmt.Errorf("%w: mip %d texels [%d,%d)", err, mip, offset, offset+count)
	}
	copy(r.mips[mip][offset*IndirectionTexelSize:], texels[:count*IndirectionTexelSize])
	r.rangeUploads++
	r.texels += count
	return nil
}

// Block returns the last page uploaded to a slot, or nil.
func (r *Recorder) Block(tex TextureID, slotX, slotY int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[tex][slotY*r.layout.SlotsX+slotX]
}

// Texel returns the uploaded indirection texel of page (x, y) at mip.
func (r *Recorder) Texel(x, y, mip int) indirection.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := indirection.MipWidth(mip, r.layout.Mips)
	o := (y*w + x) * IndirectionTexelSize
	m := r.mips[mip]
	return indirection.Entry{SlotX: m[o], SlotY: m[o+1], Mip: m[o+2]}
}

// RecorderStats counts uploads seen by a Recorder.
type RecorderStats struct {
	Blocks        int
	Ranges        int
	TexelsWritten int
}

// Stats returns upload counters.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecorderStats{Blocks: r.blockUploads, Ranges: r.rangeUploads, TexelsWritten: r.texels}
}
