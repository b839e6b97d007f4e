// Package indirection maintains the per-mip lookup table that maps every
// page of the virtual texture to the cache slot currently serving it.
//
// The table is a full mip chain of texels, one texel per page. A texel
// holds the slot coordinates of the page that serves it and the mip of that
// page. When a page becomes resident its own texel is pointed at its slot,
// and every finer texel inside its footprint that is served by this mip or
// a coarser one is redirected to it. When a page is evicted the same pass
// runs with the texel of its parent, so texels fall back to the nearest
// resident ancestor.
//
// Table is not thread-safe.
package indirection

import (
	"errors"
	"fmt"
)

// TexelSize is the number of bytes per texel: slot x, slot y, serving mip.
const TexelSize = 3

// Unmapped is the serving mip of a texel no resident page covers.
const Unmapped = 0xFF

// MaxSlot is the largest slot coordinate a texel can hold.
const MaxSlot = 0xFF

// ErrInvalidMips is returned by New for unusable mip counts.
var ErrInvalidMips = errors.New("indirection: invalid mip count")

// Entry is one decoded texel.
type Entry struct {
	SlotX, SlotY uint8
	Mip          uint8
}

// Mapped reports whether a resident page serves the texel.
func (e Entry) Mapped() bool { return e.Mip != Unmapped }

// span is a half-open texel range within one mip.
type span struct{ lo, hi int }

func (s span) empty() bool { return s.lo >= s.hi }

// Table is the indirection mip chain.
type Table struct {
	mips    int
	offsets []int
	data    []byte
	dirty   []span
}

// New creates a table for a texture with mips levels. Every texel starts
// unmapped and the whole chain is marked dirty.
func New(mips int) (*Table, error) {
	if mips < 1 || mips > 16 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMips, mips)
	}
	t := &Table{
		mips:    mips,
		offsets: make([]int, mips+1),
		dirty:   make([]span, mips),
	}
	for mip := range mips {
		w := MipWidth(mip, mips)
		t.offsets[mip+1] = t.offsets[mip] + w*w
	}
	t.data = make([]byte, t.offsets[mips]*TexelSize)
	t.Reset()
	return t, nil
}

// MipWidth returns the texel width of mip in a chain of mips levels.
func MipWidth(mip, mips int) int { return 1 << (mips - mip - 1) }

// Mips returns the number of levels.
func (t *Table) Mips() int { return t.mips }

// TexelCount returns the number of texels across the chain.
func (t *Table) TexelCount() int { return t.offsets[t.mips] }

// MipOffset returns the index of the first texel of mip in the chain.
func (t *Table) MipOffset(mip int) int { return t.offsets[mip] }

// Bytes returns the raw texels of mip. The slice aliases the table.
func (t *Table) Bytes(mip int) []byte {
	return t.data[t.offsets[mip]*TexelSize : t.offsets[mip+1]*TexelSize]
}

// Reset marks every texel unmapped.
func (t *Table) Reset() {
	for i := 0; i < len(t.data); i += TexelSize {
		t.data[i] = 0
		t.data[i+1] = 0
		t.data[i+2] = Unmapped
	}
	for mip := range t.mips {
		w := MipWidth(mip, t.mips)
		t.dirty[mip] = span{0, w * w}
	}
}

// At returns the texel for page (x, y) at mip.
func (t *Table) At(x, y, mip int) Entry {
	i := t.index(x, y, mip)
	return Entry{SlotX: t.data[i], SlotY: t.data[i+1], Mip: t.data[i+2]}
}

// Resolve walks from (x, y, mip) towards coarser levels until it finds
// a mapped texel, and returns it. It returns an unmapped entry when no
// level along the path is mapped.
func (t *Table) Resolve(x, y, mip int) Entry {
	for ; mip < t.mips; mip++ {
		if e := t.At(x, y, mip); e.Mapped() {
			return e
		}
		x >>= 1
		y >>= 1
	}
	return Entry{Mip: Unmapped}
}

// Add points the texels of page (x, y, mip) at slot (slotX, slotY).
func (t *Table) Add(x, y, mip, slotX, slotY int) {
	t.update(x, y, mip, Entry{SlotX: uint8(slotX), SlotY: uint8(slotY), Mip: uint8(mip)})
}

// Remove redirects the texels of page (x, y, mip) to its parent's entry.
// The coarsest level has no parent; Remove reports false and leaves the
// table unchanged for it.
func (t *Table) Remove(x, y, mip int) bool {
	if mip >= t.mips-1 {
		return false
	}
	t.update(x, y, mip, t.At(x>>1, y>>1, mip+1))
	return true
}

// Unmap marks page (x, y, mip) unmapped together with every finer texel it
// serves. The engine uses it for evicted pages of the coarsest level, which
// have no parent to fall back to.
func (t *Table) Unmap(x, y, mip int) {
	t.update(x, y, mip, Entry{Mip: Unmapped})
}

// update writes e at the native texel and at every finer texel of the
// footprint whose serving mip is not finer than mip.
func (t *Table) update(x, y, mip int, e Entry) {
	t.set(x, y, mip, e)

	for m := range mip {
		scale := 1 << (mip - m)
		w := MipWidth(m, t.mips)
		sx, sy := x*scale, y*scale
		for my := sy; my < sy+scale; my++ {
			row := t.offsets[m] + my*w
			for mx := sx; mx < sx+scale; mx++ {
				i := (row + mx) * TexelSize
				if int(t.data[i+2]) >= mip {
					t.data[i] = e.SlotX
					t.data[i+1] = e.SlotY
					t.data[i+2] = e.Mip
				}
			}
			t.markDirty(m, my*w+sx, my*w+sx+scale)
		}
	}
}

func (t *Table) set(x, y, mip int, e Entry) {
	i := t.index(x, y, mip)
	t.data[i] = e.SlotX
	t.data[i+1] = e.SlotY
	t.data[i+2] = e.Mip
	w := MipWidth(mip, t.mips)
	t.markDirty(mip, y*w+x, y*w+x+1)
}

func (t *Table) index(x, y, mip int) int {
	w := MipWidth(mip, t.mips)
	return (t.offsets[mip] + y*w + x) * TexelSize
}

func (t *Table) markDirty(mip, lo, hi int) {
	d := &t.dirty[mip]
	if d.empty() {
		*d = span{lo, hi}
		return
	}
	d.lo = min(d.lo, lo)
	d.hi = max(d.hi, hi)
}

// Dirty reports whether any texel changed since the last ClearDirty.
func (t *Table) Dirty() bool {
	for _, d := range t.dirty {
		if !d.empty() {
			return true
		}
	}
	return false
}

// EachDirty calls fn once per mip with a changed texel range, finest mip
// first. offset and count are in texels relative to the start of the mip;
// texels aliases the table.
func (t *Table) EachDirty(fn func(mip, offset, count int, texels []byte) error) error {
	for mip, d := range t.dirty {
		if d.empty() {
			continue
		}
		base := t.offsets[mip]
		b := t.data[(base+d.lo)*TexelSize : (base+d.hi)*TexelSize]
		if err := fn(mip, d.lo, d.hi-d.lo, b); err != nil {
			return err
		}
	}
	return nil
}

// ClearDirty forgets all pending changes.
func (t *Table) ClearDirty() {
	for i := range t.dirty {
		t.dirty[i] = span{}
	}
}
