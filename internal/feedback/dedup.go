package feedback

// dedup is a fixed-size visited set cleared every frame. Each bucket holds
// up to width keys; keys beyond that are not remembered.
type dedup struct {
	keys   []uint64
	counts []uint8
	width  int
	mask   uint64
}

func newDedup(buckets, width int) *dedup {
	nb := 1
	for nb < buckets {
		nb <<= 1
	}
	return &dedup{
		keys:   make([]uint64, nb*width),
		counts: make([]uint8, nb),
		width:  width,
		mask:   uint64(nb - 1),
	}
}

func (d *dedup) reset() { clear(d.counts) }

// visit records key. It reports whether key was already present, the chain
// position it landed on, and whether the bucket was full.
func (d *dedup) visit(key uint64) (seen bool, pos int, overflow bool) {
	b := int((key * 0x9E3779B97F4A7C15) >> 32 & d.mask)
	base := b * d.width
	n := int(d.counts[b])
	for i := range n {
		if d.keys[base+i] == key {
			return true, i, false
		}
	}
	if n == d.width {
		return false, n, true
	}
	d.keys[base+n] = key
	d.counts[b]++
	return false, n, false
}
