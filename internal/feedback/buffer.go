package feedback

// DoubleBuffer holds two feedback buffers so the producer can fill one
// while the analyzer reads the other, one frame behind.
type DoubleBuffer struct {
	bufs      [2][]uint32
	back      int
	published bool
}

// NewDoubleBuffer creates two buffers of n samples, all Empty.
func NewDoubleBuffer(n int) *DoubleBuffer {
	d := &DoubleBuffer{}
	for i := range d.bufs {
		d.bufs[i] = make([]uint32, n)
		for j := range d.bufs[i] {
			d.bufs[i][j] = Empty
		}
	}
	return d
}

// Back returns the buffer to fill this frame.
func (d *DoubleBuffer) Back() []uint32 { return d.bufs[d.back] }

// Swap publishes the back buffer and hands the previous front buffer to
// the producer.
func (d *DoubleBuffer) Swap() {
	d.back ^= 1
	d.published = true
}

// Front returns the most recently published buffer. ok is false until the
// first Swap.
func (d *DoubleBuffer) Front() (samples []uint32, ok bool) {
	if !d.published {
		return nil, false
	}
	return d.bufs[d.back^1], true
}
