package ring

// Signal wakes sleeping consumers when work arrives.
//
// Notify never blocks. Wakes are coalesced up to the buffer size: when the
// buffer is full, a wake is already pending and every waiter will re-check
// its queue before sleeping again.
type Signal struct {
	c chan struct{}
}

// NewSignal creates a signal that can hold up to pending coalesced wakes.
func NewSignal(pending int) *Signal {
	if pending < 1 {
		pending = 1
	}
	return &Signal{c: make(chan struct{}, pending)}
}

// Notify posts one wake.
func (s *Signal) Notify() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// C returns the channel a consumer selects on to wait for a wake.
func (s *Signal) C() <-chan struct{} { return s.c }
