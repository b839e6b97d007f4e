// Package ring provides the fixed-capacity job queues that connect the
// stages of the streaming pipeline.
//
// Two flavors exist. SPSC is a lock-free ring for exactly one producer and
// one consumer: the producer owns the write cursor, the consumer owns the
// read cursor, and each publishes its cursor with an atomic store. Guarded
// is a mutex-protected ring for stages with several producers or several
// consumers; the lock is held only while cursors move.
//
// Both rings keep one slot empty to tell full from empty, so a ring of
// capacity n holds at most n-1 items.
package ring

import (
	"sync"
	"sync/atomic"
)

// SPSC is a single-producer single-consumer ring.
type SPSC[T any] struct {
	buf  []T
	head atomic.Uint32 // next slot to write, owned by the producer
	tail atomic.Uint32 // next slot to read, owned by the consumer
}

// NewSPSC creates a ring with the given number of slots.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 2 {
		capacity = 2
	}
	return &SPSC[T]{buf: make([]T, capacity)}
}

// Push appends v. It returns false when the ring is full.
// Only the producer goroutine may call Push.
func (r *SPSC[T]) Push(v T) bool {
	head := r.head.Load()
	next := r.advance(head)
	if next == r.tail.Load() {
		return false
	}
	r.buf[head] = v
	r.head.Store(next)
	return true
}

// Pop removes the oldest item. It returns false when the ring is empty.
// Only the consumer goroutine may call Pop.
func (r *SPSC[T]) Pop() (T, bool) {
	var zero T
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return zero, false
	}
	v := r.buf[tail]
	r.buf[tail] = zero
	r.tail.Store(r.advance(tail))
	return v, true
}

// Len returns the number of queued items. The value is a snapshot.
func (r *SPSC[T]) Len() int {
	return distance(r.head.Load(), r.tail.Load(), len(r.buf))
}

// Cap returns the number of items the ring can hold.
func (r *SPSC[T]) Cap() int { return len(r.buf) - 1 }

func (r *SPSC[T]) advance(i uint32) uint32 {
	i++
	if int(i) == len(r.buf) {
		return 0
	}
	return i
}

// Guarded is a ring safe for any number of producers and consumers.
type Guarded[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int
	tail int
}

// NewGuarded creates a ring with the given number of slots.
func NewGuarded[T any](capacity int) *Guarded[T] {
	if capacity < 2 {
		capacity = 2
	}
	return &Guarded[T]{buf: make([]T, capacity)}
}

// Push appends v. It returns false when the ring is full.
func (r *Guarded[T]) Push(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := (r.head + 1) % len(r.buf)
	if next == r.tail {
		return false
	}
	r.buf[r.head] = v
	r.head = next
	return true
}

// Pop removes the oldest item. It returns false when the ring is empty.
func (r *Guarded[T]) Pop() (T, bool) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tail == r.head {
		return zero, false
	}
	v := r.buf[r.tail]
	r.buf[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.buf)
	return v, true
}

// Drain pops every queued item and passes it to fn, oldest first.
// fn runs without the lock held. It returns the number of items drained.
func (r *Guarded[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Len returns the number of queued items.
func (r *Guarded[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return distance(uint32(r.head), uint32(r.tail), len(r.buf))
}

// Cap returns the number of items the ring can hold.
func (r *Guarded[T]) Cap() int { return len(r.buf) - 1 }

func distance(head, tail uint32, size int) int {
	d := int(head) - int(tail)
	if d < 0 {
		d += size
	}
	return d
}
