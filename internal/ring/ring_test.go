package ring

import (
	"sync"
	"testing"
	"time"
)

// =============================================================================
// SPSC Tests
// =============================================================================

func TestSPSC_FIFO(t *testing.T) {
	r := NewSPSC[int](4)
	if r.Cap() != 3 {
		t.Errorf("Cap() = %d, want 3", r.Cap())
	}
	for i := range 3 {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed", i)
		}
	}
	if r.Push(99) {
		t.Error("Push on full ring should fail")
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	for i := range 3 {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Errorf("Pop() = %d, %v; want %d, true", v, ok, i)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop on empty ring should fail")
	}
}

func TestSPSC_WrapAround(t *testing.T) {
	r := NewSPSC[int](3)
	for i := range 10 {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed", i)
		}
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d, %v; want %d", v, ok, i)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSPSC_Concurrent(t *testing.T) {
	const n = 10000
	r := NewSPSC[int](64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Push(i) {
				i++
			}
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	for want := 0; want < n; {
		v, ok := r.Pop()
		if !ok {
			if time.Now().After(deadline) {
				t.Fatalf("timed out at %d", want)
			}
			continue
		}
		if v != want {
			t.Fatalf("Pop() = %d, want %d", v, want)
		}
		want++
	}
	wg.Wait()
}

// =============================================================================
// Guarded Tests
// =============================================================================

func TestGuarded_FullAndEmpty(t *testing.T) {
	r := NewGuarded[string](2)
	if !r.Push("a") {
		t.Fatal("Push(a) failed")
	}
	if r.Push("b") {
		t.Error("Push on full ring should fail")
	}
	v, ok := r.Pop()
	if !ok || v != "a" {
		t.Errorf("Pop() = %q, %v", v, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop on empty ring should fail")
	}
}

func TestGuarded_Drain(t *testing.T) {
	r := NewGuarded[int](8)
	for i := range 5 {
		r.Push(i)
	}
	var got []int
	n := r.Drain(func(v int) { got = append(got, v) })
	if n != 5 || len(got) != 5 {
		t.Fatalf("Drain() = %d (%v), want 5", n, got)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Drain = %d", r.Len())
	}
}

func TestGuarded_ManyProducers(t *testing.T) {
	const producers, each = 4, 500
	r := NewGuarded[int](producers*each + 1)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				if !r.Push(p*each + i) {
					t.Errorf("Push failed")
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	r.Drain(func(v int) { seen[v] = true })
	if len(seen) != producers*each {
		t.Errorf("drained %d distinct items, want %d", len(seen), producers*each)
	}
}

// =============================================================================
// Signal Tests
// =============================================================================

func TestSignal_NeverBlocks(t *testing.T) {
	s := NewSignal(2)
	for range 10 {
		s.Notify()
	}
	pending := 0
	for {
		select {
		case <-s.C():
			pending++
			continue
		default:
		}
		break
	}
	if pending != 2 {
		t.Errorf("pending wakes = %d, want 2", pending)
	}
}
