package pagecache

import (
	"errors"
	"testing"
)

func mustNew(t *testing.T, w, h, buckets int) *Cache {
	t.Helper()
	c, err := New(w, h, buckets)
	if err != nil {
		t.Fatalf("New(%d, %d, %d): %v", w, h, buckets, err)
	}
	return c
}

// request mirrors what the engine does for a page: insert if absent,
// then admit.
func request(t *testing.T, c *Cache, id PageID) (Handle, Page, bool) {
	t.Helper()
	h, ok := c.Lookup(id)
	if !ok {
		h = c.Insert(id)
	}
	ev, evicted := c.Admit(h)
	return h, ev, evicted
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Invalid(t *testing.T) {
	cases := [][3]int{{0, 4, 16}, {4, 0, 16}, {4, 4, 0}, {MaxSide + 1, 1, 1}}
	for _, c := range cases {
		if _, err := New(c[0], c[1], c[2]); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("New(%v) error = %v, want ErrInvalidSize", c, err)
		}
	}
}

func TestNew_BucketsRoundedUp(t *testing.T) {
	tests := []struct{ in, want int }{{1, 1}, {3, 4}, {4096, 4096}, {5000, 8192}}
	for _, tt := range tests {
		c := mustNew(t, 2, 2, tt.in)
		if c.Buckets() != tt.want {
			t.Errorf("Buckets() for %d = %d, want %d", tt.in, c.Buckets(), tt.want)
		}
	}
}

func TestPageID_KeyDistinct(t *testing.T) {
	seen := make(map[uint64]PageID)
	for mip := range 4 {
		for y := range 8 {
			for x := range 8 {
				id := PageID{X: x, Y: y, Mip: mip}
				if prev, dup := seen[id.Key()]; dup {
					t.Fatalf("Key collision between %v and %v", prev, id)
				}
				seen[id.Key()] = id
			}
		}
	}
}

// =============================================================================
// Admission and Eviction Tests
// =============================================================================

func TestCache_FourSlotEviction(t *testing.T) {
	c := mustNew(t, 2, 2, 16)
	a := PageID{X: 0, Y: 0, Mip: 0}
	ids := []PageID{a, {X: 1, Mip: 0}, {X: 2, Mip: 0}, {X: 3, Mip: 0}}

	wantSlots := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, id := range ids {
		h, _, evicted := request(t, c, id)
		if evicted {
			t.Fatalf("admitting %v evicted a page with free slots left", id)
		}
		p := c.Page(h)
		if p.SlotX != wantSlots[i][0] || p.SlotY != wantSlots[i][1] {
			t.Errorf("%v slot = (%d,%d), want %v", id, p.SlotX, p.SlotY, wantSlots[i])
		}
	}

	e := PageID{X: 4, Mip: 0}
	h, victim, evicted := request(t, c, e)
	if !evicted {
		t.Fatal("admitting a fifth page should evict")
	}
	if victim.ID != a {
		t.Errorf("evicted %v, want %v", victim.ID, a)
	}
	p := c.Page(h)
	if p.SlotX != 0 || p.SlotY != 0 {
		t.Errorf("E slot = (%d,%d), want A's slot (0,0)", p.SlotX, p.SlotY)
	}
	if _, ok := c.Lookup(a); ok {
		t.Error("evicted page A is still in the hash index")
	}
	if c.Resident() != 4 {
		t.Errorf("Resident() = %d, want 4", c.Resident())
	}
}

func TestCache_PromoteChangesVictim(t *testing.T) {
	c := mustNew(t, 2, 1, 4)
	a, b := PageID{X: 0}, PageID{X: 1}
	ha, _, _ := request(t, c, a)
	request(t, c, b)

	c.Promote(ha)

	_, victim, evicted := request(t, c, PageID{X: 2})
	if !evicted || victim.ID != b {
		t.Errorf("evicted %v (%v), want %v", victim.ID, evicted, b)
	}
}

func TestCache_DistinctSlots(t *testing.T) {
	c := mustNew(t, 4, 4, 8)
	slots := make(map[[2]int]PageID)
	for i := range 16 {
		id := PageID{X: i % 8, Y: i / 8, Mip: 1}
		h, _, _ := request(t, c, id)
		p := c.Page(h)
		if !p.Resident() {
			t.Fatalf("%v not resident after Admit", id)
		}
		if p.SlotX < 0 || p.SlotX >= 4 || p.SlotY < 0 || p.SlotY >= 4 {
			t.Fatalf("%v slot (%d,%d) out of range", id, p.SlotX, p.SlotY)
		}
		k := [2]int{p.SlotX, p.SlotY}
		if other, dup := slots[k]; dup {
			t.Fatalf("%v and %v share slot %v", other, id, k)
		}
		slots[k] = id
	}
}

func TestCache_ResidentNeverExceedsCapacity(t *testing.T) {
	c := mustNew(t, 3, 3, 4)
	for i := range 100 {
		request(t, c, PageID{X: i, Y: i % 7, Mip: i % 3})
		if c.Resident() > c.Capacity() {
			t.Fatalf("Resident() = %d exceeds capacity %d", c.Resident(), c.Capacity())
		}
	}
	if c.Len() != c.Capacity() {
		t.Errorf("Len() = %d, want %d", c.Len(), c.Capacity())
	}
}

func TestCache_EvictsTrueLRU(t *testing.T) {
	c := mustNew(t, 4, 1, 2)
	handles := make([]Handle, 4)
	for i := range 4 {
		handles[i], _, _ = request(t, c, PageID{X: i})
	}
	// Use order after promotion: 2, 0, 3, 1 (1 is oldest).
	c.Promote(handles[3])
	c.Promote(handles[0])
	c.Promote(handles[2])

	var order []int
	c.Each(func(p Page) bool {
		order = append(order, p.ID.X)
		return true
	})
	want := []int{2, 0, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("LRU order = %v, want %v", order, want)
		}
	}

	oldest, _ := c.Oldest()
	_, victim, _ := request(t, c, PageID{X: 9})
	if victim.ID != oldest.ID || victim.ID.X != 1 {
		t.Errorf("evicted %v, want oldest %v", victim.ID, oldest.ID)
	}
}

func TestCache_AdmitResidentKeepsSlot(t *testing.T) {
	c := mustNew(t, 2, 2, 4)
	h, _, _ := request(t, c, PageID{X: 5})
	before := c.Page(h)

	if _, evicted := c.Admit(h); evicted {
		t.Error("re-admitting a resident page evicted something")
	}
	after := c.Page(h)
	if before != after {
		t.Errorf("slot changed from %+v to %+v", before, after)
	}
	if c.Resident() != 1 {
		t.Errorf("Resident() = %d, want 1", c.Resident())
	}
}

// =============================================================================
// Lookup and Hash Tests
// =============================================================================

func TestCache_LookupHitIsIdempotent(t *testing.T) {
	c := mustNew(t, 2, 2, 4)
	id := PageID{X: 3, Y: 1, Mip: 2}
	h := c.Insert(id)
	for range 3 {
		got, ok := c.Lookup(id)
		if !ok || got != h {
			t.Fatalf("Lookup = %v, %v; want %v, true", got, ok, h)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if c.Pending() != 1 || c.Resident() != 0 {
		t.Errorf("Pending/Resident = %d/%d, want 1/0", c.Pending(), c.Resident())
	}
}

func TestCache_SingleBucketChains(t *testing.T) {
	c := mustNew(t, 8, 8, 1)
	var hs []Handle
	for i := range 10 {
		hs = append(hs, c.Insert(PageID{X: i}))
	}
	// Remove from the middle, head and tail of the chain.
	for _, i := range []int{5, 9, 0} {
		if !c.Remove(hs[i]) {
			t.Fatalf("Remove(%d) failed", i)
		}
	}
	for i := range 10 {
		_, ok := c.Lookup(PageID{X: i})
		want := i != 5 && i != 9 && i != 0
		if ok != want {
			t.Errorf("Lookup(X=%d) = %v, want %v", i, ok, want)
		}
	}
}

func TestCache_RemoveResidentRefused(t *testing.T) {
	c := mustNew(t, 1, 1, 1)
	h, _, _ := request(t, c, PageID{})
	if c.Remove(h) {
		t.Error("Remove on a resident page should fail")
	}
	if _, ok := c.Lookup(PageID{}); !ok {
		t.Error("resident page vanished")
	}
}

func TestCache_FreeListReuse(t *testing.T) {
	c := mustNew(t, 2, 2, 4)
	h := c.Insert(PageID{X: 1})
	c.Remove(h)
	h2 := c.Insert(PageID{X: 2})
	if h2 != h {
		t.Errorf("Insert after Remove = handle %d, want reused %d", h2, h)
	}
	if len(c.nodes) != 1 {
		t.Errorf("arena length = %d, want 1", len(c.nodes))
	}
}

// =============================================================================
// Purge Tests
// =============================================================================

func TestCache_Purge(t *testing.T) {
	c := mustNew(t, 2, 2, 4)
	for i := range 6 {
		request(t, c, PageID{X: i})
	}
	c.Insert(PageID{X: 100})
	c.Purge()

	if c.Len() != 0 || c.Resident() != 0 {
		t.Errorf("after Purge Len/Resident = %d/%d", c.Len(), c.Resident())
	}
	if _, ok := c.Oldest(); ok {
		t.Error("Oldest() after Purge should be empty")
	}
	for i := range 6 {
		if _, ok := c.Lookup(PageID{X: i}); ok {
			t.Errorf("page %d still present after Purge", i)
		}
	}

	h, _, evicted := request(t, c, PageID{X: 7})
	if evicted {
		t.Error("admission after Purge should use a free slot")
	}
	if p := c.Page(h); p.SlotX != 0 || p.SlotY != 0 {
		t.Errorf("first slot after Purge = (%d,%d), want (0,0)", p.SlotX, p.SlotY)
	}
}
