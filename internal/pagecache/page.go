package pagecache

import "fmt"

// PageID identifies a page of the virtual texture by grid position and mip.
type PageID struct {
	X, Y int
	Mip  int
}

// Key packs the identity into 64 bits: mip in bits 48..55, y in 24..47,
// x in 0..23. Distinct in-range pages always have distinct keys.
func (id PageID) Key() uint64 {
	return uint64(id.Mip&0xFF)<<48 | uint64(id.Y&0xFFFFFF)<<24 | uint64(id.X&0xFFFFFF)
}

// Parent returns the page one mip coarser that covers id.
func (id PageID) Parent() PageID {
	return PageID{X: id.X >> 1, Y: id.Y >> 1, Mip: id.Mip + 1}
}

// String returns "(x,y)@mip".
func (id PageID) String() string {
	return fmt.Sprintf("(%d,%d)@%d", id.X, id.Y, id.Mip)
}

// Page is a snapshot of a cached page.
type Page struct {
	ID PageID

	// SlotX and SlotY locate the page in the physical cache texture.
	// Both are -1 while the page is pending.
	SlotX, SlotY int
}

// Resident reports whether the page occupies a cache slot.
func (p Page) Resident() bool { return p.SlotX >= 0 }

// Handle refers to a page inside the cache arena. Handles are invalidated
// when their page is evicted, removed, or purged.
type Handle int32

// Nil is the invalid handle.
const Nil Handle = -1

// node is one arena entry. Links are arena indices instead of pointers;
// a free node reuses hashNext as its free-list link.
type node struct {
	id       PageID
	key      uint64
	slotX    int16
	slotY    int16
	hashNext Handle
	prev     Handle
	next     Handle
}

func (n *node) resident() bool { return n.slotX >= 0 }

func (n *node) page() Page {
	return Page{ID: n.id, SlotX: int(n.slotX), SlotY: int(n.slotY)}
}
