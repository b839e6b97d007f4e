// Package pagecache tracks which virtual texture pages occupy the slots of
// the physical page cache.
//
// Pages are held in an arena and found through a fixed table of hash
// buckets. A page is in the bucket table from the moment it is requested
// (pending) until it is evicted or purged. Once admitted it also owns a slot
// and sits in an LRU list whose tail is the next eviction victim.
//
// Cache is not thread-safe. The streaming engine confines it to the
// goroutine that runs the frame update.
package pagecache

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidSize is returned by New for unusable dimensions.
var ErrInvalidSize = errors.New("pagecache: invalid size")

// MaxSide is the largest cache width or height in slots.
const MaxSide = 1 << 14

// fibonacci is 2^64 divided by the golden ratio. Multiplying by it spreads
// packed keys evenly over the high bits.
const fibonacci = 0x9E3779B97F4A7C15

// Cache maps page identities to physical cache slots.
type Cache struct {
	width, height int

	buckets    []Handle
	bucketBits uint

	nodes []node
	free  Handle
	lru   lruList

	// filled counts slots handed out in row-major order. Slots are never
	// returned individually; once all are filled, new pages take the slot
	// of the LRU tail.
	filled int
	live   int
}

// New creates a cache of width×height slots with at least buckets hash
// buckets. The bucket count is rounded up to a power of two.
func New(width, height, buckets int) (*Cache, error) {
	if width < 1 || height < 1 || width > MaxSide || height > MaxSide {
		return nil, fmt.Errorf("%w: %dx%d slots", ErrInvalidSize, width, height)
	}
	if buckets < 1 {
		return nil, fmt.Errorf("%w: %d buckets", ErrInvalidSize, buckets)
	}
	nb := 1
	if buckets > 1 {
		nb = 1 << bits.Len(uint(buckets-1))
	}

	c := &Cache{
		width:      width,
		height:     height,
		buckets:    make([]Handle, nb),
		bucketBits: uint(bits.TrailingZeros(uint(nb))),
		nodes:      make([]node, 0, width*height),
		free:       Nil,
	}
	c.lru = newLRUList(&c.nodes)
	for i := range c.buckets {
		c.buckets[i] = Nil
	}
	return c, nil
}

// Capacity returns the number of slots.
func (c *Cache) Capacity() int { return c.width * c.height }

// Size returns the slot grid dimensions.
func (c *Cache) Size() (width, height int) { return c.width, c.height }

// Buckets returns the number of hash buckets.
func (c *Cache) Buckets() int { return len(c.buckets) }

// Len returns the number of pages known to the cache, pending or resident.
func (c *Cache) Len() int { return c.live }

// Resident returns the number of pages occupying slots.
func (c *Cache) Resident() int { return c.lru.Len() }

// Pending returns the number of pages requested but not yet admitted.
func (c *Cache) Pending() int { return c.live - c.lru.Len() }

func (c *Cache) bucket(key uint64) int {
	if c.bucketBits == 0 {
		return 0
	}
	return int((key * fibonacci) >> (64 - c.bucketBits))
}

// Lookup finds the page with the given identity.
func (c *Cache) Lookup(id PageID) (Handle, bool) {
	key := id.Key()
	for h := c.buckets[c.bucket(key)]; h != Nil; h = c.nodes[h].hashNext {
		if c.nodes[h].key == key {
			return h, true
		}
	}
	return Nil, false
}

// Page returns a snapshot of the page behind h.
func (c *Cache) Page(h Handle) Page { return c.nodes[h].page() }

// Insert adds a pending page to the hash index. The caller must have
// checked with Lookup that the identity is absent.
func (c *Cache) Insert(id PageID) Handle {
	h := c.alloc()
	n := &c.nodes[h]
	*n = node{
		id:    id,
		key:   id.Key(),
		slotX: -1,
		slotY: -1,
		prev:  Nil,
		next:  Nil,
	}
	b := c.bucket(n.key)
	n.hashNext = c.buckets[b]
	c.buckets[b] = h
	c.live++
	return h
}

// Promote marks a resident page as most recently used. Pending pages are
// not in the LRU and are left alone.
func (c *Cache) Promote(h Handle) {
	if c.nodes[h].resident() {
		c.lru.MoveToFront(h)
	}
}

// Admit gives the page behind h a slot and makes it most recently used.
//
// While free slots remain they are handed out in row-major order. After
// that the least recently used page is evicted: it loses its slot to h and
// leaves the hash index. The evicted page is returned so the caller can
// retire it from the indirection table.
//
// Admitting a page that is already resident only promotes it.
func (c *Cache) Admit(h Handle) (evicted Page, ok bool) {
	n := &c.nodes[h]
	if n.resident() {
		c.lru.MoveToFront(h)
		return Page{}, false
	}

	if c.filled < c.Capacity() {
		n.slotX = int16(c.filled % c.width)
		n.slotY = int16(c.filled / c.width)
		c.filled++
		c.lru.PushFront(h)
		return Page{}, false
	}

	victim := c.lru.Oldest()
	v := &c.nodes[victim]
	evicted = v.page()
	n.slotX, n.slotY = v.slotX, v.slotY
	c.lru.unlink(victim)
	c.release(victim)
	c.lru.PushFront(h)
	return evicted, true
}

// Remove drops a pending page. It reports false, and does nothing, when the
// page is resident: resident pages only leave through eviction or Purge.
func (c *Cache) Remove(h Handle) bool {
	if c.nodes[h].resident() {
		return false
	}
	c.release(h)
	return true
}

// Purge forgets every page and frees every slot.
func (c *Cache) Purge() {
	for i := range c.buckets {
		c.buckets[i] = Nil
	}
	c.nodes = c.nodes[:0]
	c.free = Nil
	c.lru.Clear()
	c.filled = 0
	c.live = 0
}

// Oldest returns the least recently used resident page.
func (c *Cache) Oldest() (Page, bool) {
	h := c.lru.Oldest()
	if h == Nil {
		return Page{}, false
	}
	return c.nodes[h].page(), true
}

// Each calls fn for every resident page from most to least recently used
// until fn returns false.
func (c *Cache) Each(fn func(Page) bool) {
	for h := c.lru.head; h != Nil; h = c.nodes[h].next {
		if !fn(c.nodes[h].page()) {
			return
		}
	}
}

// alloc takes a node from the free list or grows the arena.
func (c *Cache) alloc() Handle {
	if c.free != Nil {
		h := c.free
		c.free = c.nodes[h].hashNext
		return h
	}
	c.nodes = append(c.nodes, node{})
	return Handle(len(c.nodes) - 1)
}

// release unlinks h from its bucket chain and returns it to the free list.
// The node must already be out of the LRU.
func (c *Cache) release(h Handle) {
	n := &c.nodes[h]
	b := c.bucket(n.key)
	if c.buckets[b] == h {
		c.buckets[b] = n.hashNext
	} else {
		for p := c.buckets[b]; p != Nil; p = c.nodes[p].hashNext {
			if c.nodes[p].hashNext == h {
				c.nodes[p].hashNext = n.hashNext
				break
			}
		}
	}
	*n = node{hashNext: c.free, prev: Nil, next: Nil}
	c.free = h
	c.live--
}
