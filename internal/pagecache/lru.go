package pagecache

// lruList is a doubly-linked list threaded through the node arena.
// The list is not thread-safe; callers must handle synchronization.
//
// The head is the most recently used, tail is least recently used.
type lruList struct {
	nodes *[]node
	head  Handle
	tail  Handle
	len   int
}

func newLRUList(nodes *[]node) lruList {
	return lruList{nodes: nodes, head: Nil, tail: Nil}
}

func (l *lruList) at(h Handle) *node { return &(*l.nodes)[h] }

// Len returns the number of nodes in the list.
func (l *lruList) Len() int { return l.len }

// PushFront links h at the front (most recently used).
func (l *lruList) PushFront(h Handle) {
	n := l.at(h)
	n.prev = Nil
	n.next = l.head
	if l.head != Nil {
		l.at(l.head).prev = h
	} else {
		l.tail = h
	}
	l.head = h
	l.len++
}

// MoveToFront moves a linked node to the front.
func (l *lruList) MoveToFront(h Handle) {
	if h == l.head {
		return
	}
	l.unlink(h)
	l.PushFront(h)
}

// Oldest returns the least recently used node, or Nil.
func (l *lruList) Oldest() Handle { return l.tail }

// Clear forgets every node without touching the arena.
func (l *lruList) Clear() {
	l.head = Nil
	l.tail = Nil
	l.len = 0
}

// unlink removes h from the list and clears its links.
func (l *lruList) unlink(h Handle) {
	n := l.at(h)
	if n.prev != Nil {
		l.at(n.prev).next = n.next
	} else {
		l.head = n.next
	}
	if n.next != Nil {
		l.at(n.next).prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = Nil
	n.next = Nil
	l.len--
}
