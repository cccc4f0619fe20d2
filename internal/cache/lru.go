package cache

// node is an element of the recency list. It carries the cached value so
// a hit touches one allocation.
type node[K comparable, V any] struct {
	key   K
	value V
	frame uint64

	prev, next *node[K, V]
}

// lruList is a circular doubly-linked list around a sentinel. The node
// after the sentinel is the most recently used, the node before it the
// least recently used.
type lruList[K comparable, V any] struct {
	root node[K, V]
	len  int
}

func (l *lruList[K, V]) init() {
	l.root.next = &l.root
	l.root.prev = &l.root
	l.len = 0
}

func (l *lruList[K, V]) pushFront(n *node[K, V]) {
	n.prev = &l.root
	n.next = l.root.next
	l.root.next.prev = n
	l.root.next = n
	l.len++
}

func (l *lruList[K, V]) remove(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	l.len--
}

func (l *lruList[K, V]) moveToFront(n *node[K, V]) {
	if l.root.next == n {
		return
	}
	l.remove(n)
	l.pushFront(n)
}

// back returns the least recently used node, or nil.
func (l *lruList[K, V]) back() *node[K, V] {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}
