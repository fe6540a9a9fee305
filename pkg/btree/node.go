// Package btree implements a generic, thread-safe B+ tree index. Keys
// are ordered by a user-supplied Comparator; values are opaque to the
// tree. Concurrent descent uses hand-over-hand (crabbing) lock coupling
// on a per-node read/write lock, as described in the design's Descent
// Engine and Structural Mutator.
package btree

import (
	"sort"
	"sync"

	"github.com/bobboyms/bptreeindex/pkg/key"
)

// record is the single-field wrapper around a caller value, giving a
// stable place to hang per-entry metadata without touching V itself.
type record[V any] struct {
	value V
}

// Node is either a leaf or an internal (routing) node. Internal nodes
// hold children and separator keys; leaves hold records and the
// sibling-chain pointer used by the range scanner.
type Node[K any, V any] struct {
	order    int // B: max children per internal node; max keys = order-1
	keys     []K
	recs     []*record[V]  // leaf only, len == n
	children []*Node[K, V] // internal only, len == n+1
	leaf     bool
	n        int
	next     *Node[K, V] // leaf sibling chain, nil at the rightmost leaf
	parent   *Node[K, V] // weak upward reference; never owning

	mu sync.RWMutex
}

func newNode[K any, V any](order int, leaf bool) *Node[K, V] {
	return &Node[K, V]{
		order:    order,
		leaf:     leaf,
		keys:     make([]K, 0, order),
		recs:     make([]*record[V], 0, order),
		children: make([]*Node[K, V], 0, order+1),
	}
}

// Lock helpers are nil-safe so callers never need a branch before
// coupling a lock onto a possibly-absent sibling or child.

func (n *Node[K, V]) Lock() {
	if n != nil {
		n.mu.Lock()
	}
}

func (n *Node[K, V]) Unlock() {
	if n != nil {
		n.mu.Unlock()
	}
}

func (n *Node[K, V]) RLock() {
	if n != nil {
		n.mu.RLock()
	}
}

func (n *Node[K, V]) RUnlock() {
	if n != nil {
		n.mu.RUnlock()
	}
}

// isFull reports whether the node holds the maximum key count (order-1)
// and must be split before another entry can be placed in it.
func (n *Node[K, V]) isFull() bool {
	return n.n == n.order-1
}

// minFillLeaf and minFillInternal give the design's "minimum fill" invariant (§3.5): leaves must
// hold at least ceil(order/2) keys, internal nodes at least
// ceil((order-1)/2), outside an active structural mutation.
func minFillLeaf(order int) int {
	return ceilDiv(order, 2)
}

func minFillInternal(order int) int {
	return ceilDiv(order-1, 2)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// findChildIndex returns the index of the child to descend into for key
// k: the first position i such that k < keys[i], i.e. the classic
// upper-bound search used throughout the descent engine.
func (n *Node[K, V]) findChildIndex(k K, cmp key.Comparator[K]) int {
	return sort.Search(n.n, func(i int) bool {
		return cmp(n.keys[i], k) > 0
	})
}

// searchLeaf returns the index of k within a leaf's key slice and true,
// or, if k is absent, the index at which k would be inserted and false.
// Uses binary search since keys are kept sorted.
func (n *Node[K, V]) searchLeaf(k K, cmp key.Comparator[K]) (int, bool) {
	idx := sort.Search(n.n, func(i int) bool {
		return cmp(n.keys[i], k) >= 0
	})
	if idx < n.n && cmp(n.keys[idx], k) == 0 {
		return idx, true
	}
	return idx, false
}
