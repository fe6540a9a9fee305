package btree

import (
	"fmt"

	treeerrors "github.com/bobboyms/bptreeindex/pkg/errors"
)

// arena allocates and frees nodes and records for one tree. It never
// publishes a node into the tree's structure itself — the caller wires
// parent/sibling references under the appropriate write lock before the
// node becomes reachable, per the design's Node Arena contract (§4.1).
type arena[K any, V any] struct {
	order int
	// failNext, when non-nil, is consulted before every allocation and
	// lets tests deterministically exercise the retryable out-of-memory
	// path without exhausting real memory.
	failNext func() bool
	destroy  func(V)
}

func newArena[K any, V any](order int, destroy func(V)) *arena[K, V] {
	return &arena[K, V]{order: order, destroy: destroy}
}

// allocateLeaf returns a freshly allocated, empty leaf node: n=0, no
// parent, no sibling, lock unheld.
func (a *arena[K, V]) allocateLeaf() (*Node[K, V], error) {
	if a.failNext != nil && a.failNext() {
		return nil, &treeerrors.OutOfMemoryError{Reason: "leaf allocation"}
	}
	return newNode[K, V](a.order, true), nil
}

// allocateInternal returns a freshly allocated, empty internal node.
func (a *arena[K, V]) allocateInternal() (*Node[K, V], error) {
	if a.failNext != nil && a.failNext() {
		return nil, &treeerrors.OutOfMemoryError{Reason: "internal node allocation"}
	}
	return newNode[K, V](a.order, false), nil
}

// freeNodeShallow releases a node's arrays and lets its synchronization
// primitive be garbage collected. It does not recurse into children or
// records; the caller is responsible for those (Deletion Coordinator
// frees records explicitly via freeRecord; teardown walks post-order).
func (a *arena[K, V]) freeNodeShallow(n *Node[K, V]) {
	n.keys = nil
	n.recs = nil
	n.children = nil
	n.next = nil
	n.parent = nil
}

// freeRecord invokes the value destructor at most once, then lets the
// record be garbage collected.
func (a *arena[K, V]) freeRecord(r *record[V]) {
	if r == nil {
		return
	}
	if a.destroy != nil {
		a.destroy(r.value)
	}
}

func (a *arena[K, V]) allocateRecord(v V) *record[V] {
	return &record[V]{value: v}
}

func (a *arena[K, V]) String() string {
	return fmt.Sprintf("arena(order=%d)", a.order)
}
