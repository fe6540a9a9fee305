package btree

import (
	"github.com/bobboyms/bptreeindex/pkg/key"
)

// splitChild is the Structural Mutator (§4.5). parent.children[idx] is a
// full node (order-1 keys); it must be write-locked by the caller, as
// must parent itself. k is the key about to be inserted somewhere at or
// below the split child; splitChild itself never looks at k for a leaf
// split (see splitLeaf) — it is accepted here only because the caller
// doesn't yet know which side of the split it will need to descend
// into, and passing it through keeps the dispatch uniform regardless of
// which half ends up holding it.
//
// splitChild never inserts k; it only makes room, dividing the full
// child's existing entries into two valid-sized halves. The caller
// inserts afterward, into whichever half the comparison against the new
// separator selects. The new sibling is returned write-locked; the
// caller releases whichever half it does not descend into.
func splitChild[K any, V any](parent, child *Node[K, V], idx int, k K, cmp key.Comparator[K], ar *arena[K, V]) (*Node[K, V], error) {
	if child.leaf {
		return splitLeaf(parent, child, idx, ar)
	}
	return splitInternal(parent, child, idx, ar)
}

// splitLeaf implements §4.5 "Leaf split": divide the full child's
// existing order-1 entries in half at s = ceil(n/2), splice the new
// leaf into the sibling chain, and promote the sibling's first key as
// the separator into the parent. The key that triggered the split is
// not placed by this function at all — the caller inserts it afterward
// via insertIntoLeaf, into whichever half the separator comparison
// selects, exactly like a normal non-full leaf insert.
func splitLeaf[K any, V any](parent, child *Node[K, V], idx int, ar *arena[K, V]) (*Node[K, V], error) {
	s := ceilDiv(child.n, 2)

	sibling, err := ar.allocateLeaf()
	if err != nil {
		return nil, err
	}

	sibling.keys = append(sibling.keys, child.keys[s:]...)
	sibling.recs = append(sibling.recs, child.recs[s:]...)
	sibling.n = child.n - s
	sibling.parent = parent

	child.keys = child.keys[:s]
	child.recs = child.recs[:s]
	child.n = s

	// Splice into the sibling chain before publication.
	sibling.Lock()
	sibling.next = child.next
	child.next = sibling

	separator := sibling.keys[0]
	insertSeparator(parent, idx, separator, sibling)

	return sibling, nil
}

// splitInternal implements §4.5 "Internal split": split point
// s = floor(B/2); the key at index s is promoted further upward; the
// left s keys and s+1 children stay, the rest move to a new node whose
// children inherit the new node's parent back-reference.
func splitInternal[K any, V any](parent, child *Node[K, V], idx int, ar *arena[K, V]) (*Node[K, V], error) {
	order := child.order
	s := order / 2

	sibling, err := ar.allocateInternal()
	if err != nil {
		return nil, err
	}
	sibling.Lock()

	separator := child.keys[s]

	sibling.keys = append(sibling.keys, child.keys[s+1:]...)
	sibling.children = append(sibling.children, child.children[s+1:]...)
	sibling.n = len(sibling.keys)
	sibling.parent = parent
	for _, c := range sibling.children {
		c.Lock()
		c.parent = sibling
		c.Unlock()
	}

	child.keys = child.keys[:s]
	child.children = child.children[:s+1]
	child.n = s

	insertSeparator(parent, idx, separator, sibling)

	return sibling, nil
}

// insertSeparator is "parent propagate" (§4.5) restricted to the
// in-place case: the caller has already verified parent has room
// (parent was entered during descent only after being split itself, so
// it can never be full here under the preventive top-down scheme this
// tree uses — see tree.go).
func insertSeparator[K any, V any](parent *Node[K, V], idx int, separator K, right *Node[K, V]) {
	parent.keys = append(parent.keys, separator)
	copy(parent.keys[idx+1:], parent.keys[idx:])
	parent.keys[idx] = separator

	parent.children = append(parent.children, nil)
	copy(parent.children[idx+2:], parent.children[idx+1:])
	parent.children[idx+1] = right

	parent.n++
}
