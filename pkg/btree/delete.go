package btree

import (
	treeerrors "github.com/bobboyms/bptreeindex/pkg/errors"
)

// Delete implements spec §6 delete() / §4.7 the Deletion Coordinator.
// Descent is write-locked and, like Insert, fixes underflow
// preemptively on the way down: before stepping into a child, the
// caller ensures that child holds more than the minimum fill, borrowing
// from a sibling or coalescing with one if it doesn't. This keeps the
// same lock-coupling shape as insertion — a node is entered for
// mutation only once its parent has already made it safe to mutate.
//
// Preference order per spec §4.7 and the open question it flags:
// redistribute from the right sibling first, then the left, then
// coalesce (right sibling preferred, else left).
func (t *Tree[K, V]) Delete(k K) error {
	t.mu.Lock()
	root := t.root
	root.Lock()
	t.mu.Unlock()

	var err error
	if root.leaf {
		err = t.removeFromLeaf(root, k)
		root.Unlock()
	} else {
		err = t.deleteTopDown(root, k)
	}

	// Preemptive fixups above the leaf can shrink the root's key count
	// to zero (its two remaining children merged into one) even when
	// the key itself turns out to be absent, so this runs regardless
	// of err.
	t.adjustRoot()
	return err
}

// deleteTopDown assumes curr (internal) is already write-locked and
// releases exactly the locks it acquires.
func (t *Tree[K, V]) deleteTopDown(curr *Node[K, V], k K) error {
	for !curr.leaf {
		i := curr.findChildIndex(k, t.cmp)
		child := curr.children[i]
		child.Lock()

		if child.n <= minFillFor(child, t.order) {
			child, i = t.fixUnderfull(curr, i, child)
		}

		curr.Unlock()
		curr = child
	}

	defer curr.Unlock()
	return t.removeFromLeaf(curr, k)
}

// removeFromLeaf is the Leaf Operations "remove" (§4.4). Precondition:
// caller holds curr's write lock.
func (t *Tree[K, V]) removeFromLeaf(curr *Node[K, V], k K) error {
	idx, exists := curr.searchLeaf(k, t.cmp)
	if !exists {
		return &treeerrors.NotFoundError{Key: formatKey(k)}
	}

	t.ar.freeRecord(curr.recs[idx])
	curr.keys = append(curr.keys[:idx], curr.keys[idx+1:]...)
	curr.recs = append(curr.recs[:idx], curr.recs[idx+1:]...)
	curr.n--
	return nil
}

func minFillFor[K any, V any](n *Node[K, V], order int) int {
	if n.leaf {
		return minFillLeaf(order)
	}
	return minFillInternal(order)
}

// fixUnderfull restores curr.children[i] (== child, already write-locked
// by the caller) to more than minimum fill, returning the node the
// caller should actually descend into next along with its current index
// under curr (these can differ from child/i when child was coalesced
// into its left sibling).
func (t *Tree[K, V]) fixUnderfull(curr *Node[K, V], i int, child *Node[K, V]) (*Node[K, V], int) {
	if i < curr.n {
		right := curr.children[i+1]
		right.Lock()
		if right.n > minFillFor(right, t.order) {
			t.borrowFromNext(curr, i)
			right.Unlock()
			return child, i
		}
		if i > 0 {
			left := curr.children[i-1]
			left.Lock()
			if left.n > minFillFor(left, t.order) {
				t.borrowFromPrev(curr, i)
				left.Unlock()
				right.Unlock()
				return child, i
			}
			left.Unlock()
		}
		t.mergeWithRight(curr, i)
		right.Unlock()
		return child, i
	}

	left := curr.children[i-1]
	left.Lock()
	if left.n > minFillFor(left, t.order) {
		t.borrowFromPrev(curr, i)
		left.Unlock()
		return child, i
	}
	t.mergeWithLeft(curr, i)
	child.Unlock()
	return left, i - 1
}

// borrowFromNext moves one entry from curr.children[i+1] into
// curr.children[i], updating the shared separator curr.keys[i].
func (t *Tree[K, V]) borrowFromNext(curr *Node[K, V], i int) {
	child := curr.children[i]
	sibling := curr.children[i+1]

	if child.leaf {
		child.keys = append(child.keys, sibling.keys[0])
		child.recs = append(child.recs, sibling.recs[0])
		child.n++

		sibling.keys = sibling.keys[1:]
		sibling.recs = sibling.recs[1:]
		sibling.n--

		curr.keys[i] = sibling.keys[0]
		return
	}

	child.keys = append(child.keys, curr.keys[i])
	movedChild := sibling.children[0]
	child.children = append(child.children, movedChild)
	movedChild.Lock()
	movedChild.parent = child
	movedChild.Unlock()
	child.n++

	curr.keys[i] = sibling.keys[0]
	sibling.keys = sibling.keys[1:]
	sibling.children = sibling.children[1:]
	sibling.n--
}

// borrowFromPrev moves one entry from curr.children[i-1] into
// curr.children[i], updating the shared separator curr.keys[i-1].
func (t *Tree[K, V]) borrowFromPrev(curr *Node[K, V], i int) {
	child := curr.children[i]
	sibling := curr.children[i-1]
	last := sibling.n - 1

	if child.leaf {
		child.keys = append([]K{sibling.keys[last]}, child.keys...)
		child.recs = append([]*record[V]{sibling.recs[last]}, child.recs...)
		child.n++

		sibling.keys = sibling.keys[:last]
		sibling.recs = sibling.recs[:last]
		sibling.n--

		curr.keys[i-1] = child.keys[0]
		return
	}

	movedChild := sibling.children[sibling.n]
	child.keys = append([]K{curr.keys[i-1]}, child.keys...)
	child.children = append([]*Node[K, V]{movedChild}, child.children...)
	movedChild.Lock()
	movedChild.parent = child
	movedChild.Unlock()
	child.n++

	curr.keys[i-1] = sibling.keys[last]
	sibling.keys = sibling.keys[:last]
	sibling.children = sibling.children[:sibling.n]
	sibling.n--
}

// mergeWithRight coalesces curr.children[i+1] into curr.children[i],
// drops the separator curr.keys[i], and frees the absorbed node.
func (t *Tree[K, V]) mergeWithRight(curr *Node[K, V], i int) {
	child := curr.children[i]
	right := curr.children[i+1]

	if child.leaf {
		child.keys = append(child.keys, right.keys...)
		child.recs = append(child.recs, right.recs...)
		child.next = right.next
		child.n = len(child.keys)
	} else {
		child.keys = append(child.keys, curr.keys[i])
		child.keys = append(child.keys, right.keys...)
		child.children = append(child.children, right.children...)
		for _, c := range right.children {
			c.Lock()
			c.parent = child
			c.Unlock()
		}
		child.n = len(child.keys)
	}

	curr.keys = append(curr.keys[:i], curr.keys[i+1:]...)
	curr.children = append(curr.children[:i+1], curr.children[i+2:]...)
	curr.n--

	t.ar.freeNodeShallow(right)
}

// mergeWithLeft coalesces curr.children[i] into curr.children[i-1],
// drops the separator curr.keys[i-1], and frees the absorbed node. The
// surviving node is the left sibling.
func (t *Tree[K, V]) mergeWithLeft(curr *Node[K, V], i int) {
	child := curr.children[i]
	left := curr.children[i-1]

	if left.leaf {
		left.keys = append(left.keys, child.keys...)
		left.recs = append(left.recs, child.recs...)
		left.next = child.next
		left.n = len(left.keys)
	} else {
		left.keys = append(left.keys, curr.keys[i-1])
		left.keys = append(left.keys, child.keys...)
		left.children = append(left.children, child.children...)
		for _, c := range child.children {
			c.Lock()
			c.parent = left
			c.Unlock()
		}
		left.n = len(left.keys)
	}

	curr.keys = append(curr.keys[:i-1], curr.keys[i:]...)
	curr.children = append(curr.children[:i], curr.children[i+1:]...)
	curr.n--

	t.ar.freeNodeShallow(child)
}

// adjustRoot implements §4.7 "Root adjustment": once a merge empties an
// internal root down to its single remaining child, that child is
// promoted to root and the old root is freed. An empty leaf root is
// retained, per spec §3 invariant 6.
func (t *Tree[K, V]) adjustRoot() {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := t.root
	root.Lock()
	defer root.Unlock()

	if root.leaf || root.n > 0 {
		return
	}

	newRoot := root.children[0]
	newRoot.Lock()
	newRoot.parent = nil
	newRoot.Unlock()

	t.ar.freeNodeShallow(root)
	t.root = newRoot
}
