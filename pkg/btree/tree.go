package btree

import (
	"fmt"
	"sync"

	treeerrors "github.com/bobboyms/bptreeindex/pkg/errors"
	"github.com/bobboyms/bptreeindex/pkg/key"
)

// MinOrder is the smallest legal branching factor (spec §8 boundary
// case: order 3 is the smallest tree that can still split).
const MinOrder = 3

// Options configures a Tree at creation time, following the teacher's
// wal.Options/DefaultOptions construction-time-configuration idiom.
type Options[K any, V any] struct {
	// Order is the branching factor B: max children of an internal
	// node; max keys per node is Order-1. Must be >= MinOrder.
	Order int

	// Comparator is the required total order over keys.
	Comparator key.Comparator[K]

	// Destroy is the optional value destructor, invoked at most once
	// per value on removal or teardown.
	Destroy func(V)

	// KeyCodec and ValueCodec are optional (de)serializers used only
	// by Dump/Load (spec §6). Find/Insert/Delete never touch them.
	KeyCodec   *key.Codec[K]
	ValueCodec *key.Codec[V]
}

// Tree is the process-resident handle described in spec §3: "Tree
// Handle". Root replacement happens only under mu with the old root's
// own lock also held, so concurrent readers either observe the old root
// and finish their traversal there, or re-read mu-protected t.root and
// start fresh at the new one — never a half-built root.
type Tree[K any, V any] struct {
	order int
	cmp   key.Comparator[K]
	ar    *arena[K, V]

	keyCodec   *key.Codec[K]
	valueCodec *key.Codec[V]

	mu   sync.RWMutex
	root *Node[K, V]
}

// New creates a tree handle. Returns InvalidArgumentError if order is
// below MinOrder or no comparator was supplied.
func New[K any, V any](opts Options[K, V]) (*Tree[K, V], error) {
	if opts.Order < MinOrder {
		return nil, &treeerrors.InvalidArgumentError{Reason: "order below minimum legal branching factor of 3"}
	}
	if opts.Comparator == nil {
		return nil, &treeerrors.InvalidArgumentError{Reason: "nil comparator"}
	}

	ar := newArena[K, V](opts.Order, opts.Destroy)
	root := newNode[K, V](opts.Order, true)

	return &Tree[K, V]{
		order:      opts.Order,
		cmp:        opts.Comparator,
		ar:         ar,
		keyCodec:   opts.KeyCodec,
		valueCodec: opts.ValueCodec,
		root:       root,
	}, nil
}

// Close tears down the tree: a single-threaded, post-order walk that
// destroys every value through the destructor hook, then frees records
// and nodes. The caller must ensure no other goroutine holds a
// reference to the tree when Close begins (spec §5, "Teardown is
// single-threaded").
func (t *Tree[K, V]) Close() {
	if t == nil || t.root == nil {
		return
	}
	t.teardown(t.root)
	t.root = nil
}

func (t *Tree[K, V]) teardown(n *Node[K, V]) {
	if n == nil {
		return
	}
	if n.leaf {
		for _, r := range n.recs {
			t.ar.freeRecord(r)
		}
	} else {
		for _, c := range n.children {
			t.teardown(c)
		}
	}
	t.ar.freeNodeShallow(n)
}

// Insert implements spec §6 insert(): ok | duplicate | invalid-argument
// | out-of-memory. Descent uses preventive top-down splitting rather
// than the reactive, propagate-upward-after-the-fact scheme spec §4.3/
// §4.5 describe: a full node is split the moment it is about to be
// entered, so a write never has to climb back up to propagate a
// separator. This is a deliberate implementation choice (both schemes
// are well-known and hold the same entries, though preventive splitting
// can split a full node that a reactive insert would have left alone,
// so node layout can differ), made so the write
// path can reuse the same single-pass, lock-coupled descent shape §4.3
// already describes for reads, rather than requiring a second upward
// pass. At every step along the descent, at most a parent and its one
// child (or, for one step, a child and its freshly split sibling) are
// held locked together — never two unrelated tree locks, and never a
// lock above the current level once it releases — so the per-step
// acquisition order (parent before child, never the reverse) matches
// §5's fixed-order requirement.
func (t *Tree[K, V]) Insert(k K, v V) error {
	t.mu.Lock()
	root := t.root
	root.Lock()

	if root.isFull() {
		grown, dup, err := t.splitRootIfGrowing(root, k)
		if err != nil {
			root.Unlock()
			t.mu.Unlock()
			return err
		}
		if dup {
			t.mu.Unlock()
			defer root.Unlock()
			return t.insertIntoLeaf(root, k, v)
		}
		if grown != nil {
			t.root = grown
			t.mu.Unlock()
			grown.Lock()
			root.Unlock()
			return t.insertTopDown(grown, k, v)
		}
	}

	t.mu.Unlock()
	return t.insertTopDown(root, k, v)
}

// splitRootIfGrowing decides, while still holding t.mu and the old
// root's write lock, whether a full root actually needs to grow the
// tree's height. It returns (nil, true, nil) when the root is a full
// leaf already holding k (a duplicate — no structural change is
// warranted), or (newRoot, false, nil) once the old root has been split
// under a freshly allocated internal root.
func (t *Tree[K, V]) splitRootIfGrowing(root *Node[K, V], k K) (newRoot *Node[K, V], duplicate bool, err error) {
	if root.leaf {
		if _, exists := root.searchLeaf(k, t.cmp); exists {
			return nil, true, nil
		}
	}

	nr, err := t.ar.allocateInternal()
	if err != nil {
		return nil, false, err
	}
	nr.children = append(nr.children, root)
	root.parent = nr

	sibling, err := splitChild(nr, root, 0, k, t.cmp, t.ar)
	if err != nil {
		return nil, false, err
	}
	sibling.Unlock()
	return nr, false, nil
}

// insertTopDown assumes curr is already write-locked by the caller and
// releases exactly the locks it acquires, per the hand-over-hand
// discipline: the parent's lock is held only long enough to decide
// whether the child needs a preventive split, then released once the
// child (or its correct post-split half) is locked.
func (t *Tree[K, V]) insertTopDown(curr *Node[K, V], k K, v V) error {
	for !curr.leaf {
		i := curr.findChildIndex(k, t.cmp)
		child := curr.children[i]
		child.Lock()

		if child.isFull() {
			if child.leaf {
				if _, exists := child.searchLeaf(k, t.cmp); exists {
					curr.Unlock()
					defer child.Unlock()
					return t.insertIntoLeaf(child, k, v)
				}
			}

			sibling, err := splitChild(curr, child, i, k, t.cmp, t.ar)
			if err != nil {
				child.Unlock()
				curr.Unlock()
				return err
			}

			if t.cmp(k, curr.keys[i]) >= 0 {
				child.Unlock()
				child = sibling
			} else {
				sibling.Unlock()
			}
		}

		curr.Unlock()
		curr = child
	}

	defer curr.Unlock()
	return t.insertIntoLeaf(curr, k, v)
}

// insertIntoLeaf is the Leaf Operations "insert" (§4.4). Precondition:
// caller holds curr's write lock.
func (t *Tree[K, V]) insertIntoLeaf(curr *Node[K, V], k K, v V) error {
	idx, exists := curr.searchLeaf(k, t.cmp)
	if exists {
		return &treeerrors.DuplicateKeyError{Key: formatKey(k)}
	}

	curr.keys = append(curr.keys, k)
	curr.recs = append(curr.recs, nil)
	copy(curr.keys[idx+1:], curr.keys[idx:])
	copy(curr.recs[idx+1:], curr.recs[idx:])
	curr.keys[idx] = k
	curr.recs[idx] = t.ar.allocateRecord(v)
	curr.n++
	return nil
}

// Find implements spec §6 find(): value-or-null via (V, bool). Descends
// in read mode only, per the Descent Engine (§4.3).
func (t *Tree[K, V]) Find(k K) (V, bool) {
	var zero V
	t.mu.RLock()
	curr := t.root
	curr.RLock()
	t.mu.RUnlock()

	for !curr.leaf {
		i := curr.findChildIndex(k, t.cmp)
		child := curr.children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}
	defer curr.RUnlock()

	idx, exists := curr.searchLeaf(k, t.cmp)
	if !exists {
		return zero, false
	}
	return curr.recs[idx].value, true
}

// formatKey renders a key for error messages, mirroring the teacher's
// fmt.Sprintf("%v", key) convention in pkg/errors.
func formatKey[K any](k K) string {
	return fmt.Sprintf("%v", k)
}
