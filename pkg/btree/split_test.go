package btree

import (
	"testing"

	"github.com/bobboyms/bptreeindex/pkg/key"
)

func TestSplitLeaf_EvenSplit(t *testing.T) {
	cmp := key.IntComparator[int]()
	order := 5 // max keys 4; full leaf about to be split to make room for a 5th

	child := newNode[int, string](order, true)
	child.keys = []int{10, 20, 30, 40}
	child.recs = []*record[string]{{value: "a"}, {value: "b"}, {value: "c"}, {value: "d"}}
	child.n = 4
	oldNext := newNode[int, string](order, true)
	child.next = oldNext

	parent := newNode[int, string](order, false)
	parent.children = append(parent.children, child)

	ar := newArena[int, string](order, nil)
	// k=25 is the key about to be inserted; splitChild must not place it.
	sibling, err := splitChild(parent, child, 0, 25, cmp, ar)
	if err != nil {
		t.Fatalf("splitChild: %v", err)
	}

	s := ceilDiv(4, 2)
	if child.n != s {
		t.Fatalf("left half has %d keys, want %d", child.n, s)
	}
	if sibling.n != 4-s {
		t.Fatalf("right half has %d keys, want %d", sibling.n, 4-s)
	}
	for _, found := range append(append([]int{}, child.keys...), sibling.keys...) {
		if found == 25 {
			t.Fatalf("splitChild must not insert k=25 itself, found it in the split halves")
		}
	}
	if len(child.keys)+len(sibling.keys) != 4 {
		t.Fatalf("split halves should together hold all 4 original keys, got %d", len(child.keys)+len(sibling.keys))
	}
	if child.next != sibling {
		t.Fatalf("left.next should point at the new sibling")
	}
	if sibling.next != oldNext {
		t.Fatalf("sibling.next should preserve the old chain")
	}
	if len(parent.keys) != 1 || parent.keys[0] != sibling.keys[0] {
		t.Fatalf("parent should hold exactly the promoted separator")
	}

	// The caller is responsible for actually placing k, into whichever
	// half the separator comparison selects.
	target := child
	if cmp(25, parent.keys[0]) >= 0 {
		target = sibling
	}
	if err := (&Tree[int, string]{order: order, cmp: cmp, ar: ar}).insertIntoLeaf(target, 25, "e"); err != nil {
		t.Fatalf("insertIntoLeaf after split: %v", err)
	}
	if v, ok := target.searchLeaf(25, cmp); !ok || target.recs[v].value != "e" {
		t.Fatalf("k=25 not correctly installed after split")
	}
}

func TestSplitInternal_PromotesMiddleKey(t *testing.T) {
	order := 5
	child := newNode[int, string](order, false)
	child.keys = []int{10, 20, 30, 40}
	leaves := make([]*Node[int, string], 5)
	for i := range leaves {
		leaves[i] = newNode[int, string](order, true)
	}
	child.children = append(child.children, leaves...)
	child.n = 4

	parent := newNode[int, string](order, false)
	parent.children = append(parent.children, child)

	ar := newArena[int, string](order, nil)
	sibling, err := splitInternal(parent, child, 0, ar)
	if err != nil {
		t.Fatalf("splitInternal: %v", err)
	}

	s := order / 2
	if child.n != s {
		t.Fatalf("left half has %d keys, want %d", child.n, s)
	}
	if len(parent.keys) != 1 || parent.keys[0] != 30 {
		t.Fatalf("expected 30 promoted to parent, got %v", parent.keys)
	}
	for _, c := range sibling.children {
		if c.parent != sibling {
			t.Fatalf("moved child's parent pointer not reparented to sibling")
		}
	}
}

func TestArena_OutOfMemoryInjection(t *testing.T) {
	calls := 0
	ar := newArena[int, string](4, nil)
	ar.failNext = func() bool {
		calls++
		return calls == 2 // fail the second allocation only
	}

	if _, err := ar.allocateLeaf(); err != nil {
		t.Fatalf("first allocation should succeed: %v", err)
	}
	if _, err := ar.allocateLeaf(); err == nil {
		t.Fatalf("second allocation should fail")
	}
	if _, err := ar.allocateLeaf(); err != nil {
		t.Fatalf("third allocation should succeed again: %v", err)
	}
}
