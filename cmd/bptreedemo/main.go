// Command bptreedemo walks through the core operations of the B+ tree
// index and the linked document container in one place: inserts,
// point and range lookups, conditioned scans, deletion, and a
// dump/reload round trip.
package main

import (
	"bytes"
	"fmt"

	"github.com/bobboyms/bptreeindex/pkg/btree"
	"github.com/bobboyms/bptreeindex/pkg/key"
	"github.com/bobboyms/bptreeindex/pkg/list"
	"github.com/bobboyms/bptreeindex/pkg/query"
)

func main() {
	indexDemo()
	listDemo()
}

func indexDemo() {
	fmt.Println("=== B+ tree index ===")

	cmp := key.IntComparator[int]()
	tr, err := btree.New[int, string](btree.Options[int, string]{
		Order:      4,
		Comparator: cmp,
		KeyCodec:   ref(key.BSONCodec[int]()),
		ValueCodec: ref(key.BSONCodec[string]()),
	})
	if err != nil {
		fmt.Println("new tree:", err)
		return
	}
	defer tr.Close()

	products := map[int]string{
		1: "laptop", 2: "mouse", 3: "keyboard", 4: "monitor", 5: "webcam",
	}
	for id, name := range products {
		if err := tr.Insert(id, name); err != nil {
			fmt.Printf("insert %d: %v\n", id, err)
		}
	}
	fmt.Printf("inserted %d products\n", len(products))

	if v, ok := tr.Find(3); ok {
		fmt.Printf("find(3) = %q\n", v)
	}

	out := make([]string, len(products))
	n := tr.Range(1, 3, out)
	fmt.Printf("range [1,3] = %v\n", out[:n])

	matches := query.ScanTree(tr, query.GreaterOrEqual(cmp, 4), 0)
	fmt.Printf("query id >= 4: %v\n", matches)

	if err := tr.Delete(2); err != nil {
		fmt.Println("delete(2):", err)
	}
	if _, ok := tr.Find(2); !ok {
		fmt.Println("product 2 removed")
	}

	var buf bytes.Buffer
	if err := tr.Dump(&buf); err != nil {
		fmt.Println("dump:", err)
		return
	}
	reloaded, err := btree.Load[int, string](&buf, btree.Options[int, string]{
		Order:      4,
		Comparator: cmp,
		KeyCodec:   ref(key.BSONCodec[int]()),
		ValueCodec: ref(key.BSONCodec[string]()),
	})
	if err != nil {
		fmt.Println("load:", err)
		return
	}
	defer reloaded.Close()
	if v, ok := reloaded.Find(4); ok {
		fmt.Printf("reloaded.find(4) = %q\n", v)
	}
}

func listDemo() {
	fmt.Println("\n=== linked document container ===")

	l := list.New[list.Document](nil)
	defer l.Close()

	l.PushBack(list.NewDocument(
		list.Document{{Key: "sku", Value: "A1"}, {Key: "price", Value: 19.99}}...,
	))
	l.PushBack(list.NewDocument(
		list.Document{{Key: "sku", Value: "B2"}, {Key: "price", Value: 42.50}}...,
	))
	fmt.Printf("list size = %d\n", l.Size())

	if doc, ok := l.FindFirst(bySKU("B2")); ok {
		price, _ := list.Get(doc, "price")
		fmt.Printf("found B2 at price %v\n", price)
	}

	l.UpdateFirst(bySKU("A1"), func(d list.Document) list.Document {
		return list.With(d, "price", 17.99)
	})
	if doc, ok := l.FindFirst(bySKU("A1")); ok {
		price, _ := list.Get(doc, "price")
		fmt.Printf("A1 repriced to %v\n", price)
	}

	l.DeleteFirst(bySKU("B2"))
	fmt.Printf("list size after delete = %d\n", l.Size())
}

func bySKU(sku string) func(list.Document) bool {
	return func(d list.Document) bool {
		v, ok := list.Get(d, "sku")
		return ok && v == sku
	}
}

func ref[T any](v T) *T { return &v }
