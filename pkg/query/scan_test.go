package query_test

import (
	"reflect"
	"testing"

	"github.com/bobboyms/bptreeindex/pkg/btree"
	"github.com/bobboyms/bptreeindex/pkg/key"
	"github.com/bobboyms/bptreeindex/pkg/query"
)

var intCmp = key.IntComparator[int]()

func TestConstructors(t *testing.T) {
	if c := query.Equal(intCmp, 10); c.Operator != query.OpEqual || c.Value != 10 {
		t.Fatalf("Equal: got %+v", c)
	}
	if c := query.NotEqual(intCmp, 20); c.Operator != query.OpNotEqual {
		t.Fatalf("NotEqual: got %+v", c)
	}
	if c := query.GreaterThan(intCmp, 30); c.Operator != query.OpGreaterThan {
		t.Fatalf("GreaterThan: got %+v", c)
	}
	if c := query.GreaterOrEqual(intCmp, 40); c.Operator != query.OpGreaterOrEqual {
		t.Fatalf("GreaterOrEqual: got %+v", c)
	}
	if c := query.LessThan(intCmp, 50); c.Operator != query.OpLessThan {
		t.Fatalf("LessThan: got %+v", c)
	}
	if c := query.LessOrEqual(intCmp, 60); c.Operator != query.OpLessOrEqual {
		t.Fatalf("LessOrEqual: got %+v", c)
	}
	if c := query.Between(intCmp, 10, 20); c.Operator != query.OpBetween || c.Value != 10 || c.ValueEnd != 20 {
		t.Fatalf("Between: got %+v", c)
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		name string
		cond *query.Condition[int]
		in   int
		want bool
	}{
		{"eq-hit", query.Equal(intCmp, 10), 10, true},
		{"eq-miss", query.Equal(intCmp, 5), 10, false},
		{"neq-hit", query.NotEqual(intCmp, 10), 5, true},
		{"neq-miss", query.NotEqual(intCmp, 10), 10, false},
		{"gt-hit", query.GreaterThan(intCmp, 10), 15, true},
		{"gt-boundary", query.GreaterThan(intCmp, 10), 10, false},
		{"gte-boundary", query.GreaterOrEqual(intCmp, 10), 10, true},
		{"lt-hit", query.LessThan(intCmp, 10), 5, true},
		{"lt-boundary", query.LessThan(intCmp, 10), 10, false},
		{"lte-boundary", query.LessOrEqual(intCmp, 10), 10, true},
		{"between-lo", query.Between(intCmp, 10, 20), 10, true},
		{"between-hi", query.Between(intCmp, 10, 20), 20, true},
		{"between-out", query.Between(intCmp, 10, 20), 25, false},
	}
	for _, c := range cases {
		if got := c.cond.Matches(c.in); got != c.want {
			t.Errorf("%s: Matches(%d) = %v, want %v", c.name, c.in, got, c.want)
		}
	}
}

func TestMatches_DefaultFalse(t *testing.T) {
	cond := &query.Condition[int]{Operator: query.ScanOperator(99)}
	if cond.Matches(10) {
		t.Error("expected unknown operator to not match")
	}
}

func TestGetStartKey(t *testing.T) {
	if k, ok := query.Equal(intCmp, 10).GetStartKey(); !ok || k != 10 {
		t.Fatalf("Equal start key = (%d,%v), want (10,true)", k, ok)
	}
	if k, ok := query.GreaterThan(intCmp, 10).GetStartKey(); !ok || k != 10 {
		t.Fatalf("GreaterThan start key = (%d,%v), want (10,true)", k, ok)
	}
	if k, ok := query.Between(intCmp, 10, 20).GetStartKey(); !ok || k != 10 {
		t.Fatalf("Between start key = (%d,%v), want (10,true)", k, ok)
	}
	if _, ok := query.LessThan(intCmp, 10).GetStartKey(); ok {
		t.Fatal("LessThan should have no start key")
	}
	if _, ok := query.NotEqual(intCmp, 10).GetStartKey(); ok {
		t.Fatal("NotEqual should have no start key")
	}
}

func TestShouldSeek(t *testing.T) {
	seekers := []*query.Condition[int]{
		query.Equal(intCmp, 10), query.GreaterThan(intCmp, 10),
		query.GreaterOrEqual(intCmp, 10), query.Between(intCmp, 10, 20),
	}
	for _, c := range seekers {
		if !c.ShouldSeek() {
			t.Errorf("operator %v should seek", c.Operator)
		}
	}
	nonSeekers := []*query.Condition[int]{
		query.LessThan(intCmp, 10), query.LessOrEqual(intCmp, 10), query.NotEqual(intCmp, 10),
	}
	for _, c := range nonSeekers {
		if c.ShouldSeek() {
			t.Errorf("operator %v should not seek", c.Operator)
		}
	}
}

func TestShouldContinue(t *testing.T) {
	eq := query.Equal(intCmp, 10)
	if !eq.ShouldContinue(5) || !eq.ShouldContinue(10) || eq.ShouldContinue(15) {
		t.Fatal("Equal ShouldContinue boundaries wrong")
	}

	between := query.Between(intCmp, 10, 20)
	if !between.ShouldContinue(15) || !between.ShouldContinue(20) || between.ShouldContinue(25) {
		t.Fatal("Between ShouldContinue boundaries wrong")
	}

	gt := query.GreaterThan(intCmp, 10)
	if !gt.ShouldContinue(5) || !gt.ShouldContinue(1000) {
		t.Fatal("GreaterThan should always continue")
	}
}

func TestToPredicate(t *testing.T) {
	type row struct {
		id   int
		name string
	}
	cond := query.GreaterOrEqual(intCmp, 10)
	pred := query.ToPredicate[row](cond, func(r row) int { return r.id })

	if !pred(row{id: 10, name: "a"}) {
		t.Error("expected id 10 to match")
	}
	if pred(row{id: 5, name: "b"}) {
		t.Error("expected id 5 to not match")
	}
}

func TestScanTree(t *testing.T) {
	tr, err := btree.New[int, string](btree.Options[int, string]{Order: 4, Comparator: intCmp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := tr.Insert(i, string(rune('a'+i%26))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	got := query.ScanTree(tr, query.Between(intCmp, 10, 15), 0)
	want := []string{
		string(rune('a' + 10%26)), string(rune('a' + 11%26)), string(rune('a' + 12%26)),
		string(rune('a' + 13%26)), string(rune('a' + 14%26)), string(rune('a' + 15%26)),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ScanTree(Between 10,15) = %v, want %v", got, want)
	}

	eq := query.ScanTree(tr, query.Equal(intCmp, 42), 0)
	if len(eq) != 1 {
		t.Fatalf("ScanTree(Equal 42) = %v, want 1 result", eq)
	}

	none := query.ScanTree(tr, query.GreaterThan(intCmp, 1000), 0)
	if len(none) != 0 {
		t.Fatalf("ScanTree(GreaterThan 1000) = %v, want none", none)
	}
}
