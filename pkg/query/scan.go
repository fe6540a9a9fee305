// Package query builds comparator-driven predicates that decide, for a
// given key, whether it matches a condition and whether a scan moving
// in ascending order can stop early. It is generic over the same key
// type the index and the linked container are parameterized over, so a
// single Condition can drive either a seeked range scan over a Tree or
// a linear predicate over a List.
package query

import (
	"github.com/bobboyms/bptreeindex/pkg/btree"
	"github.com/bobboyms/bptreeindex/pkg/key"
)

// ScanOperator identifies the comparison a Condition applies.
type ScanOperator int

const (
	OpEqual ScanOperator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpBetween
)

// Condition pairs an operator and its operands with the comparator
// needed to evaluate them against a key of type K.
type Condition[K any] struct {
	Operator ScanOperator
	Value    K
	ValueEnd K
	cmp      key.Comparator[K]
}

func newCondition[K any](cmp key.Comparator[K], op ScanOperator, value K) *Condition[K] {
	return &Condition[K]{Operator: op, Value: value, cmp: cmp}
}

// Equal matches keys equal to value.
func Equal[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpEqual, value)
}

// NotEqual matches keys different from value.
func NotEqual[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpNotEqual, value)
}

// GreaterThan matches keys strictly greater than value.
func GreaterThan[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpGreaterThan, value)
}

// GreaterOrEqual matches keys greater than or equal to value.
func GreaterOrEqual[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpGreaterOrEqual, value)
}

// LessThan matches keys strictly less than value.
func LessThan[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpLessThan, value)
}

// LessOrEqual matches keys less than or equal to value.
func LessOrEqual[K any](cmp key.Comparator[K], value K) *Condition[K] {
	return newCondition(cmp, OpLessOrEqual, value)
}

// Between matches keys in the inclusive range [start, end].
func Between[K any](cmp key.Comparator[K], start, end K) *Condition[K] {
	return &Condition[K]{Operator: OpBetween, Value: start, ValueEnd: end, cmp: cmp}
}

// Matches reports whether k satisfies the condition.
func (c *Condition[K]) Matches(k K) bool {
	switch c.Operator {
	case OpEqual:
		return c.cmp(k, c.Value) == 0
	case OpNotEqual:
		return c.cmp(k, c.Value) != 0
	case OpGreaterThan:
		return c.cmp(k, c.Value) > 0
	case OpGreaterOrEqual:
		return c.cmp(k, c.Value) >= 0
	case OpLessThan:
		return c.cmp(k, c.Value) < 0
	case OpLessOrEqual:
		return c.cmp(k, c.Value) <= 0
	case OpBetween:
		return c.cmp(k, c.Value) >= 0 && c.cmp(k, c.ValueEnd) <= 0
	default:
		return false
	}
}

// GetStartKey returns the smallest key an ascending scan could seek to
// without missing a match, and whether such a bound exists at all.
func (c *Condition[K]) GetStartKey() (K, bool) {
	switch c.Operator {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpBetween:
		return c.Value, true
	default:
		var zero K
		return zero, false
	}
}

// ShouldSeek reports whether a scan should seek to GetStartKey rather
// than walk the tree from its first key.
func (c *Condition[K]) ShouldSeek() bool {
	switch c.Operator {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpBetween:
		return true
	default:
		return false
	}
}

// ShouldContinue reports whether an ascending scan positioned at k can
// still find matches further on, or has passed the point where it can
// stop early.
func (c *Condition[K]) ShouldContinue(k K) bool {
	switch c.Operator {
	case OpEqual:
		return c.cmp(k, c.Value) <= 0
	case OpLessThan:
		return c.cmp(k, c.Value) < 0
	case OpLessOrEqual:
		return c.cmp(k, c.Value) <= 0
	case OpBetween:
		return c.cmp(k, c.ValueEnd) <= 0
	default:
		return true
	}
}

// ToPredicate adapts a Condition over keys K into a predicate over
// values T, given a function that extracts the comparison key from a
// value. This lets a single Condition drive both a seeked tree scan
// and a List's FindFirst/DeleteFirst/UpdateFirst, which operate on
// whole values rather than bare keys.
func ToPredicate[T any, K any](c *Condition[K], extract func(T) K) func(T) bool {
	return func(v T) bool {
		return c.Matches(extract(v))
	}
}

// ScanTree runs an ascending scan over t honoring c, seeking directly
// to c's start key when possible and stopping as soon as c reports no
// further matches are possible, rather than walking every key in the
// tree. zero is used as the seek origin when c has no start key of its
// own; the scan then starts at zero, so keys that sort before zero are
// not visited.
func ScanTree[K any, V any](t *btree.Tree[K, V], c *Condition[K], zero K) []V {
	from := zero
	if start, ok := c.GetStartKey(); ok {
		from = start
	}

	cur := t.NewCursor(from)
	defer cur.Close()

	var out []V
	for cur.Valid() {
		k := cur.Key()
		if !c.ShouldContinue(k) {
			break
		}
		if c.Matches(k) {
			out = append(out, cur.Value())
		}
		if !cur.Next() {
			break
		}
	}
	return out
}
