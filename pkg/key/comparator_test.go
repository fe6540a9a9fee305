package key

import (
	"testing"
	"time"
)

func TestIntComparator(t *testing.T) {
	cmp := IntComparator[int]()
	if cmp(1, 2) >= 0 {
		t.Fatalf("1 should be < 2")
	}
	if cmp(2, 1) <= 0 {
		t.Fatalf("2 should be > 1")
	}
	if cmp(1, 1) != 0 {
		t.Fatalf("1 should equal 1")
	}
}

func TestVarcharComparator(t *testing.T) {
	cmp := VarcharComparator[string]()
	if cmp("a", "b") >= 0 {
		t.Fatalf("a should be < b")
	}
	if cmp("b", "a") <= 0 {
		t.Fatalf("b should be > a")
	}
}

func TestFloatComparator(t *testing.T) {
	cmp := FloatComparator[float64]()
	if cmp(1.5, 1.6) >= 0 {
		t.Fatalf("1.5 should be < 1.6")
	}
}

func TestBoolComparator(t *testing.T) {
	cmp := BoolComparator()
	if cmp(false, true) >= 0 {
		t.Fatalf("false should be < true")
	}
	if cmp(true, true) != 0 {
		t.Fatalf("true should equal true")
	}
}

func TestDateComparator(t *testing.T) {
	cmp := DateComparator()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	if cmp(now, later) >= 0 {
		t.Fatalf("earlier date should compare less")
	}
	if cmp(now, now) != 0 {
		t.Fatalf("equal dates should compare equal")
	}
}
