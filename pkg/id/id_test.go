package id

import "testing"

func TestNextMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next.String() <= prev.String() {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestNextClockBackwards(t *testing.T) {
	g := NewGenerator()
	ts := int64(1_700_000_000_000)
	orig := nowMs
	nowMs = func() int64 { return ts }
	defer func() { nowMs = orig }()

	a := g.Next()
	ts -= 50 // clock went backwards
	b := g.Next()
	if b.String() <= a.String() {
		t.Fatalf("expected ordering to survive clock skew: %s then %s", a, b)
	}
}

func TestStringLength(t *testing.T) {
	g := NewGenerator()
	if got := g.Next().String(); len(got) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(got), got)
	}
}
