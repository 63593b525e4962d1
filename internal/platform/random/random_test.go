package random

import "testing"

func TestSeeded_Deterministic(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 100; i++ {
		x, y := a.Float64(), b.Float64()
		if x != y {
			t.Fatalf("draw %d differs: %f vs %f", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("draw out of range: %f", x)
		}
	}
}

func TestSeeded_DifferentSeedsDiverge(t *testing.T) {
	a := NewSeeded(1)
	b := NewSeeded(2)
	same := 0
	for i := 0; i < 20; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 20 {
		t.Fatalf("different seeds produced identical sequences")
	}
}

func TestAuthority_Range(t *testing.T) {
	a, err := NewAuthority()
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	for i := 0; i < 100; i++ {
		if v := a.Float64(); v < 0 || v >= 1 {
			t.Fatalf("draw out of range: %f", v)
		}
	}
}
