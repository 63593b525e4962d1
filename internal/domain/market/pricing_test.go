package market

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestCompute_KnownValues(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name      string
		base      int64
		remaining int64
		total     int64
		r         float64
		want      int64
	}{
		{name: "no time left, r=0", base: 100, remaining: 0, total: 600, r: 0, want: 50},
		{name: "no time left, r=0.5", base: 200, remaining: 0, total: 600, r: 0.5, want: 200},
		{name: "full time, r=0 has no wave", base: 100, remaining: 600, total: 600, r: 0, want: 50},
		{name: "full time, r=0.25 hits max clamp", base: 100, remaining: 600, total: 600, r: 0.25, want: 300},
		{name: "full time, r=0.75 hits min clamp", base: 100, remaining: 600, total: 600, r: 0.75, want: 30},
		{name: "negative remaining treated as zero", base: 100, remaining: -50, total: 600, r: 0.5, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.base, tt.remaining, tt.total, tt.r, p)
			if got.Price != tt.want {
				t.Fatalf("Compute price=%d want=%d", got.Price, tt.want)
			}
		})
	}
}

func TestCompute_DefaultsNonPositiveBase(t *testing.T) {
	got := Compute(0, 0, 600, 0.5, DefaultParams())
	if !got.DefaultedBase {
		t.Fatalf("expected base price fallback to be flagged")
	}
	if got.BasePrice != 100 || got.Price != 100 {
		t.Fatalf("unexpected fallback quote: %+v", got)
	}
}

func TestCompute_StaysWithinBounds(t *testing.T) {
	p := DefaultParams()
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Int64Range(1, 1_000_000).Draw(t, "base")
		total := rapid.Int64Range(1, 100_000).Draw(t, "total")
		remaining := rapid.Int64Range(-1_000, 200_000).Draw(t, "remaining")
		r := rapid.Float64Range(0, 1).Draw(t, "r")

		q := Compute(base, remaining, total, r, p)
		lo := int64(math.Floor(float64(base) * 0.3))
		hi := int64(math.Floor(float64(base) * 3))
		if q.Price < lo || q.Price > hi {
			t.Fatalf("price %d outside [%d,%d]", q.Price, lo, hi)
		}
		if q.Price < 1 {
			t.Fatalf("price must be at least 1, got %d", q.Price)
		}
		if q.TimeFactor < 0 || q.TimeFactor > 1 {
			t.Fatalf("time factor out of range: %f", q.TimeFactor)
		}
	})
}

func TestBounds_SmallBase(t *testing.T) {
	lo, hi := Bounds(1, DefaultParams())
	if lo != 1 || hi != 3 {
		t.Fatalf("unexpected bounds for base 1: [%d,%d]", lo, hi)
	}
}

func TestParams_Validate(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params must be valid: %v", err)
	}
	p.MinPriceRatio = 4
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error when min ratio exceeds max ratio")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("multi"); err != nil || m != ModeShared {
		t.Fatalf("parse multi: %v %v", m, err)
	}
	if _, err := ParseMode("coop"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
