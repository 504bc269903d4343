package pbt

import "testing"

func TestHalvingBoundary(t *testing.T) {
	const eps = 1e-6
	if got := Halving(0.5, 0.5+eps, 0, 1); got != 0.5+eps {
		t.Errorf("Halving within bounds should pass through, got %v", got)
	}
	if got := Halving(0.5, 1.2, 0, 1); got != 0.75 {
		t.Errorf("Halving(0.5, 1.2, 0, 1) = %v, want 0.75", got)
	}
	if got := Halving(0.5, -0.2, 0, 1); got != 0.25 {
		t.Errorf("Halving(0.5, -0.2, 0, 1) = %v, want 0.25", got)
	}
}

func TestClip(t *testing.T) {
	cases := []struct {
		x, lo, hi, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-0.1, 0, 1, 0},
		{1.1, 0, 1, 1},
	}
	for _, c := range cases {
		if got := Clip(c.x, c.lo, c.hi); got != c.want {
			t.Errorf("Clip(%v, %v, %v) = %v, want %v", c.x, c.lo, c.hi, got, c.want)
		}
	}
}
