package pbt

import (
	"math"
	"testing"
)

func TestContinuousRoundTrip(t *testing.T) {
	hp, err := NewContinuousHyperparameter(-1.0, 1.0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hp.SetValue(0.25); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := hp.Value(); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Value() = %v, want 0.25", got)
	}
	if err := hp.SetValue(5.0); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := hp.Value(); got != 1.0 {
		t.Errorf("out-of-range SetValue should clip to upper bound, got %v", got)
	}
	if err := hp.SetValue(-5.0); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := hp.Value(); got != -1.0 {
		t.Errorf("out-of-range SetValue should clip to lower bound, got %v", got)
	}
}

func TestCategoricalRoundTrip(t *testing.T) {
	hp, err := NewCategoricalHyperparameter([]string{"c", "a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range []string{"a", "b", "c"} {
		if err := hp.SetCategory(c); err != nil {
			t.Fatalf("SetCategory(%q): %v", c, err)
		}
		if got := hp.CategoryValue(); got != c {
			t.Errorf("CategoryValue() = %q, want %q", got, c)
		}
	}
	if err := hp.SetCategory("z"); err == nil {
		t.Error("expected error setting category outside the search space")
	}
}

func TestHyperparameterConstructionErrors(t *testing.T) {
	if _, err := NewContinuousHyperparameter(1.0, 0.0, false); err == nil {
		t.Error("expected error for lo > hi")
	}
	if _, err := NewCategoricalHyperparameter([]string{"only-one"}); err == nil {
		t.Error("expected error for fewer than two categories")
	}
}

func TestArithmeticAsymmetry(t *testing.T) {
	hp, _ := NewContinuousHyperparameter(0, 1, false)
	hp.SetNormalized(0.5)

	if got := hp.Add(0.9); got != 1.0 {
		t.Errorf("clipped Add should saturate at 1.0, got %v", got)
	}
	if hp.Normalized() != 0.5 {
		t.Error("binary Add must not mutate the receiver")
	}

	hp.IAdd(0.9)
	if got := hp.Normalized(); got != 1.4 {
		t.Errorf("in-place IAdd must not clip, got %v, want 1.4", got)
	}
}

func TestSampleUniformInRange(t *testing.T) {
	hp, _ := NewContinuousHyperparameter(0, 1, false)
	rng := newSafeRand(42)
	for i := 0; i < 100; i++ {
		hp.SampleUniform(rng)
		if u := hp.Normalized(); u < 0 || u > 1 {
			t.Fatalf("sampled u out of range: %v", u)
		}
	}
}
