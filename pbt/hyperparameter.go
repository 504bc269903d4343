package pbt

import "fmt"

// HyperparameterKind distinguishes the three search-space shapes a
// Hyperparameter can take.
type HyperparameterKind int

const (
	KindFloat HyperparameterKind = iota
	KindInt
	KindCategorical
)

// Hyperparameter is a single bounded search-space coordinate. Internally it
// always carries a normalized value u in [0,1]; the externally visible
// value is derived from u and the search space on read.
//
// Arithmetic is asymmetric: the binary operators (Add, Sub, Mul, Div,
// Pow) return a new clipped scalar and never mutate the receiver,
// while the in-place operators (IAdd, ISub, IMul, IDiv, IPow) mutate u
// directly without clipping. Evolvers rely on intermediate
// out-of-range values followed by an explicit Clip or Halving, so the
// in-place operators must stay unclipped.
type Hyperparameter struct {
	kind       HyperparameterKind
	lo, hi     float64  // bounds for KindFloat/KindInt
	categories []string // sorted, for KindCategorical
	u          float64
}

// NewContinuousHyperparameter creates a bounded real or integer coordinate.
func NewContinuousHyperparameter(lo, hi float64, isInt bool) (*Hyperparameter, error) {
	if lo > hi {
		return nil, fmt.Errorf("pbt: lower bound %v exceeds upper bound %v", lo, hi)
	}
	kind := KindFloat
	if isInt {
		kind = KindInt
	}
	return &Hyperparameter{kind: kind, lo: lo, hi: hi}, nil
}

// NewCategoricalHyperparameter creates a coordinate over a finite, ordered
// set of at least two categories. Duplicate categories are not rejected.
func NewCategoricalHyperparameter(categories []string) (*Hyperparameter, error) {
	if len(categories) < 2 {
		return nil, fmt.Errorf("pbt: categorical hyperparameter needs at least two categories, got %d", len(categories))
	}
	sorted := append([]string(nil), categories...)
	sortStrings(sorted)
	return &Hyperparameter{kind: KindCategorical, categories: sorted}, nil
}

// IsCategorical reports whether this coordinate is categorical.
func (h *Hyperparameter) IsCategorical() bool { return h.kind == KindCategorical }

// Normalized returns the stored u value.
func (h *Hyperparameter) Normalized() float64 { return h.u }

// SampleUniform draws u from U(0,1) using the supplied RNG and returns the
// resulting external value.
func (h *Hyperparameter) SampleUniform(rng *safeRand) float64 {
	h.u = rng.float64()
	return h.Value()
}

// Value returns the externally visible numeric value: for a continuous
// real coordinate, lo + u*(hi-lo); for integer, the same rounded. Calling
// this on a categorical hyperparameter panics; use CategoryValue instead.
func (h *Hyperparameter) Value() float64 {
	switch h.kind {
	case KindFloat:
		return translate(h.u, 0.0, 1.0, h.lo, h.hi)
	case KindInt:
		return roundHalfAwayFromZero(translate(h.u, 0.0, 1.0, h.lo, h.hi))
	default:
		panic("pbt: Value() called on a categorical hyperparameter")
	}
}

// CategoryValue returns the externally visible category for a categorical
// hyperparameter: index round(u*(n-1)) into the sorted category list.
func (h *Hyperparameter) CategoryValue() string {
	if h.kind != KindCategorical {
		panic("pbt: CategoryValue() called on a non-categorical hyperparameter")
	}
	idx := int(roundHalfAwayFromZero(translate(h.u, 0.0, 1.0, 0, float64(len(h.categories)-1))))
	return h.categories[idx]
}

// SetValue normalizes v against the bounds and stores it clipped to
// [0,1]. It returns an error for a categorical hyperparameter, which is
// set through SetCategory instead.
func (h *Hyperparameter) SetValue(v float64) error {
	if h.kind == KindCategorical {
		return fmt.Errorf("pbt: SetValue(float64) not valid for a categorical hyperparameter, use SetCategory")
	}
	h.u = Clip(translate(v, h.lo, h.hi, 0.0, 1.0), 0.0, 1.0)
	return nil
}

// SetCategory normalizes category c against the sorted category list.
func (h *Hyperparameter) SetCategory(c string) error {
	if h.kind != KindCategorical {
		return fmt.Errorf("pbt: SetCategory not valid for a non-categorical hyperparameter")
	}
	idx := indexOf(h.categories, c)
	if idx < 0 {
		return fmt.Errorf("pbt: %q is not a member of the categorical search space", c)
	}
	h.u = Clip(translate(float64(idx), 0, float64(len(h.categories)-1), 0.0, 1.0), 0.0, 1.0)
	return nil
}

// Add, Sub, Mul, Div and Pow return clip(scalar op u, 0, 1) with the
// scalar as the left operand; the receiver is never mutated.
func (h *Hyperparameter) Add(scalar float64) float64 { return Clip(scalar+h.u, 0.0, 1.0) }
func (h *Hyperparameter) Sub(scalar float64) float64 { return Clip(scalar-h.u, 0.0, 1.0) }
func (h *Hyperparameter) Mul(scalar float64) float64 { return Clip(scalar*h.u, 0.0, 1.0) }
func (h *Hyperparameter) Div(scalar float64) float64 { return Clip(scalar/h.u, 0.0, 1.0) }
func (h *Hyperparameter) Pow(scalar float64) float64 { return Clip(powFloat(scalar, h.u), 0.0, 1.0) }

// IAdd, ISub, IMul, IDiv, IPow mutate u in place WITHOUT clipping.
// Callers that need the result back in [0,1] must apply Clip or
// Halving themselves.
func (h *Hyperparameter) IAdd(scalar float64) { h.u = h.u + scalar }
func (h *Hyperparameter) ISub(scalar float64) { h.u = h.u - scalar }
func (h *Hyperparameter) IMul(scalar float64) { h.u = h.u * scalar }
func (h *Hyperparameter) IDiv(scalar float64) { h.u = h.u / scalar }
func (h *Hyperparameter) IPow(scalar float64) { h.u = powFloat(h.u, scalar) }

// SetNormalized force-sets u to an already-normalized value, clipped to
// [0,1]. Used by the evolvers after they've computed a trial coordinate
// via Clip or Halving themselves.
func (h *Hyperparameter) SetNormalized(u float64) { h.u = Clip(u, 0.0, 1.0) }

// Clone returns a deep copy of the hyperparameter.
func (h *Hyperparameter) Clone() *Hyperparameter {
	clone := *h
	if h.categories != nil {
		clone.categories = append([]string(nil), h.categories...)
	}
	return &clone
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
