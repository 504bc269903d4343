package pbt

// Clip saturates x to the closed interval [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Halving re-enters the feasible region by returning the midpoint between
// base and the violated bound, staying close to the parent rather than
// snapping straight to the bound. Values already inside [lo, hi] pass
// through unchanged.
func Halving(base, mutant, lo, hi float64) float64 {
	if mutant < lo {
		return (base + lo) / 2.0
	}
	if mutant > hi {
		return (base + hi) / 2.0
	}
	return mutant
}

// translate maps value from [leftMin, leftMax] onto [rightMin, rightMax].
func translate(value, leftMin, leftMax, rightMin, rightMax float64) float64 {
	leftSpan := leftMax - leftMin
	rightSpan := rightMax - rightMin
	normalized := (value - leftMin) / leftSpan
	return rightMin + normalized*rightSpan
}
