package pbt

import "math"

// HistoricalMemory is SHADE's success-history store: two circular arrays
// of size H holding the remembered crossover rate and mutation factor,
// updated once per generation from the samples that produced weakly
// better trials.
type HistoricalMemory struct {
	size int
	mCR  []*float64 // nil entry means "no crossover memory"
	mF   []float64
	k    int

	sCR     []float64
	sF      []float64
	weights []float64
}

// NewHistoricalMemory creates a memory of the given size, with every
// slot initialized to default (typically (f_max-f_min)/2).
func NewHistoricalMemory(size int, defaultValue float64) *HistoricalMemory {
	mCR := make([]*float64, size)
	mF := make([]float64, size)
	for i := range mCR {
		v := defaultValue
		mCR[i] = &v
		mF[i] = defaultValue
	}
	return &HistoricalMemory{size: size, mCR: mCR, mF: mF}
}

// Size returns H.
func (h *HistoricalMemory) Size() int { return h.size }

// CR returns M_CR[idx], or nil if that slot has no crossover memory.
func (h *HistoricalMemory) CR(idx int) *float64 { return h.mCR[idx] }

// F returns M_F[idx].
func (h *HistoricalMemory) F(idx int) float64 { return h.mF[idx] }

// Cursor returns the current write position k.
func (h *HistoricalMemory) Cursor() int { return h.k }

// Record appends a successful (CR_i, F_i, |Δscore|) sample for this
// generation's update. A zero or NaN delta is floored at 1e-9 to avoid
// division by zero in the weighted Lehmer mean.
func (h *HistoricalMemory) Record(cr, f, deltaScore float64) {
	if deltaScore == 0.0 || math.IsNaN(deltaScore) {
		deltaScore = 1e-9
	}
	h.sCR = append(h.sCR, cr)
	h.sF = append(h.sF, f)
	h.weights = append(h.weights, deltaScore)
}

// Reset clears the per-generation sample buffers.
func (h *HistoricalMemory) Reset() {
	h.sCR = nil
	h.sF = nil
	h.weights = nil
}

// Update folds this generation's recorded samples into M_CR[k]/M_F[k]
// and advances k modulo H. If no samples were recorded, it leaves the
// memory and cursor untouched.
func (h *HistoricalMemory) Update() {
	if len(h.sCR) == 0 || len(h.sF) == 0 || len(h.weights) == 0 {
		return
	}
	if h.mCR[h.k] == nil || maxOf(h.sCR) == 0.0 {
		h.mCR[h.k] = nil
	} else {
		v := lehmerMean(h.sCR, h.weights)
		h.mCR[h.k] = &v
	}
	h.mF[h.k] = lehmerMean(h.sF, h.weights)
	if h.k >= h.size-1 {
		h.k = 0
	} else {
		h.k++
	}
}

// lehmerMean computes the weighted Lehmer mean of s with respect to
// weights w: Σ (w_k/Σw)·s_k² / Σ (w_k/Σw)·s_k.
func lehmerMean(s, weights []float64) float64 {
	sumWeights := 0.0
	for _, w := range weights {
		sumWeights += w
	}
	a, b := 0.0, 0.0
	for k, v := range s {
		w := weights[k] / sumWeights
		a += w * v * v
		b += w * v
	}
	return a / b
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
