package pbt

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// safeRand wraps a *rand.Rand behind a mutex so the evolvers, archive and
// historical memory can all draw from a single deterministic stream from
// multiple call sites without racing.
type safeRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSafeRand(seed int64) *safeRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &safeRand{rng: rand.New(rand.NewSource(seed))}
}

// RNG is the exported handle callers outside this package use to build
// the shared random source a Controller and its Evolver draw from.
type RNG = safeRand

// NewRNG constructs the shared random source used by a Controller's
// Evolver, archive and historical memory. A seed of 0 seeds from the
// current time.
func NewRNG(seed int64) *RNG { return newSafeRand(seed) }

func (s *safeRand) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *safeRand) normFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.NormFloat64()
}

func (s *safeRand) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// uniform returns a sample from U(lo, hi).
func (s *safeRand) uniform(lo, hi float64) float64 {
	return lo + s.float64()*(hi-lo)
}

// DeterministicSeed derives a reproducible RNG seed from a kind tag and
// integer parts by hashing "kind|p0|p1|..." with SHA-256 and folding
// the first eight bytes into a non-negative int64. The worker pool uses
// it to seed each worker at start and again on respawn, so a rerun with
// the same configuration reproduces the same per-worker streams.
func DeterministicSeed(kind string, parts ...int) int64 {
	base := kind
	for _, p := range parts {
		base += fmt.Sprintf("|%d", p)
	}
	sum := sha256.Sum256([]byte(base))
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// Randn draws a Gaussian sample with mean mu and standard deviation sigma.
func Randn(rng *safeRand, mu, sigma float64) float64 {
	return mu + sigma*rng.normFloat64()
}

// Randc draws a Cauchy sample with location mu and scale sigma.
func Randc(rng *safeRand, mu, sigma float64) float64 {
	return mu + sigma*math.Tan(math.Pi*(rng.float64()-0.5))
}
