package pbt

import (
	"fmt"
	"math"
)

// SHADEConfig holds SHADE's tunables.
type SHADEConfig struct {
	NInit        int
	RArc         float64
	P            float64
	MemorySize   int
	FMin, FMax   float64
	StateSharing bool
}

// DefaultSHADEConfig returns a mid-sized population with a generous
// archive and a small success-history memory.
func DefaultSHADEConfig() SHADEConfig {
	return SHADEConfig{NInit: 18, RArc: 2.0, P: 0.1, MemorySize: 5, FMin: 0.0, FMax: 1.0}
}

// FModulator reshapes a raw Cauchy-sampled F value given the run's
// progress t = NFE/MAX_NFE; the decaying and guided variants are
// composed onto L-SHADE through it.
type FModulator func(f, t float64) float64

// SHADE implements Success-History based Adaptive DE. The same engine
// also covers L-SHADE (linear population reduction, enabled through
// NewLSHADE) and the decaying/guided variants (an optional FModulator
// set with WithFModulation): one parameterized type rather than an
// inheritance chain.
type SHADE struct {
	cfg     SHADEConfig
	archive *ExternalArchive
	memory  *HistoricalMemory
	cr      map[int]float64
	f       map[int]float64
	rng     *safeRand

	fAverages  []float64
	crAverages []float64

	// L-SHADE linear population reduction, optional.
	lshade bool
	maxNFE int
	nMin   int
	nfe    int

	modulate FModulator
}

// NewSHADE validates cfg and constructs a SHADE evolver.
func NewSHADE(cfg SHADEConfig, rng *safeRand) (*SHADE, error) {
	if cfg.NInit < 4 {
		return nil, fmt.Errorf("pbt: SHADE population size must be at least 4 or higher")
	}
	if cfg.FMin < 0 {
		return nil, fmt.Errorf("pbt: f_min cannot be negative")
	}
	if cfg.FMax <= 0 {
		return nil, fmt.Errorf("pbt: f_max must be positive")
	}
	if cfg.FMax < cfg.FMin {
		return nil, fmt.Errorf("pbt: f_max cannot be less than f_min")
	}
	archiveSize := roundInt(float64(cfg.NInit) * cfg.RArc)
	s := &SHADE{
		cfg:     cfg,
		rng:     rng,
		archive: NewExternalArchive(archiveSize, rng),
		memory:  NewHistoricalMemory(cfg.MemorySize, (cfg.FMax-cfg.FMin)/2.0),
		cr:      map[int]float64{},
		f:       map[int]float64{},
	}
	return s, nil
}

// NewLSHADE constructs a SHADE evolver with Linear Population Size
// Reduction enabled: the population shrinks toward a floor of 4
// members as the maxNFE evaluation budget is consumed.
func NewLSHADE(cfg SHADEConfig, maxNFE int, rng *safeRand) (*SHADE, error) {
	s, err := NewSHADE(cfg, rng)
	if err != nil {
		return nil, err
	}
	s.lshade = true
	s.maxNFE = maxNFE
	s.nMin = 4
	return s, nil
}

// WithFModulation attaches a decaying/guided F-modulation function.
// Only meaningful once L-SHADE's NFE budget is set via NewLSHADE.
func (s *SHADE) WithFModulation(m FModulator) *SHADE {
	s.modulate = m
	return s
}

func logistic(x, k float64) float64 { return 1.0 / (1.0 + math.Exp(-k*(x-0.5))) }
func curveShape(x, k float64) float64 { return math.Pow(x, k) }

// DecayingLinear, DecayingCurve, DecayingLogistic, GuidedLinear,
// GuidedCurve and GuidedLogistic build the six F-modulation shapes:
// decaying variants shrink F toward zero as the budget runs out;
// guided variants pull F toward the shape's own schedule with the
// given strength.
func DecayingLinear() FModulator {
	return func(f, t float64) float64 { return f * (1.0 - t) }
}
func DecayingCurve() FModulator {
	return func(f, t float64) float64 { return f * (1.0 - curveShape(t, 5)) }
}
func DecayingLogistic() FModulator {
	return func(f, t float64) float64 { return f * (1.0 - logistic(t, 20)) }
}
func GuidedLinear(strength float64) FModulator {
	return func(f, t float64) float64 { return f + ((1.0-t)-f)*strength }
}
func GuidedCurve(strength float64) FModulator {
	return func(f, t float64) float64 { return f + ((1.0-curveShape(t, 5))-f)*strength }
}
func GuidedLogistic(strength float64) FModulator {
	return func(f, t float64) float64 { return f + ((1.0-logistic(t, 20))-f)*strength }
}

func (s *SHADE) Spawn(members []*Member, rng *safeRand) *Generation {
	return spawnByUniformSampling(members, rng)
}

func (s *SHADE) OnGenerationStart(*Generation) {
	s.memory.Reset()
	s.cr = map[int]float64{}
	s.f = map[int]float64{}
}

func (s *SHADE) Mutate(generation *Generation, rng *safeRand) ([]Candidate, error) {
	if generation.Len() < 4 {
		return nil, fmt.Errorf("pbt: generation size must be at least 4 or higher")
	}
	members := generation.Members()
	candidates := make([]Candidate, 0, len(members))
	for _, member := range members {
		cr, f, err := s.controlParameters()
		if err != nil {
			return nil, err
		}
		s.cr[member.ID] = cr
		s.f[member.ID] = f

		xR1Set, err := sampleDistinct(rng, members, 1, member)
		if err != nil {
			return nil, err
		}
		xR1 := xR1Set[0]
		pool := append(append([]*Member(nil), s.archive.Members()...), members...)
		xR2Set, err := sampleDistinct(rng, pool, 1, member, xR1)
		if err != nil {
			return nil, err
		}
		xR2 := xR2Set[0]

		xPbest := s.pbestMember(generation, rng)

		dims := member.Dimensions()
		jRand := rng.intn(dims)
		trial := member.Copy()
		if s.cfg.StateSharing {
			trial.CopyState(xPbest)
		}
		for j := 0; j < dims; j++ {
			if rng.float64() <= cr || j == jRand {
				mutant := DECurrentToBest1(f, member.At(j).Normalized(), xPbest.At(j).Normalized(), xR1.At(j).Normalized(), xR2.At(j).Normalized())
				trial.At(j).SetNormalized(Halving(member.At(j).Normalized(), mutant, 0.0, 1.0))
			} else {
				trial.At(j).SetNormalized(member.At(j).Normalized())
			}
		}
		candidates = append(candidates, Candidate{Parent: member.Copy(), Trial: trial})
	}
	return candidates, nil
}

// controlParameters draws (CR_i, F_i) from a random historical-memory
// slot: CR from a clipped Gaussian (zero when the slot holds no
// crossover memory), F from a Cauchy resampled until it clears the
// lower bound and saturated at the upper one. Any attached
// F-modulation is applied last.
func (s *SHADE) controlParameters() (cr, f float64, err error) {
	r := s.rng.intn(s.memory.Size())
	mF := s.memory.F(r)
	mCR := s.memory.CR(r)

	if mCR == nil {
		cr = 0.0
	} else {
		cr = Clip(Randn(s.rng, *mCR, 0.1), 0.0, 1.0)
	}

	for {
		f = Randc(s.rng, mF, 0.1)
		if f < s.cfg.FMin {
			continue
		}
		if f > s.cfg.FMax {
			f = s.cfg.FMax
		}
		break
	}

	if s.modulate != nil && s.maxNFE > 0 {
		t := float64(s.nfe) / float64(s.maxNFE)
		f = s.modulate(f, t)
	}
	return cr, f, nil
}

// pbestMember samples uniformly from the top max(1, round(|G|*p))
// members ordered by descending score.
func (s *SHADE) pbestMember(generation *Generation, rng *safeRand) *Member {
	sorted := generation.SortedDescending()
	nElitists := maxInt(roundInt(float64(generation.Len())*s.cfg.P), 1)
	elitists := sorted[:nElitists]
	return elitists[rng.intn(len(elitists))]
}

// Select decides the survivor, recording the replaced parent to the
// archive and the successful (CR, F) pair to historical memory when
// the trial is weakly better. With linear reduction enabled it also
// advances the internal NFE counter driving the resize schedule.
func (s *SHADE) Select(c Candidate) *Member {
	if s.lshade {
		s.nfe++
	}
	parent, trial := c.Parent, c.Trial
	if parent.LessOrEqual(trial) {
		s.archive.Append(parent.Copy())
		deltaScore := math.Abs(trial.Score() - parent.Score())
		s.memory.Record(s.cr[parent.ID], s.f[parent.ID], deltaScore)
		return trial
	}
	return parent
}

func (s *SHADE) OnGenerationEnd(generation *Generation) {
	if s.lshade {
		s.adjustGenerationSize(generation)
	}
	s.memory.Update()
	fValues := make([]float64, 0, len(s.f))
	for _, v := range s.f {
		fValues = append(fValues, v)
	}
	crValues := make([]float64, 0, len(s.cr))
	for _, v := range s.cr {
		crValues = append(crValues, v)
	}
	s.fAverages = append(s.fAverages, average(fValues))
	s.crAverages = append(s.crAverages, average(crValues))
}

// adjustGenerationSize implements Linear Population Size Reduction:
// resize toward the minimum population as the NFE budget is consumed,
// trimming the lowest-scoring members and shrinking the archive to
// match.
func (s *SHADE) adjustGenerationSize(generation *Generation) {
	nNew := roundInt(((float64(s.nMin) - float64(s.cfg.NInit)) / float64(s.maxNFE) * float64(s.nfe)) + float64(s.cfg.NInit))
	if nNew >= generation.Len() {
		return
	}
	s.archive.SetSize(roundInt(float64(nNew) * s.cfg.RArc))
	sizeDelta := generation.Len() - nNew
	worst := generation.SortedDescending()
	worst = worst[len(worst)-sizeDelta:]
	for _, m := range worst {
		generation.Remove(m.ID)
	}
}

// FAverages and CRAverages expose the per-generation diagnostic
// history of mean control-parameter values.
func (s *SHADE) FAverages() []float64  { return s.fAverages }
func (s *SHADE) CRAverages() []float64 { return s.crAverages }

// NFE returns the evolver's own internal fitness-evaluation counter
// (only meaningful once L-SHADE is enabled).
func (s *SHADE) NFE() int { return s.nfe }
