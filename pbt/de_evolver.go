package pbt

import "fmt"

// DifferentialEvolution is the classic DE/rand/1/bin operator:
// rand/1 mutation, binomial crossover, one-to-one greedy selection.
type DifferentialEvolution struct {
	F  float64
	Cr float64
}

// DefaultDEConfig returns the conventional F and Cr settings.
func DefaultDEConfig() DifferentialEvolution { return DifferentialEvolution{F: 0.2, Cr: 0.8} }

func NewDifferentialEvolution(f, cr float64) *DifferentialEvolution {
	return &DifferentialEvolution{F: f, Cr: cr}
}

func (e *DifferentialEvolution) Spawn(members []*Member, rng *safeRand) *Generation {
	return spawnByUniformSampling(members, rng)
}

func (e *DifferentialEvolution) OnGenerationStart(*Generation) {}

func (e *DifferentialEvolution) Mutate(generation *Generation, rng *safeRand) ([]Candidate, error) {
	if generation.Len() < 3 {
		return nil, fmt.Errorf("pbt: generation size must be at least 3 or higher")
	}
	members := generation.Members()
	candidates := make([]Candidate, 0, len(members))
	for _, member := range members {
		trial := member.Copy()
		dims := member.Dimensions()
		refs, err := sampleDistinct(rng, members, 3, member)
		if err != nil {
			return nil, err
		}
		xR0, xR1, xR2 := refs[0], refs[1], refs[2]
		jRand := rng.intn(dims)
		for j := 0; j < dims; j++ {
			if rng.float64() <= e.Cr || j == jRand {
				mutant := DERand1(e.F, xR0.At(j).Normalized(), xR1.At(j).Normalized(), xR2.At(j).Normalized())
				trial.At(j).SetNormalized(Clip(mutant, 0.0, 1.0))
			} else {
				trial.At(j).SetNormalized(member.At(j).Normalized())
			}
		}
		candidates = append(candidates, Candidate{Parent: member.Copy(), Trial: trial})
	}
	return candidates, nil
}

// Select returns the better of Parent/Trial under the member ordering;
// ties favor the trial (parent <= trial selects trial).
func (e *DifferentialEvolution) Select(c Candidate) *Member {
	if c.Parent.LessOrEqual(c.Trial) {
		return c.Trial
	}
	return c.Parent
}

func (e *DifferentialEvolution) OnGenerationEnd(*Generation) {}
