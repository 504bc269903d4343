package pbt

// ExploitAndExplore is the classic PBT operator: the bottom performers
// copy a randomly chosen elitist's parameters and state, then perturb
// every coordinate by a factor drawn from ExploreFactors; elitists
// advance unchanged.
type ExploitAndExplore struct {
	ExploitFactor  float64
	ExploreFactors []float64
}

// DefaultExploitAndExploreConfig exploits the top fifth and perturbs
// by ±20%.
func DefaultExploitAndExploreConfig() ExploitAndExplore {
	return ExploitAndExplore{ExploitFactor: 0.2, ExploreFactors: []float64{0.8, 1.2}}
}

func NewExploitAndExplore(exploitFactor float64, exploreFactors []float64) *ExploitAndExplore {
	return &ExploitAndExplore{ExploitFactor: exploitFactor, ExploreFactors: exploreFactors}
}

func (e *ExploitAndExplore) Spawn(members []*Member, rng *safeRand) *Generation {
	return spawnByUniformSampling(members, rng)
}

func (e *ExploitAndExplore) OnGenerationStart(*Generation) {}

func (e *ExploitAndExplore) Mutate(generation *Generation, rng *safeRand) ([]Candidate, error) {
	sorted := generation.SortedDescending()
	nElitists := maxInt(1, roundInt(float64(generation.Len())*e.ExploitFactor))
	elitists := sorted[:nElitists]
	isElitist := make(map[int]bool, len(elitists))
	for _, el := range elitists {
		isElitist[el.ID] = true
	}

	candidates := make([]Candidate, 0, generation.Len())
	for _, member := range generation.Members() {
		if !isElitist[member.ID] {
			elitist := elitists[rng.intn(len(elitists))]
			exploiter := member.Copy()
			exploiter.CopyParameters(elitist)
			exploiter.CopyState(elitist)
			explorer := e.explore(exploiter, rng)
			candidates = append(candidates, Candidate{Parent: explorer})
		} else {
			candidates = append(candidates, Candidate{Parent: member.Copy()})
		}
	}
	return candidates, nil
}

// explore perturbs every coordinate of member by a factor chosen
// uniformly from ExploreFactors, using the clipped Mul operator so the
// result stays normalized.
func (e *ExploitAndExplore) explore(member *Member, rng *safeRand) *Member {
	explorer := member.Copy()
	for j := 0; j < explorer.Dimensions(); j++ {
		factor := e.ExploreFactors[rng.intn(len(e.ExploreFactors))]
		coord := explorer.At(j)
		coord.SetNormalized(coord.Mul(factor))
	}
	return explorer
}

func (e *ExploitAndExplore) Select(c Candidate) *Member { return c.Parent }

func (e *ExploitAndExplore) OnGenerationEnd(*Generation) {}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func roundInt(x float64) int { return int(roundHalfAwayFromZero(x)) }
