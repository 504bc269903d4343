package pbt

// Candidate is one or two members produced by Mutate for a given parent:
// evolvers with no explicit trial (RandomSearch, RandomWalk,
// ExploitAndExplore) populate only Parent; DE-family evolvers populate
// both Parent and Trial.
type Candidate struct {
	Parent *Member
	Trial  *Member
}

// Evolver is the pluggable evolution-strategy contract every engine in
// this package implements. The Controller owns an Evolver and hands it
// the current generation at each step; engines never call back into
// the Controller.
type Evolver interface {
	// Spawn initializes each member by sampling its hyperparameters
	// uniformly, producing the initial generation.
	Spawn(members []*Member, rng *safeRand) *Generation

	// OnGenerationStart is an optional hook invoked before mutation
	// begins for a new generation (SHADE resets its buffers here).
	OnGenerationStart(generation *Generation)

	// Mutate produces one candidate per member of the generation.
	Mutate(generation *Generation, rng *safeRand) ([]Candidate, error)

	// Select decides the survivor between a candidate's Parent and
	// Trial (or simply returns Parent when there is no separate trial).
	Select(c Candidate) *Member

	// OnGenerationEnd is an optional hook invoked after selection for a
	// generation completes (SHADE updates memory here; L-SHADE also
	// resizes the population).
	OnGenerationEnd(generation *Generation)
}

// spawnByUniformSampling is the shared Spawn implementation used by every
// evolver in this package: copy each member and sample every
// hyperparameter from U(0,1).
func spawnByUniformSampling(members []*Member, rng *safeRand) *Generation {
	generation := NewGeneration()
	for _, original := range members {
		member := original.Copy()
		member.SampleUniform(rng)
		_ = generation.Append(member)
	}
	return generation
}

// RandomSearch returns each member unchanged every generation; only the
// initial Spawn samples parameters.
type RandomSearch struct{}

func NewRandomSearch() *RandomSearch { return &RandomSearch{} }

func (e *RandomSearch) Spawn(members []*Member, rng *safeRand) *Generation {
	return spawnByUniformSampling(members, rng)
}

func (e *RandomSearch) OnGenerationStart(*Generation) {}

func (e *RandomSearch) Mutate(generation *Generation, rng *safeRand) ([]Candidate, error) {
	candidates := make([]Candidate, 0, generation.Len())
	for _, m := range generation.Members() {
		candidates = append(candidates, Candidate{Parent: m.Copy()})
	}
	return candidates, nil
}

func (e *RandomSearch) Select(c Candidate) *Member { return c.Parent }

func (e *RandomSearch) OnGenerationEnd(*Generation) {}

// RandomWalk copies each member and multiplies every hyperparameter
// coordinate by a factor drawn uniformly from [-explore_factor,
// +explore_factor].
type RandomWalk struct {
	ExploreFactor float64
}

// DefaultRandomWalkConfig returns a RandomWalk with a moderate
// exploration range.
func DefaultRandomWalkConfig() RandomWalk { return RandomWalk{ExploreFactor: 0.2} }

func NewRandomWalk(exploreFactor float64) *RandomWalk {
	return &RandomWalk{ExploreFactor: exploreFactor}
}

func (e *RandomWalk) Spawn(members []*Member, rng *safeRand) *Generation {
	return spawnByUniformSampling(members, rng)
}

func (e *RandomWalk) OnGenerationStart(*Generation) {}

func (e *RandomWalk) Mutate(generation *Generation, rng *safeRand) ([]Candidate, error) {
	candidates := make([]Candidate, 0, generation.Len())
	for _, m := range generation.Members() {
		explorer := m.Copy()
		for j := 0; j < explorer.Dimensions(); j++ {
			factor := rng.uniform(-e.ExploreFactor, e.ExploreFactor)
			coord := explorer.At(j)
			coord.SetNormalized(coord.Mul(factor))
		}
		candidates = append(candidates, Candidate{Parent: explorer})
	}
	return candidates, nil
}

func (e *RandomWalk) Select(c Candidate) *Member { return c.Parent }

func (e *RandomWalk) OnGenerationEnd(*Generation) {}
