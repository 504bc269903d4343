package pbt

import (
	"fmt"
	"math"
	"sort"
)

// namedHyperparameter preserves declaration order alongside the lookup
// name, since DE's coordinate-wise mutation indexes hyperparameters by
// position (j-th dimension), not by name.
type namedHyperparameter struct {
	name string
	hp   *Hyperparameter
}

// Member is a single training configuration together with its current
// (opaque) weights, optimizer state, scores and timings.
type Member struct {
	ID         int
	Epochs     int
	Steps      int
	parameters []namedHyperparameter

	ModelState     any
	OptimizerState any

	// Loss is a nested mapping {group -> {metric -> value}}.
	Loss map[string]map[string]float64
	Time map[string]float64

	LossMetric string
	EvalMetric string
	Minimize   bool
}

// NewMember creates a member with the given ordered hyperparameter set.
// names and hyperparameters must be the same length; order is preserved.
func NewMember(id int, names []string, hyperparameters []*Hyperparameter, lossMetric, evalMetric string, minimize bool) (*Member, error) {
	if len(names) != len(hyperparameters) {
		return nil, fmt.Errorf("pbt: names and hyperparameters must have equal length, got %d and %d", len(names), len(hyperparameters))
	}
	params := make([]namedHyperparameter, len(names))
	for i := range names {
		params[i] = namedHyperparameter{name: names[i], hp: hyperparameters[i]}
	}
	return &Member{
		ID:         id,
		parameters: params,
		Loss:       map[string]map[string]float64{},
		Time:       map[string]float64{},
		LossMetric: lossMetric,
		EvalMetric: evalMetric,
		Minimize:   minimize,
	}, nil
}

// Dimensions returns the number of hyperparameter coordinates.
func (m *Member) Dimensions() int { return len(m.parameters) }

// At returns the j-th hyperparameter coordinate in declaration order.
func (m *Member) At(j int) *Hyperparameter { return m.parameters[j].hp }

// ParameterNames returns the ordered hyperparameter names.
func (m *Member) ParameterNames() []string {
	names := make([]string, len(m.parameters))
	for i, p := range m.parameters {
		names[i] = p.name
	}
	return names
}

// Parameter looks up a hyperparameter by name.
func (m *Member) Parameter(name string) (*Hyperparameter, bool) {
	for _, p := range m.parameters {
		if p.name == name {
			return p.hp, true
		}
	}
	return nil, false
}

// SampleUniform samples every hyperparameter from U(0,1); used by Spawn.
func (m *Member) SampleUniform(rng *safeRand) {
	for _, p := range m.parameters {
		p.hp.SampleUniform(rng)
	}
}

// Score returns loss[eval][EvalMetric], or NaN if absent.
func (m *Member) Score() float64 {
	group, ok := m.Loss["eval"]
	if !ok {
		return math.NaN()
	}
	v, ok := group[m.EvalMetric]
	if !ok {
		return math.NaN()
	}
	return v
}

// Less implements the total ordering induced by score and Minimize: when
// minimizing, a smaller score is "greater"; NaN scores always sort worst.
func (m *Member) Less(other *Member) bool {
	a, b := m.Score(), other.Score()
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return false
	case aNaN:
		return true // NaN is always worse, i.e. "less"
	case bNaN:
		return false
	}
	if m.Minimize {
		return a > b // smaller score is "greater"
	}
	return a < b
}

// LessOrEqual reports whether m <= other under the member ordering, used
// by DE/SHADE selection ("parent <= trial" favors the trial).
func (m *Member) LessOrEqual(other *Member) bool {
	return !other.Less(m)
}

// Copy duplicates parameters and metadata. Opaque state blobs are shared
// by reference; ownership transfers to the caller via CopyState.
func (m *Member) Copy() *Member {
	clone := &Member{
		ID:             m.ID,
		Epochs:         m.Epochs,
		Steps:          m.Steps,
		ModelState:     m.ModelState,
		OptimizerState: m.OptimizerState,
		LossMetric:     m.LossMetric,
		EvalMetric:     m.EvalMetric,
		Minimize:       m.Minimize,
		Loss:           map[string]map[string]float64{},
		Time:           map[string]float64{},
	}
	for group, metrics := range m.Loss {
		copied := make(map[string]float64, len(metrics))
		for k, v := range metrics {
			copied[k] = v
		}
		clone.Loss[group] = copied
	}
	for k, v := range m.Time {
		clone.Time[k] = v
	}
	clone.parameters = make([]namedHyperparameter, len(m.parameters))
	for i, p := range m.parameters {
		clone.parameters[i] = namedHyperparameter{name: p.name, hp: p.hp.Clone()}
	}
	return clone
}

// CopyParameters overwrites m's hyperparameters with deep copies of
// source's, keeping m's own id and state.
func (m *Member) CopyParameters(source *Member) {
	m.parameters = make([]namedHyperparameter, len(source.parameters))
	for i, p := range source.parameters {
		m.parameters[i] = namedHyperparameter{name: p.name, hp: p.hp.Clone()}
	}
}

// HasState reports whether the member carries trained state. A worker
// returning a member without it is logged by the Controller and skipped
// for persistence, though the selection still counts toward NFE.
func (m *Member) HasState() bool {
	return m.ModelState != nil || m.OptimizerState != nil
}

// CopyState transfers the opaque model/optimizer state blobs by
// reference from source into m.
func (m *Member) CopyState(source *Member) {
	m.ModelState = source.ModelState
	m.OptimizerState = source.OptimizerState
}

// Generation is an ordered collection of members produced in one evolution
// cycle, indexed by member id (unique within the generation).
type Generation struct {
	order   []int
	members map[int]*Member
}

// NewGeneration creates an empty generation.
func NewGeneration() *Generation {
	return &Generation{members: map[int]*Member{}}
}

// Append adds a member, preserving insertion order. Member ids must be
// unique within a generation.
func (g *Generation) Append(m *Member) error {
	if _, exists := g.members[m.ID]; exists {
		return fmt.Errorf("pbt: member id %d already present in generation", m.ID)
	}
	g.order = append(g.order, m.ID)
	g.members[m.ID] = m
	return nil
}

// Remove deletes a member by id.
func (g *Generation) Remove(id int) {
	delete(g.members, id)
	for i, mid := range g.order {
		if mid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of members.
func (g *Generation) Len() int { return len(g.order) }

// Members returns the members in insertion order.
func (g *Generation) Members() []*Member {
	out := make([]*Member, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.members[id])
	}
	return out
}

// Get looks up a member by id.
func (g *Generation) Get(id int) (*Member, bool) {
	m, ok := g.members[id]
	return m, ok
}

// SortedDescending returns members ordered from best to worst under the
// member ordering (descending score, NaN worst).
func (g *Generation) SortedDescending() []*Member {
	members := g.Members()
	sort.Slice(members, func(i, j int) bool {
		return members[j].Less(members[i])
	})
	return members
}

// Population is an ordered list of generations; Current is the last
// appended.
type Population struct {
	Generations []*Generation
}

// NewPopulation creates an empty population.
func NewPopulation() *Population { return &Population{} }

// Append adds a new generation.
func (p *Population) Append(g *Generation) { p.Generations = append(p.Generations, g) }

// Current returns the most recently appended generation, or nil if empty.
func (p *Population) Current() *Generation {
	if len(p.Generations) == 0 {
		return nil
	}
	return p.Generations[len(p.Generations)-1]
}
