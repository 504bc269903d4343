package pbt

import "testing"

func TestDifferentialEvolutionDegeneratePopulation(t *testing.T) {
	generation := NewGeneration()
	_ = generation.Append(makeScoredMember(t, 0, 0.1))
	_ = generation.Append(makeScoredMember(t, 1, 0.2))

	evolver := NewDifferentialEvolution(0.2, 0.8)
	_, err := evolver.Mutate(generation, newSafeRand(1))
	if err == nil {
		t.Fatal("expected fatal error for generation size below 3")
	}
}

func TestDifferentialEvolutionMutateKeepsCoordinatesNormalized(t *testing.T) {
	generation := NewGeneration()
	for i := 0; i < 5; i++ {
		_ = generation.Append(makeScoredMember(t, i, float64(i)*0.2))
	}
	evolver := NewDifferentialEvolution(0.9, 0.9)
	candidates, err := evolver.Mutate(generation, newSafeRand(2))
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(candidates) != 5 {
		t.Fatalf("expected one candidate per member, got %d", len(candidates))
	}
	for _, c := range candidates {
		for j := 0; j < c.Trial.Dimensions(); j++ {
			if u := c.Trial.At(j).Normalized(); u < 0 || u > 1 {
				t.Fatalf("trial coordinate out of [0,1]: %v", u)
			}
		}
	}
}

func TestDifferentialEvolutionSelectBetterOrEqual(t *testing.T) {
	evolver := NewDifferentialEvolution(0.2, 0.8)
	parent := makeScoredMember(t, 0, 0.3)
	trial := makeScoredMember(t, 0, 0.9)
	survivor := evolver.Select(Candidate{Parent: parent, Trial: trial})
	if survivor.Score() < parent.Score() {
		t.Errorf("survivor score %v must be weakly better than parent score %v", survivor.Score(), parent.Score())
	}

	worseTrial := makeScoredMember(t, 0, 0.1)
	survivor = evolver.Select(Candidate{Parent: parent, Trial: worseTrial})
	if survivor != parent {
		t.Error("a strictly worse trial must not be selected over the parent")
	}
}
