package pbt

import (
	"context"
	"testing"
	"time"
)

// scoringTrainer advances steps and sets trained state; scoringEvaluator
// raises every member's score by a fixed increment each generation,
// letting tests assert on the score end-criterion without a real
// training backend.
type scoringTrainer struct{ increment float64 }

func (s scoringTrainer) Train(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	trained := member.Copy()
	trained.Steps += steps
	trained.ModelState = "weights"
	return trained, nil
}

type scoringEvaluator struct{ increment float64 }

func (s scoringEvaluator) Evaluate(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	evaluated := member.Copy()
	current := evaluated.Score()
	if current != current { // NaN check without importing math
		current = 0
	}
	evaluated.Loss["eval"] = map[string]float64{member.EvalMetric: current + s.increment}
	return evaluated, nil
}

func newScoringMembers(t *testing.T, n int) []*Member {
	t.Helper()
	members := make([]*Member, n)
	for i := 0; i < n; i++ {
		hp, err := NewContinuousHyperparameter(0, 1, false)
		if err != nil {
			t.Fatalf("NewContinuousHyperparameter: %v", err)
		}
		m, err := NewMember(i, []string{"x"}, []*Hyperparameter{hp}, "loss", "score", false)
		if err != nil {
			t.Fatalf("NewMember: %v", err)
		}
		members[i] = m
	}
	return members
}

func TestControllerStopsOnScoreEndCriterion(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: 2}, scoringTrainer{}, scoringEvaluator{increment: 0.3}, noopLogger{})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })

	target := 0.9
	cfg := ControllerConfig{StepSize: 1, HistoryLimit: 2, EndScore: &target}
	rng := newSafeRand(1)
	controller, err := NewController(NewRandomSearch(), pool, NewMemStore(), cfg, noopLogger{}, nil, nil, nil, rng)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	population, err := controller.Run(ctx, newScoringMembers(t, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Each generation adds 0.3 to every member's score starting from 0.
	// In float64, 0.3+0.3+0.3 is 0.8999999999999999, just below the
	// target of 0.9, so the target is first reached after 4 evolved
	// generations (score 1.2), plus the initial spawn generation.
	if len(population.Generations) != 5 {
		t.Fatalf("expected the run to stop after 5 recorded generations (initial + 4 evolved), got %d", len(population.Generations))
	}
	finished := false
	for _, m := range population.Current().Members() {
		if m.Score() >= target {
			finished = true
		}
	}
	if !finished {
		t.Error("expected at least one member to have reached the target score")
	}
}

func TestControllerNFEAccounting(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: 1}, scoringTrainer{}, scoringEvaluator{increment: 0.01}, noopLogger{})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })

	cfg := ControllerConfig{StepSize: 1, HistoryLimit: 2, EndNFE: 6}
	rng := newSafeRand(3)
	controller, err := NewController(NewRandomSearch(), pool, NewMemStore(), cfg, noopLogger{}, nil, nil, nil, rng)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	population, err := controller.Run(ctx, newScoringMembers(t, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3 members per generation, one select per member: the NFE target of
	// 6 is reached after exactly 2 evolved generations.
	if controller.NFE() != 6 {
		t.Errorf("NFE = %d, want 6 (one per select call)", controller.NFE())
	}
	if len(population.Generations) != 3 {
		t.Errorf("expected 3 recorded generations (initial + 2 evolved), got %d", len(population.Generations))
	}
}

func TestControllerFastEvaluateMode(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: 2}, scoringTrainer{}, scoringEvaluator{increment: 0.1}, noopLogger{})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })

	cfg := ControllerConfig{StepSize: 5, HistoryLimit: 2, EndSteps: 10, FastEvaluate: true, FastEvalSteps: 2}
	rng := newSafeRand(4)
	controller, err := NewController(NewRandomSearch(), pool, NewMemStore(), cfg, noopLogger{}, nil, nil, nil, rng)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	population, err := controller.Run(ctx, newScoringMembers(t, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Probe (2 steps) + retrain (3 steps) advances each member by the
	// full step size per generation, so 10 end steps take 2 generations.
	if len(population.Generations) != 3 {
		t.Fatalf("expected 3 recorded generations (initial + 2 evolved), got %d", len(population.Generations))
	}
	for _, m := range population.Current().Members() {
		if m.Steps != 10 {
			t.Errorf("member %d steps = %d, want 10", m.ID, m.Steps)
		}
	}
	// Every initial probe trial counts as one NFE: 2 members x 2 gens.
	if controller.NFE() != 4 {
		t.Errorf("NFE = %d, want 4", controller.NFE())
	}
}

func TestControllerFastEvaluateConfigValidation(t *testing.T) {
	cfg := ControllerConfig{StepSize: 5, FastEvaluate: true, FastEvalSteps: 5}
	if _, err := NewController(NewRandomSearch(), nil, NewMemStore(), cfg, noopLogger{}, nil, nil, nil, newSafeRand(1)); err == nil {
		t.Error("expected an error for fast-evaluate steps outside (0, step_size)")
	}
}

func TestControllerStopsOnStepsEndCriterion(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: 1}, scoringTrainer{}, scoringEvaluator{increment: 0.1}, noopLogger{})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })

	cfg := ControllerConfig{StepSize: 5, HistoryLimit: 2, EndSteps: 10}
	rng := newSafeRand(2)
	controller, err := NewController(NewRandomSearch(), pool, NewMemStore(), cfg, noopLogger{}, nil, nil, nil, rng)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	population, err := controller.Run(ctx, newScoringMembers(t, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(population.Generations) != 3 {
		t.Fatalf("expected the run to stop after 3 recorded generations (initial + 10 steps / 5 per generation), got %d", len(population.Generations))
	}
}
