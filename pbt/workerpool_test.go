package pbt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTrainer struct{}

func (fakeTrainer) Train(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	trained := member.Copy()
	trained.Steps += steps
	trained.ModelState = "weights"
	return trained, nil
}

type fakeEvaluator struct{}

func (fakeEvaluator) Evaluate(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	evaluated := member.Copy()
	evaluated.Loss["eval"] = map[string]float64{member.EvalMetric: 1.0}
	return evaluated, nil
}

// flakyTrainer fails the first Train call and succeeds afterwards,
// exercising the fail-then-respawn path without killing the whole pool.
type flakyTrainer struct{ calls atomic.Int64 }

func (f *flakyTrainer) Train(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	if f.calls.Add(1) == 1 {
		return nil, errors.New("transient failure")
	}
	trained := member.Copy()
	trained.Steps += steps
	trained.ModelState = "weights"
	return trained, nil
}

type failingTrainer struct{}

func (failingTrainer) Train(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error) {
	return nil, errors.New("boom")
}

func newTestWorkerPool(t *testing.T, trainer Trainer, evaluator Evaluator, nJobs int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: nJobs}, trainer, evaluator, noopLogger{})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })
	return pool
}

func TestWorkerPoolConstructionValidatesJobCount(t *testing.T) {
	_, err := NewWorkerPool(WorkerPoolConfig{Devices: []string{"cpu", "gpu"}, NJobs: 1}, fakeTrainer{}, fakeEvaluator{}, noopLogger{})
	if err == nil {
		t.Fatal("expected an error when n_jobs < len(devices)")
	}
}

func TestWorkerPoolTrainReturnsAllResults(t *testing.T) {
	pool := newTestWorkerPool(t, fakeTrainer{}, fakeEvaluator{}, 2)

	candidates := make([]Candidate, 0, 5)
	for i := 0; i < 5; i++ {
		m := makeScoredMember(t, i, 0.1)
		candidates = append(candidates, Candidate{Parent: m})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := pool.Train(ctx, candidates, 10, nil, false, false)
	count := 0
	for res := range results {
		if res.Err != nil {
			t.Fatalf("unexpected terminal error: %v", res.Err)
		}
		if res.Fail != nil {
			t.Fatalf("unexpected fail message: %+v", res.Fail)
		}
		if res.Candidate.Parent.Steps != 10 {
			t.Errorf("trained member steps = %d, want 10", res.Candidate.Parent.Steps)
		}
		count++
	}
	if count != len(candidates) {
		t.Errorf("got %d results, want %d", count, len(candidates))
	}
}

func TestWorkerPoolContinuesAfterSingleWorkerFailure(t *testing.T) {
	pool := newTestWorkerPool(t, &flakyTrainer{}, fakeEvaluator{}, 2)

	candidates := make([]Candidate, 0, 6)
	for i := 0; i < 6; i++ {
		candidates = append(candidates, Candidate{Parent: makeScoredMember(t, i, 0.1)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := pool.Train(ctx, candidates, 10, nil, false, false)
	var nOK, nFail int
	for res := range results {
		switch {
		case res.Err != nil:
			t.Fatalf("a single failure must not be terminal while other workers remain: %v", res.Err)
		case res.Fail != nil:
			nFail++
		default:
			nOK++
		}
	}
	if nFail != 1 {
		t.Errorf("expected exactly 1 fail message, got %d", nFail)
	}
	if nOK != len(candidates)-1 {
		t.Errorf("expected %d successful results after the respawn, got %d", len(candidates)-1, nOK)
	}
}

func TestWorkerPoolAllWorkersFailingIsFatal(t *testing.T) {
	pool := newTestWorkerPool(t, failingTrainer{}, fakeEvaluator{}, 1)

	m := makeScoredMember(t, 1, 0.1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := pool.Train(ctx, []Candidate{{Parent: m}}, 10, nil, false, false)
	var sawFail, sawErr bool
	for res := range results {
		if res.Fail != nil {
			sawFail = true
		}
		if res.Err != nil {
			sawErr = true
		}
	}
	if !sawFail {
		t.Error("expected a FailMessage to be surfaced")
	}
	if !sawErr {
		t.Error("expected a fatal error once every worker has failed")
	}
}
