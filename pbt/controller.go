package pbt

import (
	"context"
	"fmt"
	"math"
)

// ControllerConfig holds the generational-loop parameters: training
// budget per generation, end criteria, checkpoint retention and the
// optional fast-evaluate mode.
type ControllerConfig struct {
	StepSize     int
	EvalStepSize *int
	TrainShuffle bool
	EvalShuffle  bool

	// End criteria; the run ends as soon as any configured criterion
	// fires. A zero/nil value disables that criterion.
	EndSteps int
	EndNFE   int
	EndScore *float64

	// HistoryLimit is the number of trailing generations of checkpoints
	// retained; a floor of 2 is enforced by CheckpointStore.Collect.
	HistoryLimit int

	// DetectNaN logs a one-line warning whenever a survivor's score
	// comes back NaN. The ordering guarantee that NaN always sorts
	// worst holds regardless; this is purely a diagnostic.
	DetectNaN bool

	// FastEvaluate enables the short-evaluation-then-retrain mode: every
	// candidate is trained/evaluated for FastEvalSteps first, survivors
	// are picked from that cheap signal, then only survivors are
	// retrained for the remaining StepSize-FastEvalSteps steps.
	FastEvaluate  bool
	FastEvalSteps int
}

// DefaultControllerConfig returns a config with no end criteria
// configured and a two-generation checkpoint history.
func DefaultControllerConfig(stepSize int) ControllerConfig {
	return ControllerConfig{StepSize: stepSize, HistoryLimit: 2}
}

// Controller drives the generational PBT loop: spawn the initial
// generation, then repeatedly mutate, train via the WorkerPool, select
// survivors, and persist checkpoints until an end criterion is met or
// ctx is cancelled.
type Controller struct {
	evolver Evolver
	pool    *WorkerPool
	store   CheckpointStore
	logger  Logger
	telem   *Telemetry

	cohortLimiter RateLimiter
	evalLimiter   RateLimiter

	rng *safeRand
	cfg ControllerConfig

	population *Population
	nfe        int
}

// NewController wires a Controller together. A nil logger defaults to
// NewStdLogger; nil limiters default to NoLimit (no throttling); telem
// may be nil (NewTelemetry(nil) already returns nil, which every
// Telemetry method tolerates).
func NewController(evolver Evolver, pool *WorkerPool, store CheckpointStore, cfg ControllerConfig, logger Logger, telem *Telemetry, cohortLimiter, evalLimiter RateLimiter, rng *safeRand) (*Controller, error) {
	if cfg.StepSize <= 0 {
		return nil, fmt.Errorf("pbt: controller step size must be positive")
	}
	if cfg.FastEvaluate && (cfg.FastEvalSteps <= 0 || cfg.FastEvalSteps >= cfg.StepSize) {
		return nil, fmt.Errorf("pbt: fast-evaluate step size must be in (0, step_size)")
	}
	if logger == nil {
		logger = NewStdLogger()
	}
	if cohortLimiter == nil {
		cohortLimiter = NoLimit{}
	}
	if evalLimiter == nil {
		evalLimiter = NoLimit{}
	}
	return &Controller{
		evolver:       evolver,
		pool:          pool,
		store:         store,
		logger:        logger,
		telem:         telem,
		cohortLimiter: cohortLimiter,
		evalLimiter:   evalLimiter,
		rng:           rng,
		cfg:           cfg,
		population:    NewPopulation(),
	}, nil
}

// Run spawns the initial generation from initialMembers and repeats the
// generational loop until an end criterion fires, ctx is cancelled, or a
// generation fails, returning the full population built so far in every
// case (a failed generation also returns its error).
func (c *Controller) Run(ctx context.Context, initialMembers []*Member) (*Population, error) {
	defer c.onEnd()

	if !c.pool.running {
		if err := c.pool.Start(); err != nil {
			return c.population, fmt.Errorf("pbt: start worker pool: %w", err)
		}
		defer func() { _ = c.pool.Stop() }()
	}

	current := c.evolver.Spawn(initialMembers, c.rng)
	c.population.Append(current)
	c.logger.Printf("controller: starting with %d members", current.Len())

	for {
		if err := ctxDone(ctx); err != nil {
			c.logger.Printf("controller: cancelled: %v", err)
			return c.population, nil
		}
		if c.isPopulationFinished(current) {
			c.logger.Printf("controller: end criterion reached after %d generation(s)", len(c.population.Generations))
			return c.population, nil
		}

		next, err := c.runGeneration(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Printf("controller: interrupted: %v", ctx.Err())
				return c.population, nil
			}
			c.logger.Printf("controller: fatal: %v", err)
			return c.population, err
		}
		c.population.Append(next)
		current = next
	}
}

func (c *Controller) runGeneration(ctx context.Context, current *Generation) (*Generation, error) {
	if c.cfg.FastEvaluate {
		return c.runGenerationFastEvaluate(ctx, current)
	}
	return c.runGenerationSynchronous(ctx, current)
}

// runGenerationSynchronous mirrors __train_synchronously: mutate once,
// train/evaluate every candidate for the full step size, select.
func (c *Controller) runGenerationSynchronous(ctx context.Context, current *Generation) (*Generation, error) {
	c.evolver.OnGenerationStart(current)
	if !c.cohortLimiter.Allow("cohort") {
		return nil, fmt.Errorf("pbt: cohort rate limit exceeded")
	}
	candidates, err := c.evolver.Mutate(current, c.rng)
	if err != nil {
		return nil, fmt.Errorf("pbt: mutate: %w", err)
	}

	next := NewGeneration()
	trainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := c.pool.Train(trainCtx, candidates, c.cfg.StepSize, c.cfg.EvalStepSize, c.cfg.TrainShuffle, c.cfg.EvalShuffle)
	for res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("pbt: training: %w", res.Err)
		}
		if res.Fail != nil {
			continue
		}
		if err := c.selectAndRecord(res.Candidate, next); err != nil {
			return nil, err
		}
	}
	c.evolver.OnGenerationEnd(next)
	c.observeBest(next)
	c.store.Collect(len(c.population.Generations), c.cfg.HistoryLimit)
	return next, nil
}

// runGenerationFastEvaluate mirrors __train_synchronously_old: evaluate
// every candidate cheaply first, select survivors from that signal,
// then retrain only the survivors for the remaining step budget.
func (c *Controller) runGenerationFastEvaluate(ctx context.Context, current *Generation) (*Generation, error) {
	c.evolver.OnGenerationStart(current)
	if !c.cohortLimiter.Allow("cohort") {
		return nil, fmt.Errorf("pbt: cohort rate limit exceeded")
	}
	candidates, err := c.evolver.Mutate(current, c.rng)
	if err != nil {
		return nil, fmt.Errorf("pbt: mutate: %w", err)
	}

	fastSteps := c.cfg.FastEvalSteps
	survivors := make([]*Member, 0, len(candidates))
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()
	probeResults := c.pool.Train(probeCtx, candidates, fastSteps, &fastSteps, c.cfg.TrainShuffle, c.cfg.EvalShuffle)
	for res := range probeResults {
		if res.Err != nil {
			return nil, fmt.Errorf("pbt: fast-evaluate probe: %w", res.Err)
		}
		if res.Fail != nil {
			continue
		}
		if !c.evalLimiter.Allow("eval") {
			return nil, fmt.Errorf("pbt: evaluation rate limit exceeded")
		}
		c.nfe++
		c.telem.ObserveSelection()
		survivors = append(survivors, c.evolver.Select(res.Candidate))
	}

	remaining := c.cfg.StepSize - fastSteps

	finalCandidates := make([]Candidate, len(survivors))
	for i, s := range survivors {
		finalCandidates[i] = Candidate{Parent: s}
	}

	next := NewGeneration()
	retrainCtx, cancelRetrain := context.WithCancel(ctx)
	defer cancelRetrain()
	finalResults := c.pool.Train(retrainCtx, finalCandidates, remaining, nil, c.cfg.TrainShuffle, c.cfg.EvalShuffle)
	for res := range finalResults {
		if res.Err != nil {
			return nil, fmt.Errorf("pbt: retrain survivors: %w", res.Err)
		}
		if res.Fail != nil {
			continue
		}
		survivor := res.Candidate.Parent
		if err := c.checkpoint(survivor, next); err != nil {
			return nil, err
		}
	}
	c.evolver.OnGenerationEnd(next)
	c.observeBest(next)
	c.store.Collect(len(c.population.Generations), c.cfg.HistoryLimit)
	return next, nil
}

// selectAndRecord runs Evolver.Select on a trained candidate, counts it
// toward NFE, and persists/appends the survivor.
func (c *Controller) selectAndRecord(candidate Candidate, next *Generation) error {
	if !c.evalLimiter.Allow("eval") {
		return fmt.Errorf("pbt: evaluation rate limit exceeded")
	}
	survivor := c.evolver.Select(candidate)
	c.nfe++
	c.telem.ObserveSelection()
	return c.checkpoint(survivor, next)
}

func (c *Controller) checkpoint(survivor *Member, next *Generation) error {
	if c.cfg.DetectNaN && math.IsNaN(survivor.Score()) {
		c.logger.Printf("controller: member %d score is NaN", survivor.ID)
	}
	if !survivor.HasState() {
		c.logger.Printf("controller: member %d returned without trained state, skipping persistence", survivor.ID)
	} else if err := c.store.Update(survivor.ID, survivor.Steps, survivor); err != nil {
		c.logger.Printf("controller: checkpoint update failed for member %d: %v", survivor.ID, err)
	}
	c.logger.Printf("controller: member %d steps=%d epochs=%d score=%g", survivor.ID, survivor.Steps, survivor.Epochs, survivor.Score())
	return next.Append(survivor)
}

func (c *Controller) observeBest(generation *Generation) {
	best := math.NaN()
	if ranked := generation.SortedDescending(); len(ranked) > 0 {
		best = ranked[0].Score()
	}
	c.telem.ObserveGeneration(best)
}

// isMemberScoreFinished reports whether m's score satisfies the
// configured target (the comparison direction follows m.Minimize).
func (c *Controller) isMemberScoreFinished(m *Member) bool {
	if c.cfg.EndScore == nil {
		return false
	}
	score := m.Score()
	if m.Minimize {
		return score <= *c.cfg.EndScore
	}
	return score >= *c.cfg.EndScore
}

// isPopulationFinished reports whether any configured end criterion
// fires. The three criteria differ in
// quantifier: steps requires ALL current members to have reached the
// target (a population-wide criterion), while NFE is controller-wide
// and score fires as soon as ANY current member reaches the target.
func (c *Controller) isPopulationFinished(current *Generation) bool {
	members := current.Members()
	if c.cfg.EndSteps > 0 {
		allReached := len(members) > 0
		for _, m := range members {
			if m.Steps < c.cfg.EndSteps {
				allReached = false
				break
			}
		}
		if allReached {
			return true
		}
	}
	if c.cfg.EndNFE > 0 && c.nfe >= c.cfg.EndNFE {
		return true
	}
	if c.cfg.EndScore != nil {
		for _, m := range members {
			if c.isMemberScoreFinished(m) {
				return true
			}
		}
	}
	return false
}

func (c *Controller) onEnd() {
	c.logger.Printf("controller: run ended after %d generation(s), nfe=%d", len(c.population.Generations), c.nfe)
}

// Population returns the full generation history built so far.
func (c *Controller) Population() *Population { return c.population }

// NFE returns the controller-wide fitness-evaluation counter, distinct
// from any SHADE-internal NFE used for L-SHADE's own resizing/F
// modulation.
func (c *Controller) NFE() int { return c.nfe }
