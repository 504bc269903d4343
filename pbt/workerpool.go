package pbt

import (
	"context"
	"fmt"
	"sync"
)

// Trainer runs training steps for a member and returns its updated
// state. It is an opaque collaborator; none of its internals matter to
// the pool.
type Trainer interface {
	Train(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error)
}

// Evaluator scores a member, populating its loss mapping.
type Evaluator interface {
	Evaluate(ctx context.Context, member *Member, steps int, shuffle bool) (*Member, error)
}

// FailMessage is published by a worker that failed to process a job:
// sender id, a human-readable reason, and the triggering error.
type FailMessage struct {
	SenderID int
	Text     string
	Err      error
}

// TrainResult is one item of WorkerPool.Train's lazy, arrival-ordered
// result sequence: either a trained Candidate, a FailMessage, or (once)
// a terminal Err that ends the sequence.
type TrainResult struct {
	Candidate Candidate
	Fail      *FailMessage
	Err       error
}

type workerJob struct {
	ctx           context.Context
	candidate     Candidate
	trainStepSize int
	evalStepSize  *int
	trainShuffle  bool
	evalShuffle   bool
	resultCh      chan<- workerOutcome
}

type workerOutcome struct {
	candidate *Candidate
	fail      *FailMessage
}

type poolWorker struct {
	id           int
	device       string
	seed         int64
	respawns     int
	receiveQueue chan workerJob
	// alive is flipped off by the worker goroutine just before it
	// publishes its FailMessage and exits; the Train goroutine observes
	// the flag strictly after receiving that message (channel
	// happens-before), so respawn never doubles up a living worker.
	alive bool
}

// WorkerPoolConfig configures device pinning and job-slot count.
// Construction requires NJobs >= len(Devices).
type WorkerPoolConfig struct {
	Devices []string
	NJobs   int
}

// DefaultWorkerPoolConfig pins a single CPU worker.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{Devices: []string{"cpu"}, NJobs: 1}
}

// WorkerPool dispatches trial jobs to a fixed-size pool of long-lived
// workers, one per job slot pinned to one device, and yields results in
// the order workers complete them.
type WorkerPool struct {
	cfg       WorkerPoolConfig
	trainer   Trainer
	evaluator Evaluator
	logger    Logger

	workers      []*poolWorker
	deviceQueues []chan workerJob
	endCh        chan struct{}
	wg           sync.WaitGroup
	running      bool
}

// NewWorkerPool validates cfg and constructs a pool.
func NewWorkerPool(cfg WorkerPoolConfig, trainer Trainer, evaluator Evaluator, logger Logger) (*WorkerPool, error) {
	if cfg.NJobs < len(cfg.Devices) {
		return nil, fmt.Errorf("pbt: n_jobs must be larger than or equal to the number of devices")
	}
	if logger == nil {
		logger = NewStdLogger()
	}
	return &WorkerPool{cfg: cfg, trainer: trainer, evaluator: evaluator, logger: logger}, nil
}

// Start spins up NJobs long-lived worker goroutines, cycled round-robin
// over Devices; workers beyond len(Devices) share a device's queue.
func (p *WorkerPool) Start() error {
	if p.running {
		return fmt.Errorf("pbt: worker pool is already running")
	}
	nDevices := len(p.cfg.Devices)
	p.deviceQueues = make([]chan workerJob, nDevices)
	for i := range p.deviceQueues {
		p.deviceQueues[i] = make(chan workerJob, p.cfg.NJobs)
	}
	p.endCh = make(chan struct{})
	p.workers = make([]*poolWorker, p.cfg.NJobs)
	for i := 0; i < p.cfg.NJobs; i++ {
		device := p.cfg.Devices[i%nDevices]
		queue := p.deviceQueues[i%nDevices]
		w := &poolWorker{id: i, device: device, seed: DeterministicSeed("worker", i), receiveQueue: queue, alive: true}
		p.workers[i] = w
		p.wg.Add(1)
		go p.runWorker(w)
	}
	p.running = true
	return nil
}

// Stop idempotently (by observable effect) signals every worker to
// terminate via the shared end event and joins them. The device queues
// are left open: a dispatcher blocked on a queue send unblocks through
// its own end-event select, so nothing ever sends on a closed channel.
func (p *WorkerPool) Stop() error {
	if !p.running {
		p.logger.Printf("worker pool: stop called while not running")
		return nil
	}
	close(p.endCh)
	p.wg.Wait()
	p.running = false
	return nil
}

// runWorker is the long-lived loop of one worker. A job that fails
// publishes a FailMessage and kills the worker; Train respawns it (with
// a fresh seed, on the same queue) when it observes the message, so
// jobs still buffered on a shared queue are never orphaned.
func (p *WorkerPool) runWorker(w *poolWorker) {
	defer p.wg.Done()
	for {
		select {
		case <-p.endCh:
			return
		case job, ok := <-w.receiveQueue:
			if !ok {
				return
			}
			select {
			case <-p.endCh:
				return
			default:
			}
			result, err := p.process(w, job)
			if err != nil {
				w.alive = false
				job.resultCh <- workerOutcome{fail: &FailMessage{SenderID: w.id, Text: err.Error(), Err: err}}
				return
			}
			job.resultCh <- workerOutcome{candidate: result}
		}
	}
}

func (p *WorkerPool) process(w *poolWorker, job workerJob) (*Candidate, error) {
	trainedParent, err := p.trainMember(w, job.candidate.Parent, job)
	if err != nil {
		return nil, err
	}
	result := &Candidate{Parent: trainedParent}
	if job.candidate.Trial != nil {
		trainedTrial, err := p.trainMember(w, job.candidate.Trial, job)
		if err != nil {
			return nil, err
		}
		result.Trial = trainedTrial
	}
	return result, nil
}

// trainMember runs the train-then-evaluate cycle for one member. The
// job's ctx is handed to both collaborators so an in-flight training
// step can observe cancellation itself, not just the dispatch loop.
func (p *WorkerPool) trainMember(w *poolWorker, member *Member, job workerJob) (*Member, error) {
	trained, err := p.trainer.Train(job.ctx, member, job.trainStepSize, job.trainShuffle)
	if err != nil {
		return nil, fmt.Errorf("worker %d (device %s): train member %d: %w", w.id, w.device, member.ID, err)
	}
	evalSteps := job.trainStepSize
	if job.evalStepSize != nil {
		evalSteps = *job.evalStepSize
	}
	evaluated, err := p.evaluator.Evaluate(job.ctx, trained, evalSteps, job.evalShuffle)
	if err != nil {
		return nil, fmt.Errorf("worker %d (device %s): evaluate member %d: %w", w.id, w.device, member.ID, err)
	}
	return evaluated, nil
}

// Train dispatches candidates round-robin across workers and returns a
// channel yielding results in arrival order, not submission order. The
// number of successful results equals the number submitted unless
// workers fail: a failed job is surfaced as a FailMessage and its
// worker respawned, and the run continues on the remaining workers;
// only when every worker has failed does a terminal TrainResult.Err
// close out the sequence early. No per-job timeout is imposed (a stuck
// worker is detected only by external liveness), but ctx is checked
// cooperatively at dispatch and at each result.
func (p *WorkerPool) Train(ctx context.Context, candidates []Candidate, trainStepSize int, evalStepSize *int, trainShuffle, evalShuffle bool) <-chan TrainResult {
	out := make(chan TrainResult)
	go func() {
		defer close(out)
		nSent := len(candidates)
		resultCh := make(chan workerOutcome, nSent)
		failed := map[int]bool{}

		// Dispatch from its own goroutine so a full queue never blocks
		// the drain loop below (which may need to respawn the queue's
		// consumer first).
		go func() {
			for i, c := range candidates {
				if err := ctxDone(ctx); err != nil {
					return
				}
				w := p.workers[i%len(p.workers)]
				job := workerJob{
					ctx:           ctx,
					candidate:     c,
					trainStepSize: trainStepSize,
					evalStepSize:  evalStepSize,
					trainShuffle:  trainShuffle,
					evalShuffle:   evalShuffle,
					resultCh:      resultCh,
				}
				select {
				case w.receiveQueue <- job:
				case <-p.endCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()

		// Emit blocks until the caller consumes the result or stops
		// listening (signalled by cancelling ctx, per the break-early
		// contract); it reports whether the send went through.
		emit := func(r TrainResult) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Every dispatched job produces exactly one outcome (a trained
		// candidate or a FailMessage), so the drain is exact.
		for nDone := 0; nDone < nSent; nDone++ {
			select {
			case <-ctx.Done():
				emit(TrainResult{Err: ctx.Err()})
				return
			case res := <-resultCh:
				if res.fail != nil {
					p.logger.Printf("fail message received from worker %d: %s", res.fail.SenderID, res.fail.Text)
					failed[res.fail.SenderID] = true
					if !emit(TrainResult{Fail: res.fail}) {
						return
					}
					if len(failed) == len(p.workers) {
						emit(TrainResult{Err: fmt.Errorf("pbt: all workers failed")})
						return
					}
					p.respawn(failed)
					continue
				}
				if !emit(TrainResult{Candidate: *res.candidate}) {
					return
				}
			}
		}
	}()
	return out
}

// respawn restarts every currently-dead worker in the failed set with a
// fresh seed on its existing receive queue. It is handed the whole
// failed set every time; the alive flag makes the repeated whole-set
// call idempotent.
func (p *WorkerPool) respawn(failed map[int]bool) {
	for id := range failed {
		w := p.workers[id]
		if w.alive {
			continue
		}
		w.respawns++
		w.seed = DeterministicSeed("worker", w.id, w.respawns)
		p.logger.Printf("respawning worker %d (device %s) with seed %d...", w.id, w.device, w.seed)
		w.alive = true
		p.wg.Add(1)
		go p.runWorker(w)
	}
}

// ctxDone reports ctx cancellation without blocking.
func ctxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
