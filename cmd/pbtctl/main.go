// Command pbtctl wires together a minimal population-based training run
// against a toy in-memory objective, demonstrating how the pbt package's
// pieces fit together: an Evolver, a WorkerPool backed by a Trainer and
// Evaluator, a CheckpointStore, and a Controller tying it all together.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/connerlevi/pbt-scheduler/pbt"
)

// quadraticBowl is a toy single-hyperparameter objective: score is
// maximized at x=0.7 and falls off quadratically, standing in for a
// real training backend.
type quadraticBowl struct{}

func (quadraticBowl) Train(ctx context.Context, member *pbt.Member, steps int, shuffle bool) (*pbt.Member, error) {
	trained := member.Copy()
	trained.Steps += steps
	trained.ModelState = trained.At(0).Value()
	return trained, nil
}

func (quadraticBowl) Evaluate(ctx context.Context, member *pbt.Member, steps int, shuffle bool) (*pbt.Member, error) {
	evaluated := member.Copy()
	x := evaluated.At(0).Value()
	score := 1.0 - math.Pow(x-0.7, 2)
	if evaluated.Loss == nil {
		evaluated.Loss = map[string]map[string]float64{}
	}
	evaluated.Loss["eval"] = map[string]float64{evaluated.EvalMetric: score}
	return evaluated, nil
}

func newPopulation(size int) ([]*pbt.Member, error) {
	members := make([]*pbt.Member, size)
	for i := 0; i < size; i++ {
		hp, err := pbt.NewContinuousHyperparameter(0, 1, false)
		if err != nil {
			return nil, fmt.Errorf("new hyperparameter: %w", err)
		}
		m, err := pbt.NewMember(i, []string{"x"}, []*pbt.Hyperparameter{hp}, "loss", "score", false)
		if err != nil {
			return nil, fmt.Errorf("new member: %w", err)
		}
		members[i] = m
	}
	return members, nil
}

func main() {
	strategy := flag.String("strategy", "exploit-explore", "evolution strategy: exploit-explore, random-walk, de, shade, lshade")
	populationSize := flag.Int("population", 8, "population size")
	stepSize := flag.Int("step-size", 1, "training steps per generation")
	endSteps := flag.Int("end-steps", 20, "stop once every member reaches this many total steps")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus telemetry on this address (e.g. :9090)")
	flag.Parse()

	logger := log.New(os.Stderr, "pbtctl: ", log.LstdFlags)

	members, err := newPopulation(*populationSize)
	if err != nil {
		logger.Fatalf("build population: %v", err)
	}

	rng := pbt.NewRNG(42)

	evolver, err := buildEvolver(*strategy, rng)
	if err != nil {
		logger.Fatalf("build evolver: %v", err)
	}

	pool, err := pbt.NewWorkerPool(pbt.DefaultWorkerPoolConfig(), quadraticBowl{}, quadraticBowl{}, pbt.NewStdLogger())
	if err != nil {
		logger.Fatalf("new worker pool: %v", err)
	}
	if err := pool.Start(); err != nil {
		logger.Fatalf("start worker pool: %v", err)
	}
	defer pool.Stop()

	var registry *prometheus.Registry
	if *metricsAddr != "" {
		registry = prometheus.NewRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics listener: %v", err)
			}
		}()
	}
	telemetry := pbt.NewTelemetry(registry)

	cohortLimiter, err := pbt.NewPerMinuteLimiter(60, 10)
	if err != nil {
		logger.Fatalf("new rate limiter: %v", err)
	}

	target := 0.999
	cfg := pbt.ControllerConfig{
		StepSize:     *stepSize,
		HistoryLimit: 2,
		EndSteps:     *endSteps,
		EndScore:     &target,
	}
	controller, err := pbt.NewController(evolver, pool, pbt.NewMemStore(), cfg, pbt.NewStdLogger(), telemetry, cohortLimiter, nil, rng)
	if err != nil {
		logger.Fatalf("new controller: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	population, err := controller.Run(ctx, members)
	if err != nil {
		logger.Fatalf("run: %v", err)
	}

	best := population.Current().SortedDescending()[0]
	logger.Printf("done after %d generations, nfe=%d, best score=%.4f (x=%.4f)",
		len(population.Generations), controller.NFE(), best.Score(), best.At(0).Value())
}

func buildEvolver(strategy string, rng *pbt.RNG) (pbt.Evolver, error) {
	switch strategy {
	case "random-walk":
		cfg := pbt.DefaultRandomWalkConfig()
		return pbt.NewRandomWalk(cfg.ExploreFactor), nil
	case "exploit-explore":
		cfg := pbt.DefaultExploitAndExploreConfig()
		return pbt.NewExploitAndExplore(cfg.ExploitFactor, cfg.ExploreFactors), nil
	case "de":
		cfg := pbt.DefaultDEConfig()
		return pbt.NewDifferentialEvolution(cfg.F, cfg.Cr), nil
	case "shade":
		return pbt.NewSHADE(pbt.DefaultSHADEConfig(), rng)
	case "lshade":
		return pbt.NewLSHADE(pbt.DefaultSHADEConfig(), 1000, rng)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}
