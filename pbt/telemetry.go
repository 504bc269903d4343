package pbt

import "github.com/prometheus/client_golang/prometheus"

// Telemetry exposes scheduler-internal counters/gauges for a Controller
// run: generation count, NFE count, and the best current score. It
// tracks scheduler state only; training metrics stay with the Trainer
// and Evaluator collaborators.
type Telemetry struct {
	generations prometheus.Counter
	nfe         prometheus.Counter
	bestScore   prometheus.Gauge
}

// NewTelemetry registers scheduler gauges/counters on registry. A nil
// registry disables telemetry entirely: every method becomes a no-op.
func NewTelemetry(registry *prometheus.Registry) *Telemetry {
	if registry == nil {
		return nil
	}
	t := &Telemetry{
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pbt_generations_total",
			Help: "Number of generations completed by the controller.",
		}),
		nfe: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pbt_fitness_evaluations_total",
			Help: "Number of fitness evaluations (selections) performed.",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pbt_best_score",
			Help: "Best member score observed in the current generation.",
		}),
	}
	registry.MustRegister(t.generations, t.nfe, t.bestScore)
	return t
}

func (t *Telemetry) ObserveGeneration(best float64) {
	if t == nil {
		return
	}
	t.generations.Inc()
	t.bestScore.Set(best)
}

func (t *Telemetry) ObserveSelection() {
	if t == nil {
		return
	}
	t.nfe.Inc()
}
