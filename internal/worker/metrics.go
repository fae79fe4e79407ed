package worker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "bgrealm"
	metricsSubsystem = "worker"
)

type metrics struct {
	live       prometheus.Gauge
	created    prometheus.Counter
	operations prometheus.Gauge
	tasks      prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "live",
			Help:      "Number of worker goroutines currently running",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "created_total",
			Help:      "Total number of workers created by the pool",
		}),
		operations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operations",
			Help:      "Sum of operation reference counts across live workers",
		}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tasks_total",
			Help:      "Total number of tasks executed by workers",
		}),
	}
}

// register adds the collectors to reg. When another pool already
// registered the same metrics on reg, the existing collectors are adopted so
// both pools report into one series.
func (m *metrics) register(reg prometheus.Registerer) error {
	var err error
	if m.live, err = registerOrAdopt(reg, m.live); err != nil {
		return err
	}
	if m.created, err = registerOrAdopt(reg, m.created); err != nil {
		return err
	}
	if m.operations, err = registerOrAdopt(reg, m.operations); err != nil {
		return err
	}
	if m.tasks, err = registerOrAdopt(reg, m.tasks); err != nil {
		return err
	}
	return nil
}

func registerOrAdopt[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
