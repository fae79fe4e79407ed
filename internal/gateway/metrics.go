package gateway

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
	listeners  prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgrealm",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Total number of gateway operations by operation and result",
		}, []string{"op", "result"}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bgrealm",
			Subsystem: "gateway",
			Name:      "listeners",
			Help:      "Number of active store observers opened by gateways",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.operations, m.listeners} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				m.operations = existing
			case prometheus.Gauge:
				m.listeners = existing
			}
		}
	}
	return nil
}

func (m *metrics) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}
