package migration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts planning outcomes in its own Prometheus registry. A CLI
// run writes it out with WriteTextfile for the node_exporter textfile
// collector.
type Metrics struct {
	registry *prometheus.Registry

	Plans        *prometheus.CounterVec
	Operations   *prometheus.CounterVec
	Warnings     *prometheus.CounterVec
	PlanDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics under namespace (default "schemaforge").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "schemaforge"
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Planning runs by starting state and transition",
		}, []string{"state", "transition"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Synthesized forward operations by kind",
		}, []string{"op"}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal schema findings by table",
		}, []string{"table"}),
		PlanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Time spent planning one table",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transition"}),
	}
	reg.MustRegister(m.Plans, m.Operations, m.Warnings, m.PlanDuration)
	return m
}

// Registry returns the registry holding the planner metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one planning result.
func (m *Metrics) Observe(res *Result, elapsed time.Duration) {
	m.Plans.WithLabelValues(string(res.State), string(res.Transition)).Inc()
	for _, op := range res.Apply {
		m.Operations.WithLabelValues(string(op.Kind)).Inc()
	}
	if n := len(res.Warnings); n > 0 {
		m.Warnings.WithLabelValues(res.Table).Add(float64(n))
	}
	m.PlanDuration.WithLabelValues(string(res.Transition)).Observe(elapsed.Seconds())
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
