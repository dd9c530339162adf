package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/conveyor/internal/domain"
)

// Metrics — Prometheus метрики выполнения задач.
//
// Реализует интерфейс наблюдателя runner'а: подключается
// через runner.Config.Observers.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runsActive   prometheus.Gauge
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

// NewMetrics создаёт метрики на отдельном prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_runs_total",
			Help: "Total finished runs by task and status",
		}, []string{"task", "status"}),
		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conveyor_runs_active",
			Help: "Runs currently in progress",
		}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_steps_total",
			Help: "Total executed steps by step name and status",
		}, []string{"step", "status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conveyor_step_duration_seconds",
			Help:    "Step execution duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"step"}),
	}
}

// Registry возвращает registry для promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunStarted учитывает начало run.
func (m *Metrics) RunStarted(_ context.Context, _ *domain.Run) error {
	m.runsActive.Inc()
	return nil
}

// StepFinished учитывает завершённый шаг.
func (m *Metrics) StepFinished(_ context.Context, _ *domain.Run, res domain.StepResult) error {
	m.stepsTotal.WithLabelValues(res.Name, res.Status.String()).Inc()
	m.stepDuration.WithLabelValues(res.Name).Observe(res.Duration().Seconds())
	return nil
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(_ context.Context, run *domain.Run) error {
	m.runsActive.Dec()
	m.runsTotal.WithLabelValues(run.Task, run.Status.String()).Inc()
	return nil
}
