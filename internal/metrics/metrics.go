package metrics

import (
	"net/http"
	"time"

	"go-reports/pkg/apperrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const OutcomeOK = "ok"

// Collector records evaluation and store metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	queryDuration      *prometheus.HistogramVec
	queryErrors        *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_evaluations_total",
				Help: "Total number of report evaluations",
			},
			[]string{"kind", "outcome"},
		),
		evaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_evaluation_duration_seconds",
				Help:    "Report evaluation duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"kind"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_query_duration_seconds",
				Help:    "Instance store query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		queryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_query_errors_total",
				Help: "Total number of failed instance store queries",
			},
			[]string{"operation"},
		),
	}
}

// Outcome labels an evaluation result by its error kind.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(apperrors.KindOf(err))
}

func (c *Collector) ObserveEvaluation(kind string, elapsed time.Duration, err error) {
	c.evaluationsTotal.WithLabelValues(kind, Outcome(err)).Inc()
	c.evaluationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveQuery(operation string, elapsed time.Duration, err error) {
	c.queryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		c.queryErrors.WithLabelValues(operation).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
