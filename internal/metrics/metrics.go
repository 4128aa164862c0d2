package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/cardscan/constants"
)

const namespace = "cardscan"

// Metrics holds the pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	units          *prometheus.CounterVec
	inFlight       prometheus.Gauge
	extractSeconds *prometheus.HistogramVec
	persisted      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_units_total",
			Help:      "Work units that entered a status.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "work_units_processing",
			Help:      "Work units currently holding an admission slot.",
		}),
		extractSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_processing_seconds",
			Help:      "Time from admission to terminal status.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"status"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_persisted_total",
			Help:      "Contact records written to the store by the pipeline.",
		}),
	}
	reg.MustRegister(
		m.units, m.inFlight, m.extractSeconds, m.persisted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// UnitEntered counts a unit entering status s and tracks slot occupancy.
func (m *Metrics) UnitEntered(s constants.WorkStatus) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(string(s)).Inc()
	switch {
	case s == constants.StatusProcessing:
		m.inFlight.Inc()
	case s.IsTerminal():
		m.inFlight.Dec()
	}
}

// UnitFinished records how long a unit spent processing.
func (m *Metrics) UnitFinished(s constants.WorkStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.extractSeconds.WithLabelValues(string(s)).Observe(d.Seconds())
}

func (m *Metrics) RecordsPersisted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.persisted.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
