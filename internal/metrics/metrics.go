package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors recorded by the cart and session layers.
type Metrics struct {
	CartOperations *prometheus.CounterVec
	SessionSaves   *prometheus.CounterVec
	StaleLines     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		CartOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shopcart",
				Name:      "cart_operations_total",
				Help:      "Cart operations by kind and outcome",
			},
			[]string{"op", "result"}, // result=ok/error
		),
		SessionSaves: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shopcart",
				Name:      "session_saves_total",
				Help:      "Session flushes by outcome",
			},
			[]string{"result"}, // result=ok/conflict/error
		),
		StaleLines: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "shopcart",
				Name:      "cart_stale_lines_total",
				Help:      "Stored cart lines skipped because the product no longer resolves",
			},
		),
		gatherer: reg,
	}
}

// NewWithRuntime is New plus Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// CartOp records one cart operation.
func (m *Metrics) CartOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CartOperations.WithLabelValues(op, result).Inc()
}

// SessionSave records one session flush.
func (m *Metrics) SessionSave(result string) {
	if m == nil {
		return
	}
	m.SessionSaves.WithLabelValues(result).Inc()
}

// Stale adds n skipped lines.
func (m *Metrics) Stale(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleLines.Add(float64(n))
}
