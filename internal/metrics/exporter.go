package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "balancer"

// Exporter mirrors collected events into a private Prometheus registry.
type Exporter struct {
	registry   *prometheus.Registry
	selections *prometheus.CounterVec
	started    *prometheus.CounterVec
	finished   *prometheus.CounterVec
	unknown    prometheus.Counter
	inFlight   *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	labels := []string{"server"}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Number of times each server was selected.",
		}, labels),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_started_total",
			Help:      "Requests reported as started per server.",
		}, labels),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_finished_total",
			Help:      "Requests reported as finished per server.",
		}, labels),
		// Unlabelled: rejected ids are outside the pool and unbounded.
		unknown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_server_total",
			Help:      "Accounting calls rejected because the server is not in the pool.",
		}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Requests currently in flight per server.",
		}, labels),
	}

	e.registry.MustRegister(e.selections, e.started, e.finished, e.unknown, e.inFlight)
	return e
}

// Observe records event. inFlight is the server's in-flight count after the
// event has been applied.
func (e *Exporter) Observe(event MetricEvent, inFlight int64) {
	switch event.Type {
	case EventServerSelected:
		e.selections.WithLabelValues(event.Server).Inc()
	case EventRequestStarted:
		e.started.WithLabelValues(event.Server).Inc()
		e.inFlight.WithLabelValues(event.Server).Set(float64(inFlight))
	case EventRequestFinished:
		e.finished.WithLabelValues(event.Server).Inc()
		e.inFlight.WithLabelValues(event.Server).Set(float64(inFlight))
	case EventServerRejected:
		e.unknown.Inc()
	}
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
