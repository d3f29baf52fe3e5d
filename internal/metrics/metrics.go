// Package metrics exposes prometheus collectors for action runs and
// localization attempts. Single-action invocations skip metrics; batch
// runs wire a Collector and optionally serve it over promhttp.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedtap"

// Collector holds the feedtap metric vecs. A nil Collector is valid and
// records nothing, so call sites stay unconditional.
type Collector struct {
	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	locateConfidence prometheus.Histogram

	registry *prometheus.Registry
}

// NewCollector registers the feedtap vecs on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of action runs by terminal outcome",
			},
			[]string{"action", "result", "error"},
		),
		actionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "End-to-end action run duration in seconds",
				Buckets:   []float64{1, 5, 10, 15, 20, 30, 45, 60, 120},
			},
			[]string{"action"},
		),
		locateConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "locate_confidence",
				Help:      "Match confidence of successful localizations",
				Buckets:   prometheus.LinearBuckets(0.5, 0.05, 11),
			},
		),
		registry: reg,
	}
}

// ObserveAction records one terminal outcome. errorCode is empty on
// success.
func (c *Collector) ObserveAction(action string, success bool, errorCode string, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	c.actionsTotal.WithLabelValues(action, result, errorCode).Inc()
	c.actionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveLocate records the confidence of one found control.
func (c *Collector) ObserveLocate(confidence float32) {
	if c == nil {
		return
	}
	c.locateConfidence.Observe(float64(confidence))
}

// Handler serves the collector's registry for scraping during batch
// runs.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
