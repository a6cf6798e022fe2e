// Package metrics exports resolution statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/deep-rent/locus/locator"
)

// Namespace prefixes every metric name.
const Namespace = "locus"

// Collector counts resolutions by service and outcome. It implements
// locator.Observer.
type Collector struct {
	resolutions *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg, or
// with prometheus.DefaultRegisterer if reg is nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "resolutions_total",
				Help:      "Number of service resolutions by service and outcome.",
			},
			[]string{"service", "outcome"},
		),
	}
	if err := reg.Register(c.resolutions); err != nil {
		return nil, err
	}
	return c, nil
}

// Observe implements locator.Observer.
func (c *Collector) Observe(q locator.Query, o locator.Outcome) {
	service := ""
	if q.Service != nil {
		service = q.Service.Name()
	}
	c.resolutions.WithLabelValues(service, o.String()).Inc()
}

// Resolutions exposes the underlying counter.
func (c *Collector) Resolutions() *prometheus.CounterVec {
	return c.resolutions
}

var _ locator.Observer = (*Collector)(nil)
