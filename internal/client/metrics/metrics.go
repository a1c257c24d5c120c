// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements refresh.Metrics and client.Metrics.
type Prometheus struct {
	refreshes *prometheus.CounterVec
	waiters   prometheus.Counter
	inFlight  prometheus.Gauge
	retries   *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authpipe",
			Name:      "refresh_total",
			Help:      "Completed refresh cycles by outcome.",
		}, []string{"outcome"}),
		waiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authpipe",
			Name:      "refresh_waiters_total",
			Help:      "Callers that joined an in-flight refresh instead of starting one.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "authpipe",
			Name:      "refresh_in_flight",
			Help:      "1 while a refresh call is outstanding.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authpipe",
			Name:      "request_retries_total",
			Help:      "Requests that hit 401, by what happened next.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{p.refreshes, p.waiters, p.inFlight, p.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RefreshStarted() {
	p.inFlight.Set(1)
}

func (p *Prometheus) RefreshFinished(err error, _ int) {
	p.inFlight.Set(0)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.refreshes.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) WaiterQueued() {
	p.waiters.Inc()
}

func (p *Prometheus) RequestRetried(outcome string) {
	p.retries.WithLabelValues(outcome).Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RefreshStarted()               {}
func (Nop) RefreshFinished(error, int)    {}
func (Nop) WaiterQueued()                 {}
func (Nop) RequestRetried(outcome string) {}
