package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolioclient"

// Metrics counts what the session dispatcher does with inbound messages.
type Metrics struct {
	Dispatched      *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	Malformed       *prometheus.CounterVec
	TradesSubmitted prometheus.Counter
}

// New builds the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Inbound messages routed to the position book or notification log",
		}, []string{"channel"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound messages absorbed without changing state",
		}, []string{"channel", "reason"}),
		Malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Inbound messages whose payload could not be decoded",
		}, []string{"channel"}),
		TradesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_submitted_total",
			Help:      "Trade requests sent to the server",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Dispatched, m.Dropped, m.Malformed, m.TradesSubmitted)
	}
	return m
}
