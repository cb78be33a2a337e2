// Package metrics holds the Prometheus collectors of the booking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	Transitions     *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	SettledCents    *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
	TokenRejections *prometheus.CounterVec
	Events          *prometheus.CounterVec
}

// New registers every collector on a fresh registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_transitions_total",
			Help: "Reservation status transitions by source and target status.",
		}, []string{"from", "to"}),
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		SettledCents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settled_amount_cents_total",
			Help: "Settled amounts in minor units by share.",
		}, []string{"share", "currency"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter per policy.",
		}, []string{"policy"}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "action_token_rejections_total",
			Help: "Rejected action tokens by reason.",
		}, []string{"reason"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_events_published_total",
			Help: "Booking events handed to the broker by type and result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
