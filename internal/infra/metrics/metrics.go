// Package metrics owns the prometheus collectors of the service. A nil
// *Metrics is valid and records nothing, so tests can pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pointsarena"

type Metrics struct {
	ledgerOps        *prometheus.CounterVec
	betsPlaced       *prometheus.CounterVec
	roundTransitions *prometheus.CounterVec
	settleFailures   *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	settleDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by op and outcome.",
		}, []string{"op", "outcome"}),
		betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_placed_total",
			Help:      "Bets accepted, by game type.",
		}, []string{"game"}),
		roundTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_transitions_total",
			Help:      "Round status transitions, by game type and target status.",
		}, []string{"game", "status"}),
		settleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Bets that failed to settle, by game type.",
		}, []string{"game"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered, by sink.",
		}, []string{"sink"}),
		settleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settle_duration_seconds",
			Help:      "Wall time of a round settlement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"game"}),
	}

	reg.MustRegister(
		m.ledgerOps,
		m.betsPlaced,
		m.roundTransitions,
		m.settleFailures,
		m.publishFailures,
		m.settleDuration,
	)

	return m
}

func (m *Metrics) LedgerOp(op, outcome string) {
	if m == nil {
		return
	}

	m.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) BetPlaced(game string) {
	if m == nil {
		return
	}

	m.betsPlaced.WithLabelValues(game).Inc()
}

func (m *Metrics) RoundTransition(game, status string) {
	if m == nil {
		return
	}

	m.roundTransitions.WithLabelValues(game, status).Inc()
}

func (m *Metrics) SettlementFailure(game string) {
	if m == nil {
		return
	}

	m.settleFailures.WithLabelValues(game).Inc()
}

func (m *Metrics) PublishFailure(sink string) {
	if m == nil {
		return
	}

	m.publishFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) ObserveSettle(game string, seconds float64) {
	if m == nil {
		return
	}

	m.settleDuration.WithLabelValues(game).Observe(seconds)
}
