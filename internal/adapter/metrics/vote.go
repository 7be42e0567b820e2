package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shunguan/voteable/internal/voting"
)

// VoteMetrics holds Prometheus metrics for the voting engine. It implements voting.Observer.
type VoteMetrics struct {
	VotesTotal        *prometheus.CounterVec
	VoteDuration      *prometheus.HistogramVec
	PropagationsTotal *prometheus.CounterVec
}

var _ voting.Observer = (*VoteMetrics)(nil)

// NewVoteMetrics creates and registers vote metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	factory := promauto.With(reg)
	return &VoteMetrics{
		VotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of votes processed, by outcome and transition kind.",
		}, []string{"outcome", "kind"}),
		VoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_duration_seconds",
			Help:      "Duration of vote processing including propagation, in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"outcome"}),
		PropagationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagations_total",
			Help:      "Total number of parent propagations, by related type and outcome.",
		}, []string{"related_type", "outcome"}),
	}
}

func (m *VoteMetrics) ObserveVote(outcome string, kind voting.Kind, elapsed time.Duration) {
	m.VotesTotal.WithLabelValues(outcome, kind.String()).Inc()
	m.VoteDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *VoteMetrics) ObservePropagation(relatedType, outcome string) {
	m.PropagationsTotal.WithLabelValues(relatedType, outcome).Inc()
}
