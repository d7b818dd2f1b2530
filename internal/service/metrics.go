package service

import (
	"context"
	"errors"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	votesCast        *prometheus.CounterVec
	castLatency      prometheus.Histogram
	writeConflicts   prometheus.Counter
	corruptedTallies prometheus.Counter
	resultsCache     *prometheus.CounterVec
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		votesCast: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "election_votes_cast_total",
			Help: "vote cast attempts by outcome",
		}, []string{"outcome"}),
		castLatency: promautoFactory.NewHistogram(prometheus.HistogramOpts{
			Name:    "election_vote_cast_duration_seconds",
			Help:    "latency of vote cast attempts",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
		writeConflicts: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "election_vote_write_conflicts_total",
			Help: "storage write conflicts retried while appending votes",
		}),
		corruptedTallies: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "election_tally_corrupted_total",
			Help: "tallies that dropped duplicate vote records or failed verification",
		}),
		resultsCache: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "election_results_cache_total",
			Help: "results cache lookups by result",
		}, []string{"result"}),
	}
}

func castOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, models.ErrAlreadyVoted):
		return "already_voted"
	case models.IsRejection(err):
		return "rejected"
	case errors.Is(err, models.ErrInvalidID):
		return "invalid"
	case errors.Is(err, models.ErrElectionNotFound), errors.Is(err, models.ErrVoterNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failure"
	}
}

func (m *Metrics) observeCast(err error, elapsed time.Duration) {
	m.votesCast.WithLabelValues(castOutcome(err)).Inc()
	m.castLatency.Observe(elapsed.Seconds())
}
