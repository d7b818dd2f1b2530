package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/jaam8/election_ledger/internal/cache"
	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Config struct {
	MaxRetries   int           `yaml:"LEDGER_MAX_RETRIES" env:"LEDGER_MAX_RETRIES" env-default:"3"`
	RetryBackoff time.Duration `yaml:"LEDGER_RETRY_BACKOFF" env:"LEDGER_RETRY_BACKOFF" env-default:"20ms"`
}

type ElectionService struct {
	store   repository.Store
	cache   cache.ResultsCache
	metrics *Metrics
	cfg     Config
	locks   *electionLocks
	seq     *sequencer
	now     func() time.Time
	l       *zap.Logger
}

type Option func(*ElectionService)

// WithClock replaces the wall clock used for window checks and vote
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ElectionService) {
		s.now = now
	}
}

func New(
	store repository.Store,
	results cache.ResultsCache,
	metrics *Metrics,
	cfg Config,
	l *zap.Logger,
	opts ...Option,
) *ElectionService {
	if results == nil {
		results = cache.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	s := &ElectionService{
		store:   store,
		cache:   results,
		metrics: metrics,
		cfg:     cfg,
		locks:   newElectionLocks(),
		seq:     &sequencer{},
		now:     time.Now,
		l:       l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if !idPattern.MatchString(id) {
			return models.ErrInvalidID
		}
	}
	return nil
}

func normalize(req models.CastVoteRequest) models.CastVoteRequest {
	req.ElectionID = strings.TrimSpace(req.ElectionID)
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	req.VoterID = strings.TrimSpace(req.VoterID)
	return req
}

// Now returns the service clock.
func (s *ElectionService) Now() time.Time {
	return s.now()
}
