package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jaam8/election_ledger/internal/cache"
	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/jaam8/election_ledger/internal/repository/memory"
	sqliterepo "github.com/jaam8/election_ledger/internal/repository/sqlite"
	pkgsqlite "github.com/jaam8/election_ledger/pkg/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *ElectionService
	store    repository.Store
	cache    *cache.Memory
	now      time.Time
	election *models.Election
}

type storeFactory struct {
	name string
	open func(t *testing.T) repository.Store
}

func backends() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(*testing.T) repository.Store { return memory.New(zap.NewNop()) }},
		{name: "sqlite", open: func(t *testing.T) repository.Store {
			db, err := pkgsqlite.New(pkgsqlite.Config{BusyTimeoutMs: 5000})
			require.NoError(t, err)
			s, err := sqliterepo.New(db, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

// newFixture seeds a store with two parties, three votable candidates on an
// open election in Colombo, and one unverified candidate.
func newFixture(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: store, cache: cache.NewMemory(), now: testNow}
	f.svc = New(store, f.cache, NewMetrics(prometheus.NewRegistry()),
		Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, zap.NewNop(),
		WithClock(func() time.Time { return f.now }))

	for _, p := range []models.Party{{ID: "p-blue", Name: "Blue"}, {ID: "p-red", Name: "Red"}} {
		_, err := f.svc.RegisterParty(ctx, p)
		require.NoError(t, err)
	}
	for _, c := range []models.Candidate{
		{ID: "c1", UserID: "u1", PartyID: "p-blue", IsVerified: true, IsApproved: true},
		{ID: "c2", UserID: "u2", PartyID: "p-red", IsVerified: true, IsApproved: true},
		{ID: "c3", UserID: "u3", IsVerified: true, IsApproved: true},
		{ID: "c-pending", UserID: "u4", PartyID: "p-red", IsVerified: true},
	} {
		_, err := f.svc.RegisterCandidate(ctx, c)
		require.NoError(t, err)
	}

	election, err := f.svc.CreateElection(ctx, models.NewElection{
		Name:      "General",
		Where:     "Colombo",
		StartTime: testNow.Add(-time.Hour),
		EndTime:   testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2", "c3"} {
		election, err = f.svc.ApplyCandidate(ctx, election.ID, id)
		require.NoError(t, err)
	}
	f.election = election
	return f
}

// voters registers n approved adult voters in Colombo.
func (f *fixture) voters(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i+1)
		_, err := f.svc.RegisterVoter(context.Background(), models.Voter{
			ID: ids[i], Location: "Colombo", Age: 30, IsApproved: true,
		})
		require.NoError(t, err)
	}
	return ids
}

func (f *fixture) vote(candidateID, voterID string) (*models.VoteRecord, error) {
	return f.svc.CastVote(context.Background(), models.CastVoteRequest{
		ElectionID:  f.election.ID,
		CandidateID: candidateID,
		VoterID:     voterID,
	})
}
