package api

import (
	"context"
	"testing"
	"time"

	"github.com/jaam8/election_ledger/internal/cache"
	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository/memory"
	"github.com/jaam8/election_ledger/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// newService returns a service over an in-memory store holding one open
// election in Colombo with candidates c1 and c2, and voters v1 and v2.
func newService(t *testing.T) (*service.ElectionService, *prometheus.Registry, string) {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	svc := service.New(memory.New(zap.NewNop()), cache.NewMemory(), service.NewMetrics(reg),
		service.Config{MaxRetries: 1, RetryBackoff: time.Millisecond}, zap.NewNop(),
		service.WithClock(func() time.Time { return testNow }))

	_, err := svc.RegisterParty(ctx, models.Party{ID: "p-blue", Name: "Blue"})
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2"} {
		_, err = svc.RegisterCandidate(ctx, models.Candidate{ID: id, PartyID: "p-blue", IsVerified: true, IsApproved: true})
		require.NoError(t, err)
	}
	for _, id := range []string{"v1", "v2"} {
		_, err = svc.RegisterVoter(ctx, models.Voter{ID: id, Location: "Colombo", Age: 30, IsApproved: true})
		require.NoError(t, err)
	}
	election, err := svc.CreateElection(ctx, models.NewElection{
		Name: "General", Where: "Colombo",
		StartTime: testNow.Add(-time.Hour), EndTime: testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2"} {
		_, err = svc.ApplyCandidate(ctx, election.ID, id)
		require.NoError(t, err)
	}
	return svc, reg, election.ID
}
