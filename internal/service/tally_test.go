package service

import (
	"context"
	"testing"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/jaam8/election_ledger/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rec(id, candidateID, voterID string, seq int64) models.VoteRecord {
	return models.VoteRecord{ID: id, ElectionID: "e1", CandidateID: candidateID, VoterID: voterID, Seq: seq}
}

func TestComputeTallyEmpty(t *testing.T) {
	tally, dropped := ComputeTally("e1", nil)
	assert.Zero(t, dropped)
	assert.Zero(t, tally.TotalVotes)
	assert.NotNil(t, tally.PerCandidate)
	assert.Empty(t, tally.PerCandidate)
	assert.NoError(t, tally.Verify())
}

func TestComputeTallyOrdersBySeq(t *testing.T) {
	records := []models.VoteRecord{
		rec("r3", "c2", "v3", 3),
		rec("r1", "c1", "v1", 1),
		rec("r2", "c2", "v2", 2),
		rec("r4", "c1", "v4", 4),
	}
	tally, dropped := ComputeTally("e1", records)
	assert.Zero(t, dropped)
	require.NoError(t, tally.Verify())
	assert.Equal(t, 4, tally.TotalVotes)
	assert.Equal(t, []models.CandidateTally{
		{CandidateID: "c1", Votes: 2, VoterIDs: []string{"v1", "v4"}},
		{CandidateID: "c2", Votes: 2, VoterIDs: []string{"v2", "v3"}},
	}, tally.PerCandidate)
}

func TestComputeTallyDropsDuplicates(t *testing.T) {
	records := []models.VoteRecord{
		rec("b", "c2", "v1", 5),
		rec("a", "c1", "v1", 5),
		rec("c", "c1", "v2", 6),
	}
	tally, dropped := ComputeTally("e1", records)
	assert.Equal(t, 1, dropped)
	require.NoError(t, tally.Verify())
	assert.Equal(t, 2, tally.TotalVotes)
	// equal seq falls back to id, so "a" counts
	require.Len(t, tally.PerCandidate, 1)
	assert.Equal(t, []string{"v1", "v2"}, tally.PerCandidate[0].VoterIDs)
}

func TestComputeTallyIgnoresOtherElections(t *testing.T) {
	other := rec("x", "c1", "v9", 1)
	other.ElectionID = "e2"
	tally, _ := ComputeTally("e1", []models.VoteRecord{other, rec("r1", "c1", "v1", 2)})
	assert.Equal(t, 1, tally.TotalVotes)
	assert.Equal(t, "e1", tally.ElectionID)
}

// replayingStore returns every record twice, under a second id.
type replayingStore struct {
	repository.Store
}

func (s replayingStore) ListVotes(ctx context.Context, electionID string) ([]models.VoteRecord, error) {
	records, err := s.Store.ListVotes(ctx, electionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.VoteRecord, 0, 2*len(records))
	for _, r := range records {
		replay := r
		replay.ID += "-replay"
		replay.Seq++
		out = append(out, r, replay)
	}
	return out, nil
}

func TestTallyVerifiesReplayedLedger(t *testing.T) {
	f := newFixture(t, replayingStore{memory.New(zap.NewNop())})
	ctx := context.Background()
	voters := f.voters(t, 2)
	_, err := f.vote("c1", voters[0])
	require.NoError(t, err)
	_, err = f.vote("c2", voters[1])
	require.NoError(t, err)

	tally, err := f.svc.Tally(ctx, f.election.ID)
	require.NoError(t, err)
	require.NoError(t, tally.Verify())
	assert.Equal(t, 2, tally.TotalVotes)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.corruptedTallies))

	_, head, err := f.svc.tally(ctx, f.election.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, head.Count)
}
