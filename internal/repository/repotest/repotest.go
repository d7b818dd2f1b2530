// Package repotest holds the behaviour every repository.Store implementation
// must share. Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the store conformance tests. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("elections", func(t *testing.T) { testElections(t, newStore(t)) })
	t.Run("directory", func(t *testing.T) { testDirectory(t, newStore(t)) })
	t.Run("append vote", func(t *testing.T) { testAppendVote(t, newStore(t)) })
	t.Run("concurrent append", func(t *testing.T) { testConcurrentAppend(t, newStore(t)) })
	t.Run("clear votes", func(t *testing.T) { testClearVotes(t, newStore(t)) })
}

func election(id string) *models.Election {
	return &models.Election{
		ID:          id,
		Name:        "General " + id,
		Where:       "Colombo",
		Description: "test election",
		StartTime:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Candidates:  []string{"c1"},
	}
}

func record(electionID, candidateID, voterID string, seq int64) *models.VoteRecord {
	return &models.VoteRecord{
		ID:              fmt.Sprintf("%s-%s", electionID, voterID),
		ElectionID:      electionID,
		CandidateID:     candidateID,
		VoterID:         voterID,
		Seq:             seq,
		CastAt:          time.Unix(0, seq).UTC(),
		NotarizationRef: "0xabc",
	}
}

func testElections(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.GetElection(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrElectionNotFound)

	require.NoError(t, s.CreateElection(ctx, election("e1")))
	got, err := s.GetElection(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Colombo", got.Where)
	assert.True(t, got.StartTime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.ElementsMatch(t, []string{"c1"}, got.Candidates)
	assert.False(t, got.IsCompleted)

	require.NoError(t, s.AddCandidate(ctx, "e1", "c2"))
	require.NoError(t, s.AddCandidate(ctx, "e1", "c2"))
	got, err = s.GetElection(ctx, "e1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, got.Candidates)

	assert.ErrorIs(t, s.AddCandidate(ctx, "missing", "c1"), models.ErrElectionNotFound)

	require.NoError(t, s.SetCompleted(ctx, "e1", true))
	got, err = s.GetElection(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.ErrorIs(t, s.SetCompleted(ctx, "missing", true), models.ErrElectionNotFound)

	require.NoError(t, s.CreateElection(ctx, election("e2")))
	all, err := s.ListElections(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testDirectory(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.GetVoter(ctx, "v1")
	assert.ErrorIs(t, err, models.ErrVoterNotFound)
	_, err = s.GetCandidate(ctx, "c1")
	assert.ErrorIs(t, err, models.ErrCandidateNotFound)
	_, err = s.GetParty(ctx, "p1")
	assert.ErrorIs(t, err, models.ErrPartyNotFound)

	require.NoError(t, s.SaveVoter(ctx, &models.Voter{ID: "v1", Location: "Kandy", Age: 30, IsApproved: true}))
	require.NoError(t, s.SaveCandidate(ctx, &models.Candidate{ID: "c1", UserID: "u1", PartyID: "p1", IsVerified: true}))
	require.NoError(t, s.SaveParty(ctx, &models.Party{ID: "p1", Name: "Blue"}))

	v, err := s.GetVoter(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.Voter{ID: "v1", Location: "Kandy", Age: 30, IsApproved: true}, *v)

	c, err := s.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.Candidate{ID: "c1", UserID: "u1", PartyID: "p1", IsVerified: true}, *c)

	// saving again overwrites
	require.NoError(t, s.SaveCandidate(ctx, &models.Candidate{ID: "c1", UserID: "u1", PartyID: "p1", IsVerified: true, IsApproved: true}))
	c, err = s.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.IsApproved)

	p, err := s.GetParty(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Blue", p.Name)
}

func testAppendVote(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateElection(ctx, election("e1")))

	_, err := s.FindVote(ctx, "e1", "v1")
	assert.ErrorIs(t, err, models.ErrVoteNotFound)

	require.NoError(t, s.AppendVote(ctx, record("e1", "c1", "v2", 2)))
	require.NoError(t, s.AppendVote(ctx, record("e1", "c1", "v1", 1)))

	dup := record("e1", "c2", "v1", 3)
	dup.ID = "other-id"
	assert.ErrorIs(t, s.AppendVote(ctx, dup), models.ErrAlreadyVoted)

	// the same voter may vote in another election
	require.NoError(t, s.AppendVote(ctx, record("e2", "c9", "v1", 4)))

	found, err := s.FindVote(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.CandidateID)
	assert.Equal(t, "0xabc", found.NotarizationRef)

	votes, err := s.ListVotes(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, "v1", votes[0].VoterID)
	assert.Equal(t, "v2", votes[1].VoterID)

	n, err := s.CountVotes(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountVotes(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)

	head, err := s.LedgerHead(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerHead{Count: 2, LastSeq: 2}, head)
	head, err = s.LedgerHead(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerHead{}, head)
}

func testConcurrentAppend(t *testing.T, s repository.Store) {
	ctx := context.Background()
	const attempts = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := record("e1", fmt.Sprintf("c%d", i%3), "v1", int64(i+1))
			r.ID = fmt.Sprintf("r%d", i)
			err := s.AppendVote(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, models.ErrAlreadyVoted):
				rejected++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, attempts-1, rejected)
	n, err := s.CountVotes(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testClearVotes(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.AppendVote(ctx, record("e1", "c1", "v1", 1)))
	require.NoError(t, s.AppendVote(ctx, record("e1", "c1", "v2", 2)))
	require.NoError(t, s.AppendVote(ctx, record("e2", "c1", "v1", 3)))

	n, err := s.ClearVotes(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	votes, err := s.ListVotes(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, votes)
	n, err = s.CountVotes(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	head, err := s.LedgerHead(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerHead{}, head)

	// the voter may vote again after a reset
	require.NoError(t, s.AppendVote(ctx, record("e1", "c1", "v1", 4)))
	head, err = s.LedgerHead(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerHead{Count: 1, LastSeq: 4}, head)
}
