package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/jaam8/election_ledger/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestCastVoteHappyPath(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			f := newFixture(t, b.open(t))
			ctx := context.Background()
			f.voters(t, 2)

			record, err := f.svc.CastVote(ctx, models.CastVoteRequest{
				ElectionID:      f.election.ID,
				CandidateID:     " c1 ",
				VoterID:         "v1",
				NotarizationRef: "0xfeed",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, record.ID)
			assert.Equal(t, "c1", record.CandidateID)
			assert.Equal(t, "0xfeed", record.NotarizationRef)
			assert.True(t, record.CastAt.Equal(testNow))

			voted, err := f.svc.HasVoted(ctx, f.election.ID, "v1")
			require.NoError(t, err)
			assert.True(t, voted)
			voted, err = f.svc.HasVoted(ctx, f.election.ID, "v2")
			require.NoError(t, err)
			assert.False(t, voted)

			receipt, err := f.svc.VoterReceipt(ctx, f.election.ID, "v1")
			require.NoError(t, err)
			assert.Equal(t, record.ID, receipt.ID)

			_, err = f.vote("c2", "v1")
			assert.ErrorIs(t, err, models.ErrAlreadyVoted)

			tally, err := f.svc.Tally(ctx, f.election.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, tally.TotalVotes)
			require.Len(t, tally.PerCandidate, 1)
			assert.Equal(t, []string{"v1"}, tally.PerCandidate[0].VoterIDs)

			assert.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.votesCast.WithLabelValues("accepted")))
			assert.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.votesCast.WithLabelValues("already_voted")))
		})
	}
}

func TestCastVoteConcurrentSameVoter(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			f := newFixture(t, b.open(t))
			f.voters(t, 1)
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			const attempts = 32
			var (
				wg       sync.WaitGroup
				accepted atomic.Int32
				rejected atomic.Int32
			)
			candidates := []string{"c1", "c2", "c3"}
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := f.vote(candidates[i%len(candidates)], "v1")
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, models.ErrAlreadyVoted):
						rejected.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), accepted.Load())
			assert.Equal(t, int32(attempts-1), rejected.Load())
			tally, err := f.svc.Tally(context.Background(), f.election.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, tally.TotalVotes)
			assert.NoError(t, tally.Verify())
			assert.Zero(t, f.svc.locks.size())
		})
	}
}

func TestCastVoteConcurrentDistinctVoters(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			f := newFixture(t, b.open(t))
			voters := f.voters(t, 40)
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			var wg sync.WaitGroup
			for i, v := range voters {
				wg.Add(1)
				go func(candidateID, voterID string) {
					defer wg.Done()
					_, err := f.vote(candidateID, voterID)
					assert.NoError(t, err)
				}(fmt.Sprintf("c%d", i%3+1), v)
			}
			wg.Wait()

			tally, err := f.svc.Tally(context.Background(), f.election.ID)
			require.NoError(t, err)
			assert.Equal(t, len(voters), tally.TotalVotes)
			assert.NoError(t, tally.Verify())
			sum := 0
			for _, c := range tally.PerCandidate {
				sum += c.Votes
			}
			assert.Equal(t, tally.TotalVotes, sum)
		})
	}
}

func TestCastVoteWindow(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	f.voters(t, 4)

	f.now = f.election.StartTime.Add(-time.Nanosecond)
	_, err := f.vote("c1", "v1")
	assert.ErrorIs(t, err, models.ErrElectionNotStarted)

	f.now = f.election.StartTime
	_, err = f.vote("c1", "v1")
	assert.NoError(t, err)

	f.now = f.election.EndTime
	_, err = f.vote("c1", "v2")
	assert.NoError(t, err)

	f.now = f.election.EndTime.Add(time.Nanosecond)
	_, err = f.vote("c1", "v3")
	assert.ErrorIs(t, err, models.ErrElectionEnded)

	f.now = testNow
	_, err = f.svc.PublishResults(context.Background(), f.election.ID)
	require.NoError(t, err)
	_, err = f.vote("c1", "v4")
	assert.ErrorIs(t, err, models.ErrElectionEnded)
}

func TestCastVoteLocation(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	ctx := context.Background()
	_, err := f.svc.RegisterVoter(ctx, models.Voter{ID: "v-lower", Location: "  colombo ", Age: 40, IsApproved: true})
	require.NoError(t, err)
	_, err = f.svc.RegisterVoter(ctx, models.Voter{ID: "v-kandy", Location: "Kandy", Age: 40, IsApproved: true})
	require.NoError(t, err)

	_, err = f.vote("c1", "v-lower")
	assert.NoError(t, err)
	_, err = f.vote("c1", "v-kandy")
	assert.ErrorIs(t, err, models.ErrLocationMismatch)
}

func TestCastVoteRejections(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	ctx := context.Background()
	f.voters(t, 1)
	require.NoError(t, f.store.SaveVoter(ctx, &models.Voter{ID: "v-minor", Location: "Colombo", Age: 17, IsApproved: true}))
	require.NoError(t, f.store.SaveVoter(ctx, &models.Voter{ID: "v-pending", Location: "Colombo", Age: 30}))
	require.NoError(t, f.store.AddCandidate(ctx, f.election.ID, "c-pending"))

	tests := []struct {
		name        string
		electionID  string
		candidateID string
		voterID     string
		want        error
	}{
		{"invalid election id", "", "c1", "v1", models.ErrInvalidID},
		{"invalid voter id", f.election.ID, "c1", "v 1", models.ErrInvalidID},
		{"unknown election", "missing", "c1", "v1", models.ErrElectionNotFound},
		{"unknown candidate", f.election.ID, "c9", "v1", models.ErrCandidateNotInElection},
		{"unverified candidate", f.election.ID, "c-pending", "v1", models.ErrCandidateUnverified},
		{"unknown voter", f.election.ID, "c1", "v9", models.ErrVoterIneligible},
		{"underage voter", f.election.ID, "c1", "v-minor", models.ErrVoterIneligible},
		{"unapproved voter", f.election.ID, "c1", "v-pending", models.ErrVoterIneligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CastVote(ctx, models.CastVoteRequest{
				ElectionID:  tt.electionID,
				CandidateID: tt.candidateID,
				VoterID:     tt.voterID,
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.store.CountVotes(ctx, f.election.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// flakyStore fails AppendVote with the queued errors before delegating.
// When commitFirst is set the first call also writes the record, as if the
// response of a committed insert had been lost.
type flakyStore struct {
	repository.Store
	mu          sync.Mutex
	failures    []error
	commitFirst bool
	calls       int
}

func (s *flakyStore) AppendVote(ctx context.Context, record *models.VoteRecord) error {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	var injected error
	if len(s.failures) > 0 {
		injected, s.failures = s.failures[0], s.failures[1:]
	}
	s.mu.Unlock()

	if injected == nil {
		return s.Store.AppendVote(ctx, record)
	}
	if first && s.commitFirst {
		if err := s.Store.AppendVote(ctx, record); err != nil {
			return err
		}
	}
	return injected
}

func TestCastVoteRetriesWriteConflicts(t *testing.T) {
	store := &flakyStore{
		Store:    memory.New(zap.NewNop()),
		failures: []error{models.ErrWriteConflict, models.ErrWriteConflict},
	}
	f := newFixture(t, store)
	f.voters(t, 1)

	_, err := f.vote("c1", "v1")
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.svc.metrics.writeConflicts))
}

func TestCastVoteRetryBudgetExhausted(t *testing.T) {
	conflicts := []error{models.ErrWriteConflict, models.ErrWriteConflict, models.ErrWriteConflict, models.ErrWriteConflict}
	store := &flakyStore{Store: memory.New(zap.NewNop()), failures: conflicts}
	f := newFixture(t, store)
	f.voters(t, 1)

	_, err := f.vote("c1", "v1")
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.ErrorIs(t, err, models.ErrWriteConflict)
	assert.Equal(t, 4, store.calls)

	voted, err := f.svc.HasVoted(context.Background(), f.election.ID, "v1")
	require.NoError(t, err)
	assert.False(t, voted)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.votesCast.WithLabelValues("failure")))
}

func TestCastVoteRetryAfterLostCommit(t *testing.T) {
	store := &flakyStore{
		Store:       memory.New(zap.NewNop()),
		failures:    []error{models.ErrWriteConflict},
		commitFirst: true,
	}
	f := newFixture(t, store)
	f.voters(t, 1)

	record, err := f.vote("c1", "v1")
	require.NoError(t, err)

	votes, err := store.ListVotes(context.Background(), f.election.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, record.ID, votes[0].ID)

	// a fresh attempt by the same voter is still a duplicate
	_, err = f.vote("c2", "v1")
	assert.ErrorIs(t, err, models.ErrAlreadyVoted)
}

func TestCastVoteStorageFailureIsNotRetried(t *testing.T) {
	store := &flakyStore{Store: memory.New(zap.NewNop()), failures: []error{errors.New("disk full")}}
	f := newFixture(t, store)
	f.voters(t, 1)

	_, err := f.vote("c1", "v1")
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.False(t, models.IsRejection(err))
	assert.Equal(t, 1, store.calls)
}

func TestCastVoteCanceled(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	f.voters(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CastVote(ctx, models.CastVoteRequest{ElectionID: f.election.ID, CandidateID: "c1", VoterID: "v1"})
	assert.ErrorIs(t, err, context.Canceled)
	voted, err := f.svc.HasVoted(context.Background(), f.election.ID, "v1")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestVoterReceipt(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	ctx := context.Background()
	f.voters(t, 1)

	_, err := f.svc.VoterReceipt(ctx, f.election.ID, "v1")
	assert.ErrorIs(t, err, models.ErrVoteNotFound)
	_, err = f.svc.VoterReceipt(ctx, "missing", "v1")
	assert.ErrorIs(t, err, models.ErrElectionNotFound)
	_, err = f.svc.HasVoted(ctx, "missing", "v1")
	assert.ErrorIs(t, err, models.ErrElectionNotFound)
}

func TestLookupsTrimIDs(t *testing.T) {
	f := newFixture(t, memory.New(zap.NewNop()))
	ctx := context.Background()
	f.voters(t, 1)
	_, err := f.vote("c1", " v1 ")
	require.NoError(t, err)

	padded := " " + f.election.ID + "\t"
	voted, err := f.svc.HasVoted(ctx, padded, " v1")
	require.NoError(t, err)
	assert.True(t, voted)

	receipt, err := f.svc.VoterReceipt(ctx, padded, "v1 ")
	require.NoError(t, err)
	assert.Equal(t, "v1", receipt.VoterID)

	election, err := f.svc.GetElection(ctx, padded)
	require.NoError(t, err)
	assert.Equal(t, f.election.ID, election.ID)

	tally, err := f.svc.Tally(ctx, padded)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.TotalVotes)

	view, err := f.svc.BuildResults(ctx, padded)
	require.NoError(t, err)
	assert.Equal(t, f.election.ID, view.ElectionID)
	assert.Equal(t, []string{"c1"}, view.Winner.CandidateIDs)

	_, err = f.svc.HasVoted(ctx, padded, "  ")
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestResetResults(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			f := newFixture(t, b.open(t))
			ctx := context.Background()
			for _, v := range f.voters(t, 3) {
				_, err := f.vote("c1", v)
				require.NoError(t, err)
			}
			_, err := f.svc.PublishResults(ctx, f.election.ID)
			require.NoError(t, err)

			removed, err := f.svc.ResetResults(ctx, f.election.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, removed)

			election, err := f.svc.GetElection(ctx, f.election.ID)
			require.NoError(t, err)
			assert.False(t, election.IsCompleted)

			view, err := f.svc.BuildResults(ctx, f.election.ID)
			require.NoError(t, err)
			assert.Zero(t, view.TotalVotes)

			// the ledger is open again
			_, err = f.vote("c2", "v1")
			assert.NoError(t, err)

			_, err = f.svc.ResetResults(ctx, "missing")
			assert.ErrorIs(t, err, models.ErrElectionNotFound)
		})
	}
}
