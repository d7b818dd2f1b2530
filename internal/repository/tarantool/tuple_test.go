package tarantool

import (
	"fmt"
	"testing"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarantool/go-tarantool"
)

func TestDecodeVote(t *testing.T) {
	castAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	want := models.VoteRecord{
		ID:              "r1",
		ElectionID:      "e1",
		CandidateID:     "c1",
		VoterID:         "v1",
		Seq:             42,
		CastAt:          castAt,
		NotarizationRef: "0xfeed",
	}
	tuple := voteTuple(&want)
	// msgpack hands back unsigned integers for positive values
	tuple[voteSeq] = uint64(42)
	tuple[voteCastAt] = uint64(castAt.UnixNano())

	got, err := decodeVote(tuple)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeVoteRejectsMalformedTuples(t *testing.T) {
	_, err := decodeVote("not a tuple")
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)

	_, err = decodeVote([]interface{}{"r1", "e1"})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)

	tuple := voteTuple(&models.VoteRecord{ID: "r1"})
	tuple[voteSeq] = "oops"
	_, err = decodeVote(tuple)
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)
}

func TestDecodeElection(t *testing.T) {
	want := &models.Election{
		ID:          "e1",
		Name:        "General",
		Where:       "Kandy",
		Description: "desc",
		StartTime:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		IsCompleted: true,
	}
	got, err := decodeElection(electionTuple(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeDirectoryTuples(t *testing.T) {
	voter, err := decodeVoter([]interface{}{"v1", "Colombo", uint8(20), true})
	require.NoError(t, err)
	assert.Equal(t, &models.Voter{ID: "v1", Location: "Colombo", Age: 20, IsApproved: true}, voter)

	candidate, err := decodeCandidate([]interface{}{"c1", "u1", "p1", true, false})
	require.NoError(t, err)
	assert.Equal(t, &models.Candidate{ID: "c1", UserID: "u1", PartyID: "p1", IsVerified: true}, candidate)

	party, err := decodeParty([]interface{}{"p1", "Blue"})
	require.NoError(t, err)
	assert.Equal(t, &models.Party{ID: "p1", Name: "Blue"}, party)

	entry, err := decodeRosterEntry([]interface{}{"e1", "c1", int8(3)})
	require.NoError(t, err)
	assert.Equal(t, rosterEntry{candidateID: "c1", position: 3}, entry)

	_, err = decodeVoter([]interface{}{"v1", "Colombo", "twenty", true})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)
}

func TestErrorClassification(t *testing.T) {
	dup := tarantool.Error{Code: erTupleFound, Msg: "Duplicate key exists in unique index 'election_voter'"}
	assert.True(t, isDuplicate(dup))
	assert.True(t, isDuplicate(fmt.Errorf("wrapped: %w", dup)))
	assert.False(t, isTransient(dup))

	conflict := tarantool.Error{Code: erTransactionConflict, Msg: "Transaction has been aborted by conflict"}
	assert.True(t, isTransient(conflict))
	assert.False(t, isDuplicate(conflict))

	assert.True(t, isTransient(tarantool.ClientError{Code: tarantool.ErrConnectionNotReady, Msg: "not ready"}))
	assert.False(t, isTransient(tarantool.ClientError{Code: tarantool.ErrConnectionClosed, Msg: "closed"}))
}
