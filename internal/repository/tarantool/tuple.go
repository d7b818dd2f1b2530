package tarantool

import (
	"errors"
	"fmt"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/tarantool/go-tarantool"
)

// Box error codes, see box/errcode.h.
const (
	erTupleFound          = 3
	erTransactionConflict = 97
)

// field positions of the votes space
const (
	voteID = iota
	voteElectionID
	voteVoterID
	voteCandidateID
	voteSeq
	voteCastAt
	voteNotarizationRef
)

// field positions of the elections space
const (
	electionID = iota
	electionName
	electionWhere
	electionDescription
	electionStart
	electionEnd
	electionCompleted
)

func isDuplicate(err error) bool {
	var boxErr tarantool.Error
	return errors.As(err, &boxErr) && boxErr.Code == erTupleFound
}

// isTransient reports errors after which the same request may succeed.
func isTransient(err error) bool {
	var boxErr tarantool.Error
	if errors.As(err, &boxErr) {
		return boxErr.Code == erTransactionConflict
	}
	var clientErr tarantool.ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Code {
		case tarantool.ErrConnectionNotReady, tarantool.ErrTimeouted, tarantool.ErrRateLimited:
			return true
		}
	}
	return false
}

func toString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type %T for string field: %w", v, models.ErrFailedToProcessData)
	}
	return s, nil
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("unexpected type %T for integer field: %w", v, models.ErrFailedToProcessData)
	}
}

func toBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected type %T for boolean field: %w", v, models.ErrFailedToProcessData)
	}
	return b, nil
}

// tupleReader decodes fields in order and keeps the first error.
type tupleReader struct {
	tuple []interface{}
	err   error
}

func newTupleReader(data interface{}, fields int) *tupleReader {
	tuple, ok := data.([]interface{})
	if !ok {
		return &tupleReader{err: fmt.Errorf("unexpected tuple type %T: %w", data, models.ErrFailedToProcessData)}
	}
	if len(tuple) < fields {
		return &tupleReader{err: fmt.Errorf("tuple has %d fields, want %d: %w", len(tuple), fields, models.ErrFailedToProcessData)}
	}
	return &tupleReader{tuple: tuple}
}

func (r *tupleReader) str(i int) string {
	if r.err != nil {
		return ""
	}
	s, err := toString(r.tuple[i])
	r.err = err
	return s
}

func (r *tupleReader) int(i int) int64 {
	if r.err != nil {
		return 0
	}
	n, err := toInt64(r.tuple[i])
	r.err = err
	return n
}

func (r *tupleReader) bool(i int) bool {
	if r.err != nil {
		return false
	}
	b, err := toBool(r.tuple[i])
	r.err = err
	return b
}

func voteTuple(v *models.VoteRecord) []interface{} {
	return []interface{}{
		v.ID,
		v.ElectionID,
		v.VoterID,
		v.CandidateID,
		v.Seq,
		v.CastAt.UnixNano(),
		v.NotarizationRef,
	}
}

func decodeVote(data interface{}) (models.VoteRecord, error) {
	r := newTupleReader(data, voteNotarizationRef+1)
	v := models.VoteRecord{
		ID:              r.str(voteID),
		ElectionID:      r.str(voteElectionID),
		VoterID:         r.str(voteVoterID),
		CandidateID:     r.str(voteCandidateID),
		Seq:             r.int(voteSeq),
		CastAt:          time.Unix(0, r.int(voteCastAt)).UTC(),
		NotarizationRef: r.str(voteNotarizationRef),
	}
	return v, r.err
}

func electionTuple(e *models.Election) []interface{} {
	return []interface{}{
		e.ID,
		e.Name,
		e.Where,
		e.Description,
		e.StartTime.UnixNano(),
		e.EndTime.UnixNano(),
		e.IsCompleted,
	}
}

func decodeElection(data interface{}) (*models.Election, error) {
	r := newTupleReader(data, electionCompleted+1)
	e := &models.Election{
		ID:          r.str(electionID),
		Name:        r.str(electionName),
		Where:       r.str(electionWhere),
		Description: r.str(electionDescription),
		StartTime:   time.Unix(0, r.int(electionStart)).UTC(),
		EndTime:     time.Unix(0, r.int(electionEnd)).UTC(),
		IsCompleted: r.bool(electionCompleted),
	}
	return e, r.err
}

func decodeVoter(data interface{}) (*models.Voter, error) {
	r := newTupleReader(data, 4)
	v := &models.Voter{
		ID:         r.str(0),
		Location:   r.str(1),
		Age:        int(r.int(2)),
		IsApproved: r.bool(3),
	}
	return v, r.err
}

func decodeCandidate(data interface{}) (*models.Candidate, error) {
	r := newTupleReader(data, 5)
	c := &models.Candidate{
		ID:         r.str(0),
		UserID:     r.str(1),
		PartyID:    r.str(2),
		IsVerified: r.bool(3),
		IsApproved: r.bool(4),
	}
	return c, r.err
}

func decodeParty(data interface{}) (*models.Party, error) {
	r := newTupleReader(data, 2)
	p := &models.Party{ID: r.str(0), Name: r.str(1)}
	return p, r.err
}

// rosterEntry is a tuple of the election_candidates space.
type rosterEntry struct {
	candidateID string
	position    int64
}

func decodeRosterEntry(data interface{}) (rosterEntry, error) {
	r := newTupleReader(data, 3)
	e := rosterEntry{candidateID: r.str(1), position: r.int(2)}
	return e, r.err
}
