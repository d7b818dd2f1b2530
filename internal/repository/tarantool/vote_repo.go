package tarantool

import (
	"context"
	"fmt"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
)

// stored procedures from migrations/tarantool/init.lua
const (
	procCountVotes = "ledger_count_votes"
	procClearVotes = "ledger_clear_votes"
	procLedgerHead = "ledger_head"
)

// AppendVote inserts the record into the votes space. The unique
// election_voter index rejects a second vote of the same voter inside the
// same single-statement transaction.
func (r *Store) AppendVote(ctx context.Context, record *models.VoteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := r.db.Insert(spaceVotes, voteTuple(record))
	r.logResponse(resp)
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		r.l.Debug("vote already exist",
			zap.String("election_id", record.ElectionID),
			zap.String("voter_id", record.VoterID))
		return models.ErrAlreadyVoted
	case isTransient(err):
		r.l.Debug("transient tarantool error", zap.Error(err))
		return fmt.Errorf("repository: %w: %v", models.ErrWriteConflict, err)
	default:
		r.l.Debug("failed to insert vote", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
}

func (r *Store) FindVote(ctx context.Context, electionID, voterID string) (*models.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := r.db.Select(spaceVotes, indexElectionVoter, 0, 1, tarantool.IterEq, []interface{}{electionID, voterID})
	if err != nil {
		r.l.Debug("failed to select vote", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	r.logResponse(resp)
	if len(resp.Data) == 0 {
		return nil, models.ErrVoteNotFound
	}
	record, err := decodeVote(resp.Data[0])
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return &record, nil
}

func (r *Store) ListVotes(ctx context.Context, electionID string) ([]models.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.selectAll(spaceVotes, indexElection, []interface{}{electionID})
	if err != nil {
		return nil, err
	}
	out := make([]models.VoteRecord, 0, len(data))
	for _, tuple := range data {
		record, err := decodeVote(tuple)
		if err != nil {
			r.l.Debug("unexpected vote tuple", zap.Any("tuple", tuple))
			return nil, fmt.Errorf("repository: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *Store) callInt(proc, electionID string) (int, error) {
	resp, err := r.db.Call17(proc, []interface{}{electionID})
	if err != nil {
		r.l.Debug("failed to call", zap.String("proc", proc), zap.Error(err))
		return 0, fmt.Errorf("repository: database call error: %w", err)
	}
	r.logResponse(resp)
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("repository: empty %s result: %w", proc, models.ErrFailedToProcessData)
	}
	n, err := toInt64(resp.Data[0])
	if err != nil {
		return 0, fmt.Errorf("repository: %w", err)
	}
	return int(n), nil
}

func (r *Store) CountVotes(ctx context.Context, electionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.callInt(procCountVotes, electionID)
}

func (r *Store) LedgerHead(ctx context.Context, electionID string) (models.LedgerHead, error) {
	if err := ctx.Err(); err != nil {
		return models.LedgerHead{}, err
	}
	resp, err := r.db.Call17(procLedgerHead, []interface{}{electionID})
	if err != nil {
		r.l.Debug("failed to call", zap.String("proc", procLedgerHead), zap.Error(err))
		return models.LedgerHead{}, fmt.Errorf("repository: database call error: %w", err)
	}
	r.logResponse(resp)
	if len(resp.Data) < 2 {
		return models.LedgerHead{}, fmt.Errorf("repository: short %s result: %w", procLedgerHead, models.ErrFailedToProcessData)
	}
	count, err := toInt64(resp.Data[0])
	if err != nil {
		return models.LedgerHead{}, fmt.Errorf("repository: %w", err)
	}
	seq, err := toInt64(resp.Data[1])
	if err != nil {
		return models.LedgerHead{}, fmt.Errorf("repository: %w", err)
	}
	return models.LedgerHead{Count: int(count), LastSeq: seq}, nil
}

func (r *Store) ClearVotes(ctx context.Context, electionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.callInt(procClearVotes, electionID)
}
