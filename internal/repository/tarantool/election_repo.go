// Package tarantool keeps the election ledger in Tarantool spaces. The schema
// is created by migrations/tarantool/init.lua.
package tarantool

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
)

const (
	spaceElections          = "elections"
	spaceElectionCandidates = "election_candidates"
	spaceCandidates         = "candidates"
	spaceVoters             = "voters"
	spaceParties            = "parties"
	spaceVotes              = "votes"

	indexPrimary       = "primary"
	indexElection      = "election"
	indexElectionVoter = "election_voter"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	db *tarantool.Connection
	l  *zap.Logger
}

func New(db *tarantool.Connection, l *zap.Logger) *Store {
	return &Store{
		db: db,
		l:  l,
	}
}

func (r *Store) logResponse(resp *tarantool.Response) {
	if resp == nil {
		return
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
}

func (r *Store) selectAll(space, index string, key []interface{}) ([]interface{}, error) {
	resp, err := r.db.Select(space, index, 0, math.MaxUint32, tarantool.IterEq, key)
	if err != nil {
		r.l.Debug("failed to select", zap.String("space", space), zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	r.logResponse(resp)
	return resp.Data, nil
}

func (r *Store) selectOne(space string, key ...interface{}) (interface{}, bool, error) {
	resp, err := r.db.Select(space, indexPrimary, 0, 1, tarantool.IterEq, key)
	if err != nil {
		r.l.Debug("failed to select", zap.String("space", space), zap.Error(err))
		return nil, false, fmt.Errorf("repository: database select error: %w", err)
	}
	r.logResponse(resp)
	if len(resp.Data) == 0 {
		return nil, false, nil
	}
	return resp.Data[0], true, nil
}

func (r *Store) CreateElection(ctx context.Context, election *models.Election) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.l.Debug("creating election", zap.Any("election", election))
	resp, err := r.db.Insert(spaceElections, electionTuple(election))
	r.logResponse(resp)
	if err != nil {
		r.l.Debug("error inserting election", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	for i, candidateID := range election.Candidates {
		if err := r.insertRosterEntry(election.ID, candidateID, int64(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Store) insertRosterEntry(electionID, candidateID string, position int64) error {
	resp, err := r.db.Insert(spaceElectionCandidates, []interface{}{electionID, candidateID, position})
	r.logResponse(resp)
	if err != nil && !isDuplicate(err) {
		r.l.Debug("failed to insert roster entry", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	return nil
}

func (r *Store) roster(electionID string) ([]string, error) {
	data, err := r.selectAll(spaceElectionCandidates, indexPrimary, []interface{}{electionID})
	if err != nil {
		return nil, err
	}
	entries := make([]rosterEntry, 0, len(data))
	for _, tuple := range data {
		entry, err := decodeRosterEntry(tuple)
		if err != nil {
			r.l.Debug("unexpected roster tuple", zap.Any("tuple", tuple))
			return nil, fmt.Errorf("repository: %w", err)
		}
		entries = append(entries, entry)
	}
	slices.SortStableFunc(entries, func(a, b rosterEntry) int {
		switch {
		case a.position < b.position:
			return -1
		case a.position > b.position:
			return 1
		}
		return 0
	})
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.candidateID)
	}
	return out, nil
}

func (r *Store) GetElection(ctx context.Context, id string) (*models.Election, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tuple, ok, err := r.selectOne(spaceElections, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.l.Debug("election not found", zap.String("election_id", id))
		return nil, models.ErrElectionNotFound
	}
	election, err := decodeElection(tuple)
	if err != nil {
		r.l.Debug("unexpected election tuple", zap.Any("tuple", tuple))
		return nil, fmt.Errorf("repository: %w", err)
	}
	if election.Candidates, err = r.roster(id); err != nil {
		return nil, err
	}
	return election, nil
}

func (r *Store) ListElections(ctx context.Context) ([]models.Election, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := r.db.Select(spaceElections, indexPrimary, 0, math.MaxUint32, tarantool.IterAll, []interface{}{})
	if err != nil {
		r.l.Debug("failed to select elections", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	out := make([]models.Election, 0, len(resp.Data))
	for _, tuple := range resp.Data {
		election, err := decodeElection(tuple)
		if err != nil {
			return nil, fmt.Errorf("repository: %w", err)
		}
		if election.Candidates, err = r.roster(election.ID); err != nil {
			return nil, err
		}
		out = append(out, *election)
	}
	slices.SortFunc(out, func(a, b models.Election) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out, nil
}

func (r *Store) AddCandidate(ctx context.Context, electionID, candidateID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok, err := r.selectOne(spaceElections, electionID); err != nil {
		return err
	} else if !ok {
		return models.ErrElectionNotFound
	}
	return r.insertRosterEntry(electionID, candidateID, time.Now().UnixNano())
}

func (r *Store) SetCompleted(ctx context.Context, electionID string, completed bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := r.db.Update(spaceElections, indexPrimary,
		[]interface{}{electionID},
		[]interface{}{[]interface{}{"=", electionCompleted, completed}})
	r.logResponse(resp)
	if err != nil {
		r.l.Debug("failed to update election", zap.Error(err))
		return fmt.Errorf("repository: database update error: %w", err)
	}
	if len(resp.Data) == 0 {
		return models.ErrElectionNotFound
	}
	return nil
}

func (r *Store) replace(space string, tuple []interface{}) error {
	resp, err := r.db.Replace(space, tuple)
	r.logResponse(resp)
	if err != nil {
		r.l.Debug("failed to replace", zap.String("space", space), zap.Error(err))
		return fmt.Errorf("repository: database replace error: %w", err)
	}
	return nil
}

func (r *Store) SaveVoter(ctx context.Context, voter *models.Voter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.replace(spaceVoters, []interface{}{voter.ID, voter.Location, voter.Age, voter.IsApproved})
}

func (r *Store) GetVoter(ctx context.Context, voterID string) (*models.Voter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tuple, ok, err := r.selectOne(spaceVoters, voterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrVoterNotFound
	}
	voter, err := decodeVoter(tuple)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return voter, nil
}

func (r *Store) SaveCandidate(ctx context.Context, candidate *models.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.replace(spaceCandidates, []interface{}{
		candidate.ID,
		candidate.UserID,
		candidate.PartyID,
		candidate.IsVerified,
		candidate.IsApproved,
	})
}

func (r *Store) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tuple, ok, err := r.selectOne(spaceCandidates, candidateID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrCandidateNotFound
	}
	candidate, err := decodeCandidate(tuple)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return candidate, nil
}

func (r *Store) SaveParty(ctx context.Context, party *models.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.replace(spaceParties, []interface{}{party.ID, party.Name})
}

func (r *Store) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tuple, ok, err := r.selectOne(spaceParties, partyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrPartyNotFound
	}
	party, err := decodeParty(tuple)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return party, nil
}

func (r *Store) Close() error {
	return r.db.Close()
}
