package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaam8/election_ledger/internal/eligibility"
	"github.com/jaam8/election_ledger/internal/models"
	"go.uber.org/zap"
)

func persistenceFailure(err error) error {
	return fmt.Errorf("service: %w: %w", models.ErrPersistenceFailure, err)
}

// CastVote admits at most one vote per voter and election. Snapshots are
// loaded and checked only after the per-election lock is held, and the record
// is written with a single insert guarded by the store's uniqueness
// constraint, so a vote is either fully recorded or not at all.
func (s *ElectionService) CastVote(ctx context.Context, req models.CastVoteRequest) (*models.VoteRecord, error) {
	start := time.Now()
	record, err := s.castVote(ctx, normalize(req))
	s.metrics.observeCast(err, time.Since(start))
	return record, err
}

func (s *ElectionService) castVote(ctx context.Context, req models.CastVoteRequest) (*models.VoteRecord, error) {
	if err := validateIDs(req.ElectionID, req.CandidateID, req.VoterID); err != nil {
		return nil, err
	}
	release, err := s.locks.acquire(ctx, req.ElectionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to vote: %w", err)
	}
	defer release()

	election, voter, candidate, err := s.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if decision := eligibility.Check(election, voter, candidate, now); !decision.Admitted {
		s.l.Debug("vote rejected",
			zap.String("election_id", req.ElectionID),
			zap.String("voter_id", req.VoterID),
			zap.String("reason", string(decision.Reason)))
		return nil, decision.Err()
	}

	record := &models.VoteRecord{
		ID:              uuid.New().String(),
		ElectionID:      req.ElectionID,
		CandidateID:     req.CandidateID,
		VoterID:         req.VoterID,
		Seq:             s.seq.next(now),
		CastAt:          now.UTC(),
		NotarizationRef: req.NotarizationRef,
	}
	if err := s.appendVote(ctx, record); err != nil {
		return nil, err
	}
	s.l.Debug("vote recorded",
		zap.String("election_id", record.ElectionID),
		zap.String("candidate_id", record.CandidateID),
		zap.String("voter_id", record.VoterID))
	return record, nil
}

func (s *ElectionService) snapshot(ctx context.Context, req models.CastVoteRequest) (
	*models.Election, *models.Voter, *models.Candidate, error,
) {
	election, err := s.store.GetElection(ctx, req.ElectionID)
	if err != nil {
		if errors.Is(err, models.ErrElectionNotFound) {
			return nil, nil, nil, err
		}
		s.l.Error("failed to load election", zap.String("election_id", req.ElectionID), zap.Error(err))
		return nil, nil, nil, persistenceFailure(err)
	}
	voter, err := s.store.GetVoter(ctx, req.VoterID)
	switch {
	case errors.Is(err, models.ErrVoterNotFound):
		voter = nil
	case err != nil:
		s.l.Error("failed to load voter", zap.String("voter_id", req.VoterID), zap.Error(err))
		return nil, nil, nil, persistenceFailure(err)
	}
	candidate, err := s.store.GetCandidate(ctx, req.CandidateID)
	switch {
	case errors.Is(err, models.ErrCandidateNotFound):
		candidate = nil
	case err != nil:
		s.l.Error("failed to load candidate", zap.String("candidate_id", req.CandidateID), zap.Error(err))
		return nil, nil, nil, persistenceFailure(err)
	}
	return election, voter, candidate, nil
}

// appendVote retries write conflicts a bounded number of times. A duplicate
// reported after a retry is checked against the record id: an earlier attempt
// of this very call may have committed before its response was lost.
func (s *ElectionService) appendVote(ctx context.Context, record *models.VoteRecord) error {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := s.store.AppendVote(ctx, record)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, models.ErrAlreadyVoted):
			if attempt > 0 {
				if existing, findErr := s.store.FindVote(ctx, record.ElectionID, record.VoterID); findErr == nil && existing.ID == record.ID {
					return nil
				}
			}
			return err
		case errors.Is(err, models.ErrWriteConflict) && attempt < s.cfg.MaxRetries:
			s.metrics.writeConflicts.Inc()
			s.l.Debug("write conflict, retrying",
				zap.String("election_id", record.ElectionID),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return persistenceFailure(ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		default:
			s.l.Error("failed to append vote",
				zap.String("election_id", record.ElectionID),
				zap.String("voter_id", record.VoterID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return persistenceFailure(err)
		}
	}
}

// HasVoted reports whether the voter already has a record in the election.
func (s *ElectionService) HasVoted(ctx context.Context, electionID, voterID string) (bool, error) {
	_, err := s.VoterReceipt(ctx, electionID, voterID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrVoteNotFound):
		return false, nil
	default:
		return false, err
	}
}

// VoterReceipt returns the voter's own ledger entry.
func (s *ElectionService) VoterReceipt(ctx context.Context, electionID, voterID string) (*models.VoteRecord, error) {
	electionID, voterID = strings.TrimSpace(electionID), strings.TrimSpace(voterID)
	if err := validateIDs(electionID, voterID); err != nil {
		return nil, err
	}
	if _, err := s.GetElection(ctx, electionID); err != nil {
		return nil, err
	}
	record, err := s.store.FindVote(ctx, electionID, voterID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrVoteNotFound):
			return nil, err
		default:
			s.l.Error("failed to find vote", zap.Error(err))
			return nil, fmt.Errorf("service: failed to find vote: %w", err)
		}
	}
	return record, nil
}

// ResetResults clears every vote of the election, reopens it and drops the
// cached results. It is an administrative operation distinct from vote
// retraction, which does not exist.
func (s *ElectionService) ResetResults(ctx context.Context, electionID string) (int, error) {
	electionID = strings.TrimSpace(electionID)
	if err := validateIDs(electionID); err != nil {
		return 0, err
	}
	release, err := s.locks.acquire(ctx, electionID)
	if err != nil {
		return 0, fmt.Errorf("service: failed to reset results: %w", err)
	}
	defer release()

	if _, err := s.GetElection(ctx, electionID); err != nil {
		return 0, err
	}
	removed, err := s.store.ClearVotes(ctx, electionID)
	if err != nil {
		s.l.Error("failed to clear votes", zap.String("election_id", electionID), zap.Error(err))
		return 0, fmt.Errorf("service: failed to reset results: %w", err)
	}
	if err := s.store.SetCompleted(ctx, electionID, false); err != nil {
		s.l.Error("failed to reopen election", zap.String("election_id", electionID), zap.Error(err))
		return removed, fmt.Errorf("service: failed to reset results: %w", err)
	}
	if err := s.cache.Delete(ctx, electionID); err != nil {
		s.l.Warn("failed to drop cached results", zap.String("election_id", electionID), zap.Error(err))
	}
	s.l.Info("results reset", zap.String("election_id", electionID), zap.Int("removed", removed))
	return removed, nil
}
