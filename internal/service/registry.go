package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jaam8/election_ledger/internal/models"
	"go.uber.org/zap"
)

func (s *ElectionService) CreateElection(ctx context.Context, req models.NewElection) (*models.Election, error) {
	s.l.Debug("creating election", zap.String("name", req.Name), zap.String("where", req.Where))
	req.Name = strings.TrimSpace(req.Name)
	req.Where = strings.TrimSpace(req.Where)
	if req.Name == "" || req.Where == "" {
		return nil, models.ErrInvalidElection
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || req.StartTime.After(req.EndTime) {
		return nil, models.ErrInvalidWindow
	}

	election := &models.Election{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Where:       req.Where,
		Description: strings.TrimSpace(req.Description),
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		Candidates:  []string{},
	}
	if err := s.store.CreateElection(ctx, election); err != nil {
		s.l.Error("failed to create election", zap.Error(err))
		return nil, fmt.Errorf("service: failed to create election: %w", err)
	}
	return election, nil
}

func (s *ElectionService) GetElection(ctx context.Context, electionID string) (*models.Election, error) {
	electionID = strings.TrimSpace(electionID)
	if err := validateIDs(electionID); err != nil {
		return nil, err
	}
	election, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrElectionNotFound):
			return nil, err
		case errors.Is(err, models.ErrFailedToProcessData):
			return nil, err
		default:
			s.l.Error("failed to get election", zap.String("election_id", electionID), zap.Error(err))
			return nil, fmt.Errorf("service: failed to get election: %w", err)
		}
	}
	return election, nil
}

// ApplyCandidate puts a verified and approved candidate on the roster of an
// election that has not ended yet. Applying twice is a no-op.
func (s *ElectionService) ApplyCandidate(ctx context.Context, electionID, candidateID string) (*models.Election, error) {
	electionID, candidateID = strings.TrimSpace(electionID), strings.TrimSpace(candidateID)
	if err := validateIDs(electionID, candidateID); err != nil {
		return nil, err
	}
	release, err := s.locks.acquire(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to apply candidate: %w", err)
	}
	defer release()

	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	switch models.PhaseAt(election, s.now()) {
	case models.PhaseClosed, models.PhaseCompleted:
		return nil, models.ErrElectionEnded
	}
	candidate, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCandidateNotFound):
			return nil, err
		default:
			s.l.Error("failed to get candidate", zap.String("candidate_id", candidateID), zap.Error(err))
			return nil, fmt.Errorf("service: failed to apply candidate: %w", err)
		}
	}
	if !candidate.Votable() {
		return nil, models.ErrCandidateUnverified
	}
	if election.HasCandidate(candidateID) {
		return election, nil
	}
	if err := s.store.AddCandidate(ctx, electionID, candidateID); err != nil {
		s.l.Error("failed to add candidate", zap.String("election_id", electionID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to apply candidate: %w", err)
	}
	election.Candidates = append(election.Candidates, candidateID)
	s.l.Info("candidate applied",
		zap.String("election_id", electionID),
		zap.String("candidate_id", candidateID))
	return election, nil
}

// Stats counts elections per phase at the current instant.
func (s *ElectionService) Stats(ctx context.Context) (models.ElectionStats, error) {
	elections, err := s.store.ListElections(ctx)
	if err != nil {
		s.l.Error("failed to list elections", zap.Error(err))
		return models.ElectionStats{}, fmt.Errorf("service: failed to count elections: %w", err)
	}
	now := s.now()
	var stats models.ElectionStats
	for i := range elections {
		switch models.PhaseAt(&elections[i], now) {
		case models.PhaseScheduled:
			stats.Scheduled++
		case models.PhaseOpen:
			stats.Active++
		case models.PhaseClosed:
			stats.Closed++
		case models.PhaseCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

func (s *ElectionService) RegisterVoter(ctx context.Context, voter models.Voter) (*models.Voter, error) {
	voter.ID = strings.TrimSpace(voter.ID)
	voter.Location = strings.TrimSpace(voter.Location)
	if err := validateIDs(voter.ID); err != nil {
		return nil, err
	}
	if voter.Location == "" {
		return nil, models.ErrInvalidVoter
	}
	if voter.Age < models.MinimumVotingAge {
		return nil, models.ErrVoterIneligible
	}
	if err := s.store.SaveVoter(ctx, &voter); err != nil {
		s.l.Error("failed to save voter", zap.String("voter_id", voter.ID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to register voter: %w", err)
	}
	return &voter, nil
}

func (s *ElectionService) RegisterCandidate(ctx context.Context, candidate models.Candidate) (*models.Candidate, error) {
	candidate.ID = strings.TrimSpace(candidate.ID)
	candidate.PartyID = strings.TrimSpace(candidate.PartyID)
	if err := validateIDs(candidate.ID); err != nil {
		return nil, err
	}
	if candidate.PartyID != "" {
		if err := validateIDs(candidate.PartyID); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveCandidate(ctx, &candidate); err != nil {
		s.l.Error("failed to save candidate", zap.String("candidate_id", candidate.ID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to register candidate: %w", err)
	}
	return &candidate, nil
}

func (s *ElectionService) RegisterParty(ctx context.Context, party models.Party) (*models.Party, error) {
	party.ID = strings.TrimSpace(party.ID)
	party.Name = strings.TrimSpace(party.Name)
	if err := validateIDs(party.ID); err != nil {
		return nil, err
	}
	if party.Name == "" {
		return nil, models.ErrInvalidParty
	}
	if err := s.store.SaveParty(ctx, &party); err != nil {
		s.l.Error("failed to save party", zap.String("party_id", party.ID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to register party: %w", err)
	}
	return &party, nil
}
