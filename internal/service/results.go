package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/election_ledger/internal/models"
	"go.uber.org/zap"
)

const unknownParty = "Unknown Party"

// FindWinner picks the candidates with the most votes. Ties are reported
// explicitly and list every tied candidate in tally order.
func FindWinner(t models.Tally) models.Winner {
	if t.TotalVotes == 0 {
		return models.Winner{CandidateIDs: []string{}}
	}
	best := 0
	for _, c := range t.PerCandidate {
		best = max(best, c.Votes)
	}
	winner := models.Winner{CandidateIDs: []string{}, Votes: best, Declared: true}
	for _, c := range t.PerCandidate {
		if c.Votes == best {
			winner.CandidateIDs = append(winner.CandidateIDs, c.CandidateID)
		}
	}
	winner.Tie = len(winner.CandidateIDs) > 1
	return winner
}

// FindWinningParty sums votes per party. Candidates missing from partyOf, or
// mapped to an empty party, count towards models.NoParty. On equal totals the
// party seen first in tally order wins.
func FindWinningParty(t models.Tally, partyOf map[string]string) models.PartyResult {
	if t.TotalVotes == 0 {
		return models.PartyResult{}
	}
	votes := make(map[string]int)
	var order []string
	for _, c := range t.PerCandidate {
		party := partyOf[c.CandidateID]
		if party == "" {
			party = models.NoParty
		}
		if _, ok := votes[party]; !ok {
			order = append(order, party)
		}
		votes[party] += c.Votes
	}
	result := models.PartyResult{Declared: true}
	for _, party := range order {
		if votes[party] > result.Votes {
			result.PartyID = party
			result.Votes = votes[party]
		}
	}
	return result
}

// BuildResults returns the results view of the election. A cached view is
// served only while its ledger head matches the stored one.
func (s *ElectionService) BuildResults(ctx context.Context, electionID string) (*models.ResultsView, error) {
	electionID = strings.TrimSpace(electionID)
	if err := validateIDs(electionID); err != nil {
		return nil, err
	}
	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	head, err := s.store.LedgerHead(ctx, electionID)
	if err != nil {
		s.l.Error("failed to read ledger head", zap.String("election_id", electionID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to build results: %w", err)
	}

	cached, err := s.cache.Get(ctx, electionID)
	switch {
	case err == nil && cached.Ledger == head:
		s.metrics.resultsCache.WithLabelValues("hit").Inc()
		cached.Phase = models.PhaseAt(election, s.now())
		cached.Name, cached.Where = election.Name, election.Where
		return cached, nil
	case err == nil:
		s.metrics.resultsCache.WithLabelValues("stale").Inc()
		s.l.Debug("cached results are stale",
			zap.String("election_id", electionID),
			zap.Int("cached_count", cached.Ledger.Count),
			zap.Int64("cached_seq", cached.Ledger.LastSeq),
			zap.Int("ledger_count", head.Count),
			zap.Int64("ledger_seq", head.LastSeq))
	case errors.Is(err, models.ErrCacheMiss):
		s.metrics.resultsCache.WithLabelValues("miss").Inc()
	default:
		s.metrics.resultsCache.WithLabelValues("error").Inc()
		s.l.Warn("failed to read cached results", zap.String("election_id", electionID), zap.Error(err))
	}

	view, err := s.buildResults(ctx, election)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, view); err != nil {
		s.l.Warn("failed to cache results", zap.String("election_id", electionID), zap.Error(err))
	}
	return view, nil
}

func (s *ElectionService) buildResults(ctx context.Context, election *models.Election) (*models.ResultsView, error) {
	tally, head, err := s.tally(ctx, election.ID)
	if err != nil {
		return nil, err
	}
	partyOf := make(map[string]string, len(tally.PerCandidate))
	distribution := make([]models.DistributionEntry, 0, len(tally.PerCandidate))
	for _, c := range tally.PerCandidate {
		entry := models.DistributionEntry{
			CandidateID: c.CandidateID,
			PartyID:     models.NoParty,
			PartyName:   unknownParty,
			Votes:       c.Votes,
			Voters:      c.VoterIDs,
		}
		candidate, err := s.store.GetCandidate(ctx, c.CandidateID)
		switch {
		case err == nil:
			entry.UserID = candidate.UserID
			if candidate.PartyID != "" {
				entry.PartyID = candidate.PartyID
				entry.PartyName = s.partyName(ctx, candidate.PartyID)
			}
		case !errors.Is(err, models.ErrCandidateNotFound):
			s.l.Error("failed to load candidate", zap.String("candidate_id", c.CandidateID), zap.Error(err))
			return nil, fmt.Errorf("service: failed to build results: %w", err)
		}
		partyOf[c.CandidateID] = entry.PartyID
		distribution = append(distribution, entry)
	}

	winningParty := FindWinningParty(tally, partyOf)
	if winningParty.Declared {
		winningParty.Name = unknownParty
		if winningParty.PartyID != models.NoParty {
			winningParty.Name = s.partyName(ctx, winningParty.PartyID)
		}
	}
	return &models.ResultsView{
		ElectionID:   election.ID,
		Name:         election.Name,
		Where:        election.Where,
		Phase:        models.PhaseAt(election, s.now()),
		TotalVotes:   tally.TotalVotes,
		Winner:       FindWinner(tally),
		WinningParty: winningParty,
		Distribution: distribution,
		Ledger:       head,
	}, nil
}

func (s *ElectionService) partyName(ctx context.Context, partyID string) string {
	party, err := s.store.GetParty(ctx, partyID)
	if err != nil {
		if !errors.Is(err, models.ErrPartyNotFound) {
			s.l.Warn("failed to load party", zap.String("party_id", partyID), zap.Error(err))
		}
		return unknownParty
	}
	return party.Name
}

// PublishResults marks the election completed, which closes it for voting,
// and caches the final view.
func (s *ElectionService) PublishResults(ctx context.Context, electionID string) (*models.ResultsView, error) {
	electionID = strings.TrimSpace(electionID)
	if err := validateIDs(electionID); err != nil {
		return nil, err
	}
	release, err := s.locks.acquire(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to publish results: %w", err)
	}
	defer release()

	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if !election.IsCompleted {
		if err := s.store.SetCompleted(ctx, electionID, true); err != nil {
			s.l.Error("failed to complete election", zap.String("election_id", electionID), zap.Error(err))
			return nil, fmt.Errorf("service: failed to publish results: %w", err)
		}
		election.IsCompleted = true
	}
	view, err := s.buildResults(ctx, election)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, view); err != nil {
		s.l.Warn("failed to cache results", zap.String("election_id", electionID), zap.Error(err))
	}
	s.l.Info("results published",
		zap.String("election_id", electionID),
		zap.Int("total_votes", view.TotalVotes),
		zap.String("winner", view.Winner.String()))
	return view, nil
}
