package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jaam8/election_ledger/internal/models"
	"go.uber.org/zap"
)

// ComputeTally folds vote records into per-candidate counts. Records are
// applied in ledger order (Seq, then ID) and only the first record of each
// voter counts. The second return value reports how many records were dropped
// as duplicates, which a healthy ledger never produces.
func ComputeTally(electionID string, records []models.VoteRecord) (models.Tally, int) {
	ordered := make([]models.VoteRecord, 0, len(records))
	for _, r := range records {
		if r.ElectionID == electionID {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Seq != ordered[j].Seq {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].ID < ordered[j].ID
	})

	tally := models.Tally{
		ElectionID:   electionID,
		PerCandidate: []models.CandidateTally{},
	}
	seen := make(map[string]struct{}, len(ordered))
	index := make(map[string]int)
	dropped := 0
	for _, r := range ordered {
		if _, ok := seen[r.VoterID]; ok {
			dropped++
			continue
		}
		seen[r.VoterID] = struct{}{}
		i, ok := index[r.CandidateID]
		if !ok {
			i = len(tally.PerCandidate)
			index[r.CandidateID] = i
			tally.PerCandidate = append(tally.PerCandidate, models.CandidateTally{
				CandidateID: r.CandidateID,
				VoterIDs:    []string{},
			})
		}
		c := &tally.PerCandidate[i]
		c.Votes++
		c.VoterIDs = append(c.VoterIDs, r.VoterID)
		tally.TotalVotes++
	}
	return tally, dropped
}

// Tally recomputes the election tally from its ledger.
func (s *ElectionService) Tally(ctx context.Context, electionID string) (models.Tally, error) {
	electionID = strings.TrimSpace(electionID)
	if err := validateIDs(electionID); err != nil {
		return models.Tally{}, err
	}
	if _, err := s.GetElection(ctx, electionID); err != nil {
		return models.Tally{}, err
	}
	tally, _, err := s.tally(ctx, electionID)
	return tally, err
}

// tally also returns the head of the records it was computed from. A tally
// that fails Verify is never returned.
func (s *ElectionService) tally(ctx context.Context, electionID string) (models.Tally, models.LedgerHead, error) {
	records, err := s.store.ListVotes(ctx, electionID)
	if err != nil {
		s.l.Error("failed to list votes", zap.String("election_id", electionID), zap.Error(err))
		return models.Tally{}, models.LedgerHead{}, fmt.Errorf("service: failed to tally: %w", err)
	}
	tally, dropped := ComputeTally(electionID, records)
	if dropped > 0 {
		s.metrics.corruptedTallies.Inc()
		s.l.Error("duplicate vote records ignored",
			zap.String("election_id", electionID),
			zap.Int("dropped", dropped))
	}
	if err := tally.Verify(); err != nil {
		s.metrics.corruptedTallies.Inc()
		s.l.Error("tally failed verification",
			zap.String("election_id", electionID),
			zap.Int("records", len(records)),
			zap.Error(err))
		return models.Tally{}, models.LedgerHead{}, fmt.Errorf("service: failed to tally: %w", err)
	}
	return tally, models.HeadOf(records), nil
}
