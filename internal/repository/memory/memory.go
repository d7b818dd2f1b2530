// Package memory is an in-process store. Votes of one election are guarded by
// a single mutex, so the duplicate check and the append happen together.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"go.uber.org/zap"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	elections  map[string]*models.Election
	voters     map[string]models.Voter
	candidates map[string]models.Candidate
	parties    map[string]models.Party
	votes      map[string][]models.VoteRecord
	// voted indexes votes by election then voter
	voted map[string]map[string]int
	l     *zap.Logger
}

func New(l *zap.Logger) *Store {
	return &Store{
		elections:  make(map[string]*models.Election),
		voters:     make(map[string]models.Voter),
		candidates: make(map[string]models.Candidate),
		parties:    make(map[string]models.Party),
		votes:      make(map[string][]models.VoteRecord),
		voted:      make(map[string]map[string]int),
		l:          l,
	}
}

func cloneElection(e *models.Election) *models.Election {
	c := *e
	c.Candidates = slices.Clone(e.Candidates)
	return &c
}

func (s *Store) CreateElection(_ context.Context, election *models.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[election.ID] = cloneElection(election)
	s.l.Debug("election stored", zap.String("election_id", election.ID))
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[electionID]
	if !ok {
		return nil, models.ErrElectionNotFound
	}
	return cloneElection(e), nil
}

func (s *Store) ListElections(_ context.Context) ([]models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Election, 0, len(s.elections))
	for _, e := range s.elections {
		out = append(out, *cloneElection(e))
	}
	slices.SortFunc(out, func(a, b models.Election) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out, nil
}

func (s *Store) AddCandidate(_ context.Context, electionID, candidateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[electionID]
	if !ok {
		return models.ErrElectionNotFound
	}
	if !e.HasCandidate(candidateID) {
		e.Candidates = append(e.Candidates, candidateID)
	}
	return nil
}

func (s *Store) SetCompleted(_ context.Context, electionID string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[electionID]
	if !ok {
		return models.ErrElectionNotFound
	}
	e.IsCompleted = completed
	return nil
}

func (s *Store) SaveVoter(_ context.Context, voter *models.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[voter.ID] = *voter
	return nil
}

func (s *Store) GetVoter(_ context.Context, voterID string) (*models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voters[voterID]
	if !ok {
		return nil, models.ErrVoterNotFound
	}
	return &v, nil
}

func (s *Store) SaveCandidate(_ context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[candidate.ID] = *candidate
	return nil
}

func (s *Store) GetCandidate(_ context.Context, candidateID string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return nil, models.ErrCandidateNotFound
	}
	return &c, nil
}

func (s *Store) SaveParty(_ context.Context, party *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[party.ID] = *party
	return nil
}

func (s *Store) GetParty(_ context.Context, partyID string) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[partyID]
	if !ok {
		return nil, models.ErrPartyNotFound
	}
	return &p, nil
}

func (s *Store) AppendVote(ctx context.Context, record *models.VoteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byVoter, ok := s.voted[record.ElectionID]
	if !ok {
		byVoter = make(map[string]int)
		s.voted[record.ElectionID] = byVoter
	}
	if _, exists := byVoter[record.VoterID]; exists {
		s.l.Debug("vote already exist",
			zap.String("election_id", record.ElectionID),
			zap.String("voter_id", record.VoterID))
		return models.ErrAlreadyVoted
	}
	byVoter[record.VoterID] = len(s.votes[record.ElectionID])
	s.votes[record.ElectionID] = append(s.votes[record.ElectionID], *record)
	return nil
}

func (s *Store) FindVote(_ context.Context, electionID, voterID string) (*models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.voted[electionID][voterID]
	if !ok {
		return nil, models.ErrVoteNotFound
	}
	record := s.votes[electionID][idx]
	return &record, nil
}

func (s *Store) ListVotes(_ context.Context, electionID string) ([]models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.votes[electionID])
	slices.SortStableFunc(out, func(a, b models.VoteRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) CountVotes(_ context.Context, electionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes[electionID]), nil
}

func (s *Store) LedgerHead(_ context.Context, electionID string) (models.LedgerHead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.HeadOf(s.votes[electionID]), nil
}

func (s *Store) ClearVotes(_ context.Context, electionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.votes[electionID])
	delete(s.votes, electionID)
	delete(s.voted, electionID)
	return n, nil
}

func (s *Store) Close() error {
	return nil
}
