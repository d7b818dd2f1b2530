// Package repository defines the storage contracts of the election ledger.
// Implementations live in the memory, sqlite and tarantool subpackages.
package repository

import (
	"context"

	"github.com/jaam8/election_ledger/internal/models"
)

type ElectionRepository interface {
	CreateElection(ctx context.Context, election *models.Election) error
	// GetElection returns models.ErrElectionNotFound for an unknown id.
	GetElection(ctx context.Context, electionID string) (*models.Election, error)
	ListElections(ctx context.Context) ([]models.Election, error)
	// AddCandidate appends candidateID to the roster. It is a no-op when the
	// candidate is already present.
	AddCandidate(ctx context.Context, electionID, candidateID string) error
	SetCompleted(ctx context.Context, electionID string, completed bool) error
}

type Directory interface {
	SaveVoter(ctx context.Context, voter *models.Voter) error
	GetVoter(ctx context.Context, voterID string) (*models.Voter, error)
	SaveCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
	SaveParty(ctx context.Context, party *models.Party) error
	GetParty(ctx context.Context, partyID string) (*models.Party, error)
}

// VoteStore persists vote records.
type VoteStore interface {
	// AppendVote inserts the record in one atomic step guarded by a uniqueness
	// constraint on (election, voter). A second record for the same pair
	// fails with models.ErrAlreadyVoted and leaves the store unchanged.
	// Transient contention is reported as models.ErrWriteConflict.
	AppendVote(ctx context.Context, record *models.VoteRecord) error
	// FindVote returns models.ErrVoteNotFound when the voter has not voted.
	FindVote(ctx context.Context, electionID, voterID string) (*models.VoteRecord, error)
	// ListVotes returns the election's records ordered by Seq.
	ListVotes(ctx context.Context, electionID string) ([]models.VoteRecord, error)
	CountVotes(ctx context.Context, electionID string) (int, error)
	// LedgerHead returns the record count and the highest Seq of the election.
	LedgerHead(ctx context.Context, electionID string) (models.LedgerHead, error)
	// ClearVotes removes every record of the election and returns how many
	// were removed.
	ClearVotes(ctx context.Context, electionID string) (int, error)
}

type Store interface {
	ElectionRepository
	Directory
	VoteStore
	Close() error
}
