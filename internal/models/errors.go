package models

import "errors"

var (
	ErrElectionNotFound    = errors.New("election is not found")
	ErrCandidateNotFound   = errors.New("candidate is not found")
	ErrVoterNotFound       = errors.New("voter is not found")
	ErrPartyNotFound       = errors.New("party is not found")
	ErrVoteNotFound        = errors.New("vote is not found")
	ErrFailedToProcessData = errors.New("failed to process data")
	ErrInvalidID           = errors.New("invalid election, candidate or voter id")
	ErrInvalidElection     = errors.New("election name and location are required")
	ErrInvalidWindow       = errors.New("election start time must not be after end time")
	ErrInvalidVoter        = errors.New("voter location is required")
	ErrInvalidParty        = errors.New("party name is required")

	// eligibility rejections
	ErrElectionNotStarted     = errors.New("election has not started yet")
	ErrElectionEnded          = errors.New("election has ended")
	ErrCandidateNotInElection = errors.New("candidate not found in this election")
	ErrCandidateUnverified    = errors.New("candidate is not verified")
	ErrLocationMismatch       = errors.New("you can only vote in elections for your registered location")
	ErrVoterIneligible        = errors.New("voter is not eligible to vote")

	ErrAlreadyVoted = errors.New("you have already voted in this election")

	// storage failures
	ErrWriteConflict      = errors.New("write conflict")
	ErrPersistenceFailure = errors.New("failed to persist vote")
	ErrCorruptedLedger    = errors.New("vote ledger is inconsistent")
	ErrCacheMiss          = errors.New("results are not cached")
)

// IsRejection reports whether err is an expected, user-facing outcome of a
// vote attempt rather than a system failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrElectionNotStarted,
		ErrElectionEnded,
		ErrCandidateNotInElection,
		ErrCandidateUnverified,
		ErrLocationMismatch,
		ErrVoterIneligible,
		ErrAlreadyVoted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
