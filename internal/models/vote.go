package models

import "time"

// VoteRecord is a single ledger entry. It is written once and never updated.
type VoteRecord struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"election_id"`
	CandidateID string    `json:"candidate_id"`
	VoterID     string    `json:"voter_id"`
	Seq         int64     `json:"seq"`
	CastAt      time.Time `json:"cast_at"`
	// NotarizationRef is an opaque, advisory reference such as a transaction
	// hash supplied by the caller. It is never validated.
	NotarizationRef string `json:"notarization_ref,omitempty"`
}

type CastVoteRequest struct {
	ElectionID      string `json:"election_id"`
	CandidateID     string `json:"candidate_id"`
	VoterID         string `json:"voter_id"`
	NotarizationRef string `json:"notarization_ref,omitempty"`
}

// LedgerHead identifies the state of an election's ledger. Seq increases
// monotonically, so a ledger refilled after a reset does not repeat an
// earlier head.
type LedgerHead struct {
	Count   int   `json:"count"`
	LastSeq int64 `json:"last_seq"`
}

// HeadOf returns the head of records, which must belong to one election.
func HeadOf(records []VoteRecord) LedgerHead {
	head := LedgerHead{Count: len(records)}
	for _, r := range records {
		head.LastSeq = max(head.LastSeq, r.Seq)
	}
	return head
}

type CandidateTally struct {
	CandidateID string   `json:"candidate_id"`
	Votes       int      `json:"votes"`
	VoterIDs    []string `json:"voter_ids"`
}

// Tally is derived from the vote records of one election. PerCandidate is
// ordered by the arrival of each candidate's first vote.
type Tally struct {
	ElectionID   string           `json:"election_id"`
	TotalVotes   int              `json:"total_votes"`
	PerCandidate []CandidateTally `json:"per_candidate"`
}

// Verify checks that the tally is exactly reconstructible: the total equals
// the sum of candidate votes, each count equals its voter list length and no
// voter appears twice.
func (t *Tally) Verify() error {
	sum := 0
	seen := make(map[string]struct{}, t.TotalVotes)
	for _, c := range t.PerCandidate {
		if c.Votes != len(c.VoterIDs) {
			return ErrCorruptedLedger
		}
		sum += c.Votes
		for _, v := range c.VoterIDs {
			if _, ok := seen[v]; ok {
				return ErrCorruptedLedger
			}
			seen[v] = struct{}{}
		}
	}
	if sum != t.TotalVotes {
		return ErrCorruptedLedger
	}
	return nil
}
