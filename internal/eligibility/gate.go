// Package eligibility decides whether a vote attempt is permissible. It works
// on snapshots loaded by the caller and performs no I/O.
package eligibility

import (
	"strings"
	"time"

	"github.com/jaam8/election_ledger/internal/models"
)

type Reason string

const (
	ElectionNotFound       Reason = "ElectionNotFound"
	NotStarted             Reason = "NotStarted"
	Ended                  Reason = "Ended"
	CandidateNotInElection Reason = "CandidateNotInElection"
	CandidateUnverified    Reason = "CandidateUnverified"
	LocationMismatch       Reason = "LocationMismatch"
	VoterIneligible        Reason = "VoterIneligible"
)

var reasonErrors = map[Reason]error{
	ElectionNotFound:       models.ErrElectionNotFound,
	NotStarted:             models.ErrElectionNotStarted,
	Ended:                  models.ErrElectionEnded,
	CandidateNotInElection: models.ErrCandidateNotInElection,
	CandidateUnverified:    models.ErrCandidateUnverified,
	LocationMismatch:       models.ErrLocationMismatch,
	VoterIneligible:        models.ErrVoterIneligible,
}

// Err maps the reason to its sentinel error.
func (r Reason) Err() error {
	return reasonErrors[r]
}

type Decision struct {
	Admitted bool
	Reason   Reason
}

// Err returns nil for an admitted decision and the reason's sentinel otherwise.
func (d Decision) Err() error {
	if d.Admitted {
		return nil
	}
	return d.Reason.Err()
}

func admit() Decision { return Decision{Admitted: true} }

func reject(r Reason) Decision { return Decision{Reason: r} }

// Check evaluates a vote attempt. The first failing rule decides the reason.
// The voting window is inclusive on both ends.
func Check(election *models.Election, voter *models.Voter, candidate *models.Candidate, now time.Time) Decision {
	if election == nil {
		return reject(ElectionNotFound)
	}
	switch models.PhaseAt(election, now) {
	case models.PhaseScheduled:
		return reject(NotStarted)
	case models.PhaseClosed, models.PhaseCompleted:
		return reject(Ended)
	}
	if candidate == nil || !election.HasCandidate(candidate.ID) {
		return reject(CandidateNotInElection)
	}
	if !candidate.Votable() {
		return reject(CandidateUnverified)
	}
	if voter == nil {
		return reject(VoterIneligible)
	}
	if !SameLocation(voter.Location, election.Where) {
		return reject(LocationMismatch)
	}
	if !voter.IsApproved || voter.Age < models.MinimumVotingAge {
		return reject(VoterIneligible)
	}
	return admit()
}

// SameLocation compares two location labels ignoring case and surrounding
// whitespace.
func SameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
