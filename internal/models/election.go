package models

import (
	"slices"
	"time"
)

// MinimumVotingAge is the legal voting age, asserted at registration and again
// when a ballot is cast.
const MinimumVotingAge = 18

// NoParty buckets votes of independent candidates and candidates whose party
// is unknown.
const NoParty = "no-party"

type Election struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Where       string    `json:"where"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	// Candidates is the roster of candidate IDs that may receive votes.
	Candidates  []string `json:"candidates"`
	IsCompleted bool     `json:"is_completed"`
}

// HasCandidate reports whether candidateID is on the election roster.
func (e *Election) HasCandidate(candidateID string) bool {
	return slices.Contains(e.Candidates, candidateID)
}

type NewElection struct {
	Name        string    `json:"name"`
	Where       string    `json:"where"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type Candidate struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	PartyID    string `json:"party_id"`
	IsVerified bool   `json:"is_verified"`
	IsApproved bool   `json:"is_approved"`
}

// Votable reports whether the candidate may appear on a ballot.
func (c *Candidate) Votable() bool {
	return c.IsVerified && c.IsApproved
}

type Voter struct {
	ID         string `json:"id"`
	Location   string `json:"location"`
	Age        int    `json:"age"`
	IsApproved bool   `json:"is_approved"`
}

type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Phase is the lifecycle state of an election at a given instant.
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseOpen      Phase = "open"
	PhaseClosed    Phase = "closed"
	PhaseCompleted Phase = "completed"
)

// PhaseAt derives the election phase from the completion flag and the voting
// window. Both window bounds are inclusive.
func PhaseAt(e *Election, now time.Time) Phase {
	switch {
	case e.IsCompleted:
		return PhaseCompleted
	case now.Before(e.StartTime):
		return PhaseScheduled
	case now.After(e.EndTime):
		return PhaseClosed
	default:
		return PhaseOpen
	}
}

// ElectionStats counts elections per phase.
type ElectionStats struct {
	Scheduled int `json:"scheduled"`
	Active    int `json:"active"`
	Closed    int `json:"closed"`
	Completed int `json:"completed"`
}
