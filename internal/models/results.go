package models

import "fmt"

type Winner struct {
	CandidateIDs []string `json:"candidate_ids"`
	Votes        int      `json:"votes"`
	Tie          bool     `json:"tie"`
	Declared     bool     `json:"declared"`
}

func (w Winner) String() string {
	switch {
	case !w.Declared:
		return "No winner yet"
	case w.Tie:
		return fmt.Sprintf("%d-way tie", len(w.CandidateIDs))
	default:
		return w.CandidateIDs[0]
	}
}

type PartyResult struct {
	PartyID  string `json:"party_id"`
	Name     string `json:"name,omitempty"`
	Votes    int    `json:"votes"`
	Declared bool   `json:"declared"`
}

func (p PartyResult) String() string {
	if !p.Declared {
		return "No party declared"
	}
	if p.Name != "" {
		return p.Name
	}
	return p.PartyID
}

type DistributionEntry struct {
	CandidateID string   `json:"candidate_id"`
	UserID      string   `json:"user_id,omitempty"`
	PartyID     string   `json:"party_id"`
	PartyName   string   `json:"party_name"`
	Votes       int      `json:"votes"`
	Voters      []string `json:"voters"`
}

// ResultsView is the external results payload of an election.
type ResultsView struct {
	ElectionID   string              `json:"election_id"`
	Name         string              `json:"name"`
	Where        string              `json:"where"`
	Phase        Phase               `json:"phase"`
	TotalVotes   int                 `json:"total_votes"`
	Winner       Winner              `json:"winner"`
	WinningParty PartyResult         `json:"winning_party"`
	Distribution []DistributionEntry `json:"distribution"`
	// Ledger is the head of the records the view was built from.
	Ledger LedgerHead `json:"ledger"`
}
