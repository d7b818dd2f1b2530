package sqlite

import (
	"time"

	"github.com/jaam8/election_ledger/internal/models"
)

type electionRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"not null"`
	Location    string `gorm:"not null"`
	Description string
	StartTime   time.Time `gorm:"not null"`
	EndTime     time.Time `gorm:"not null"`
	IsCompleted bool      `gorm:"not null;default:false"`
}

func (electionRow) TableName() string {
	return "elections"
}

type electionCandidateRow struct {
	ElectionID  string `gorm:"primaryKey;size:64"`
	CandidateID string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"not null"`
}

func (electionCandidateRow) TableName() string {
	return "election_candidates"
}

type candidateRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	UserID     string
	PartyID    string `gorm:"index"`
	IsVerified bool   `gorm:"not null"`
	IsApproved bool   `gorm:"not null"`
}

func (candidateRow) TableName() string {
	return "candidates"
}

type voterRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	Location   string `gorm:"not null"`
	Age        int    `gorm:"not null"`
	IsApproved bool   `gorm:"not null"`
}

func (voterRow) TableName() string {
	return "voters"
}

type partyRow struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string `gorm:"not null"`
}

func (partyRow) TableName() string {
	return "parties"
}

// voteRow is one ledger entry. idx_election_voter enforces one vote per voter
// and election at the storage layer.
type voteRow struct {
	ID              string    `gorm:"primaryKey;size:64"`
	ElectionID      string    `gorm:"size:64;not null;uniqueIndex:idx_election_voter,priority:1;index:idx_election_seq,priority:1"`
	VoterID         string    `gorm:"size:64;not null;uniqueIndex:idx_election_voter,priority:2"`
	CandidateID     string    `gorm:"size:64;not null"`
	Seq             int64     `gorm:"not null;index:idx_election_seq,priority:2"`
	CastAt          time.Time `gorm:"not null"`
	NotarizationRef string
}

func (voteRow) TableName() string {
	return "vote_records"
}

var migrateModels = []any{
	&electionRow{},
	&electionCandidateRow{},
	&candidateRow{},
	&voterRow{},
	&partyRow{},
	&voteRow{},
}

func (r *voteRow) toModel() models.VoteRecord {
	return models.VoteRecord{
		ID:              r.ID,
		ElectionID:      r.ElectionID,
		CandidateID:     r.CandidateID,
		VoterID:         r.VoterID,
		Seq:             r.Seq,
		CastAt:          r.CastAt.UTC(),
		NotarizationRef: r.NotarizationRef,
	}
}

func voteRowFromModel(v *models.VoteRecord) *voteRow {
	return &voteRow{
		ID:              v.ID,
		ElectionID:      v.ElectionID,
		VoterID:         v.VoterID,
		CandidateID:     v.CandidateID,
		Seq:             v.Seq,
		CastAt:          v.CastAt.UTC(),
		NotarizationRef: v.NotarizationRef,
	}
}

func (r *electionRow) toModel(candidates []string) *models.Election {
	return &models.Election{
		ID:          r.ID,
		Name:        r.Name,
		Where:       r.Location,
		Description: r.Description,
		StartTime:   r.StartTime.UTC(),
		EndTime:     r.EndTime.UTC(),
		Candidates:  candidates,
		IsCompleted: r.IsCompleted,
	}
}
