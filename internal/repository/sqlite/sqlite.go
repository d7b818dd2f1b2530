// Package sqlite stores the election ledger in SQLite through gorm. One vote
// per voter and election is enforced by a unique index, so the duplicate check
// and the insert are the same statement.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
	l  *zap.Logger
}

// New migrates the schema and returns the store.
func New(db *gorm.DB, l *zap.Logger) (*Store, error) {
	for _, model := range migrateModels {
		l.Debug("creating table", zap.String("model", fmt.Sprintf("%T", model)))
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("repository: migrate %T: %w", model, err)
		}
	}
	return &Store{db: db, l: l}, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func (s *Store) CreateElection(ctx context.Context, election *models.Election) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &electionRow{
			ID:          election.ID,
			Name:        election.Name,
			Location:    election.Where,
			Description: election.Description,
			StartTime:   election.StartTime.UTC(),
			EndTime:     election.EndTime.UTC(),
			IsCompleted: election.IsCompleted,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		for i, candidateID := range election.Candidates {
			link := &electionCandidateRow{ElectionID: election.ID, CandidateID: candidateID, Position: i}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.l.Debug("error inserting election", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	return nil
}

func (s *Store) roster(tx *gorm.DB, electionID string) ([]string, error) {
	var links []electionCandidateRow
	if err := tx.Where("election_id = ?", electionID).Order("position, candidate_id").Find(&links).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		out = append(out, link.CandidateID)
	}
	return out, nil
}

func (s *Store) GetElection(ctx context.Context, electionID string) (*models.Election, error) {
	db := s.db.WithContext(ctx)
	var row electionRow
	if err := db.Where("id = ?", electionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.l.Debug("election not found", zap.String("election_id", electionID))
			return nil, models.ErrElectionNotFound
		}
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	candidates, err := s.roster(db, electionID)
	if err != nil {
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return row.toModel(candidates), nil
}

func (s *Store) ListElections(ctx context.Context) ([]models.Election, error) {
	db := s.db.WithContext(ctx)
	var rows []electionRow
	if err := db.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	out := make([]models.Election, 0, len(rows))
	for i := range rows {
		candidates, err := s.roster(db, rows[i].ID)
		if err != nil {
			return nil, fmt.Errorf("repository: database select error: %w", err)
		}
		out = append(out, *rows[i].toModel(candidates))
	}
	return out, nil
}

func (s *Store) AddCandidate(ctx context.Context, electionID, candidateID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&electionRow{}).Where("id = ?", electionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrElectionNotFound
		}
		var position int
		if err := tx.Model(&electionCandidateRow{}).
			Where("election_id = ?", electionID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&position).Error; err != nil {
			return err
		}
		link := &electionCandidateRow{ElectionID: electionID, CandidateID: candidateID, Position: position}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrElectionNotFound) {
			return err
		}
		s.l.Debug("failed to add candidate", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	return nil
}

func (s *Store) SetCompleted(ctx context.Context, electionID string, completed bool) error {
	result := s.db.WithContext(ctx).Model(&electionRow{}).
		Where("id = ?", electionID).
		Update("is_completed", completed)
	if result.Error != nil {
		s.l.Debug("failed to update election", zap.Error(result.Error))
		return fmt.Errorf("repository: database update error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrElectionNotFound
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, row any) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		s.l.Debug("failed to upsert", zap.String("model", fmt.Sprintf("%T", row)), zap.Error(err))
		return fmt.Errorf("repository: database upsert error: %w", err)
	}
	return nil
}

func (s *Store) SaveVoter(ctx context.Context, voter *models.Voter) error {
	return s.upsert(ctx, &voterRow{
		ID:         voter.ID,
		Location:   voter.Location,
		Age:        voter.Age,
		IsApproved: voter.IsApproved,
	})
}

func (s *Store) GetVoter(ctx context.Context, voterID string) (*models.Voter, error) {
	var row voterRow
	if err := s.db.WithContext(ctx).Where("id = ?", voterID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrVoterNotFound
		}
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return &models.Voter{ID: row.ID, Location: row.Location, Age: row.Age, IsApproved: row.IsApproved}, nil
}

func (s *Store) SaveCandidate(ctx context.Context, candidate *models.Candidate) error {
	return s.upsert(ctx, &candidateRow{
		ID:         candidate.ID,
		UserID:     candidate.UserID,
		PartyID:    candidate.PartyID,
		IsVerified: candidate.IsVerified,
		IsApproved: candidate.IsApproved,
	})
}

func (s *Store) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var row candidateRow
	if err := s.db.WithContext(ctx).Where("id = ?", candidateID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrCandidateNotFound
		}
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return &models.Candidate{
		ID:         row.ID,
		UserID:     row.UserID,
		PartyID:    row.PartyID,
		IsVerified: row.IsVerified,
		IsApproved: row.IsApproved,
	}, nil
}

func (s *Store) SaveParty(ctx context.Context, party *models.Party) error {
	return s.upsert(ctx, &partyRow{ID: party.ID, Name: party.Name})
}

func (s *Store) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	var row partyRow
	if err := s.db.WithContext(ctx).Where("id = ?", partyID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPartyNotFound
		}
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return &models.Party{ID: row.ID, Name: row.Name}, nil
}

func (s *Store) AppendVote(ctx context.Context, record *models.VoteRecord) error {
	err := s.db.WithContext(ctx).Create(voteRowFromModel(record)).Error
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		s.l.Debug("vote already exist",
			zap.String("election_id", record.ElectionID),
			zap.String("voter_id", record.VoterID))
		return models.ErrAlreadyVoted
	case isBusy(err):
		s.l.Debug("database busy", zap.Error(err))
		return fmt.Errorf("repository: %w: %v", models.ErrWriteConflict, err)
	default:
		s.l.Debug("failed to insert vote", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
}

func (s *Store) FindVote(ctx context.Context, electionID, voterID string) (*models.VoteRecord, error) {
	var row voteRow
	err := s.db.WithContext(ctx).
		Where("election_id = ? AND voter_id = ?", electionID, voterID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrVoteNotFound
		}
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	record := row.toModel()
	return &record, nil
}

func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.VoteRecord, error) {
	var rows []voteRow
	err := s.db.WithContext(ctx).
		Where("election_id = ?", electionID).
		Order("seq, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	out := make([]models.VoteRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *Store) CountVotes(ctx context.Context, electionID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&voteRow{}).Where("election_id = ?", electionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("repository: database count error: %w", err)
	}
	return int(count), nil
}

func (s *Store) LedgerHead(ctx context.Context, electionID string) (models.LedgerHead, error) {
	var head struct {
		Count   int64
		LastSeq int64
	}
	err := s.db.WithContext(ctx).Model(&voteRow{}).
		Select("COUNT(*) AS count, COALESCE(MAX(seq), 0) AS last_seq").
		Where("election_id = ?", electionID).
		Scan(&head).Error
	if err != nil {
		return models.LedgerHead{}, fmt.Errorf("repository: database select error: %w", err)
	}
	return models.LedgerHead{Count: int(head.Count), LastSeq: head.LastSeq}, nil
}

func (s *Store) ClearVotes(ctx context.Context, electionID string) (int, error) {
	result := s.db.WithContext(ctx).Where("election_id = ?", electionID).Delete(&voteRow{})
	if result.Error != nil {
		s.l.Debug("failed to delete votes", zap.Error(result.Error))
		return 0, fmt.Errorf("repository: database delete error: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
