package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

// CompetitionResultRepository owns the two derived per-competition tables.
// Writers always clear the competition scope first, so both tables only
// ever hold the output of the latest scoring run.
type CompetitionResultRepository interface {
	DeleteByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) error
	BatchInsertSessionRows(ctx context.Context, tx *gorm.DB, rows []models.CompetitionSessionResult) error
	BatchInsertTotals(ctx context.Context, tx *gorm.DB, rows []models.CompetitionResult) error
	ListSessionRowsByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.CompetitionSessionResult, error)
	ListTotalsByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.CompetitionResult, error)
}

type gormCompetitionResultRepository struct {
	db *gorm.DB
}

func NewGormCompetitionResultRepository(db *gorm.DB) CompetitionResultRepository {
	return &gormCompetitionResultRepository{db: db}
}

func (r *gormCompetitionResultRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormCompetitionResultRepository) DeleteByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) error {
	h := r.handle(tx).WithContext(ctx)
	if err := h.Delete(&models.CompetitionSessionResult{}, "competition_id = ?", competitionID).Error; err != nil {
		return err
	}
	return h.Delete(&models.CompetitionResult{}, "competition_id = ?", competitionID).Error
}

func (r *gormCompetitionResultRepository) BatchInsertSessionRows(ctx context.Context, tx *gorm.DB, rows []models.CompetitionSessionResult) error {
	if len(rows) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *gormCompetitionResultRepository) BatchInsertTotals(ctx context.Context, tx *gorm.DB, rows []models.CompetitionResult) error {
	if len(rows) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *gormCompetitionResultRepository) ListSessionRowsByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.CompetitionSessionResult, error) {
	rows := make([]models.CompetitionSessionResult, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("session_id ASC").Order("position ASC NULLS LAST").Order("driver_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormCompetitionResultRepository) ListTotalsByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.CompetitionResult, error) {
	rows := make([]models.CompetitionResult, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("total_points DESC").Order("driver_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
