package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var ErrManualPenaltyNotFound = errors.New("manual penalty not found")

type ManualPenaltyRepository interface {
	Create(ctx context.Context, penalty *models.ManualPenalty) error
	GetByID(ctx context.Context, id int) (*models.ManualPenalty, error)
	ListByChampionship(ctx context.Context, championshipID int, activeOnly bool) ([]models.ManualPenalty, error)
	Deactivate(ctx context.Context, id int) error
	// ActiveSumsByDriver totals active penalty points per driver for one
	// championship.
	ActiveSumsByDriver(ctx context.Context, tx *gorm.DB, championshipID int) (map[string]float64, error)
}

type gormManualPenaltyRepository struct {
	db *gorm.DB
}

func NewGormManualPenaltyRepository(db *gorm.DB) ManualPenaltyRepository {
	return &gormManualPenaltyRepository{db: db}
}

func (r *gormManualPenaltyRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormManualPenaltyRepository) Create(ctx context.Context, penalty *models.ManualPenalty) error {
	return r.db.WithContext(ctx).Create(penalty).Error
}

func (r *gormManualPenaltyRepository) GetByID(ctx context.Context, id int) (*models.ManualPenalty, error) {
	var penalty models.ManualPenalty
	err := r.db.WithContext(ctx).First(&penalty, "penalty_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrManualPenaltyNotFound)
	}
	return &penalty, nil
}

func (r *gormManualPenaltyRepository) ListByChampionship(ctx context.Context, championshipID int, activeOnly bool) ([]models.ManualPenalty, error) {
	q := r.db.WithContext(ctx).Where("championship_id = ?", championshipID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	penalties := make([]models.ManualPenalty, 0)
	if err := q.Order("applied_at DESC").Order("penalty_id DESC").Find(&penalties).Error; err != nil {
		return nil, err
	}
	return penalties, nil
}

func (r *gormManualPenaltyRepository) Deactivate(ctx context.Context, id int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ManualPenalty{}).
		Where("penalty_id = ?", id).
		Update("is_active", false)
	return checkAffectedRows(res, ErrManualPenaltyNotFound)
}

func (r *gormManualPenaltyRepository) ActiveSumsByDriver(ctx context.Context, tx *gorm.DB, championshipID int) (map[string]float64, error) {
	var rows []struct {
		DriverID string
		Total    float64
	}
	err := r.handle(tx).WithContext(ctx).
		Model(&models.ManualPenalty{}).
		Select("driver_id, SUM(penalty_points) AS total").
		Where("championship_id = ? AND is_active = ?", championshipID, true).
		Group("driver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64, len(rows))
	for _, row := range rows {
		sums[row.DriverID] = row.Total
	}
	return sums, nil
}
