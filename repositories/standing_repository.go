package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var ErrStandingNotFound = errors.New("championship standing not found")

// StandingRepository owns the derived championship_standings table.
// Rebuilds delete the championship scope and insert the fresh ranking in
// the same transaction.
type StandingRepository interface {
	DeleteByChampionshipID(ctx context.Context, tx *gorm.DB, championshipID int) error
	BatchCreate(ctx context.Context, tx *gorm.DB, standings []models.ChampionshipStanding) error
	ListByChampionship(ctx context.Context, championshipID int) ([]models.ChampionshipStanding, error)
	GetByChampionshipAndDriver(ctx context.Context, championshipID int, driverID string) (*models.ChampionshipStanding, error)
}

type gormStandingRepository struct {
	db *gorm.DB
}

func NewGormStandingRepository(db *gorm.DB) StandingRepository {
	return &gormStandingRepository{db: db}
}

func (r *gormStandingRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormStandingRepository) DeleteByChampionshipID(ctx context.Context, tx *gorm.DB, championshipID int) error {
	return r.handle(tx).WithContext(ctx).
		Delete(&models.ChampionshipStanding{}, "championship_id = ?", championshipID).Error
}

func (r *gormStandingRepository) BatchCreate(ctx context.Context, tx *gorm.DB, standings []models.ChampionshipStanding) error {
	if len(standings) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(standings, insertBatchSize).Error
}

func (r *gormStandingRepository) ListByChampionship(ctx context.Context, championshipID int) ([]models.ChampionshipStanding, error) {
	standings := make([]models.ChampionshipStanding, 0)
	err := r.db.WithContext(ctx).
		Where("championship_id = ?", championshipID).
		Order("position ASC").
		Find(&standings).Error
	if err != nil {
		return nil, err
	}
	return standings, nil
}

func (r *gormStandingRepository) GetByChampionshipAndDriver(ctx context.Context, championshipID int, driverID string) (*models.ChampionshipStanding, error) {
	var standing models.ChampionshipStanding
	err := r.db.WithContext(ctx).
		First(&standing, "championship_id = ? AND driver_id = ?", championshipID, driverID).Error
	if err != nil {
		return nil, translateNotFound(err, ErrStandingNotFound)
	}
	return &standing, nil
}
