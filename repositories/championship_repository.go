package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var ErrChampionshipNotFound = errors.New("championship not found")

type ChampionshipRepository interface {
	Create(ctx context.Context, championship *models.Championship) error
	GetByID(ctx context.Context, id int) (*models.Championship, error)
	GetAll(ctx context.Context) ([]models.Championship, error)
	Update(ctx context.Context, championship *models.Championship) error
	Delete(ctx context.Context, tx *gorm.DB, id int) error
	SetCompleted(ctx context.Context, id int, completed bool) error
}

type gormChampionshipRepository struct {
	db *gorm.DB
}

func NewGormChampionshipRepository(db *gorm.DB) ChampionshipRepository {
	return &gormChampionshipRepository{db: db}
}

func (r *gormChampionshipRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormChampionshipRepository) Create(ctx context.Context, championship *models.Championship) error {
	return r.db.WithContext(ctx).Create(championship).Error
}

func (r *gormChampionshipRepository) GetByID(ctx context.Context, id int) (*models.Championship, error) {
	var championship models.Championship
	err := r.db.WithContext(ctx).First(&championship, "championship_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrChampionshipNotFound)
	}
	return &championship, nil
}

func (r *gormChampionshipRepository) GetAll(ctx context.Context) ([]models.Championship, error) {
	championships := make([]models.Championship, 0)
	err := r.db.WithContext(ctx).
		Order("season DESC").Order("championship_id DESC").
		Find(&championships).Error
	if err != nil {
		return nil, err
	}
	return championships, nil
}

func (r *gormChampionshipRepository) Update(ctx context.Context, championship *models.Championship) error {
	res := r.db.WithContext(ctx).
		Model(&models.Championship{}).
		Where("championship_id = ?", championship.ChampionshipID).
		Updates(map[string]interface{}{
			"name":         championship.Name,
			"description":  championship.Description,
			"season":       championship.Season,
			"start_date":   championship.StartDate,
			"end_date":     championship.EndDate,
			"is_completed": championship.IsCompleted,
		})
	return checkAffectedRows(res, ErrChampionshipNotFound)
}

func (r *gormChampionshipRepository) Delete(ctx context.Context, tx *gorm.DB, id int) error {
	res := r.handle(tx).WithContext(ctx).Delete(&models.Championship{}, "championship_id = ?", id)
	return checkAffectedRows(res, ErrChampionshipNotFound)
}

func (r *gormChampionshipRepository) SetCompleted(ctx context.Context, id int, completed bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Championship{}).
		Where("championship_id = ?", id).
		Update("is_completed", completed)
	return checkAffectedRows(res, ErrChampionshipNotFound)
}
