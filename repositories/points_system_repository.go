package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var (
	ErrPointsSystemNotFound     = errors.New("points system not found")
	ErrPointsSystemNameConflict = errors.New("points system name already in use")
)

type PointsSystemRepository interface {
	Create(ctx context.Context, system *models.PointsSystem) error
	GetByID(ctx context.Context, id int) (*models.PointsSystem, error)
	GetByName(ctx context.Context, name string) (*models.PointsSystem, error)
	List(ctx context.Context, activeOnly bool) ([]models.PointsSystem, error)
	Update(ctx context.Context, system *models.PointsSystem) error
	SetActive(ctx context.Context, id int, active bool) error
}

type gormPointsSystemRepository struct {
	db *gorm.DB
}

func NewGormPointsSystemRepository(db *gorm.DB) PointsSystemRepository {
	return &gormPointsSystemRepository{db: db}
}

func (r *gormPointsSystemRepository) Create(ctx context.Context, system *models.PointsSystem) error {
	err := r.db.WithContext(ctx).Create(system).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPointsSystemNameConflict
		}
		return err
	}
	return nil
}

func (r *gormPointsSystemRepository) GetByID(ctx context.Context, id int) (*models.PointsSystem, error) {
	var system models.PointsSystem
	err := r.db.WithContext(ctx).First(&system, "system_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrPointsSystemNotFound)
	}
	return &system, nil
}

func (r *gormPointsSystemRepository) GetByName(ctx context.Context, name string) (*models.PointsSystem, error) {
	var system models.PointsSystem
	err := r.db.WithContext(ctx).First(&system, "name = ?", name).Error
	if err != nil {
		return nil, translateNotFound(err, ErrPointsSystemNotFound)
	}
	return &system, nil
}

func (r *gormPointsSystemRepository) List(ctx context.Context, activeOnly bool) ([]models.PointsSystem, error) {
	q := r.db.WithContext(ctx).Model(&models.PointsSystem{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	systems := make([]models.PointsSystem, 0)
	if err := q.Order("name ASC").Find(&systems).Error; err != nil {
		return nil, err
	}
	return systems, nil
}

func (r *gormPointsSystemRepository) Update(ctx context.Context, system *models.PointsSystem) error {
	res := r.db.WithContext(ctx).
		Model(&models.PointsSystem{}).
		Where("system_id = ?", system.SystemID).
		Updates(map[string]interface{}{
			"name":                          system.Name,
			"description":                   system.Description,
			"position_points_json":          system.PositionPoints,
			"pole_position_points":          system.PolePositionPoints,
			"fastest_lap_points":            system.FastestLapPoints,
			"minimum_classified_percentage": system.MinimumClassifiedPercentage,
			"points_for_unclassified":       system.PointsForUnclassified,
			"drop_worst_results":            system.DropWorstResults,
			"is_active":                     system.IsActive,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrPointsSystemNameConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPointsSystemNotFound
	}
	return nil
}

func (r *gormPointsSystemRepository) SetActive(ctx context.Context, id int, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.PointsSystem{}).
		Where("system_id = ?", id).
		Update("is_active", active)
	return checkAffectedRows(res, ErrPointsSystemNotFound)
}
