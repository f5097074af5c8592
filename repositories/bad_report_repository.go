package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accstats/accstats/models"
)

var ErrBadReportDuplicate = errors.New("bad driver report already recorded")

type BadReportRepository interface {
	// Create inserts one reporter→reported row. A second report for the
	// same pair returns ErrBadReportDuplicate and changes nothing, without
	// poisoning a surrounding transaction.
	Create(ctx context.Context, tx *gorm.DB, report *models.BadDriverReport) error
	CountDistinctReporters(ctx context.Context, tx *gorm.DB, reportedID string) (int, error)
	ListByReported(ctx context.Context, reportedID string) ([]models.BadDriverReport, error)
}

type gormBadReportRepository struct {
	db *gorm.DB
}

func NewGormBadReportRepository(db *gorm.DB) BadReportRepository {
	return &gormBadReportRepository{db: db}
}

func (r *gormBadReportRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormBadReportRepository) Create(ctx context.Context, tx *gorm.DB, report *models.BadDriverReport) error {
	res := r.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reporter_id"}, {Name: "reported_id"}},
			DoNothing: true,
		}).
		Create(report)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBadReportDuplicate
	}
	return nil
}

func (r *gormBadReportRepository) CountDistinctReporters(ctx context.Context, tx *gorm.DB, reportedID string) (int, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&models.BadDriverReport{}).
		Where("reported_id = ?", reportedID).
		Distinct("reporter_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *gormBadReportRepository) ListByReported(ctx context.Context, reportedID string) ([]models.BadDriverReport, error) {
	reports := make([]models.BadDriverReport, 0)
	err := r.db.WithContext(ctx).
		Where("reported_id = ?", reportedID).
		Order("created_at ASC").Order("id ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

