package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accstats/accstats/models"
)

var ErrDriverNotFound = errors.New("driver not found")

// DriverFilter narrows List. Zero values mean "no constraint".
type DriverFilter struct {
	Search      string // case-insensitive substring on last_name or driver_id
	MinSessions int
	TrustLevel  *int
	Limit       int
	Offset      int
}

// DriverRecentResult is one row of a driver's session history, joined with
// the session it came from.
type DriverRecentResult struct {
	SessionID   string    `json:"session_id"`
	SessionType string    `json:"session_type"`
	TrackName   string    `json:"track_name"`
	SessionDate time.Time `json:"session_date"`
	Position    *int      `json:"position,omitempty"`
	BestLap     *int      `json:"best_lap,omitempty"`
	LapCount    int       `json:"lap_count"`
}

type DriverRepository interface {
	// Upsert records a sighting. Names and the preferred race number are
	// overwritten by the latest data, first_seen survives from the first
	// row, and total_sessions grows by one only when countSession is set.
	Upsert(ctx context.Context, tx *gorm.DB, driver *models.Driver, countSession bool) error
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	List(ctx context.Context, filter DriverFilter) ([]models.Driver, error)
	// ListForEntrylist applies the OR selection used for server entrylists:
	// enough sessions or enough trust qualifies on its own.
	ListForEntrylist(ctx context.Context, minSessions, minTrust int) ([]models.Driver, error)
	RecentResults(ctx context.Context, id string, limit int) ([]DriverRecentResult, error)
	SetTrustLevel(ctx context.Context, id string, level int) error
	SetBadReportCount(ctx context.Context, tx *gorm.DB, id string, count int) error
	// UpdateIdentity rewrites only the optional identity columns.
	UpdateIdentity(ctx context.Context, id string, shortName *string, raceNumber *int) error
}

type gormDriverRepository struct {
	db *gorm.DB
}

func NewGormDriverRepository(db *gorm.DB) DriverRepository {
	return &gormDriverRepository{db: db}
}

func (r *gormDriverRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormDriverRepository) Upsert(ctx context.Context, tx *gorm.DB, driver *models.Driver, countSession bool) error {
	assignments := map[string]interface{}{
		"last_name":             driver.LastName,
		"short_name":            driver.ShortName,
		"preferred_race_number": driver.PreferredRaceNumber,
		"last_seen":             driver.LastSeen,
		"first_seen":            gorm.Expr("COALESCE(drivers.first_seen, excluded.first_seen)"),
	}
	if countSession {
		assignments["total_sessions"] = gorm.Expr("drivers.total_sessions + 1")
	}

	err := r.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(driver).Error
	if err != nil {
		return fmt.Errorf("failed to upsert driver %s: %w", driver.DriverID, err)
	}
	return nil
}

func (r *gormDriverRepository) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).First(&driver, "driver_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrDriverNotFound)
	}
	return &driver, nil
}

func (r *gormDriverRepository) List(ctx context.Context, filter DriverFilter) ([]models.Driver, error) {
	q := r.db.WithContext(ctx).Model(&models.Driver{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("LOWER(last_name) LIKE LOWER(?) OR LOWER(driver_id) LIKE LOWER(?)", pattern, pattern)
	}
	if filter.MinSessions > 0 {
		q = q.Where("total_sessions >= ?", filter.MinSessions)
	}
	if filter.TrustLevel != nil {
		q = q.Where("trust_level = ?", *filter.TrustLevel)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	drivers := make([]models.Driver, 0)
	if err := q.Order("last_seen DESC NULLS LAST").Order("driver_id ASC").Find(&drivers).Error; err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *gormDriverRepository) ListForEntrylist(ctx context.Context, minSessions, minTrust int) ([]models.Driver, error) {
	drivers := make([]models.Driver, 0)
	err := r.db.WithContext(ctx).
		Where("total_sessions >= ? OR trust_level >= ?", minSessions, minTrust).
		Order("total_sessions DESC").Order("last_name ASC").Order("driver_id ASC").
		Find(&drivers).Error
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *gormDriverRepository) RecentResults(ctx context.Context, id string, limit int) ([]DriverRecentResult, error) {
	rows := make([]DriverRecentResult, 0)
	err := r.db.WithContext(ctx).
		Table("session_results").
		Select("session_results.session_id, sessions.session_type, sessions.track_name, sessions.session_date, session_results.position, session_results.best_lap, session_results.lap_count").
		Joins("JOIN sessions ON sessions.session_id = session_results.session_id").
		Where("session_results.driver_id = ?", id).
		Order("sessions.session_date DESC").Order("session_results.session_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormDriverRepository) SetTrustLevel(ctx context.Context, id string, level int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("driver_id = ?", id).
		Update("trust_level", level)
	return checkAffectedRows(res, ErrDriverNotFound)
}

func (r *gormDriverRepository) SetBadReportCount(ctx context.Context, tx *gorm.DB, id string, count int) error {
	res := r.handle(tx).WithContext(ctx).
		Model(&models.Driver{}).
		Where("driver_id = ?", id).
		Update("bad_driver_reports", count)
	return checkAffectedRows(res, ErrDriverNotFound)
}

func (r *gormDriverRepository) UpdateIdentity(ctx context.Context, id string, shortName *string, raceNumber *int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("driver_id = ?", id).
		Updates(map[string]interface{}{
			"short_name":            shortName,
			"preferred_race_number": raceNumber,
		})
	return checkAffectedRows(res, ErrDriverNotFound)
}
