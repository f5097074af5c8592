package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var ErrSessionNotFound = errors.New("session not found")

const insertBatchSize = 200

// SessionFilter narrows List. Zero values mean "no constraint".
type SessionFilter struct {
	TrackName     string
	SessionType   string
	CompetitionID *int
	Unassigned    bool // only sessions without a competition
	Limit         int
	Offset        int
}

type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
	List(ctx context.Context, filter SessionFilter) ([]models.Session, error)
	// ListUnassigned returns grouping candidates in cluster order.
	ListUnassigned(ctx context.Context, tx *gorm.DB) ([]models.Session, error)
	// ListByCompetition returns a competition's sessions in running order.
	ListByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.Session, error)
	AssignCompetition(ctx context.Context, tx *gorm.DB, sessionID string, competitionID int, order int, autoAssigned bool) error
	UnassignByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) error
	// HasTypeInCompetition reports whether the competition already holds a
	// session of the given normalized type.
	HasTypeInCompetition(ctx context.Context, competitionID int, sessionType string) (bool, error)

	BatchInsertResults(ctx context.Context, tx *gorm.DB, results []models.SessionResult) error
	BatchInsertLaps(ctx context.Context, tx *gorm.DB, laps []models.Lap) error
	BatchInsertPenalties(ctx context.Context, tx *gorm.DB, penalties []models.Penalty) error
	// ListResults returns a session's leaderboard rows, classified rows
	// first in position order, unclassified rows after them.
	ListResults(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.SessionResult, error)
	ListLaps(ctx context.Context, sessionID string) ([]models.Lap, error)
	ListPenalties(ctx context.Context, sessionID string) ([]models.Penalty, error)
}

type gormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormSessionRepository) Create(ctx context.Context, tx *gorm.DB, session *models.Session) error {
	return r.handle(tx).WithContext(ctx).Create(session).Error
}

func (r *gormSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).First(&session, "session_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrSessionNotFound)
	}
	return &session, nil
}

func (r *gormSessionRepository) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("filename = ?", filename).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormSessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	q := r.db.WithContext(ctx).Model(&models.Session{})
	if filter.TrackName != "" {
		q = q.Where("track_name = ?", filter.TrackName)
	}
	if filter.SessionType != "" {
		q = q.Where("session_type = ?", filter.SessionType)
	}
	if filter.CompetitionID != nil {
		q = q.Where("competition_id = ?", *filter.CompetitionID)
	}
	if filter.Unassigned {
		q = q.Where("competition_id IS NULL")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	sessions := make([]models.Session, 0)
	if err := q.Order("session_date DESC").Order("session_id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gormSessionRepository) ListUnassigned(ctx context.Context, tx *gorm.DB) ([]models.Session, error) {
	sessions := make([]models.Session, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("competition_id IS NULL").
		Order("session_date ASC").Order("track_name ASC").Order("session_id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gormSessionRepository) ListByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) ([]models.Session, error) {
	sessions := make([]models.Session, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("session_order ASC").Order("session_date ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gormSessionRepository) AssignCompetition(ctx context.Context, tx *gorm.DB, sessionID string, competitionID int, order int, autoAssigned bool) error {
	res := r.handle(tx).WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"competition_id":     competitionID,
			"session_order":      order,
			"is_autoassign_comp": autoAssigned,
		})
	return checkAffectedRows(res, ErrSessionNotFound)
}

func (r *gormSessionRepository) UnassignByCompetition(ctx context.Context, tx *gorm.DB, competitionID int) error {
	return r.handle(tx).WithContext(ctx).
		Model(&models.Session{}).
		Where("competition_id = ?", competitionID).
		Updates(map[string]interface{}{
			"competition_id":     nil,
			"session_order":      0,
			"is_autoassign_comp": false,
		}).Error
}

func (r *gormSessionRepository) HasTypeInCompetition(ctx context.Context, competitionID int, sessionType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("competition_id = ? AND session_type = ?", competitionID, sessionType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormSessionRepository) BatchInsertResults(ctx context.Context, tx *gorm.DB, results []models.SessionResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(results, insertBatchSize).Error
}

func (r *gormSessionRepository) BatchInsertLaps(ctx context.Context, tx *gorm.DB, laps []models.Lap) error {
	if len(laps) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(laps, insertBatchSize).Error
}

func (r *gormSessionRepository) BatchInsertPenalties(ctx context.Context, tx *gorm.DB, penalties []models.Penalty) error {
	if len(penalties) == 0 {
		return nil
	}
	return r.handle(tx).WithContext(ctx).CreateInBatches(penalties, insertBatchSize).Error
}

func (r *gormSessionRepository) ListResults(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.SessionResult, error) {
	results := make([]models.SessionResult, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC NULLS LAST").Order("driver_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *gormSessionRepository) ListLaps(ctx context.Context, sessionID string) ([]models.Lap, error) {
	laps := make([]models.Lap, 0)
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("lap_number ASC").Order("id ASC").
		Find(&laps).Error
	if err != nil {
		return nil, err
	}
	return laps, nil
}

func (r *gormSessionRepository) ListPenalties(ctx context.Context, sessionID string) ([]models.Penalty, error) {
	penalties := make([]models.Penalty, 0)
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&penalties).Error
	if err != nil {
		return nil, err
	}
	return penalties, nil
}
