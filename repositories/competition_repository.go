package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

var ErrCompetitionNotFound = errors.New("competition not found")

// CompetitionFilter narrows List. Zero values mean "no constraint".
type CompetitionFilter struct {
	ChampionshipID *int
	TrackName      string
	Completed      *bool
	Limit          int
	Offset         int
}

type CompetitionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	Update(ctx context.Context, competition *models.Competition) error
	Delete(ctx context.Context, tx *gorm.DB, id int) error
	List(ctx context.Context, filter CompetitionFilter) ([]models.Competition, error)
	// NextRoundNumber returns one past the highest round already used in
	// the championship, starting at 1.
	NextRoundNumber(ctx context.Context, tx *gorm.DB, championshipID int) (int, error)
	SetCompleted(ctx context.Context, tx *gorm.DB, id int, completed bool) error
	// ListForStandings returns the championship rounds that count toward
	// standings: completed competitions plus those holding at least one
	// auto-assigned session, in round order.
	ListForStandings(ctx context.Context, tx *gorm.DB, championshipID int) ([]models.Competition, error)
}

type gormCompetitionRepository struct {
	db *gorm.DB
}

func NewGormCompetitionRepository(db *gorm.DB) CompetitionRepository {
	return &gormCompetitionRepository{db: db}
}

func (r *gormCompetitionRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormCompetitionRepository) Create(ctx context.Context, tx *gorm.DB, competition *models.Competition) error {
	return r.handle(tx).WithContext(ctx).Create(competition).Error
}

func (r *gormCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	var competition models.Competition
	err := r.db.WithContext(ctx).First(&competition, "competition_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrCompetitionNotFound)
	}
	return &competition, nil
}

func (r *gormCompetitionRepository) Update(ctx context.Context, competition *models.Competition) error {
	res := r.db.WithContext(ctx).
		Model(&models.Competition{}).
		Where("competition_id = ?", competition.CompetitionID).
		Updates(map[string]interface{}{
			"championship_id":    competition.ChampionshipID,
			"name":               competition.Name,
			"round_number":       competition.RoundNumber,
			"track_name":         competition.TrackName,
			"date_start":         competition.DateStart,
			"date_end":           competition.DateEnd,
			"weekend_format":     competition.WeekendFormat,
			"points_system_json": competition.PointsSystemJSON,
			"is_completed":       competition.IsCompleted,
		})
	return checkAffectedRows(res, ErrCompetitionNotFound)
}

func (r *gormCompetitionRepository) Delete(ctx context.Context, tx *gorm.DB, id int) error {
	res := r.handle(tx).WithContext(ctx).Delete(&models.Competition{}, "competition_id = ?", id)
	return checkAffectedRows(res, ErrCompetitionNotFound)
}

func (r *gormCompetitionRepository) List(ctx context.Context, filter CompetitionFilter) ([]models.Competition, error) {
	q := r.db.WithContext(ctx).Model(&models.Competition{})
	if filter.ChampionshipID != nil {
		q = q.Where("championship_id = ?", *filter.ChampionshipID)
	}
	if filter.TrackName != "" {
		q = q.Where("track_name = ?", filter.TrackName)
	}
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	competitions := make([]models.Competition, 0)
	if err := q.Order("date_start DESC").Order("competition_id DESC").Find(&competitions).Error; err != nil {
		return nil, err
	}
	return competitions, nil
}

func (r *gormCompetitionRepository) NextRoundNumber(ctx context.Context, tx *gorm.DB, championshipID int) (int, error) {
	var next int
	err := r.handle(tx).WithContext(ctx).
		Model(&models.Competition{}).
		Where("championship_id = ?", championshipID).
		Select("COALESCE(MAX(round_number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *gormCompetitionRepository) SetCompleted(ctx context.Context, tx *gorm.DB, id int, completed bool) error {
	res := r.handle(tx).WithContext(ctx).
		Model(&models.Competition{}).
		Where("competition_id = ?", id).
		Update("is_completed", completed)
	return checkAffectedRows(res, ErrCompetitionNotFound)
}

func (r *gormCompetitionRepository) ListForStandings(ctx context.Context, tx *gorm.DB, championshipID int) ([]models.Competition, error) {
	competitions := make([]models.Competition, 0)
	err := r.handle(tx).WithContext(ctx).
		Where("championship_id = ?", championshipID).
		Where("is_completed = ? OR EXISTS (SELECT 1 FROM sessions WHERE sessions.competition_id = competitions.competition_id AND sessions.is_autoassign_comp = ?)", true, true).
		Order("round_number ASC NULLS LAST").Order("competition_id ASC").
		Find(&competitions).Error
	if err != nil {
		return nil, err
	}
	return competitions, nil
}
