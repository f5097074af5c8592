package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

type CompetitionDetail struct {
	Competition models.Competition `json:"competition"`
	Sessions    []models.Session   `json:"sessions"`
}

// CompetitionResults bundles both derived tables for one competition.
type CompetitionResults struct {
	Totals      []models.CompetitionResult        `json:"totals"`
	SessionRows []models.CompetitionSessionResult `json:"session_rows"`
}

type CompetitionService interface {
	List(ctx context.Context, filter repositories.CompetitionFilter) ([]models.Competition, error)
	Get(ctx context.Context, id int) (*CompetitionDetail, error)
	Results(ctx context.Context, id int) (*CompetitionResults, error)
	// SetPointsSystem stores a named system reference or an inline JSON
	// override on the competition; nil clears it back to the default.
	SetPointsSystem(ctx context.Context, id int, ref *string) (*models.Competition, error)
	// Delete removes the competition, its derived rows and returns its
	// sessions to the unassigned pool in one transaction.
	Delete(ctx context.Context, id int) error
}

type competitionService struct {
	db          *gorm.DB
	compRepo    repositories.CompetitionRepository
	sessionRepo repositories.SessionRepository
	resultRepo  repositories.CompetitionResultRepository
	pointsRepo  repositories.PointsSystemRepository
}

func NewCompetitionService(
	db *gorm.DB,
	compRepo repositories.CompetitionRepository,
	sessionRepo repositories.SessionRepository,
	resultRepo repositories.CompetitionResultRepository,
	pointsRepo repositories.PointsSystemRepository,
) CompetitionService {
	return &competitionService{
		db:          db,
		compRepo:    compRepo,
		sessionRepo: sessionRepo,
		resultRepo:  resultRepo,
		pointsRepo:  pointsRepo,
	}
}

func (s *competitionService) List(ctx context.Context, filter repositories.CompetitionFilter) ([]models.Competition, error) {
	competitions, err := s.compRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	return competitions, nil
}

func (s *competitionService) Get(ctx context.Context, id int) (*CompetitionDetail, error) {
	competition, err := s.getCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.ListByCompetition(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of competition %d: %w", id, err)
	}
	return &CompetitionDetail{Competition: *competition, Sessions: sessions}, nil
}

func (s *competitionService) Results(ctx context.Context, id int) (*CompetitionResults, error) {
	if _, err := s.getCompetition(ctx, id); err != nil {
		return nil, err
	}
	totals, err := s.resultRepo.ListTotalsByCompetition(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list totals of competition %d: %w", id, err)
	}
	rows, err := s.resultRepo.ListSessionRowsByCompetition(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list session rows of competition %d: %w", id, err)
	}
	return &CompetitionResults{Totals: totals, SessionRows: rows}, nil
}

func (s *competitionService) SetPointsSystem(ctx context.Context, id int, ref *string) (*models.Competition, error) {
	competition, err := s.getCompetition(ctx, id)
	if err != nil {
		return nil, err
	}

	if ref != nil {
		trimmed := strings.TrimSpace(*ref)
		if trimmed == "" {
			ref = nil
		} else if strings.HasPrefix(trimmed, "{") {
			var override map[string]float64
			if err := json.Unmarshal([]byte(trimmed), &override); err != nil {
				return nil, fmt.Errorf("%w: inline override: %w", ErrPointsMapInvalid, err)
			}
			if err := validatePointsMap(override); err != nil {
				return nil, err
			}
			ref = &trimmed
		} else {
			if _, err := s.pointsRepo.GetByName(ctx, trimmed); err != nil {
				if errors.Is(err, repositories.ErrPointsSystemNotFound) {
					return nil, fmt.Errorf("%w: %s", ErrPointsSystemNotFound, trimmed)
				}
				return nil, fmt.Errorf("failed to check points system %q: %w", trimmed, err)
			}
			ref = &trimmed
		}
	}

	competition.PointsSystemJSON = ref
	if err := s.compRepo.Update(ctx, competition); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCompetitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to update competition %d: %w", id, err)
	}
	return competition, nil
}

func (s *competitionService) Delete(ctx context.Context, id int) error {
	if _, err := s.getCompetition(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resultRepo.DeleteByCompetition(ctx, tx, id); err != nil {
			return err
		}
		if err := s.sessionRepo.UnassignByCompetition(ctx, tx, id); err != nil {
			return err
		}
		return s.compRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete competition %d: %w", id, err)
	}
	return nil
}

func (s *competitionService) getCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.compRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCompetitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}
