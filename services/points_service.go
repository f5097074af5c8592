package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

// PointsSystemInput carries the full definition for create and update.
// MinimumClassifiedPercentage and IsActive are pointers so an absent field
// keeps the column default (70 / true).
type PointsSystemInput struct {
	Name                        string             `json:"name"`
	Description                 *string            `json:"description"`
	PositionPoints              map[string]float64 `json:"position_points"`
	PolePositionPoints          float64            `json:"pole_position_points"`
	FastestLapPoints            float64            `json:"fastest_lap_points"`
	MinimumClassifiedPercentage *float64           `json:"minimum_classified_percentage"`
	PointsForUnclassified       bool               `json:"points_for_unclassified"`
	DropWorstResults            int                `json:"drop_worst_results"`
	IsActive                    *bool              `json:"is_active"`
}

type PointsSystemService interface {
	List(ctx context.Context, activeOnly bool) ([]models.PointsSystem, error)
	GetByName(ctx context.Context, name string) (*models.PointsSystem, error)
	Create(ctx context.Context, input PointsSystemInput) (*models.PointsSystem, error)
	Update(ctx context.Context, name string, input PointsSystemInput) (*models.PointsSystem, error)
	// SetActive toggles visibility in active-only listings. Inactive
	// systems stay resolvable by competitions that reference them.
	SetActive(ctx context.Context, name string, active bool) error
}

type pointsSystemService struct {
	pointsRepo repositories.PointsSystemRepository
}

func NewPointsSystemService(pointsRepo repositories.PointsSystemRepository) PointsSystemService {
	return &pointsSystemService{pointsRepo: pointsRepo}
}

func (s *pointsSystemService) List(ctx context.Context, activeOnly bool) ([]models.PointsSystem, error) {
	systems, err := s.pointsRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list points systems: %w", err)
	}
	return systems, nil
}

func (s *pointsSystemService) GetByName(ctx context.Context, name string) (*models.PointsSystem, error) {
	system, err := s.pointsRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrPointsSystemNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPointsSystemNotFound, name)
		}
		return nil, fmt.Errorf("failed to get points system %q: %w", name, err)
	}
	return system, nil
}

func (s *pointsSystemService) Create(ctx context.Context, input PointsSystemInput) (*models.PointsSystem, error) {
	system, err := buildPointsSystem(input)
	if err != nil {
		return nil, err
	}

	if err := s.pointsRepo.Create(ctx, system); err != nil {
		if errors.Is(err, repositories.ErrPointsSystemNameConflict) {
			return nil, fmt.Errorf("%w: %s", ErrPointsSystemNameConflict, system.Name)
		}
		return nil, fmt.Errorf("failed to create points system %q: %w", system.Name, err)
	}
	return system, nil
}

func (s *pointsSystemService) Update(ctx context.Context, name string, input PointsSystemInput) (*models.PointsSystem, error) {
	existing, err := s.pointsRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrPointsSystemNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPointsSystemNotFound, name)
		}
		return nil, fmt.Errorf("failed to get points system %q: %w", name, err)
	}

	system, err := buildPointsSystem(input)
	if err != nil {
		return nil, err
	}
	system.SystemID = existing.SystemID
	system.CreatedAt = existing.CreatedAt

	if err := s.pointsRepo.Update(ctx, system); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPointsSystemNotFound):
			return nil, fmt.Errorf("%w: %s", ErrPointsSystemNotFound, name)
		case errors.Is(err, repositories.ErrPointsSystemNameConflict):
			return nil, fmt.Errorf("%w: %s", ErrPointsSystemNameConflict, system.Name)
		default:
			return nil, fmt.Errorf("failed to update points system %q: %w", name, err)
		}
	}
	return system, nil
}

func (s *pointsSystemService) SetActive(ctx context.Context, name string, active bool) error {
	system, err := s.pointsRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrPointsSystemNotFound) {
			return fmt.Errorf("%w: %s", ErrPointsSystemNotFound, name)
		}
		return fmt.Errorf("failed to get points system %q: %w", name, err)
	}
	if err := s.pointsRepo.SetActive(ctx, system.SystemID, active); err != nil {
		return fmt.Errorf("failed to toggle points system %q: %w", name, err)
	}
	return nil
}

func buildPointsSystem(input PointsSystemInput) (*models.PointsSystem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: points system name", ErrNameRequired)
	}
	if err := validatePointsMap(input.PositionPoints); err != nil {
		return nil, err
	}
	if input.PolePositionPoints < 0 || input.FastestLapPoints < 0 {
		return nil, fmt.Errorf("%w: bonus points must not be negative", ErrValidationFailed)
	}
	if input.DropWorstResults < 0 {
		return nil, fmt.Errorf("%w: drop worst results must not be negative", ErrValidationFailed)
	}

	raw, err := json.Marshal(input.PositionPoints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPointsMapInvalid, err)
	}

	system := &models.PointsSystem{
		Name:                        name,
		Description:                 input.Description,
		PositionPoints:              datatypes.JSON(raw),
		PolePositionPoints:          input.PolePositionPoints,
		FastestLapPoints:            input.FastestLapPoints,
		MinimumClassifiedPercentage: 70,
		PointsForUnclassified:       input.PointsForUnclassified,
		DropWorstResults:            input.DropWorstResults,
		IsActive:                    true,
	}
	if input.MinimumClassifiedPercentage != nil {
		system.MinimumClassifiedPercentage = *input.MinimumClassifiedPercentage
	}
	if input.IsActive != nil {
		system.IsActive = *input.IsActive
	}
	return system, nil
}

func validatePointsMap(points map[string]float64) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: at least one position required", ErrPointsMapInvalid)
	}
	for position, value := range points {
		n, err := strconv.Atoi(position)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: position %q", ErrPointsMapInvalid, position)
		}
		if value < 0 {
			return fmt.Errorf("%w: negative points for position %s", ErrPointsMapInvalid, position)
		}
	}
	return nil
}
