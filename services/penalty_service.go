package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

// CreatePenaltyInput describes one point deduction. Points are subtracted
// from the championship total on the next standings rebuild.
type CreatePenaltyInput struct {
	ChampionshipID int     `json:"championship_id"`
	DriverID       string  `json:"driver_id"`
	CompetitionID  *int    `json:"competition_id"`
	PenaltyPoints  float64 `json:"penalty_points"`
	Reason         string  `json:"reason"`
	AppliedBy      string  `json:"applied_by"`
}

type PenaltyService interface {
	Create(ctx context.Context, input CreatePenaltyInput) (*models.ManualPenalty, error)
	ListByChampionship(ctx context.Context, championshipID int, activeOnly bool) ([]models.ManualPenalty, error)
	// Deactivate keeps the row for audit but removes it from future
	// standings runs.
	Deactivate(ctx context.Context, penaltyID int) error
}

type penaltyService struct {
	penaltyRepo repositories.ManualPenaltyRepository
	champRepo   repositories.ChampionshipRepository
	driverRepo  repositories.DriverRepository
	compRepo    repositories.CompetitionRepository
}

func NewPenaltyService(
	penaltyRepo repositories.ManualPenaltyRepository,
	champRepo repositories.ChampionshipRepository,
	driverRepo repositories.DriverRepository,
	compRepo repositories.CompetitionRepository,
) PenaltyService {
	return &penaltyService{
		penaltyRepo: penaltyRepo,
		champRepo:   champRepo,
		driverRepo:  driverRepo,
		compRepo:    compRepo,
	}
}

func (s *penaltyService) Create(ctx context.Context, input CreatePenaltyInput) (*models.ManualPenalty, error) {
	if input.PenaltyPoints <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrPenaltyPointsInvalid, input.PenaltyPoints)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: penalty reason is required", ErrValidationFailed)
	}

	if _, err := s.champRepo.GetByID(ctx, input.ChampionshipID); err != nil {
		if errors.Is(err, repositories.ErrChampionshipNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrChampionshipNotFound, input.ChampionshipID)
		}
		return nil, fmt.Errorf("failed to check championship %d: %w", input.ChampionshipID, err)
	}
	if _, err := s.driverRepo.GetByID(ctx, input.DriverID); err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, input.DriverID)
		}
		return nil, fmt.Errorf("failed to check driver %s: %w", input.DriverID, err)
	}
	if input.CompetitionID != nil {
		competition, err := s.compRepo.GetByID(ctx, *input.CompetitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrCompetitionNotFound, *input.CompetitionID)
			}
			return nil, fmt.Errorf("failed to check competition %d: %w", *input.CompetitionID, err)
		}
		if competition.ChampionshipID == nil || *competition.ChampionshipID != input.ChampionshipID {
			return nil, fmt.Errorf("%w: competition %d is not part of championship %d",
				ErrValidationFailed, *input.CompetitionID, input.ChampionshipID)
		}
	}

	penalty := &models.ManualPenalty{
		ChampionshipID: input.ChampionshipID,
		DriverID:       input.DriverID,
		CompetitionID:  input.CompetitionID,
		PenaltyPoints:  input.PenaltyPoints,
		Reason:         reason,
		AppliedBy:      strings.TrimSpace(input.AppliedBy),
		IsActive:       true,
	}
	if err := s.penaltyRepo.Create(ctx, penalty); err != nil {
		return nil, fmt.Errorf("failed to create manual penalty: %w", err)
	}
	return penalty, nil
}

func (s *penaltyService) ListByChampionship(ctx context.Context, championshipID int, activeOnly bool) ([]models.ManualPenalty, error) {
	if _, err := s.champRepo.GetByID(ctx, championshipID); err != nil {
		if errors.Is(err, repositories.ErrChampionshipNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrChampionshipNotFound, championshipID)
		}
		return nil, fmt.Errorf("failed to check championship %d: %w", championshipID, err)
	}
	penalties, err := s.penaltyRepo.ListByChampionship(ctx, championshipID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties for championship %d: %w", championshipID, err)
	}
	return penalties, nil
}

func (s *penaltyService) Deactivate(ctx context.Context, penaltyID int) error {
	err := s.penaltyRepo.Deactivate(ctx, penaltyID)
	if err != nil {
		if errors.Is(err, repositories.ErrManualPenaltyNotFound) {
			return fmt.Errorf("%w: %d", ErrManualPenaltyNotFound, penaltyID)
		}
		return fmt.Errorf("failed to deactivate penalty %d: %w", penaltyID, err)
	}
	return nil
}
