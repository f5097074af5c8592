package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

type CreateChampionshipInput struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Season      int        `json:"season"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type ChampionshipService interface {
	Create(ctx context.Context, input CreateChampionshipInput) (*models.Championship, error)
	GetByID(ctx context.Context, id int) (*models.Championship, error)
	List(ctx context.Context) ([]models.Championship, error)
}

type championshipService struct {
	champRepo repositories.ChampionshipRepository
}

func NewChampionshipService(champRepo repositories.ChampionshipRepository) ChampionshipService {
	return &championshipService{champRepo: champRepo}
}

func (s *championshipService) Create(ctx context.Context, input CreateChampionshipInput) (*models.Championship, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: championship name", ErrNameRequired)
	}
	if input.Season <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSeasonInvalid, input.Season)
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, fmt.Errorf("%w: end date before start date", ErrValidationFailed)
	}

	championship := &models.Championship{
		Name:        name,
		Description: input.Description,
		Season:      input.Season,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.champRepo.Create(ctx, championship); err != nil {
		return nil, fmt.Errorf("failed to create championship %q: %w", name, err)
	}
	return championship, nil
}

func (s *championshipService) GetByID(ctx context.Context, id int) (*models.Championship, error) {
	championship, err := s.champRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrChampionshipNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrChampionshipNotFound, id)
		}
		return nil, fmt.Errorf("failed to get championship %d: %w", id, err)
	}
	return championship, nil
}

func (s *championshipService) List(ctx context.Context) ([]models.Championship, error) {
	championships, err := s.champRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list championships: %w", err)
	}
	return championships, nil
}
