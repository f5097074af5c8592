package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

type SessionDetail struct {
	Session   models.Session         `json:"session"`
	Results   []models.SessionResult `json:"results"`
	Laps      []models.Lap           `json:"laps"`
	Penalties []models.Penalty       `json:"penalties"`
}

type SessionService interface {
	List(ctx context.Context, filter repositories.SessionFilter) ([]models.Session, error)
	Get(ctx context.Context, sessionID string) (*SessionDetail, error)
}

type sessionService struct {
	sessionRepo repositories.SessionRepository
}

func NewSessionService(sessionRepo repositories.SessionRepository) SessionService {
	return &sessionService{sessionRepo: sessionRepo}
}

func (s *sessionService) List(ctx context.Context, filter repositories.SessionFilter) ([]models.Session, error) {
	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	results, err := s.sessionRepo.ListResults(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results of session %s: %w", sessionID, err)
	}
	laps, err := s.sessionRepo.ListLaps(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list laps of session %s: %w", sessionID, err)
	}
	penalties, err := s.sessionRepo.ListPenalties(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties of session %s: %w", sessionID, err)
	}

	return &SessionDetail{
		Session:   *session,
		Results:   results,
		Laps:      laps,
		Penalties: penalties,
	}, nil
}
