package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

// clusterWindowDays is how far, in whole days, a session may sit from the
// start of a cluster on the same track and still belong to that weekend.
const clusterWindowDays = 3

type SessionCluster struct {
	TrackName string           `json:"track_name"`
	DateStart time.Time        `json:"date_start"`
	DateEnd   time.Time        `json:"date_end"`
	Sessions  []models.Session `json:"sessions"`
}

type AssignClusterInput struct {
	SessionIDs     []string `json:"session_ids"`
	ChampionshipID *int     `json:"championship_id,omitempty"`
	Name           string   `json:"name,omitempty"`
}

type AssignClusterResult struct {
	Competition *models.Competition `json:"competition"`
	Assigned    int                 `json:"assigned"`
}

type GroupingService interface {
	// GroupUnassigned clusters the unassigned sessions into candidate
	// weekends without writing anything.
	GroupUnassigned(ctx context.Context) ([]SessionCluster, error)
	// AssignCluster creates a competition for the given sessions, stamps
	// their order, and marks the competition completed.
	AssignCluster(ctx context.Context, input AssignClusterInput) (*AssignClusterResult, error)
}

type groupingService struct {
	db          *gorm.DB
	sessionRepo repositories.SessionRepository
	compRepo    repositories.CompetitionRepository
	champRepo   repositories.ChampionshipRepository
	logger      *slog.Logger
}

func NewGroupingService(
	db *gorm.DB,
	sessionRepo repositories.SessionRepository,
	compRepo repositories.CompetitionRepository,
	champRepo repositories.ChampionshipRepository,
	logger *slog.Logger,
) GroupingService {
	return &groupingService{
		db:          db,
		sessionRepo: sessionRepo,
		compRepo:    compRepo,
		champRepo:   champRepo,
		logger:      logger,
	}
}

func (s *groupingService) GroupUnassigned(ctx context.Context) ([]SessionCluster, error) {
	sessions, err := s.sessionRepo.ListUnassigned(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: listing unassigned sessions: %w", ErrGroupingFailed, err)
	}
	clusters := clusterSessions(sessions)
	s.logger.Info("unassigned sessions clustered",
		slog.Int("sessions", len(sessions)), slog.Int("clusters", len(clusters)))
	return clusters, nil
}

// clusterSessions walks sessions in (date, track) order and attaches each
// one to the first cluster on the same track whose span start is within the
// window, extending the span, else opens a new cluster.
func clusterSessions(sessions []models.Session) []SessionCluster {
	clusters := make([]SessionCluster, 0)
	for _, session := range sessions {
		placed := false
		for i := range clusters {
			c := &clusters[i]
			if c.TrackName != session.TrackName {
				continue
			}
			if daysApart(c.DateStart, session.SessionDate) > clusterWindowDays {
				continue
			}
			c.Sessions = append(c.Sessions, session)
			if session.SessionDate.Before(c.DateStart) {
				c.DateStart = session.SessionDate
			}
			if session.SessionDate.After(c.DateEnd) {
				c.DateEnd = session.SessionDate
			}
			placed = true
			break
		}
		if !placed {
			clusters = append(clusters, SessionCluster{
				TrackName: session.TrackName,
				DateStart: session.SessionDate,
				DateEnd:   session.SessionDate,
				Sessions:  []models.Session{session},
			})
		}
	}
	return clusters
}

// daysApart counts truncated whole days between two instants.
func daysApart(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

func (s *groupingService) AssignCluster(ctx context.Context, input AssignClusterInput) (*AssignClusterResult, error) {
	if len(input.SessionIDs) == 0 {
		return nil, ErrClusterEmpty
	}

	sessions := make([]models.Session, 0, len(input.SessionIDs))
	for _, id := range input.SessionIDs {
		session, err := s.sessionRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: session %s", ErrSessionNotFound, id)
		}
		if session.CompetitionID != nil {
			return nil, fmt.Errorf("%w: session %s belongs to competition %d",
				ErrClusterAlreadyGrouped, id, *session.CompetitionID)
		}
		sessions = append(sessions, *session)
	}

	track := sessions[0].TrackName
	for _, session := range sessions[1:] {
		if session.TrackName != track {
			return nil, fmt.Errorf("%w: cluster mixes tracks %q and %q",
				ErrValidationFailed, track, session.TrackName)
		}
	}

	if input.ChampionshipID != nil {
		if _, err := s.champRepo.GetByID(ctx, *input.ChampionshipID); err != nil {
			return nil, fmt.Errorf("%w: championship %d", ErrChampionshipNotFound, *input.ChampionshipID)
		}
	}

	dateStart := sessions[0].SessionDate
	dateEnd := sessions[0].SessionDate
	for _, session := range sessions[1:] {
		if session.SessionDate.Before(dateStart) {
			dateStart = session.SessionDate
		}
		if session.SessionDate.After(dateEnd) {
			dateEnd = session.SessionDate
		}
	}

	filenames := make([]string, len(sessions))
	for i, session := range sessions {
		filenames[i] = session.Filename
	}
	sort.Strings(filenames)
	orderByFilename := make(map[string]int, len(filenames))
	for i, filename := range filenames {
		orderByFilename[filename] = i + 1
	}

	var competition *models.Competition
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roundNumber *int
		name := input.Name
		if input.ChampionshipID != nil {
			next, err := s.compRepo.NextRoundNumber(ctx, tx, *input.ChampionshipID)
			if err != nil {
				return err
			}
			roundNumber = &next
			if name == "" {
				name = fmt.Sprintf("Round %d - %s", next, track)
			}
		} else if name == "" {
			name = fmt.Sprintf("%s - %s", track, dateStart.Format("2006-01-02"))
		}

		competition = &models.Competition{
			ChampionshipID: input.ChampionshipID,
			Name:           name,
			RoundNumber:    roundNumber,
			TrackName:      track,
			DateStart:      dateStart,
			DateEnd:        dateEnd,
			WeekendFormat:  inferWeekendFormat(sessions),
		}
		if err := s.compRepo.Create(ctx, tx, competition); err != nil {
			return err
		}

		for _, session := range sessions {
			order := orderByFilename[session.Filename]
			if err := s.sessionRepo.AssignCompetition(ctx, tx, session.SessionID, competition.CompetitionID, order, false); err != nil {
				return err
			}
		}
		return s.compRepo.SetCompleted(ctx, tx, competition.CompetitionID, true)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGroupingFailed, err)
	}

	s.logger.Info("cluster assigned",
		slog.Int("competition_id", competition.CompetitionID),
		slog.String("name", competition.Name),
		slog.String("format", competition.WeekendFormat),
		slog.Int("sessions", len(sessions)))
	return &AssignClusterResult{Competition: competition, Assigned: len(sessions)}, nil
}

func inferWeekendFormat(sessions []models.Session) string {
	races := 0
	for _, session := range sessions {
		if results.IsRaceType(session.SessionType) {
			races++
		}
	}
	switch {
	case races > 1:
		return models.WeekendFormatSprint
	case races == 1:
		return models.WeekendFormatStandard
	default:
		return models.WeekendFormatPractice
	}
}
