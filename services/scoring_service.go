package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

// pointsScheme is the resolved award table for one competition: position
// points keyed by the decimal position string, plus the bonus amounts.
type pointsScheme struct {
	perPosition map[string]float64
	pole        float64
	fastestLap  float64
	dropWorst   int
}

func (p pointsScheme) forPosition(position int) float64 {
	return p.perPosition[strconv.Itoa(position)]
}

// defaultPointsScheme is the F1-style fallback applied when a competition
// carries no usable points configuration.
func defaultPointsScheme() pointsScheme {
	return pointsScheme{
		perPosition: map[string]float64{
			"1": 25, "2": 18, "3": 15, "4": 12, "5": 10,
			"6": 8, "7": 6, "8": 4, "9": 2, "10": 1,
		},
		pole:       1,
		fastestLap: 1,
	}
}

// resolvePointsScheme turns a competition's points_system_json into a
// scheme: an inline JSON object wins over a named system reference; any
// miss or unreadable value degrades to the default with a warning.
func resolvePointsScheme(ctx context.Context, pointsRepo repositories.PointsSystemRepository, ref *string, logger *slog.Logger) pointsScheme {
	if ref == nil || strings.TrimSpace(*ref) == "" {
		logger.Warn("no points system configured, using default awards")
		return defaultPointsScheme()
	}
	value := strings.TrimSpace(*ref)

	if strings.HasPrefix(value, "{") {
		perPosition := make(map[string]float64)
		if err := json.Unmarshal([]byte(value), &perPosition); err != nil {
			logger.Warn("inline points override unreadable, using default awards",
				slog.Any("error", err))
			return defaultPointsScheme()
		}
		return pointsScheme{perPosition: perPosition, pole: 1, fastestLap: 1}
	}

	system, err := pointsRepo.GetByName(ctx, value)
	if err != nil {
		logger.Warn("points system reference not found, using default awards",
			slog.String("name", value))
		return defaultPointsScheme()
	}
	perPosition := make(map[string]float64)
	if err := json.Unmarshal(system.PositionPoints, &perPosition); err != nil {
		logger.Warn("stored points map unreadable, using default awards",
			slog.String("name", value), slog.Any("error", err))
		return defaultPointsScheme()
	}
	return pointsScheme{
		perPosition: perPosition,
		pole:        system.PolePositionPoints,
		fastestLap:  system.FastestLapPoints,
		dropWorst:   system.DropWorstResults,
	}
}

type ScoreCompetitionReport struct {
	CompetitionID int `json:"competition_id"`
	Sessions      int `json:"sessions"`
	SessionRows   int `json:"session_rows"`
	Drivers       int `json:"drivers"`
}

type ScoringService interface {
	// ScoreCompetition rebuilds both derived result tables for one
	// competition. Rerunning against unchanged sessions reproduces the
	// same rows.
	ScoreCompetition(ctx context.Context, competitionID int) (*ScoreCompetitionReport, error)
}

type scoringService struct {
	db          *gorm.DB
	compRepo    repositories.CompetitionRepository
	sessionRepo repositories.SessionRepository
	resultRepo  repositories.CompetitionResultRepository
	pointsRepo  repositories.PointsSystemRepository
	logger      *slog.Logger
}

func NewScoringService(
	db *gorm.DB,
	compRepo repositories.CompetitionRepository,
	sessionRepo repositories.SessionRepository,
	resultRepo repositories.CompetitionResultRepository,
	pointsRepo repositories.PointsSystemRepository,
	logger *slog.Logger,
) ScoringService {
	return &scoringService{
		db:          db,
		compRepo:    compRepo,
		sessionRepo: sessionRepo,
		resultRepo:  resultRepo,
		pointsRepo:  pointsRepo,
		logger:      logger,
	}
}

func (s *scoringService) ScoreCompetition(ctx context.Context, competitionID int) (*ScoreCompetitionReport, error) {
	competition, err := s.compRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%w: competition %d", ErrCompetitionNotFound, competitionID)
		}
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}
	scheme := resolvePointsScheme(ctx, s.pointsRepo, competition.PointsSystemJSON, s.logger)

	sessions, err := s.sessionRepo.ListByCompetition(ctx, nil, competitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %w", ErrScoringFailed, err)
	}

	report := &ScoreCompetitionReport{CompetitionID: competitionID, Sessions: len(sessions)}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resultRepo.DeleteByCompetition(ctx, tx, competitionID); err != nil {
			return err
		}

		rows := make([]models.CompetitionSessionResult, 0, 64)
		fastestLapUnits := make(map[string]int)

		for _, session := range sessions {
			sessionResults, err := s.sessionRepo.ListResults(ctx, tx, session.SessionID)
			if err != nil {
				return err
			}

			entrants := sessionResults[:0:0]
			for _, sr := range sessionResults {
				if !sr.IsSpectator {
					entrants = append(entrants, sr)
				}
			}
			if len(entrants) == 0 {
				s.logger.Warn("session has no scoreable results",
					slog.String("session_id", session.SessionID),
					slog.String("type", session.SessionType))
				continue
			}

			for i := range entrants {
				sr := &entrants[i]
				points := 0.0
				if sr.Position != nil && results.IsRaceType(session.SessionType) {
					points = scheme.forPosition(*sr.Position)
				}
				if sr.Position != nil && *sr.Position == 1 &&
					results.IsQualifyingType(session.SessionType) && scheme.pole > 0 {
					points += scheme.pole
				}
				rows = append(rows, models.CompetitionSessionResult{
					CompetitionID: competitionID,
					DriverID:      sr.DriverID,
					SessionID:     session.SessionID,
					SessionType:   session.SessionType,
					Position:      sr.Position,
					Points:        points,
					BestLapTime:   sr.BestLap,
					TotalLaps:     sr.LapCount,
					IsClassified:  sr.Position != nil,
				})
			}

			if results.IsRaceType(session.SessionType) {
				if winner := fastestLapWinner(entrants); winner != "" {
					fastestLapUnits[winner]++
				}
			}
		}

		if err := s.resultRepo.BatchInsertSessionRows(ctx, tx, rows); err != nil {
			return err
		}
		report.SessionRows = len(rows)

		totals := aggregateTotals(competitionID, rows, fastestLapUnits, scheme)
		if err := s.resultRepo.BatchInsertTotals(ctx, tx, totals); err != nil {
			return err
		}
		report.Drivers = len(totals)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: competition %d: %w", ErrScoringFailed, competitionID, err)
	}

	s.logger.Info("competition scored",
		slog.Int("competition_id", competitionID),
		slog.String("name", competition.Name),
		slog.Int("sessions", report.Sessions),
		slog.Int("drivers", report.Drivers))
	return report, nil
}

// fastestLapWinner picks the single driver credited with the session's
// fastest lap: the minimum positive best lap, first holder winning ties.
// Entrants arrive ordered by position then driver id, which makes the
// choice deterministic.
func fastestLapWinner(entrants []models.SessionResult) string {
	winner := ""
	best := 0
	for _, sr := range entrants {
		if sr.BestLap == nil || *sr.BestLap <= 0 {
			continue
		}
		if winner == "" || *sr.BestLap < best {
			winner = sr.DriverID
			best = *sr.BestLap
		}
	}
	return winner
}

func aggregateTotals(competitionID int, rows []models.CompetitionSessionResult, fastestLapUnits map[string]int, scheme pointsScheme) []models.CompetitionResult {
	type driverTotals struct {
		race float64
		pole float64
	}
	perDriver := make(map[string]*driverTotals)
	for _, row := range rows {
		t, ok := perDriver[row.DriverID]
		if !ok {
			t = &driverTotals{}
			perDriver[row.DriverID] = t
		}
		switch {
		case results.IsRaceType(row.SessionType):
			t.race += row.Points
		case results.IsQualifyingType(row.SessionType):
			t.pole += row.Points
		}
	}

	driverIDs := make([]string, 0, len(perDriver))
	for id := range perDriver {
		driverIDs = append(driverIDs, id)
	}
	sort.Strings(driverIDs)

	totals := make([]models.CompetitionResult, 0, len(driverIDs))
	for _, id := range driverIDs {
		t := perDriver[id]
		flPoints := float64(fastestLapUnits[id]) * scheme.fastestLap
		totals = append(totals, models.CompetitionResult{
			CompetitionID:    competitionID,
			DriverID:         id,
			RacePoints:       t.race,
			PolePoints:       t.pole,
			FastestLapPoints: flPoints,
			TotalPoints:      t.race + t.pole + flPoints,
		})
	}
	return totals
}
