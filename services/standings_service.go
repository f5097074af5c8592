package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

type StandingsReport struct {
	ChampionshipID int `json:"championship_id"`
	Competitions   int `json:"competitions"`
	Drivers        int `json:"drivers"`
	DropWorst      int `json:"drop_worst"`
}

type StandingsService interface {
	// ScoreChampionship rebuilds the standings table of one championship
	// from its scored competitions.
	ScoreChampionship(ctx context.Context, championshipID int) (*StandingsReport, error)
	ListStandings(ctx context.Context, championshipID int) ([]models.ChampionshipStanding, error)
}

// StandingsBroadcaster receives the freshly committed table of a
// championship. The websocket hub implements it; a nil broadcaster is fine.
type StandingsBroadcaster interface {
	BroadcastStandings(championshipID int, standings []models.ChampionshipStanding)
}

type standingsService struct {
	db           *gorm.DB
	champRepo    repositories.ChampionshipRepository
	compRepo     repositories.CompetitionRepository
	resultRepo   repositories.CompetitionResultRepository
	standingRepo repositories.StandingRepository
	pointsRepo   repositories.PointsSystemRepository
	penaltyRepo  repositories.ManualPenaltyRepository
	broadcaster  StandingsBroadcaster
	logger       *slog.Logger
}

func NewStandingsService(
	db *gorm.DB,
	champRepo repositories.ChampionshipRepository,
	compRepo repositories.CompetitionRepository,
	resultRepo repositories.CompetitionResultRepository,
	standingRepo repositories.StandingRepository,
	pointsRepo repositories.PointsSystemRepository,
	penaltyRepo repositories.ManualPenaltyRepository,
	broadcaster StandingsBroadcaster,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		db:           db,
		champRepo:    champRepo,
		compRepo:     compRepo,
		resultRepo:   resultRepo,
		standingRepo: standingRepo,
		pointsRepo:   pointsRepo,
		penaltyRepo:  penaltyRepo,
		broadcaster:  broadcaster,
		logger:       logger,
	}
}

// driverTally accumulates one driver's line across the counted competitions.
type driverTally struct {
	compPoints   []float64
	positions    []int
	participated int
	wins         int
	podiums      int
	poles        int
	fastestLaps  int
}

func (s *standingsService) ScoreChampionship(ctx context.Context, championshipID int) (*StandingsReport, error) {
	championship, err := s.champRepo.GetByID(ctx, championshipID)
	if err != nil {
		if errors.Is(err, repositories.ErrChampionshipNotFound) {
			return nil, fmt.Errorf("%w: championship %d", ErrChampionshipNotFound, championshipID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStandingsFailed, err)
	}

	competitions, err := s.compRepo.ListForStandings(ctx, nil, championshipID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing competitions: %w", ErrStandingsFailed, err)
	}

	report := &StandingsReport{ChampionshipID: championshipID, Competitions: len(competitions)}

	if len(competitions) == 0 {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.standingRepo.DeleteByChampionshipID(ctx, tx, championshipID)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: championship %d: %w", ErrStandingsFailed, championshipID, err)
		}
		s.logger.Warn("championship has no countable competitions, standings cleared",
			slog.Int("championship_id", championshipID))
		return report, nil
	}

	// The drop rule comes from the first counted round's named system.
	dropWorst := s.lookupDropWorst(ctx, competitions[0].PointsSystemJSON)
	report.DropWorst = dropWorst

	tallies := make(map[string]*driverTally)
	for _, competition := range competitions {
		if err := s.tallyCompetition(ctx, competition.CompetitionID, tallies); err != nil {
			return nil, fmt.Errorf("%w: competition %d: %w", ErrStandingsFailed, competition.CompetitionID, err)
		}
	}

	penalties, err := s.penaltyRepo.ActiveSumsByDriver(ctx, nil, championshipID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading penalties: %w", ErrStandingsFailed, err)
	}

	standings := buildStandings(championshipID, tallies, dropWorst, penalties)
	report.Drivers = len(standings)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.standingRepo.DeleteByChampionshipID(ctx, tx, championshipID); err != nil {
			return err
		}
		return s.standingRepo.BatchCreate(ctx, tx, standings)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: championship %d: %w", ErrStandingsFailed, championshipID, err)
	}

	// Subscribers only ever see committed tables.
	if s.broadcaster != nil {
		s.broadcaster.BroadcastStandings(championshipID, standings)
	}

	s.logger.Info("championship standings rebuilt",
		slog.Int("championship_id", championshipID),
		slog.String("name", championship.Name),
		slog.Int("competitions", report.Competitions),
		slog.Int("drivers", report.Drivers),
		slog.Int("drop_worst", dropWorst))
	return report, nil
}

// lookupDropWorst resolves only the drop rule of a points reference. An
// inline override or a missing name means no results are dropped.
func (s *standingsService) lookupDropWorst(ctx context.Context, ref *string) int {
	if ref == nil {
		return 0
	}
	value := strings.TrimSpace(*ref)
	if value == "" || strings.HasPrefix(value, "{") {
		return 0
	}
	system, err := s.pointsRepo.GetByName(ctx, value)
	if err != nil {
		return 0
	}
	return system.DropWorstResults
}

// tallyCompetition folds one competition into the running tallies. Only
// drivers with positive competition totals count.
func (s *standingsService) tallyCompetition(ctx context.Context, competitionID int, tallies map[string]*driverTally) error {
	totals, err := s.resultRepo.ListTotalsByCompetition(ctx, nil, competitionID)
	if err != nil {
		return err
	}
	counted := totals[:0:0]
	for _, total := range totals {
		if total.TotalPoints > 0 {
			counted = append(counted, total)
		}
	}
	if len(counted) == 0 {
		return nil
	}

	sessionRows, err := s.resultRepo.ListSessionRowsByCompetition(ctx, nil, competitionID)
	if err != nil {
		return err
	}
	stats := sessionStatsByDriver(sessionRows)

	for _, total := range counted {
		tally, ok := tallies[total.DriverID]
		if !ok {
			tally = &driverTally{}
			tallies[total.DriverID] = tally
		}

		position := 1
		for _, other := range counted {
			if other.TotalPoints > total.TotalPoints {
				position++
			}
		}

		tally.compPoints = append(tally.compPoints, total.TotalPoints)
		tally.positions = append(tally.positions, position)
		tally.participated++

		st := stats[total.DriverID]
		tally.wins += st.wins
		tally.podiums += st.podiums
		tally.poles += st.poles
		tally.fastestLaps += st.fastestLaps
	}
	return nil
}

type driverSessionStats struct {
	wins        int
	podiums     int
	poles       int
	fastestLaps int
}

// sessionStatsByDriver reads one competition's session rows, ordered by
// (session_id, position, driver_id), and counts race wins, podiums, poles,
// and fastest laps. The fastest lap of each race session goes to a single
// driver: minimum positive best lap, first holder on ties.
func sessionStatsByDriver(rows []models.CompetitionSessionResult) map[string]driverSessionStats {
	stats := make(map[string]driverSessionStats)

	flSession := ""
	flDriver := ""
	flBest := 0
	creditFastestLap := func() {
		if flDriver != "" {
			st := stats[flDriver]
			st.fastestLaps++
			stats[flDriver] = st
		}
		flDriver = ""
		flBest = 0
	}

	for _, row := range rows {
		if row.SessionID != flSession {
			creditFastestLap()
			flSession = row.SessionID
		}

		st := stats[row.DriverID]
		if results.IsRaceType(row.SessionType) && row.Position != nil {
			if *row.Position == 1 {
				st.wins++
			}
			if *row.Position <= 3 {
				st.podiums++
			}
		}
		if results.IsQualifyingType(row.SessionType) && row.Position != nil && *row.Position == 1 {
			st.poles++
		}
		stats[row.DriverID] = st

		if results.IsRaceType(row.SessionType) && row.BestLapTime != nil && *row.BestLapTime > 0 {
			if flDriver == "" || *row.BestLapTime < flBest {
				flDriver = row.DriverID
				flBest = *row.BestLapTime
			}
		}
	}
	creditFastestLap()
	return stats
}

// buildStandings finalizes the tallies into ranked rows: drop-worst, manual
// penalties, averages, and the deterministic ordering.
func buildStandings(championshipID int, tallies map[string]*driverTally, dropWorst int, penalties map[string]float64) []models.ChampionshipStanding {
	standings := make([]models.ChampionshipStanding, 0, len(tallies))
	for driverID, tally := range tallies {
		total, dropped := applyDropWorst(tally.compPoints, dropWorst)
		total -= penalties[driverID]

		avg := meanPositions(tally.positions)
		best := minPosition(tally.positions)
		consistency := consistencyRating(tally.positions, avg)

		standings = append(standings, models.ChampionshipStanding{
			ChampionshipID:           championshipID,
			DriverID:                 driverID,
			TotalPoints:              total,
			CompetitionsParticipated: tally.participated,
			Wins:                     tally.wins,
			Podiums:                  tally.podiums,
			Poles:                    tally.poles,
			FastestLaps:              tally.fastestLaps,
			PointsDropped:            dropped,
			AveragePosition:          &avg,
			BestPosition:             &best,
			ConsistencyRating:        &consistency,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].TotalPoints != standings[j].TotalPoints {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		ai, aj := *standings[i].AveragePosition, *standings[j].AveragePosition
		if ai != aj {
			return ai < aj
		}
		return standings[i].DriverID < standings[j].DriverID
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

// applyDropWorst discards the weakest results when the driver has more than
// the drop count; participation still counts every round.
func applyDropWorst(points []float64, dropWorst int) (total, dropped float64) {
	if dropWorst <= 0 || len(points) <= dropWorst {
		for _, p := range points {
			total += p
		}
		return total, 0
	}
	sorted := make([]float64, len(points))
	copy(sorted, points)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	for _, p := range sorted[:len(sorted)-dropWorst] {
		total += p
	}
	for _, p := range sorted[len(sorted)-dropWorst:] {
		dropped += p
	}
	return total, dropped
}

func meanPositions(positions []int) float64 {
	sum := 0
	for _, p := range positions {
		sum += p
	}
	return float64(sum) / float64(len(positions))
}

func minPosition(positions []int) int {
	best := positions[0]
	for _, p := range positions[1:] {
		if p < best {
			best = p
		}
	}
	return best
}

// consistencyRating maps the population variance of finishing positions
// onto a 0..100 scale, rounded to one decimal. A single result rates 100.
func consistencyRating(positions []int, avg float64) float64 {
	if len(positions) <= 1 {
		return 100.0
	}
	variance := 0.0
	for _, p := range positions {
		d := float64(p) - avg
		variance += d * d
	}
	variance /= float64(len(positions))
	rating := 100 - variance*5
	if rating < 0 {
		rating = 0
	}
	return math.Round(rating*10) / 10
}

func (s *standingsService) ListStandings(ctx context.Context, championshipID int) ([]models.ChampionshipStanding, error) {
	if _, err := s.champRepo.GetByID(ctx, championshipID); err != nil {
		if errors.Is(err, repositories.ErrChampionshipNotFound) {
			return nil, fmt.Errorf("%w: championship %d", ErrChampionshipNotFound, championshipID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStandingsFailed, err)
	}
	standings, err := s.standingRepo.ListByChampionship(ctx, championshipID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStandingsFailed, err)
	}
	return standings, nil
}
