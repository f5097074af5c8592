package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
)

type scoringFixture struct {
	svc         ScoringService
	sessionRepo repositories.SessionRepository
	compRepo    repositories.CompetitionRepository
	resultRepo  repositories.CompetitionResultRepository
	pointsRepo  repositories.PointsSystemRepository
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()
	gdb := newTestDB(t)
	f := &scoringFixture{
		sessionRepo: repositories.NewGormSessionRepository(gdb),
		compRepo:    repositories.NewGormCompetitionRepository(gdb),
		resultRepo:  repositories.NewGormCompetitionResultRepository(gdb),
		pointsRepo:  repositories.NewGormPointsSystemRepository(gdb),
	}
	f.svc = NewScoringService(gdb, f.compRepo, f.sessionRepo, f.resultRepo, f.pointsRepo, testLogger())
	return f
}

// seedWeekend creates a competition with a qualifying and a race session and
// returns its id. Result rows are left to the individual tests.
func (f *scoringFixture) seedWeekend(t *testing.T, pointsRef *string) int {
	t.Helper()
	ctx := context.Background()
	competition := &models.Competition{
		Name:             "Round 1 - monza",
		TrackName:        "monza",
		PointsSystemJSON: pointsRef,
	}
	if err := f.compRepo.Create(ctx, nil, competition); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 8, 1, 20, 0, 0, 0, time.UTC)
	seedSession(t, f.sessionRepo, "250801_200000_Q", "250801_200000_Q.json", "Q", "monza", base)
	seedSession(t, f.sessionRepo, "250801_220000_R", "250801_220000_R.json", "R", "monza", base.Add(2*time.Hour))
	for i, id := range []string{"250801_200000_Q", "250801_220000_R"} {
		if err := f.sessionRepo.AssignCompetition(ctx, nil, id, competition.CompetitionID, i+1, false); err != nil {
			t.Fatal(err)
		}
	}
	return competition.CompetitionID
}

func (f *scoringFixture) seedResults(t *testing.T, rows []models.SessionResult) {
	t.Helper()
	if err := f.sessionRepo.BatchInsertResults(context.Background(), nil, rows); err != nil {
		t.Fatal(err)
	}
}

func totalsByDriver(t *testing.T, f *scoringFixture, competitionID int) map[string]models.CompetitionResult {
	t.Helper()
	totals, err := f.resultRepo.ListTotalsByCompetition(context.Background(), nil, competitionID)
	if err != nil {
		t.Fatal(err)
	}
	byDriver := make(map[string]models.CompetitionResult, len(totals))
	for _, total := range totals {
		byDriver[total.DriverID] = total
	}
	return byDriver
}

func TestScoreCompetition_DefaultScheme(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()
	competitionID := f.seedWeekend(t, nil)

	f.seedResults(t, []models.SessionResult{
		{SessionID: "250801_200000_Q", DriverID: "d1", Position: intPtr(1), BestLap: intPtr(107900)},
		{SessionID: "250801_200000_Q", DriverID: "d2", Position: intPtr(2), BestLap: intPtr(108100)},
		{SessionID: "250801_220000_R", DriverID: "d2", Position: intPtr(1), BestLap: intPtr(108000), LapCount: 20},
		{SessionID: "250801_220000_R", DriverID: "d1", Position: intPtr(2), BestLap: intPtr(107500), LapCount: 20},
		{SessionID: "250801_220000_R", DriverID: "d4", LapCount: 3},
		{SessionID: "250801_220000_R", DriverID: "ghost", Position: intPtr(3), IsSpectator: true},
	})

	report, err := f.svc.ScoreCompetition(ctx, competitionID)
	if err != nil {
		t.Fatalf("ScoreCompetition failed: %v", err)
	}
	if report.Sessions != 2 {
		t.Errorf("expected 2 sessions scored, got %d", report.Sessions)
	}
	if report.SessionRows != 5 {
		t.Errorf("expected 5 per-session rows (spectator dropped), got %d", report.SessionRows)
	}
	if report.Drivers != 3 {
		t.Errorf("expected 3 drivers in totals, got %d", report.Drivers)
	}

	totals := totalsByDriver(t, f, competitionID)
	// d1: P2 race 18, pole 1, fastest lap 1.
	if got := totals["d1"]; got.RacePoints != 18 || got.PolePoints != 1 || got.FastestLapPoints != 1 || got.TotalPoints != 20 {
		t.Errorf("unexpected d1 totals: %+v", got)
	}
	// d2: P1 race 25, no pole, no fastest lap.
	if got := totals["d2"]; got.TotalPoints != 25 {
		t.Errorf("unexpected d2 totals: %+v", got)
	}
	// d4: unclassified, present with zero points.
	if got, ok := totals["d4"]; !ok || got.TotalPoints != 0 {
		t.Errorf("expected zero-point totals row for d4: %+v", got)
	}
	if _, ok := totals["ghost"]; ok {
		t.Error("spectators must not receive totals")
	}

	rows, err := f.resultRepo.ListSessionRowsByCompetition(ctx, nil, competitionID)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if row.DriverID == "d4" && row.IsClassified {
			t.Error("driver without a position must be unclassified")
		}
		if row.DriverID == "d1" && row.SessionType == "Q" && row.Points != 1 {
			t.Errorf("expected pole bonus on the qualifying row, got %v", row.Points)
		}
	}

	// Rescoring unchanged sessions reproduces the same tables.
	if _, err := f.svc.ScoreCompetition(ctx, competitionID); err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	again := totalsByDriver(t, f, competitionID)
	if len(again) != len(totals) || again["d1"].TotalPoints != totals["d1"].TotalPoints {
		t.Errorf("rescore changed totals: %+v vs %+v", again, totals)
	}
}

func TestScoreCompetition_NamedSystem(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	err := f.pointsRepo.Create(ctx, &models.PointsSystem{
		Name:               "Club Cup",
		PositionPoints:     datatypes.JSON(`{"1": 20, "2": 15}`),
		PolePositionPoints: 2,
		FastestLapPoints:   3,
	})
	if err != nil {
		t.Fatal(err)
	}
	competitionID := f.seedWeekend(t, strPtr("Club Cup"))

	f.seedResults(t, []models.SessionResult{
		{SessionID: "250801_200000_Q", DriverID: "d1", Position: intPtr(1)},
		{SessionID: "250801_220000_R", DriverID: "d1", Position: intPtr(1), BestLap: intPtr(107800)},
		{SessionID: "250801_220000_R", DriverID: "d2", Position: intPtr(2), BestLap: intPtr(108200)},
	})

	if _, err := f.svc.ScoreCompetition(ctx, competitionID); err != nil {
		t.Fatalf("ScoreCompetition failed: %v", err)
	}
	totals := totalsByDriver(t, f, competitionID)
	if got := totals["d1"]; got.RacePoints != 20 || got.PolePoints != 2 || got.FastestLapPoints != 3 || got.TotalPoints != 25 {
		t.Errorf("unexpected d1 totals under named system: %+v", got)
	}
	if got := totals["d2"]; got.TotalPoints != 15 {
		t.Errorf("unexpected d2 totals under named system: %+v", got)
	}
}

func TestScoreCompetition_InlineOverride(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()
	competitionID := f.seedWeekend(t, strPtr(`{"1": 10, "2": 6}`))

	f.seedResults(t, []models.SessionResult{
		{SessionID: "250801_220000_R", DriverID: "d1", Position: intPtr(1), BestLap: intPtr(107800)},
		{SessionID: "250801_220000_R", DriverID: "d2", Position: intPtr(2), BestLap: intPtr(108200)},
	})

	if _, err := f.svc.ScoreCompetition(ctx, competitionID); err != nil {
		t.Fatalf("ScoreCompetition failed: %v", err)
	}
	totals := totalsByDriver(t, f, competitionID)
	// Inline overrides keep single-unit pole and fastest lap bonuses.
	if got := totals["d1"]; got.RacePoints != 10 || got.FastestLapPoints != 1 || got.TotalPoints != 11 {
		t.Errorf("unexpected d1 totals under inline override: %+v", got)
	}
	if got := totals["d2"]; got.TotalPoints != 6 {
		t.Errorf("unexpected d2 totals under inline override: %+v", got)
	}
}

func TestScoreCompetition_UnknownReferenceFallsBack(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()
	competitionID := f.seedWeekend(t, strPtr("No Such System"))

	f.seedResults(t, []models.SessionResult{
		{SessionID: "250801_220000_R", DriverID: "d1", Position: intPtr(1), BestLap: intPtr(107800)},
	})

	if _, err := f.svc.ScoreCompetition(ctx, competitionID); err != nil {
		t.Fatalf("ScoreCompetition failed: %v", err)
	}
	totals := totalsByDriver(t, f, competitionID)
	if got := totals["d1"]; got.RacePoints != 25 {
		t.Errorf("expected default awards on a dangling reference, got %+v", got)
	}
}

func TestScoreCompetition_MissingCompetition(t *testing.T) {
	f := newScoringFixture(t)
	if _, err := f.svc.ScoreCompetition(context.Background(), 404); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("expected ErrCompetitionNotFound, got %v", err)
	}
}
