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

type competitionFixture struct {
	svc         CompetitionService
	compRepo    repositories.CompetitionRepository
	sessionRepo repositories.SessionRepository
	resultRepo  repositories.CompetitionResultRepository
	pointsRepo  repositories.PointsSystemRepository
	champRepo   repositories.ChampionshipRepository
}

func newCompetitionFixture(t *testing.T) competitionFixture {
	t.Helper()
	gdb := newTestDB(t)
	f := competitionFixture{
		compRepo:    repositories.NewGormCompetitionRepository(gdb),
		sessionRepo: repositories.NewGormSessionRepository(gdb),
		resultRepo:  repositories.NewGormCompetitionResultRepository(gdb),
		pointsRepo:  repositories.NewGormPointsSystemRepository(gdb),
		champRepo:   repositories.NewGormChampionshipRepository(gdb),
	}
	f.svc = NewCompetitionService(gdb, f.compRepo, f.sessionRepo, f.resultRepo, f.pointsRepo)
	return f
}

func (f competitionFixture) seedCompetition(t *testing.T, name, track string) *models.Competition {
	t.Helper()
	competition := &models.Competition{
		Name:          name,
		TrackName:     track,
		DateStart:     time.Date(2025, 8, 1, 19, 0, 0, 0, time.UTC),
		DateEnd:       time.Date(2025, 8, 1, 22, 0, 0, 0, time.UTC),
		WeekendFormat: models.WeekendFormatStandard,
	}
	if err := f.compRepo.Create(context.Background(), nil, competition); err != nil {
		t.Fatalf("seed competition: %v", err)
	}
	return competition
}

func TestCompetitionService_GetAndResults(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	competition := f.seedCompetition(t, "Monza GP", "monza")
	seedSession(t, f.sessionRepo, "250801_190000_Q", "250801_190000_Q.json", "Q", "monza",
		time.Date(2025, 8, 1, 19, 0, 0, 0, time.UTC))
	seedSession(t, f.sessionRepo, "250801_203000_R", "250801_203000_R.json", "R", "monza",
		time.Date(2025, 8, 1, 20, 30, 0, 0, time.UTC))
	for i, id := range []string{"250801_190000_Q", "250801_203000_R"} {
		if err := f.sessionRepo.AssignCompetition(ctx, nil, id, competition.CompetitionID, i+1, false); err != nil {
			t.Fatalf("assign session %s: %v", id, err)
		}
	}
	totals := []models.CompetitionResult{
		{CompetitionID: competition.CompetitionID, DriverID: "S1", RacePoints: 25, TotalPoints: 25},
		{CompetitionID: competition.CompetitionID, DriverID: "S2", RacePoints: 18, TotalPoints: 18},
	}
	if err := f.resultRepo.BatchInsertTotals(ctx, nil, totals); err != nil {
		t.Fatalf("seed totals: %v", err)
	}
	rows := []models.CompetitionSessionResult{
		{CompetitionID: competition.CompetitionID, DriverID: "S1", SessionID: "250801_203000_R", SessionType: "R", Position: intPtr(1), Points: 25, IsClassified: true},
	}
	if err := f.resultRepo.BatchInsertSessionRows(ctx, nil, rows); err != nil {
		t.Fatalf("seed session rows: %v", err)
	}

	detail, err := f.svc.Get(ctx, competition.CompetitionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Competition.Name != "Monza GP" {
		t.Errorf("competition name = %q, want %q", detail.Competition.Name, "Monza GP")
	}
	if len(detail.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(detail.Sessions))
	}
	if detail.Sessions[0].SessionID != "250801_190000_Q" || detail.Sessions[1].SessionID != "250801_203000_R" {
		t.Errorf("sessions out of running order: %s, %s", detail.Sessions[0].SessionID, detail.Sessions[1].SessionID)
	}

	results, err := f.svc.Results(ctx, competition.CompetitionID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results.Totals) != 2 {
		t.Fatalf("totals = %d, want 2", len(results.Totals))
	}
	if results.Totals[0].DriverID != "S1" {
		t.Errorf("totals leader = %s, want S1", results.Totals[0].DriverID)
	}
	if len(results.SessionRows) != 1 {
		t.Errorf("session rows = %d, want 1", len(results.SessionRows))
	}

	if _, err := f.svc.Get(ctx, 9999); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("Get missing: err = %v, want ErrCompetitionNotFound", err)
	}
	if _, err := f.svc.Results(ctx, 9999); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("Results missing: err = %v, want ErrCompetitionNotFound", err)
	}
}

func TestCompetitionService_List(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	championship := &models.Championship{Name: "GT3 Cup", Season: 2025}
	if err := f.champRepo.Create(ctx, championship); err != nil {
		t.Fatalf("seed championship: %v", err)
	}

	inChamp := f.seedCompetition(t, "Round 1 - monza", "monza")
	inChamp.ChampionshipID = &championship.ChampionshipID
	inChamp.IsCompleted = true
	if err := f.compRepo.Update(ctx, inChamp); err != nil {
		t.Fatalf("update competition: %v", err)
	}
	f.seedCompetition(t, "spa - 2025-08-08", "spa")

	all, err := f.svc.List(ctx, repositories.CompetitionFilter{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all competitions = %d, want 2", len(all))
	}

	byChamp, err := f.svc.List(ctx, repositories.CompetitionFilter{ChampionshipID: &championship.ChampionshipID})
	if err != nil {
		t.Fatalf("List by championship: %v", err)
	}
	if len(byChamp) != 1 || byChamp[0].CompetitionID != inChamp.CompetitionID {
		t.Errorf("championship filter returned %d rows, want the single round", len(byChamp))
	}

	completed, err := f.svc.List(ctx, repositories.CompetitionFilter{Completed: boolPtr(false)})
	if err != nil {
		t.Fatalf("List open: %v", err)
	}
	if len(completed) != 1 || completed[0].TrackName != "spa" {
		t.Errorf("open filter returned %d rows, want the spa weekend", len(completed))
	}
}

func TestCompetitionService_SetPointsSystem(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	if err := f.pointsRepo.Create(ctx, &models.PointsSystem{
		Name:           "Club Cup",
		PositionPoints: datatypes.JSON(`{"1": 20, "2": 15}`),
	}); err != nil {
		t.Fatalf("seed points system: %v", err)
	}
	competition := f.seedCompetition(t, "Monza GP", "monza")

	updated, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, strPtr("  Club Cup  "))
	if err != nil {
		t.Fatalf("set named system: %v", err)
	}
	if updated.PointsSystemJSON == nil || *updated.PointsSystemJSON != "Club Cup" {
		t.Errorf("stored ref = %v, want trimmed name", updated.PointsSystemJSON)
	}

	inline := `{"1": 10, "2": 6}`
	updated, err = f.svc.SetPointsSystem(ctx, competition.CompetitionID, &inline)
	if err != nil {
		t.Fatalf("set inline override: %v", err)
	}
	if updated.PointsSystemJSON == nil || *updated.PointsSystemJSON != inline {
		t.Errorf("stored ref = %v, want inline JSON", updated.PointsSystemJSON)
	}

	if _, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, nil); err != nil {
		t.Fatalf("clear ref: %v", err)
	}
	stored, err := f.compRepo.GetByID(ctx, competition.CompetitionID)
	if err != nil {
		t.Fatalf("reload competition: %v", err)
	}
	if stored.PointsSystemJSON != nil {
		t.Errorf("ref after clear = %v, want nil", *stored.PointsSystemJSON)
	}

	if _, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, strPtr("   ")); err != nil {
		t.Fatalf("blank ref: %v", err)
	}
	stored, _ = f.compRepo.GetByID(ctx, competition.CompetitionID)
	if stored.PointsSystemJSON != nil {
		t.Errorf("blank ref should clear, got %v", *stored.PointsSystemJSON)
	}

	if _, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, strPtr("No Such System")); !errors.Is(err, ErrPointsSystemNotFound) {
		t.Errorf("unknown name: err = %v, want ErrPointsSystemNotFound", err)
	}
	if _, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, strPtr(`{"first": 10}`)); !errors.Is(err, ErrPointsMapInvalid) {
		t.Errorf("bad position key: err = %v, want ErrPointsMapInvalid", err)
	}
	if _, err := f.svc.SetPointsSystem(ctx, competition.CompetitionID, strPtr(`{oops`)); !errors.Is(err, ErrPointsMapInvalid) {
		t.Errorf("malformed JSON: err = %v, want ErrPointsMapInvalid", err)
	}
	if _, err := f.svc.SetPointsSystem(ctx, 9999, strPtr("Club Cup")); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("missing competition: err = %v, want ErrCompetitionNotFound", err)
	}
}

func TestCompetitionService_DeleteUnassignsSessions(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	competition := f.seedCompetition(t, "Monza GP", "monza")
	seedSession(t, f.sessionRepo, "250801_203000_R", "250801_203000_R.json", "R", "monza",
		time.Date(2025, 8, 1, 20, 30, 0, 0, time.UTC))
	if err := f.sessionRepo.AssignCompetition(ctx, nil, "250801_203000_R", competition.CompetitionID, 1, true); err != nil {
		t.Fatalf("assign session: %v", err)
	}
	if err := f.resultRepo.BatchInsertTotals(ctx, nil, []models.CompetitionResult{
		{CompetitionID: competition.CompetitionID, DriverID: "S1", TotalPoints: 25},
	}); err != nil {
		t.Fatalf("seed totals: %v", err)
	}

	if err := f.svc.Delete(ctx, competition.CompetitionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.compRepo.GetByID(ctx, competition.CompetitionID); !errors.Is(err, repositories.ErrCompetitionNotFound) {
		t.Errorf("competition still present after delete: err = %v", err)
	}
	session, err := f.sessionRepo.GetByID(ctx, "250801_203000_R")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.CompetitionID != nil || session.SessionOrder != 0 || session.IsAutoAssignComp {
		t.Errorf("session not returned to unassigned pool: %+v", session)
	}
	totals, err := f.resultRepo.ListTotalsByCompetition(ctx, nil, competition.CompetitionID)
	if err != nil {
		t.Fatalf("list totals: %v", err)
	}
	if len(totals) != 0 {
		t.Errorf("derived totals left behind: %d rows", len(totals))
	}

	if err := f.svc.Delete(ctx, 9999); !errors.Is(err, ErrCompetitionNotFound) {
		t.Errorf("missing competition: err = %v, want ErrCompetitionNotFound", err)
	}
}
