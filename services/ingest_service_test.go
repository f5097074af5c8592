package services

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

func newIngestFixture(t *testing.T) (IngestService, repositories.SessionRepository, repositories.DriverRepository, repositories.CompetitionRepository, repositories.SyncedFileRepository) {
	t.Helper()
	gdb := newTestDB(t)
	sessionRepo := repositories.NewGormSessionRepository(gdb)
	driverRepo := repositories.NewGormDriverRepository(gdb)
	compRepo := repositories.NewGormCompetitionRepository(gdb)
	syncedRepo := repositories.NewGormSyncedFileRepository(gdb)
	svc := NewIngestService(gdb, sessionRepo, driverRepo, compRepo, syncedRepo, testLogger())
	return svc, sessionRepo, driverRepo, compRepo, syncedRepo
}

func leaderLine(playerID, lastName, shortName string, carID, raceNumber, bestLap, lapCount int) results.LeaderBoardLine {
	driver := results.DriverInfo{LastName: lastName, ShortName: shortName, PlayerID: playerID}
	return results.LeaderBoardLine{
		Car: results.CarInfo{
			CarID:      carID,
			RaceNumber: raceNumber,
			CarModel:   30,
			Drivers:    []results.DriverInfo{driver},
		},
		CurrentDriver: driver,
		Timing:        results.TimingInfo{BestLap: &bestLap, LapCount: lapCount},
	}
}

func writeExport(t *testing.T, dir, name string, doc *results.Document) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func raceExport(server string) *results.Document {
	return &results.Document{
		TrackName:    "monza",
		ServerName:   server,
		SessionType:  "R",
		SessionIndex: 2,
		SessionResult: &results.Scoreboard{
			LeaderBoardLines: []results.LeaderBoardLine{
				leaderLine("S76561198000000001", "Verstberg", "VER", 1011, 7, 108045, 2),
				leaderLine("S76561198000000002", "Hamilford", "HAM", 1012, 44, 108410, 2),
			},
		},
		Laps: []results.LapLine{
			{CarID: 1011, LapTime: 108200, IsValidForBest: true, Splits: []int{35000, 36100, 37100}},
			{CarID: 1012, LapTime: 108410, IsValidForBest: true, Splits: []int{35100, 36200, 37110}},
			{CarID: 1011, LapTime: 108045, IsValidForBest: true, Splits: []int{34900, 36050, 37095}},
		},
		Penalties: []results.PenaltyLine{
			{CarID: 1012, Reason: "Cutting", Penalty: "DriveThrough", ViolationLap: 1, ClearedLap: 2},
		},
	}
}

func TestIngestFile_ProcessedThenSkipped(t *testing.T) {
	svc, sessionRepo, driverRepo, _, syncedRepo := newIngestFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeExport(t, dir, "250801_220556_R.json", raceExport("ACC Server"))

	outcome, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome.Status != IngestStatusProcessed {
		t.Fatalf("expected processed, got %q (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.SessionID != "250801_220556_R" {
		t.Errorf("unexpected session id %q", outcome.SessionID)
	}
	if outcome.Drivers != 2 || outcome.Laps != 3 {
		t.Errorf("expected 2 drivers / 3 laps, got %d / %d", outcome.Drivers, outcome.Laps)
	}

	session, err := sessionRepo.GetByID(ctx, "250801_220556_R")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.TrackName != "monza" || session.SessionType != "R" {
		t.Errorf("unexpected session row: %+v", session)
	}
	if session.SessionOrder != 3 {
		t.Errorf("expected session_order 3 from sessionIndex 2, got %d", session.SessionOrder)
	}

	rows, err := sessionRepo.ListResults(ctx, nil, "250801_220556_R")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 result rows, got %d", len(rows))
	}
	if rows[0].Position == nil || *rows[0].Position != 1 || rows[0].DriverID != "S76561198000000001" {
		t.Errorf("expected leaderboard order to set positions, got %+v", rows[0])
	}

	driver, err := driverRepo.GetByID(ctx, "S76561198000000002")
	if err != nil {
		t.Fatal(err)
	}
	if driver.TotalSessions != 1 {
		t.Errorf("expected total_sessions 1, got %d", driver.TotalSessions)
	}

	penalties, err := sessionRepo.ListPenalties(ctx, "250801_220556_R")
	if err != nil {
		t.Fatal(err)
	}
	if len(penalties) != 1 || penalties[0].DriverID != "S76561198000000002" {
		t.Errorf("expected one penalty mapped through the car id, got %+v", penalties)
	}

	synced, err := syncedRepo.GetByFilename(ctx, "250801_220556_R.json")
	if err != nil {
		t.Fatal(err)
	}
	if !synced.ProcessedInDB {
		t.Error("expected synced file marked processed")
	}

	again, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if again.Status != IngestStatusSkipped {
		t.Errorf("expected skipped on re-ingest, got %q", again.Status)
	}
	if driver, err = driverRepo.GetByID(ctx, "S76561198000000002"); err != nil || driver.TotalSessions != 1 {
		t.Errorf("re-ingest must not touch drivers: %v sessions=%d", err, driver.TotalSessions)
	}
}

func TestIngestFile_EmptyExportUpdatesDriversOnly(t *testing.T) {
	svc, sessionRepo, driverRepo, _, _ := newIngestFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	doc := raceExport("ACC Server")
	doc.Laps = nil
	doc.Penalties = nil
	path := writeExport(t, dir, "250802_190000_FP.json", doc)

	outcome, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome.Status != IngestStatusProcessedEmpty {
		t.Fatalf("expected processed_empty, got %q", outcome.Status)
	}

	exists, err := sessionRepo.ExistsByFilename(ctx, "250802_190000_FP.json")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("empty exports must not create session rows")
	}

	driver, err := driverRepo.GetByID(ctx, "S76561198000000001")
	if err != nil {
		t.Fatalf("driver sighting not recorded: %v", err)
	}
	if driver.TotalSessions != 0 {
		t.Errorf("empty exports must not count sessions, got %d", driver.TotalSessions)
	}
}

func TestIngestFile_RejectsUnusableFilename(t *testing.T) {
	svc, _, _, _, _ := newIngestFixture(t)
	dir := t.TempDir()

	path := writeExport(t, dir, "not_a_session.json", raceExport("ACC Server"))

	outcome, err := svc.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome.Status != IngestStatusError {
		t.Fatalf("expected error outcome, got %q", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Error("expected a reason on the error outcome")
	}
}

func TestIngestFile_CompetitionHint(t *testing.T) {
	svc, sessionRepo, _, compRepo, _ := newIngestFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	competition := &models.Competition{Name: "Round 1 - monza", TrackName: "monza"}
	if err := compRepo.Create(ctx, nil, competition); err != nil {
		t.Fatal(err)
	}

	hint := "ACC League id=" + strconv.Itoa(competition.CompetitionID)
	path := writeExport(t, dir, "250801_220556_R.json", raceExport(hint))

	outcome, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.CompetitionID == nil || *outcome.CompetitionID != competition.CompetitionID {
		t.Fatalf("expected hint accepted, got %+v", outcome.CompetitionID)
	}
	session, err := sessionRepo.GetByID(ctx, "250801_220556_R")
	if err != nil {
		t.Fatal(err)
	}
	if session.CompetitionID == nil || !session.IsAutoAssignComp {
		t.Errorf("expected auto-assigned session, got %+v", session)
	}

	// A second race in the same competition: the type slot is taken.
	path = writeExport(t, dir, "250801_231000_R.json", raceExport(hint))
	outcome, err = svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != IngestStatusProcessed || outcome.CompetitionID != nil {
		t.Errorf("expected unassigned import on duplicate type, got %+v", outcome)
	}

	// A completed competition rejects every hint.
	if err := compRepo.SetCompleted(ctx, nil, competition.CompetitionID, true); err != nil {
		t.Fatal(err)
	}
	doc := raceExport(hint)
	doc.SessionType = "Q"
	path = writeExport(t, dir, "250801_210000_Q.json", doc)
	outcome, err = svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.CompetitionID != nil {
		t.Errorf("expected hint rejected for completed competition, got %+v", outcome.CompetitionID)
	}
}

func TestIngestBatch_MixedOutcomes(t *testing.T) {
	svc, _, _, _, _ := newIngestFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeExport(t, dir, "250801_220556_R.json", raceExport("ACC Server"))
	empty := raceExport("ACC Server")
	empty.Laps = nil
	empty.Penalties = nil
	writeExport(t, dir, "250801_194500_FP.json", empty)
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := svc.IngestBatch(ctx, dir)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if report.Files != 3 {
		t.Errorf("expected 3 json files considered, got %d", report.Files)
	}
	if report.Processed != 1 || report.Empty != 1 || report.Errors != 1 || report.Skipped != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	// Lexicographic order is chronological for stamped names.
	if report.Outcomes[0].Filename != "250801_194500_FP.json" {
		t.Errorf("expected batch sorted by filename, got %q first", report.Outcomes[0].Filename)
	}
}
