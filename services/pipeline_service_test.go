package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/storage"
)

// deadStore cannot even list the bucket.
type deadStore struct {
	*memStore
}

func (d *deadStore) ListObjects(ctx context.Context) ([]storage.ObjectInfo, error) {
	return nil, errors.New("bucket unreachable")
}

type pipelineFixture struct {
	svc          PipelineService
	store        *memStore
	inbox        string
	champRepo    repositories.ChampionshipRepository
	compRepo     repositories.CompetitionRepository
	standingRepo repositories.StandingRepository
}

func newPipelineFixture(t *testing.T, store storage.ObjectStore) *pipelineFixture {
	t.Helper()
	gdb := newTestDB(t)

	sessionRepo := repositories.NewGormSessionRepository(gdb)
	driverRepo := repositories.NewGormDriverRepository(gdb)
	compRepo := repositories.NewGormCompetitionRepository(gdb)
	champRepo := repositories.NewGormChampionshipRepository(gdb)
	resultRepo := repositories.NewGormCompetitionResultRepository(gdb)
	pointsRepo := repositories.NewGormPointsSystemRepository(gdb)
	penaltyRepo := repositories.NewGormManualPenaltyRepository(gdb)
	standingRepo := repositories.NewGormStandingRepository(gdb)
	syncedRepo := repositories.NewGormSyncedFileRepository(gdb)

	inbox := t.TempDir()
	log := testLogger()

	var syncSvc SyncService
	if store != nil {
		syncSvc = NewSyncService(store, syncedRepo, inbox, log)
	}
	ingestSvc := NewIngestService(gdb, sessionRepo, driverRepo, compRepo, syncedRepo, log)
	scoringSvc := NewScoringService(gdb, compRepo, sessionRepo, resultRepo, pointsRepo, log)
	standingsSvc := NewStandingsService(gdb, champRepo, compRepo, resultRepo,
		standingRepo, pointsRepo, penaltyRepo, nil, log)

	f := &pipelineFixture{
		inbox:        inbox,
		champRepo:    champRepo,
		compRepo:     compRepo,
		standingRepo: standingRepo,
	}
	if ms, ok := store.(*memStore); ok {
		f.store = ms
	}
	f.svc = NewPipelineService(syncSvc, ingestSvc, scoringSvc, standingsSvc, compRepo, inbox, log)
	return f
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	store := newMemStore()
	f := newPipelineFixture(t, store)
	ctx := context.Background()

	championship := &models.Championship{Name: "GT3 Cup", Season: 2025}
	if err := f.champRepo.Create(ctx, championship); err != nil {
		t.Fatal(err)
	}
	competition := &models.Competition{
		ChampionshipID: &championship.ChampionshipID,
		Name:           "Round 1 - monza",
		RoundNumber:    intPtr(1),
		TrackName:      "monza",
	}
	if err := f.compRepo.Create(ctx, nil, competition); err != nil {
		t.Fatal(err)
	}

	hint := "ACC League id=" + strconv.Itoa(competition.CompetitionID)
	race, err := json.Marshal(raceExport(hint))
	if err != nil {
		t.Fatal(err)
	}
	store.put("results/250801_220556_R.json", race)

	emptyDoc := raceExport(hint)
	emptyDoc.Laps = nil
	emptyDoc.Penalties = nil
	emptyRaw, err := json.Marshal(emptyDoc)
	if err != nil {
		t.Fatal(err)
	}
	store.put("results/250801_194500_FP.json", emptyRaw)

	report, err := f.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Sync == nil || report.Sync.Downloaded != 2 {
		t.Errorf("unexpected sync stage: %+v", report.Sync)
	}
	if report.Ingest == nil || report.Ingest.Processed != 1 || report.Ingest.Empty != 1 {
		t.Errorf("unexpected ingest stage: %+v", report.Ingest)
	}
	if report.CompetitionsScored != 1 || report.ChampionshipsScored != 1 || report.ScopeErrors != 0 {
		t.Errorf("unexpected scoring stages: %+v", report)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("report timestamps out of order")
	}

	standings, err := f.standingRepo.ListByChampionship(ctx, championship.ChampionshipID)
	if err != nil {
		t.Fatal(err)
	}
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings rows, got %d", len(standings))
	}
	// Default awards: the winner takes 25 plus the fastest lap unit.
	leader := standings[0]
	if leader.DriverID != "S76561198000000001" || leader.TotalPoints != 26 || leader.Wins != 1 {
		t.Errorf("unexpected leader: %+v", leader)
	}

	// A second run skips the stored session, re-notes the empty export,
	// and rescores nothing.
	report, err = f.svc.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Ingest.Skipped != 1 || report.Ingest.Empty != 1 || report.Ingest.Processed != 0 {
		t.Errorf("unexpected second ingest pass: %+v", report.Ingest)
	}
	if report.CompetitionsScored != 0 || report.ChampionshipsScored != 0 {
		t.Errorf("expected no rescoring on an idle run, got %+v", report)
	}
}

func TestPipelineRun_WithoutBucket(t *testing.T) {
	f := newPipelineFixture(t, nil)

	report, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Sync != nil || report.SyncError != "" {
		t.Errorf("no sync stage expected without a bucket: %+v", report)
	}
	if report.Ingest == nil || report.Ingest.Files != 0 {
		t.Errorf("expected an empty ingest pass: %+v", report.Ingest)
	}
}

func TestPipelineRun_SyncFailureStillIngests(t *testing.T) {
	f := newPipelineFixture(t, &deadStore{memStore: newMemStore()})
	ctx := context.Background()

	// A file from an earlier pull is already waiting in the inbox.
	raw, err := json.Marshal(raceExport("ACC Server"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.inbox, "250801_220556_R.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := f.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.SyncError == "" || report.Sync != nil {
		t.Errorf("expected the sync failure recorded: %+v", report)
	}
	if report.Ingest == nil || report.Ingest.Processed != 1 {
		t.Errorf("ingest must continue on local files: %+v", report.Ingest)
	}
}
