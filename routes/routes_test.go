package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/accstats/accstats/db"
	"github.com/accstats/accstats/handlers"
	"github.com/accstats/accstats/live"
	"github.com/accstats/accstats/middleware"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/scheduler"
	"github.com/accstats/accstats/services"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "hunter2"
	testJWTSecret     = "routes-test-secret"
)

// newTestServer wires the full API over an in-memory database, the way
// main does it against Postgres.
func newTestServer(t *testing.T) *chi.Mux {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	ctx := context.Background()
	if err := db.Migrate(ctx, gdb); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SeedPointsSystems(ctx, gdb); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := live.NewHub(log)
	go hub.Run()

	driverRepo := repositories.NewGormDriverRepository(gdb)
	reportRepo := repositories.NewGormBadReportRepository(gdb)
	champRepo := repositories.NewGormChampionshipRepository(gdb)
	compRepo := repositories.NewGormCompetitionRepository(gdb)
	sessionRepo := repositories.NewGormSessionRepository(gdb)
	resultRepo := repositories.NewGormCompetitionResultRepository(gdb)
	pointsRepo := repositories.NewGormPointsSystemRepository(gdb)
	penaltyRepo := repositories.NewGormManualPenaltyRepository(gdb)
	standingRepo := repositories.NewGormStandingRepository(gdb)
	syncedRepo := repositories.NewGormSyncedFileRepository(gdb)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	inbox := t.TempDir()

	authService := services.NewAuthService(testAdminUser, string(hash), testJWTSecret)
	ingestService := services.NewIngestService(gdb, sessionRepo, driverRepo, compRepo, syncedRepo, log)
	groupingService := services.NewGroupingService(gdb, sessionRepo, compRepo, champRepo, log)
	scoringService := services.NewScoringService(gdb, compRepo, sessionRepo, resultRepo, pointsRepo, log)
	standingsService := services.NewStandingsService(
		gdb, champRepo, compRepo, resultRepo, standingRepo, pointsRepo, penaltyRepo, hub, log)
	pipelineService := services.NewPipelineService(
		nil, ingestService, scoringService, standingsService, compRepo, inbox, log)

	h := Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Health:       handlers.NewHealthHandler(gdb),
		Driver:       handlers.NewDriverHandler(services.NewDriverService(gdb, driverRepo, reportRepo, log)),
		Ingest:       handlers.NewIngestHandler(ingestService, inbox),
		Session:      handlers.NewSessionHandler(services.NewSessionService(sessionRepo)),
		Grouping:     handlers.NewGroupingHandler(groupingService),
		Competition:  handlers.NewCompetitionHandler(services.NewCompetitionService(gdb, compRepo, sessionRepo, resultRepo, pointsRepo), scoringService),
		Championship: handlers.NewChampionshipHandler(services.NewChampionshipService(champRepo), standingsService),
		Penalty:      handlers.NewPenaltyHandler(services.NewPenaltyService(penaltyRepo, champRepo, driverRepo, compRepo)),
		Points:       handlers.NewPointsHandler(services.NewPointsSystemService(pointsRepo)),
		Entrylist:    handlers.NewEntrylistHandler(services.NewEntrylistService(driverRepo, nil, 3, "BAD>", log)),
		Pipeline:     handlers.NewPipelineHandler(pipelineService),
		Scheduler:    handlers.NewSchedulerHandler(scheduler.New(pipelineService, log), 5*time.Minute),
		WebSocket:    handlers.NewWebSocketHandler(hub, services.NewChampionshipService(champRepo)),
	}

	router := chi.NewRouter()
	SetupRoutes(router, middleware.NewAuthenticator(testJWTSecret), []string{"*"}, h)
	return router
}

func do(t *testing.T, router *chi.Mux, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func login(t *testing.T, router *chi.Mux) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/auth/login", "",
		`{"username": "admin", "password": "hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("login response carries no token")
	}
	return token
}

func TestPublicRoutes(t *testing.T) {
	router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if status := decodeBody(t, rec)["status"]; status != "ok" {
		t.Errorf("healthz status field = %v", status)
	}

	rec = do(t, router, http.MethodGet, "/points-systems", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("points-systems status = %d", rec.Code)
	}
	if count := decodeBody(t, rec)["count"].(float64); count != 6 {
		t.Errorf("seeded points systems = %v, want 6", count)
	}

	for _, path := range []string{"/sessions", "/competitions", "/drivers", "/championships", "/entrylist/export"} {
		rec := do(t, router, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}

	rec = do(t, router, http.MethodGet, "/sessions/no_such_session", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", rec.Code)
	}
}

func TestAuthGate(t *testing.T) {
	router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/auth/login", "",
		`{"username": "admin", "password": "wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}

	body := `{"name": "GT3 Cup", "season": 2025}`
	rec = do(t, router, http.MethodPost, "/championships", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated write status = %d, want 401", rec.Code)
	}

	token := login(t, router)
	rec = do(t, router, http.MethodPost, "/championships", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create championship status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChampionshipFlow(t *testing.T) {
	router := newTestServer(t)
	token := login(t, router)

	rec := do(t, router, http.MethodPost, "/championships", token,
		`{"name": "GT3 Cup", "season": 2025}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)["championship"].(map[string]interface{})
	id := int(created["championship_id"].(float64))
	if id == 0 {
		t.Fatal("championship id missing from response")
	}

	rec = do(t, router, http.MethodGet, "/championships/"+strconv.Itoa(id), "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/championships/"+strconv.Itoa(id)+"/standings", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("standings status = %d", rec.Code)
	}
	if count := decodeBody(t, rec)["count"].(float64); count != 0 {
		t.Errorf("fresh championship standings count = %v, want 0", count)
	}

	rec = do(t, router, http.MethodPost, "/championships/"+strconv.Itoa(id)+"/score", token, "")
	if rec.Code != http.StatusOK {
		t.Errorf("score status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/championships/9999", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing championship status = %d, want 404", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/championships", token,
		`{"name": "   ", "season": 2025}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rec.Code)
	}
}

func TestIngestAndSchedulerRoutes(t *testing.T) {
	router := newTestServer(t)
	token := login(t, router)

	rec := do(t, router, http.MethodPost, "/ingest/scan", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rec.Code, rec.Body.String())
	}
	if files := decodeBody(t, rec)["files"].(float64); files != 0 {
		t.Errorf("empty inbox scan files = %v, want 0", files)
	}

	rec = do(t, router, http.MethodPost, "/ingest/files/..escape.json", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("dotted filename status = %d, want 400", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/scheduler/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("scheduler status = %d", rec.Code)
	}
	if running := decodeBody(t, rec)["running"].(bool); running {
		t.Error("scheduler reported running before start")
	}

	rec = do(t, router, http.MethodPost, "/scheduler/stop", token, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("stop while idle status = %d, want 409", rec.Code)
	}
}

