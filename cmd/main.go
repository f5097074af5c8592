package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/accstats/accstats/config"
	"github.com/accstats/accstats/db"
	"github.com/accstats/accstats/handlers"
	"github.com/accstats/accstats/live"
	"github.com/accstats/accstats/logger"
	"github.com/accstats/accstats/middleware"
	"github.com/accstats/accstats/repositories"
	api "github.com/accstats/accstats/routes"
	"github.com/accstats/accstats/scheduler"
	"github.com/accstats/accstats/services"
	"github.com/accstats/accstats/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		slog.Error("failed to initialize logger", slog.Any("error", err))
		os.Exit(1)
	}
	// Handler helpers log through the default logger.
	slog.SetDefault(log)
	log.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	if err := os.MkdirAll(cfg.ResultsInboxDir, 0o755); err != nil {
		log.Error("failed to create results inbox directory", slog.Any("error", err))
		os.Exit(1)
	}

	sqlDB, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Error("failed to close database connection", slog.Any("error", err))
		} else {
			log.Info("database connection closed")
		}
	}()
	log.Info("database connection established")

	gdb, err := db.Wrap(sqlDB)
	if err != nil {
		log.Error("failed to initialize orm", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	if err := db.Migrate(ctx, gdb); err != nil {
		log.Error("database migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	seeded, err := db.SeedPointsSystems(ctx, gdb)
	if err != nil {
		log.Error("failed to seed points systems", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("database ready", slog.Int("points_systems_seeded", seeded))

	var store storage.ObjectStore
	if cfg.SyncEnabled() {
		store, err = storage.NewS3ObjectStore(ctx, storage.S3Config{
			Endpoint:        cfg.SyncEndpoint,
			AccessKeyID:     cfg.SyncAccessKeyID,
			SecretAccessKey: cfg.SyncSecretAccessKey,
			Bucket:          cfg.SyncBucket,
			Prefix:          cfg.SyncPrefix,
		})
		if err != nil {
			log.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		log.Info("object store initialized", slog.String("bucket", cfg.SyncBucket))
	} else {
		log.Info("object store not configured, remote sync disabled")
	}

	hub := live.NewHub(log)
	go hub.Run()
	log.Info("standings hub started")

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
	log.Info("repositories initialized")

	authService := services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecretKey)
	ingestService := services.NewIngestService(gdb, sessionRepo, driverRepo, compRepo, syncedRepo, log)
	groupingService := services.NewGroupingService(gdb, sessionRepo, compRepo, champRepo, log)
	scoringService := services.NewScoringService(gdb, compRepo, sessionRepo, resultRepo, pointsRepo, log)
	standingsService := services.NewStandingsService(
		gdb, champRepo, compRepo, resultRepo, standingRepo, pointsRepo, penaltyRepo, hub, log)

	var syncService services.SyncService
	if store != nil {
		syncService = services.NewSyncService(store, syncedRepo, cfg.ResultsInboxDir, log)
	}
	pipelineService := services.NewPipelineService(
		syncService, ingestService, scoringService, standingsService, compRepo, cfg.ResultsInboxDir, log)

	driverService := services.NewDriverService(gdb, driverRepo, reportRepo, log)
	entrylistService := services.NewEntrylistService(
		driverRepo, store, cfg.BadReportWarnThreshold, cfg.EntrylistFlagPrefix, log)
	pointsService := services.NewPointsSystemService(pointsRepo)
	penaltyService := services.NewPenaltyService(penaltyRepo, champRepo, driverRepo, compRepo)
	championshipService := services.NewChampionshipService(champRepo)
	competitionService := services.NewCompetitionService(gdb, compRepo, sessionRepo, resultRepo, pointsRepo)
	sessionService := services.NewSessionService(sessionRepo)
	log.Info("services initialized")

	sched := scheduler.New(pipelineService, log)
	if cfg.AutoSync {
		if err := sched.Start(cfg.SchedulerInterval); err != nil {
			log.Error("failed to start scheduler", slog.Any("error", err))
			os.Exit(1)
		}
	}

	h := api.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Health:       handlers.NewHealthHandler(gdb),
		Driver:       handlers.NewDriverHandler(driverService),
		Ingest:       handlers.NewIngestHandler(ingestService, cfg.ResultsInboxDir),
		Session:      handlers.NewSessionHandler(sessionService),
		Grouping:     handlers.NewGroupingHandler(groupingService),
		Competition:  handlers.NewCompetitionHandler(competitionService, scoringService),
		Championship: handlers.NewChampionshipHandler(championshipService, standingsService),
		Penalty:      handlers.NewPenaltyHandler(penaltyService),
		Points:       handlers.NewPointsHandler(pointsService),
		Entrylist:    handlers.NewEntrylistHandler(entrylistService),
		Pipeline:     handlers.NewPipelineHandler(pipelineService),
		Scheduler:    handlers.NewSchedulerHandler(sched, cfg.SchedulerInterval),
		WebSocket:    handlers.NewWebSocketHandler(hub, championshipService),
	}

	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := chi.NewRouter()
	api.SetupRoutes(router, auth, cfg.CORSAllowedOrigins, h)
	log.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		log.Info("server stopped gracefully")
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))

		if sched.Status().Running {
			if err := sched.Stop(); err != nil {
				log.Error("failed to stop scheduler", slog.Any("error", err))
			}
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				log.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		log.Info("server shutdown complete")
	}
}
