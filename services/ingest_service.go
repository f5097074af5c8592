package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

// Per-file ingestion outcomes.
const (
	IngestStatusProcessed      = "processed"
	IngestStatusProcessedEmpty = "processed_empty"
	IngestStatusSkipped        = "skipped"
	IngestStatusError          = "error"
)

type IngestOutcome struct {
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	SessionID     string `json:"session_id,omitempty"`
	SessionType   string `json:"session_type,omitempty"`
	Drivers       int    `json:"drivers"`
	Laps          int    `json:"laps"`
	CompetitionID *int   `json:"competition_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type IngestBatchReport struct {
	Files     int             `json:"files"`
	Processed int             `json:"processed"`
	Empty     int             `json:"empty"`
	Skipped   int             `json:"skipped"`
	Errors    int             `json:"errors"`
	Outcomes  []IngestOutcome `json:"outcomes"`
}

type IngestService interface {
	// IngestFile imports one export. File-level problems (bad name, bad
	// encoding, bad document) come back as an error-status outcome with a
	// nil error; a non-nil error means the datastore failed.
	IngestFile(ctx context.Context, path string) (*IngestOutcome, error)
	// IngestBatch walks a directory in lexicographic filename order, which
	// for the stamped names is chronological. One bad file never stops the
	// batch.
	IngestBatch(ctx context.Context, dir string) (*IngestBatchReport, error)
}

type ingestService struct {
	db          *gorm.DB
	sessionRepo repositories.SessionRepository
	driverRepo  repositories.DriverRepository
	compRepo    repositories.CompetitionRepository
	syncedRepo  repositories.SyncedFileRepository
	logger      *slog.Logger
}

func NewIngestService(
	db *gorm.DB,
	sessionRepo repositories.SessionRepository,
	driverRepo repositories.DriverRepository,
	compRepo repositories.CompetitionRepository,
	syncedRepo repositories.SyncedFileRepository,
	logger *slog.Logger,
) IngestService {
	return &ingestService{
		db:          db,
		sessionRepo: sessionRepo,
		driverRepo:  driverRepo,
		compRepo:    compRepo,
		syncedRepo:  syncedRepo,
		logger:      logger,
	}
}

func (s *ingestService) IngestFile(ctx context.Context, path string) (*IngestOutcome, error) {
	filename := filepath.Base(path)

	info, err := results.ParseFilename(filename)
	if err != nil {
		return fileError(filename, fmt.Sprintf("unusable filename: %v", err)), nil
	}
	if !results.ValidTypeToken(info.TypeToken) {
		s.logger.Warn("unrecognized session token in filename",
			slog.String("file", filename), slog.String("token", info.TypeToken))
	}

	exists, err := s.sessionRepo.ExistsByFilename(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: checking %s: %w", ErrIngestFailed, filename, err)
	}
	if exists {
		if err := s.syncedRepo.MarkProcessed(ctx, nil, filename, "legacy_session"); err != nil {
			return nil, fmt.Errorf("%w: marking %s: %w", ErrIngestFailed, filename, err)
		}
		return &IngestOutcome{
			Filename: filename,
			Status:   IngestStatusSkipped,
			Reason:   "already ingested",
		}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fileError(filename, fmt.Sprintf("read failed: %v", err)), nil
	}

	doc, err := results.Parse(raw)
	if err != nil {
		// Not marked: the file stays eligible for a retry after a fix.
		s.logger.Error("export unreadable", slog.String("file", filename), slog.Any("error", err))
		return fileError(filename, err.Error()), nil
	}

	sessionType := results.NormalizeSessionType(doc.SessionType, info.TypeToken)
	lines := doc.SessionResult.LeaderBoardLines

	carToDriver := make(map[int]string, len(lines))
	for _, line := range lines {
		id := line.DriverID()
		if id == "" {
			return fileError(filename, fmt.Sprintf("leaderboard line for car %d has no player id", line.Car.CarID)), nil
		}
		carToDriver[line.Car.CarID] = id
	}

	if len(doc.Laps) == 0 {
		return s.ingestEmpty(ctx, filename, info, sessionType, doc)
	}

	competitionID, err := s.resolveHint(ctx, filename, sessionType, doc)
	if err != nil {
		return nil, err
	}

	outcome := &IngestOutcome{
		Filename:      filename,
		Status:        IngestStatusProcessed,
		SessionID:     info.SessionID,
		SessionType:   sessionType,
		Drivers:       len(lines),
		CompetitionID: competitionID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := &models.Session{
			SessionID:        info.SessionID,
			Filename:         filename,
			SessionType:      sessionType,
			TrackName:        doc.TrackName,
			ServerName:       doc.ServerName,
			SessionDate:      info.Date,
			BestLapOverall:   doc.SessionResult.BestLap,
			TotalDrivers:     len(lines),
			CompetitionID:    competitionID,
			SessionOrder:     doc.SessionIndex + 1,
			IsAutoAssignComp: competitionID != nil,
		}
		if err := s.sessionRepo.Create(ctx, tx, session); err != nil {
			return err
		}

		rows := make([]models.SessionResult, 0, len(lines))
		for i, line := range lines {
			if err := s.driverRepo.Upsert(ctx, tx, sightingFromLine(&line, info.Date, 1), true); err != nil {
				return err
			}
			position := i + 1
			rows = append(rows, models.SessionResult{
				SessionID:   info.SessionID,
				DriverID:    carToDriver[line.Car.CarID],
				Position:    &position,
				CarID:       line.Car.CarID,
				RaceNumber:  line.Car.RaceNumber,
				CarModel:    line.Car.CarModel,
				BestLap:     line.Timing.BestLap,
				TotalTime:   line.Timing.TotalTime,
				LapCount:    line.Timing.LapCount,
				IsSpectator: line.IsSpectator,
			})
		}
		if err := s.sessionRepo.BatchInsertResults(ctx, tx, rows); err != nil {
			return err
		}

		laps, unmapped := lapsFromDocument(info.SessionID, doc, carToDriver)
		if unmapped > 0 {
			s.logger.Warn("laps without a leaderboard car skipped",
				slog.String("file", filename), slog.Int("count", unmapped))
		}
		if err := s.sessionRepo.BatchInsertLaps(ctx, tx, laps); err != nil {
			return err
		}
		outcome.Laps = len(laps)

		penalties := penaltiesFromDocument(info.SessionID, doc, carToDriver)
		if err := s.sessionRepo.BatchInsertPenalties(ctx, tx, penalties); err != nil {
			return err
		}

		summary := fmt.Sprintf("type=%s drivers=%d laps=%d competition=%s",
			sessionType, len(lines), len(laps), competitionRef(competitionID))
		return s.syncedRepo.MarkProcessed(ctx, tx, filename, summary)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIngestFailed, filename, err)
	}

	s.logger.Info("session ingested",
		slog.String("file", filename),
		slog.String("type", sessionType),
		slog.Int("drivers", outcome.Drivers),
		slog.Int("laps", outcome.Laps))
	return outcome, nil
}

// ingestEmpty handles exports with a leaderboard but zero laps: drivers get
// a sighting, nothing else is written.
func (s *ingestService) ingestEmpty(ctx context.Context, filename string, info results.FileInfo, sessionType string, doc *results.Document) (*IngestOutcome, error) {
	lines := doc.SessionResult.LeaderBoardLines

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			if err := s.driverRepo.Upsert(ctx, tx, sightingFromLine(&line, info.Date, 0), false); err != nil {
				return err
			}
		}
		summary := fmt.Sprintf("empty type=%s drivers=%d", sessionType, len(lines))
		return s.syncedRepo.MarkProcessed(ctx, tx, filename, summary)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIngestFailed, filename, err)
	}

	s.logger.Info("empty session processed",
		slog.String("file", filename), slog.Int("drivers", len(lines)))
	return &IngestOutcome{
		Filename:    filename,
		Status:      IngestStatusProcessedEmpty,
		SessionID:   info.SessionID,
		SessionType: sessionType,
		Drivers:     len(lines),
	}, nil
}

// resolveHint validates an id=N server-name hint. Every rejection imports
// the session unassigned and logs why.
func (s *ingestService) resolveHint(ctx context.Context, filename, sessionType string, doc *results.Document) (*int, error) {
	hintID, ok := doc.CompetitionHint()
	if !ok {
		return nil, nil
	}

	comp, err := s.compRepo.GetByID(ctx, hintID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			s.logger.Warn("competition hint rejected: competition not found",
				slog.String("file", filename), slog.Int("competition_id", hintID))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: resolving hint for %s: %w", ErrIngestFailed, filename, err)
	}
	if comp.IsCompleted {
		s.logger.Warn("competition hint rejected: competition already completed",
			slog.String("file", filename), slog.Int("competition_id", hintID))
		return nil, nil
	}

	taken, err := s.sessionRepo.HasTypeInCompetition(ctx, hintID, sessionType)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving hint for %s: %w", ErrIngestFailed, filename, err)
	}
	if taken {
		s.logger.Warn("competition hint rejected: session type already present",
			slog.String("file", filename),
			slog.Int("competition_id", hintID),
			slog.String("type", sessionType))
		return nil, nil
	}

	s.logger.Info("competition hint accepted",
		slog.String("file", filename), slog.Int("competition_id", hintID))
	return &hintID, nil
}

func (s *ingestService) IngestBatch(ctx context.Context, dir string) (*IngestBatchReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading inbox %s: %w", ErrIngestFailed, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	report := &IngestBatchReport{
		Files:    len(names),
		Outcomes: make([]IngestOutcome, 0, len(names)),
	}
	for _, name := range names {
		outcome, err := s.IngestFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, *outcome)
		switch outcome.Status {
		case IngestStatusProcessed:
			report.Processed++
		case IngestStatusProcessedEmpty:
			report.Empty++
		case IngestStatusSkipped:
			report.Skipped++
		default:
			report.Errors++
		}
	}

	s.logger.Info("inbox batch finished",
		slog.Int("files", report.Files),
		slog.Int("processed", report.Processed),
		slog.Int("empty", report.Empty),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.Errors))
	return report, nil
}

func fileError(filename, reason string) *IngestOutcome {
	return &IngestOutcome{Filename: filename, Status: IngestStatusError, Reason: reason}
}

func sightingFromLine(line *results.LeaderBoardLine, seen time.Time, sessions int) *models.Driver {
	shortName := line.CurrentDriver.ShortName
	raceNumber := line.Car.RaceNumber
	seenAt := seen
	return &models.Driver{
		DriverID:            line.DriverID(),
		LastName:            line.CurrentDriver.LastName,
		ShortName:           &shortName,
		PreferredRaceNumber: &raceNumber,
		FirstSeen:           &seenAt,
		LastSeen:            &seenAt,
		TotalSessions:       sessions,
	}
}

// lapsFromDocument numbers laps by file order. The counter advances for
// unmapped laps too, so attributed laps keep their original index.
func lapsFromDocument(sessionID string, doc *results.Document, carToDriver map[int]string) ([]models.Lap, int) {
	laps := make([]models.Lap, 0, len(doc.Laps))
	unmapped := 0
	lapNumber := 0
	for _, lap := range doc.Laps {
		lapNumber++
		driverID, ok := carToDriver[lap.CarID]
		if !ok {
			unmapped++
			continue
		}
		row := models.Lap{
			SessionID:      sessionID,
			DriverID:       driverID,
			CarID:          lap.CarID,
			LapNumber:      lapNumber,
			LapTime:        lap.LapTime,
			IsValidForBest: lap.IsValidForBest,
		}
		for i, split := range lap.Splits {
			if i > 2 {
				break
			}
			value := split
			switch i {
			case 0:
				row.Split1 = &value
			case 1:
				row.Split2 = &value
			case 2:
				row.Split3 = &value
			}
		}
		laps = append(laps, row)
	}
	return laps, unmapped
}

func penaltiesFromDocument(sessionID string, doc *results.Document, carToDriver map[int]string) []models.Penalty {
	rows := make([]models.Penalty, 0, len(doc.Penalties)+len(doc.PostRacePenalties))
	appendList := func(list []results.PenaltyLine, postRace bool) {
		for _, p := range list {
			driverID, ok := carToDriver[p.CarID]
			if !ok {
				continue
			}
			rows = append(rows, models.Penalty{
				SessionID:    sessionID,
				DriverID:     driverID,
				CarID:        p.CarID,
				Reason:       p.Reason,
				PenaltyType:  p.Penalty,
				PenaltyValue: p.PenaltyValue,
				ViolationLap: p.ViolationLap,
				ClearedLap:   p.ClearedLap,
				IsPostRace:   postRace,
			})
		}
	}
	appendList(doc.Penalties, false)
	appendList(doc.PostRacePenalties, true)
	return rows
}

func competitionRef(id *int) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
