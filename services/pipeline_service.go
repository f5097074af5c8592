package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/accstats/accstats/repositories"
)

type PipelineReport struct {
	StartedAt           time.Time          `json:"started_at"`
	FinishedAt          time.Time          `json:"finished_at"`
	Sync                *SyncReport        `json:"sync,omitempty"`
	SyncError           string             `json:"sync_error,omitempty"`
	Ingest              *IngestBatchReport `json:"ingest,omitempty"`
	CompetitionsScored  int                `json:"competitions_scored"`
	ChampionshipsScored int                `json:"championships_scored"`
	ScopeErrors         int                `json:"scope_errors"`
}

type PipelineService interface {
	// Run executes pull -> ingest -> rescore -> restand. Overlapping calls
	// coalesce into the in-flight run and share its report.
	Run(ctx context.Context) (*PipelineReport, error)
}

type pipelineService struct {
	group     singleflight.Group
	sync      SyncService // nil when no bucket is configured
	ingest    IngestService
	scoring   ScoringService
	standings StandingsService
	compRepo  repositories.CompetitionRepository
	inboxDir  string
	logger    *slog.Logger
}

func NewPipelineService(
	sync SyncService,
	ingest IngestService,
	scoring ScoringService,
	standings StandingsService,
	compRepo repositories.CompetitionRepository,
	inboxDir string,
	logger *slog.Logger,
) PipelineService {
	return &pipelineService{
		sync:      sync,
		ingest:    ingest,
		scoring:   scoring,
		standings: standings,
		compRepo:  compRepo,
		inboxDir:  inboxDir,
		logger:    logger,
	}
}

func (s *pipelineService) Run(ctx context.Context) (*PipelineReport, error) {
	v, err, shared := s.group.Do("pipeline", func() (interface{}, error) {
		return s.run(ctx)
	})
	if shared {
		s.logger.Info("pipeline trigger coalesced with an in-flight run")
	}
	if err != nil {
		return nil, err
	}
	return v.(*PipelineReport), nil
}

func (s *pipelineService) run(ctx context.Context) (*PipelineReport, error) {
	report := &PipelineReport{StartedAt: time.Now().UTC()}

	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: preparing inbox %s: %w", ErrIngestFailed, s.inboxDir, err)
	}

	if s.sync != nil {
		syncReport, err := s.sync.Pull(ctx)
		if err != nil {
			// The inbox may still hold files from earlier pulls.
			report.SyncError = err.Error()
			s.logger.Error("sync stage failed, continuing with local inbox", slog.Any("error", err))
		} else {
			report.Sync = syncReport
		}
	}

	batch, err := s.ingest.IngestBatch(ctx, s.inboxDir)
	if err != nil {
		return nil, err
	}
	report.Ingest = batch

	championships := make(map[int]struct{})
	for _, competitionID := range touchedCompetitions(batch) {
		if _, err := s.scoring.ScoreCompetition(ctx, competitionID); err != nil {
			report.ScopeErrors++
			s.logger.Error("scoring stage failed",
				slog.Int("competition_id", competitionID), slog.Any("error", err))
			continue
		}
		report.CompetitionsScored++

		competition, err := s.compRepo.GetByID(ctx, competitionID)
		if err != nil {
			report.ScopeErrors++
			s.logger.Error("competition lookup failed after scoring",
				slog.Int("competition_id", competitionID), slog.Any("error", err))
			continue
		}
		if competition.ChampionshipID != nil {
			championships[*competition.ChampionshipID] = struct{}{}
		}
	}

	championshipIDs := make([]int, 0, len(championships))
	for id := range championships {
		championshipIDs = append(championshipIDs, id)
	}
	sort.Ints(championshipIDs)
	for _, championshipID := range championshipIDs {
		if _, err := s.standings.ScoreChampionship(ctx, championshipID); err != nil {
			report.ScopeErrors++
			s.logger.Error("standings stage failed",
				slog.Int("championship_id", championshipID), slog.Any("error", err))
			continue
		}
		report.ChampionshipsScored++
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("pipeline finished",
		slog.Int("files", batch.Files),
		slog.Int("processed", batch.Processed),
		slog.Int("competitions_scored", report.CompetitionsScored),
		slog.Int("championships_scored", report.ChampionshipsScored),
		slog.Int("scope_errors", report.ScopeErrors))
	return report, nil
}

// touchedCompetitions collects, in ascending order, the competitions that
// received a hint-assigned session during this batch.
func touchedCompetitions(batch *IngestBatchReport) []int {
	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for _, outcome := range batch.Outcomes {
		if outcome.Status != IngestStatusProcessed || outcome.CompetitionID == nil {
			continue
		}
		if _, ok := seen[*outcome.CompetitionID]; ok {
			continue
		}
		seen[*outcome.CompetitionID] = struct{}{}
		ids = append(ids, *outcome.CompetitionID)
	}
	sort.Ints(ids)
	return ids
}
