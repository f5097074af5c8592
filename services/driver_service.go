package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
)

// Bad-report input formats accepted by ImportBadReports.
const (
	ReportFormatAuto = ""
	ReportFormatJSON = "json"
	ReportFormatLog  = "log"
)

const recentResultsLimit = 20

// reportLinePattern matches the banner the server appends to its report log
// for every in-game report.
var reportLinePattern = regexp.MustCompile(
	`===== PLAYER (\w+) HAS REPORTED (\w+) \(NICKNAME: ([^)]+)\) FOR BAD BEHAVIOR =====`)

type DriverProfile struct {
	Driver        models.Driver                     `json:"driver"`
	RecentResults []repositories.DriverRecentResult `json:"recent_results"`
	Reports       []models.BadDriverReport          `json:"reports"`
}

type BadReportImportReport struct {
	Found          int `json:"found"`
	Imported       int `json:"imported"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
	DriversUpdated int `json:"drivers_updated"`
}

type DriverService interface {
	List(ctx context.Context, filter repositories.DriverFilter) ([]models.Driver, error)
	Get(ctx context.Context, driverID string) (*DriverProfile, error)
	SetTrustLevel(ctx context.Context, driverID string, level int) error
	// ImportBadReports ingests a report file in JSON or raw server-log
	// format and refreshes the distinct-reporter counters of every driver
	// reported in the batch.
	ImportBadReports(ctx context.Context, source string, reader io.Reader, format string) (*BadReportImportReport, error)
}

type driverService struct {
	db         *gorm.DB
	driverRepo repositories.DriverRepository
	reportRepo repositories.BadReportRepository
	logger     *slog.Logger
}

func NewDriverService(db *gorm.DB, driverRepo repositories.DriverRepository, reportRepo repositories.BadReportRepository, logger *slog.Logger) DriverService {
	return &driverService{
		db:         db,
		driverRepo: driverRepo,
		reportRepo: reportRepo,
		logger:     logger,
	}
}

func (s *driverService) List(ctx context.Context, filter repositories.DriverFilter) ([]models.Driver, error) {
	drivers, err := s.driverRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

func (s *driverService) Get(ctx context.Context, driverID string) (*DriverProfile, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
		}
		return nil, fmt.Errorf("failed to load driver %s: %w", driverID, err)
	}

	recent, err := s.driverRepo.RecentResults(ctx, driverID, recentResultsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load results for driver %s: %w", driverID, err)
	}
	reports, err := s.reportRepo.ListByReported(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reports for driver %s: %w", driverID, err)
	}

	return &DriverProfile{Driver: *driver, RecentResults: recent, Reports: reports}, nil
}

func (s *driverService) SetTrustLevel(ctx context.Context, driverID string, level int) error {
	if level < models.TrustLevelDefault || level > models.TrustLevelVeteran {
		return fmt.Errorf("%w: trust level %d", ErrTrustLevelInvalid, level)
	}
	err := s.driverRepo.SetTrustLevel(ctx, driverID, level)
	if err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
		}
		return fmt.Errorf("failed to set trust level for %s: %w", driverID, err)
	}
	s.logger.Info("trust level updated",
		slog.String("driver_id", driverID), slog.Int("level", level))
	return nil
}

// badReportEntry is one parsed report. Pointer fields let the JSON form
// require all three keys to be present.
type badReportEntry struct {
	ReporterID       *string `json:"reporter_id"`
	ReportedID       *string `json:"reported_id"`
	ReportedNickname *string `json:"reported_nickname"`
}

func (s *driverService) ImportBadReports(ctx context.Context, source string, reader io.Reader, format string) (*BadReportImportReport, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading report file: %w", ErrReportFormatInvalid, err)
	}

	entries, err := parseBadReports(raw, format)
	if err != nil {
		return nil, err
	}
	report := &BadReportImportReport{Found: len(entries)}

	// Display names are a read-only nicety; resolve them before the write
	// transaction opens.
	names := s.resolveNames(ctx, entries)

	touched := make(map[string]struct{})
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			reporterID := strings.TrimSpace(deref(entry.ReporterID))
			reportedID := strings.TrimSpace(deref(entry.ReportedID))
			nickname := strings.TrimSpace(deref(entry.ReportedNickname))
			if reporterID == "" || reportedID == "" {
				report.Skipped++
				continue
			}

			row := &models.BadDriverReport{
				ReporterID:       reporterID,
				ReporterName:     names[reporterID],
				ReportedID:       reportedID,
				ReportedNickname: optional(nickname),
				ReportedName:     names[reportedID],
				SourceFile:       source,
			}
			if err := s.reportRepo.Create(ctx, tx, row); err != nil {
				if errors.Is(err, repositories.ErrBadReportDuplicate) {
					report.Skipped++
					touched[reportedID] = struct{}{}
					continue
				}
				return err
			}
			report.Imported++
			touched[reportedID] = struct{}{}
		}

		reportedIDs := make([]string, 0, len(touched))
		for id := range touched {
			reportedIDs = append(reportedIDs, id)
		}
		sort.Strings(reportedIDs)
		for _, id := range reportedIDs {
			count, err := s.reportRepo.CountDistinctReporters(ctx, tx, id)
			if err != nil {
				return err
			}
			err = s.driverRepo.SetBadReportCount(ctx, tx, id, count)
			if err != nil {
				// Reported players do not have to be known drivers yet.
				if errors.Is(err, repositories.ErrDriverNotFound) {
					continue
				}
				return err
			}
			report.DriversUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import bad driver reports: %w", err)
	}

	s.logger.Info("bad driver reports imported",
		slog.String("source", source),
		slog.Int("found", report.Found),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", report.Skipped),
		slog.Int("drivers_updated", report.DriversUpdated))
	return report, nil
}

func (s *driverService) resolveNames(ctx context.Context, entries []badReportEntry) map[string]*string {
	names := make(map[string]*string)
	lookup := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, done := names[id]; done {
			return
		}
		driver, err := s.driverRepo.GetByID(ctx, id)
		if err != nil {
			names[id] = nil
			return
		}
		name := driver.LastName
		names[id] = &name
	}
	for _, entry := range entries {
		lookup(deref(entry.ReporterID))
		lookup(deref(entry.ReportedID))
	}
	return names
}

func parseBadReports(raw []byte, format string) ([]badReportEntry, error) {
	text := results.DecodeText(raw)

	switch format {
	case ReportFormatJSON:
		return parseBadReportsJSON(text)
	case ReportFormatLog:
		return parseBadReportsLog(text), nil
	case ReportFormatAuto:
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			return parseBadReportsJSON(text)
		}
		return parseBadReportsLog(text), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrReportFormatInvalid, format)
	}
}

// parseBadReportsJSON accepts a bare array or an object wrapping it under
// "reports". Items missing any of the three keys are dropped.
func parseBadReportsJSON(text string) ([]badReportEntry, error) {
	var items []badReportEntry
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var wrapper struct {
			Reports []badReportEntry `json:"reports"`
		}
		if err := json.Unmarshal([]byte(text), &wrapper); err != nil || wrapper.Reports == nil {
			return nil, fmt.Errorf("%w: unrecognized report JSON", ErrReportFormatInvalid)
		}
		items = wrapper.Reports
	}

	entries := make([]badReportEntry, 0, len(items))
	for _, item := range items {
		if item.ReporterID == nil || item.ReportedID == nil || item.ReportedNickname == nil {
			continue
		}
		entries = append(entries, item)
	}
	return entries, nil
}

func parseBadReportsLog(text string) []badReportEntry {
	matches := reportLinePattern.FindAllStringSubmatch(text, -1)
	entries := make([]badReportEntry, 0, len(matches))
	for _, match := range matches {
		reporter := strings.TrimSpace(match[1])
		reported := strings.TrimSpace(match[2])
		nickname := strings.TrimSpace(match[3])
		entries = append(entries, badReportEntry{
			ReporterID:       &reporter,
			ReportedID:       &reported,
			ReportedNickname: &nickname,
		})
	}
	return entries
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
