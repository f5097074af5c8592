package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/results"
	"github.com/accstats/accstats/storage"
)

// Wire shape of an ACC entrylist.json. The same structs parse uploaded
// files and build exports, so field order follows the files the game
// produces.
type EntrylistDriver struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ShortName      string `json:"shortName"`
	PlayerID       string `json:"playerID"`
	DriverCategory int    `json:"driverCategory"`
}

type EntrylistEntry struct {
	Drivers                      []EntrylistDriver `json:"drivers"`
	RaceNumber                   int               `json:"raceNumber"`
	CustomCar                    string            `json:"customCar"`
	ForcedCarModel               int               `json:"forcedCarModel"`
	OverrideDriverInfo           int               `json:"overrideDriverInfo"`
	IsServerAdmin                int               `json:"isServerAdmin"`
	OverrideCarModelForCustomCar int               `json:"overrideCarModelForCustomCar"`
	ConfigVersion                int               `json:"configVersion"`
}

type Entrylist struct {
	Entries        []EntrylistEntry `json:"entries"`
	ConfigVersion  int              `json:"configVersion"`
	ForceEntryList int              `json:"forceEntryList"`
}

type EntrylistImportReport struct {
	Entries  int `json:"entries"`
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

type EntrylistExportFilter struct {
	MinSessions    int
	MinTrust       int
	FlagBadDrivers bool
}

type EntrylistService interface {
	// Import merges an uploaded entrylist into the driver table. Known
	// drivers gain only their missing identity fields; unknown ones are
	// inserted as stubs with zero counters.
	Import(ctx context.Context, doc []byte) (*EntrylistImportReport, error)
	Export(ctx context.Context, filter EntrylistExportFilter) (*Entrylist, error)
	// Push uploads the filtered entrylist to the object store, under a key
	// the results sync never pulls, and returns that key.
	Push(ctx context.Context, filter EntrylistExportFilter) (string, error)
}

type entrylistService struct {
	driverRepo    repositories.DriverRepository
	store         storage.ObjectStore
	flagThreshold int
	flagPrefix    string
	logger        *slog.Logger
}

// NewEntrylistService builds the entrylist merge/export service. store may
// be nil when no bucket is configured; Push then fails cleanly.
func NewEntrylistService(driverRepo repositories.DriverRepository, store storage.ObjectStore, flagThreshold int, flagPrefix string, logger *slog.Logger) EntrylistService {
	return &entrylistService{
		driverRepo:    driverRepo,
		store:         store,
		flagThreshold: flagThreshold,
		flagPrefix:    flagPrefix,
		logger:        logger,
	}
}

func (s *entrylistService) Import(ctx context.Context, doc []byte) (*EntrylistImportReport, error) {
	var list Entrylist
	if err := json.Unmarshal([]byte(results.DecodeText(doc)), &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntrylistInvalid, err)
	}
	if list.Entries == nil {
		return nil, fmt.Errorf("%w: missing entries", ErrEntrylistInvalid)
	}

	report := &EntrylistImportReport{Entries: len(list.Entries)}
	for _, entry := range list.Entries {
		if len(entry.Drivers) == 0 {
			report.Skipped++
			continue
		}
		incoming := entry.Drivers[0]
		playerID := strings.TrimSpace(incoming.PlayerID)
		if playerID == "" {
			report.Skipped++
			continue
		}

		lastName := strings.TrimSpace(incoming.LastName)
		if lastName == "" {
			lastName = fallbackDriverName(playerID)
		}
		shortName := optional(strings.TrimSpace(incoming.ShortName))
		var raceNumber *int
		if entry.RaceNumber > 0 {
			number := entry.RaceNumber
			raceNumber = &number
		}

		existing, err := s.driverRepo.GetByID(ctx, playerID)
		if err != nil {
			if !errors.Is(err, repositories.ErrDriverNotFound) {
				return nil, fmt.Errorf("failed to look up driver %s: %w", playerID, err)
			}
			stub := &models.Driver{
				DriverID:            playerID,
				LastName:            lastName,
				ShortName:           shortName,
				PreferredRaceNumber: raceNumber,
			}
			if err := s.driverRepo.Upsert(ctx, nil, stub, false); err != nil {
				return nil, fmt.Errorf("failed to insert driver %s: %w", playerID, err)
			}
			report.Imported++
			continue
		}

		// Ingestion owns the name; the entrylist only fills gaps.
		changed := false
		mergedShort := existing.ShortName
		if (mergedShort == nil || *mergedShort == "") && shortName != nil {
			mergedShort = shortName
			changed = true
		}
		mergedNumber := existing.PreferredRaceNumber
		if (mergedNumber == nil || *mergedNumber == 0) && raceNumber != nil {
			mergedNumber = raceNumber
			changed = true
		}
		if !changed {
			report.Skipped++
			continue
		}
		if err := s.driverRepo.UpdateIdentity(ctx, playerID, mergedShort, mergedNumber); err != nil {
			return nil, fmt.Errorf("failed to update driver %s: %w", playerID, err)
		}
		report.Updated++
	}

	s.logger.Info("entrylist imported",
		slog.Int("entries", report.Entries),
		slog.Int("imported", report.Imported),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

func (s *entrylistService) Export(ctx context.Context, filter EntrylistExportFilter) (*Entrylist, error) {
	drivers, err := s.driverRepo.ListForEntrylist(ctx, filter.MinSessions, filter.MinTrust)
	if err != nil {
		return nil, fmt.Errorf("failed to select entrylist drivers: %w", err)
	}

	list := &Entrylist{Entries: make([]EntrylistEntry, 0, len(drivers)), ConfigVersion: 1}
	for _, driver := range drivers {
		display := driver.LastName
		if filter.FlagBadDrivers && driver.BadDriverReports > s.flagThreshold {
			display = s.flagPrefix + display
		}
		short := ""
		if driver.ShortName != nil {
			short = *driver.ShortName
		}
		list.Entries = append(list.Entries, EntrylistEntry{
			Drivers: []EntrylistDriver{{
				LastName:       display,
				ShortName:      short,
				PlayerID:       driver.DriverID,
				DriverCategory: 2,
			}},
			RaceNumber:     -1,
			ForcedCarModel: -1,
			ConfigVersion:  1,
		})
	}
	return list, nil
}

func (s *entrylistService) Push(ctx context.Context, filter EntrylistExportFilter) (string, error) {
	if s.store == nil {
		return "", ErrStoreNotConfigured
	}

	list, err := s.Export(ctx, filter)
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode entrylist: %w", err)
	}

	key := fmt.Sprintf("entrylists/entrylist_%s.json", time.Now().Format("20060102_150405"))
	if err := s.store.Upload(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("failed to push entrylist: %w", err)
	}

	s.logger.Info("entrylist pushed",
		slog.String("key", key), slog.Int("entries", len(list.Entries)))
	return key, nil
}

func fallbackDriverName(playerID string) string {
	if len(playerID) > 8 {
		playerID = playerID[:8]
	}
	return "Driver_" + playerID
}
