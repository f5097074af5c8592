package db

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/accstats/accstats/models"
)

// Migrate creates or updates every table the application owns, derived
// tables included.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	if err := gdb.WithContext(ctx).AutoMigrate(
		&models.Driver{},
		&models.BadDriverReport{},
		&models.Championship{},
		&models.Competition{},
		&models.Session{},
		&models.SessionResult{},
		&models.Lap{},
		&models.Penalty{},
		&models.PointsSystem{},
		&models.ManualPenalty{},
		&models.CompetitionSessionResult{},
		&models.CompetitionResult{},
		&models.ChampionshipStanding{},
		&models.SyncedFile{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// SeedPointsSystems inserts the built-in scoring presets. Rows whose name
// already exists are left untouched so operator edits survive restarts.
func SeedPointsSystems(ctx context.Context, gdb *gorm.DB) (int, error) {
	inserted := 0
	for _, sys := range defaultPointsSystems() {
		var count int64
		if err := gdb.WithContext(ctx).
			Model(&models.PointsSystem{}).
			Where("name = ?", sys.Name).
			Count(&count).Error; err != nil {
			return inserted, fmt.Errorf("failed to look up points system %q: %w", sys.Name, err)
		}
		if count > 0 {
			continue
		}
		if err := gdb.WithContext(ctx).Create(&sys).Error; err != nil {
			return inserted, fmt.Errorf("failed to seed points system %q: %w", sys.Name, err)
		}
		inserted++
	}
	return inserted, nil
}

func defaultPointsSystems() []models.PointsSystem {
	describe := func(s string) *string { return &s }
	return []models.PointsSystem{
		{
			Name:               "F1 Standard",
			Description:        describe("Standard Formula 1 points"),
			PositionPoints:     datatypes.JSON(`{"1": 25, "2": 18, "3": 15, "4": 12, "5": 10, "6": 8, "7": 6, "8": 4, "9": 2, "10": 1}`),
			PolePositionPoints: 0,
			FastestLapPoints:   1,
		},
		{
			Name:           "F1 Sprint",
			Description:    describe("Formula 1 sprint race points"),
			PositionPoints: datatypes.JSON(`{"1": 8, "2": 7, "3": 6, "4": 5, "5": 4, "6": 3, "7": 2, "8": 1}`),
		},
		{
			Name:               "GT3 Standard",
			Description:        describe("Standard GT3 points"),
			PositionPoints:     datatypes.JSON(`{"1": 20, "2": 15, "3": 12, "4": 10, "5": 8, "6": 6, "7": 4, "8": 3, "9": 2, "10": 1}`),
			PolePositionPoints: 1,
			FastestLapPoints:   1,
		},
		{
			Name:               "GT3 Drop 2",
			Description:        describe("GT3 points dropping the two worst results"),
			PositionPoints:     datatypes.JSON(`{"1": 20, "2": 15, "3": 12, "4": 10, "5": 8, "6": 6, "7": 4, "8": 3, "9": 2, "10": 1}`),
			PolePositionPoints: 1,
			FastestLapPoints:   1,
			DropWorstResults:   2,
		},
		{
			Name:               "Endurance",
			Description:        describe("Endurance race points"),
			PositionPoints:     datatypes.JSON(`{"1": 30, "2": 24, "3": 20, "4": 16, "5": 13, "6": 11, "7": 9, "8": 7, "9": 5, "10": 3, "11": 2, "12": 1}`),
			PolePositionPoints: 2,
			FastestLapPoints:   2,
		},
		{
			Name:           "Custom",
			Description:    describe("Editable template, adjust the position map as needed"),
			PositionPoints: datatypes.JSON(`{"1": 20, "2": 19, "3": 18, "4": 17, "5": 16, "6": 15, "7": 14, "8": 13, "9": 12, "10": 11, "11": 10, "12": 9, "13": 8, "14": 7, "15": 6, "16": 5, "17": 4, "18": 3, "19": 2, "20": 1}`),
		},
	}
}
