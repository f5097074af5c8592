package models

import "time"

// Trust levels assigned by admins. Never set automatically.
const (
	TrustLevelDefault = 0
	TrustLevelTrusted = 1
	TrustLevelVeteran = 2
)

// Driver is keyed by the external player id from the server exports.
// Rows are upserted on ingestion and never deleted automatically.
type Driver struct {
	DriverID            string     `json:"driver_id" gorm:"column:driver_id;primaryKey"`
	LastName            string     `json:"last_name" gorm:"column:last_name;not null"`
	ShortName           *string    `json:"short_name,omitempty" gorm:"column:short_name"`
	PreferredRaceNumber *int       `json:"preferred_race_number,omitempty" gorm:"column:preferred_race_number"`
	FirstSeen           *time.Time `json:"first_seen,omitempty" gorm:"column:first_seen"`
	LastSeen            *time.Time `json:"last_seen,omitempty" gorm:"column:last_seen"`
	TotalSessions       int        `json:"total_sessions" gorm:"column:total_sessions;not null;default:0"`
	BadDriverReports    int        `json:"bad_driver_reports" gorm:"column:bad_driver_reports;not null;default:0"`
	TrustLevel          int        `json:"trust_level" gorm:"column:trust_level;not null;default:0"`
}

func (Driver) TableName() string { return "drivers" }

// BadDriverReport records one driver reporting another. A pair is unique:
// repeated reports from the same reporter collapse into the first row.
type BadDriverReport struct {
	ID               uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ReporterID       string    `json:"reporter_id" gorm:"column:reporter_id;not null;uniqueIndex:idx_bad_reports_pair,priority:1"`
	ReporterName     *string   `json:"reporter_name,omitempty" gorm:"column:reporter_name"`
	ReportedID       string    `json:"reported_id" gorm:"column:reported_id;not null;uniqueIndex:idx_bad_reports_pair,priority:2;index"`
	ReportedNickname *string   `json:"reported_nickname,omitempty" gorm:"column:reported_nickname"`
	ReportedName     *string   `json:"reported_name,omitempty" gorm:"column:reported_name"`
	SourceFile       string    `json:"source_file" gorm:"column:source_file"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at;not null;autoCreateTime"`
}

func (BadDriverReport) TableName() string { return "bad_driver_reports" }
