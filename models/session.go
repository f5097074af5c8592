package models

import "time"

// Session is one ingested result export. The id is the filename stem, so
// re-ingesting the same file can never produce a second row.
type Session struct {
	SessionID        string    `json:"session_id" gorm:"column:session_id;primaryKey"`
	Filename         string    `json:"filename" gorm:"column:filename;not null;uniqueIndex"`
	SessionType      string    `json:"session_type" gorm:"column:session_type;not null;index"`
	TrackName        string    `json:"track_name" gorm:"column:track_name;not null;index"`
	ServerName       string    `json:"server_name" gorm:"column:server_name"`
	SessionDate      time.Time `json:"session_date" gorm:"column:session_date;not null"`
	BestLapOverall   *int      `json:"best_lap_overall,omitempty" gorm:"column:best_lap_overall"`
	TotalDrivers     int       `json:"total_drivers" gorm:"column:total_drivers;not null;default:0"`
	CompetitionID    *int      `json:"competition_id,omitempty" gorm:"column:competition_id;index"`
	SessionOrder     int       `json:"session_order" gorm:"column:session_order;not null;default:0"`
	IsAutoAssignComp bool      `json:"is_autoassign_comp" gorm:"column:is_autoassign_comp;not null;default:false"`
	ProcessedAt      time.Time `json:"processed_at" gorm:"column:processed_at;not null;autoCreateTime"`
}

func (Session) TableName() string { return "sessions" }

// SessionResult is one leaderboard line. A NULL position means unclassified.
type SessionResult struct {
	ID          uint64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   string `json:"session_id" gorm:"column:session_id;not null;uniqueIndex:idx_session_results_entry,priority:1"`
	DriverID    string `json:"driver_id" gorm:"column:driver_id;not null;uniqueIndex:idx_session_results_entry,priority:2;index"`
	Position    *int   `json:"position,omitempty" gorm:"column:position"`
	CarID       int    `json:"car_id" gorm:"column:car_id"`
	RaceNumber  int    `json:"race_number" gorm:"column:race_number"`
	CarModel    int    `json:"car_model" gorm:"column:car_model"`
	BestLap     *int   `json:"best_lap,omitempty" gorm:"column:best_lap"`
	TotalTime   *int   `json:"total_time,omitempty" gorm:"column:total_time"`
	LapCount    int    `json:"lap_count" gorm:"column:lap_count;not null;default:0"`
	IsSpectator bool   `json:"is_spectator" gorm:"column:is_spectator;not null;default:false"`
}

func (SessionResult) TableName() string { return "session_results" }

type Lap struct {
	ID             uint64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	SessionID      string `json:"session_id" gorm:"column:session_id;not null;index"`
	DriverID       string `json:"driver_id" gorm:"column:driver_id;not null;index"`
	CarID          int    `json:"car_id" gorm:"column:car_id;not null"`
	LapNumber      int    `json:"lap_number" gorm:"column:lap_number"`
	LapTime        int    `json:"lap_time" gorm:"column:lap_time;not null"`
	IsValidForBest bool   `json:"is_valid_for_best" gorm:"column:is_valid_for_best;index:idx_laps_best,priority:1"`
	Split1         *int   `json:"split1,omitempty" gorm:"column:split1"`
	Split2         *int   `json:"split2,omitempty" gorm:"column:split2"`
	Split3         *int   `json:"split3,omitempty" gorm:"column:split3"`
}

func (Lap) TableName() string { return "laps" }

// Penalty covers both in-race and post-race sanction lists of an export.
type Penalty struct {
	ID           uint64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	SessionID    string `json:"session_id" gorm:"column:session_id;not null;index"`
	DriverID     string `json:"driver_id" gorm:"column:driver_id;not null;index"`
	CarID        int    `json:"car_id" gorm:"column:car_id;not null"`
	Reason       string `json:"reason" gorm:"column:reason;not null"`
	PenaltyType  string `json:"penalty_type" gorm:"column:penalty_type;not null"`
	PenaltyValue int    `json:"penalty_value" gorm:"column:penalty_value"`
	ViolationLap int    `json:"violation_lap" gorm:"column:violation_lap"`
	ClearedLap   int    `json:"cleared_lap" gorm:"column:cleared_lap"`
	IsPostRace   bool   `json:"is_post_race" gorm:"column:is_post_race;not null;default:false"`
}

func (Penalty) TableName() string { return "penalties" }
