package models

import "time"

// CompetitionSessionResult is a derived row: one driver's outcome in one
// session of a scored competition. The whole competition scope is deleted
// and rebuilt by every scoring run.
type CompetitionSessionResult struct {
	ID            uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CompetitionID int       `json:"competition_id" gorm:"column:competition_id;not null;uniqueIndex:idx_comp_session_results_entry,priority:1"`
	DriverID      string    `json:"driver_id" gorm:"column:driver_id;not null;uniqueIndex:idx_comp_session_results_entry,priority:2"`
	SessionID     string    `json:"session_id" gorm:"column:session_id;not null;uniqueIndex:idx_comp_session_results_entry,priority:3"`
	SessionType   string    `json:"session_type" gorm:"column:session_type;not null"`
	Position      *int      `json:"position,omitempty" gorm:"column:position"`
	Points        float64   `json:"points" gorm:"column:points;not null;default:0"`
	BestLapTime   *int      `json:"best_lap_time,omitempty" gorm:"column:best_lap_time"`
	TotalLaps     int       `json:"total_laps" gorm:"column:total_laps;not null;default:0"`
	IsClassified  bool      `json:"is_classified" gorm:"column:is_classified;not null;default:true"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (CompetitionSessionResult) TableName() string { return "competition_session_results" }

// CompetitionResult is the per-driver aggregate of one competition.
// Bonus and penalty stay zero here; they are reserved for manual adjustment.
type CompetitionResult struct {
	ID               uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CompetitionID    int       `json:"competition_id" gorm:"column:competition_id;not null;uniqueIndex:idx_competition_results_entry,priority:1"`
	DriverID         string    `json:"driver_id" gorm:"column:driver_id;not null;uniqueIndex:idx_competition_results_entry,priority:2"`
	RacePoints       float64   `json:"race_points" gorm:"column:race_points;not null;default:0"`
	PolePoints       float64   `json:"pole_points" gorm:"column:pole_points;not null;default:0"`
	FastestLapPoints float64   `json:"fastest_lap_points" gorm:"column:fastest_lap_points;not null;default:0"`
	BonusPoints      float64   `json:"bonus_points" gorm:"column:bonus_points;not null;default:0"`
	PenaltyPoints    float64   `json:"penalty_points" gorm:"column:penalty_points;not null;default:0"`
	TotalPoints      float64   `json:"total_points" gorm:"column:total_points;not null;default:0"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (CompetitionResult) TableName() string { return "competition_results" }

// ChampionshipStanding is one ranked row of a championship table.
type ChampionshipStanding struct {
	ChampionshipID           int       `json:"championship_id" gorm:"column:championship_id;primaryKey"`
	DriverID                 string    `json:"driver_id" gorm:"column:driver_id;primaryKey"`
	TotalPoints              float64   `json:"total_points" gorm:"column:total_points;not null;default:0"`
	Position                 int       `json:"position" gorm:"column:position"`
	CompetitionsParticipated int       `json:"competitions_participated" gorm:"column:competitions_participated;not null;default:0"`
	Wins                     int       `json:"wins" gorm:"column:wins;not null;default:0"`
	Podiums                  int       `json:"podiums" gorm:"column:podiums;not null;default:0"`
	Poles                    int       `json:"poles" gorm:"column:poles;not null;default:0"`
	FastestLaps              int       `json:"fastest_laps" gorm:"column:fastest_laps;not null;default:0"`
	PointsDropped            float64   `json:"points_dropped" gorm:"column:points_dropped;not null;default:0"`
	AveragePosition          *float64  `json:"average_position,omitempty" gorm:"column:average_position"`
	BestPosition             *int      `json:"best_position,omitempty" gorm:"column:best_position"`
	ConsistencyRating        *float64  `json:"consistency_rating,omitempty" gorm:"column:consistency_rating"`
	LastUpdated              time.Time `json:"last_updated" gorm:"column:last_updated;not null;autoUpdateTime"`
}

func (ChampionshipStanding) TableName() string { return "championship_standings" }
