package models

import "time"

// Weekend formats inferred from the member sessions of a competition.
const (
	WeekendFormatSprint   = "sprint"   // more than one race session
	WeekendFormatStandard = "standard" // exactly one race session
	WeekendFormatPractice = "practice" // no race session
)

// Competition is one grouped race weekend, optionally a championship round.
// PointsSystemJSON holds either the name of a stored points system or an
// inline JSON position->points object overriding it.
type Competition struct {
	CompetitionID    int       `json:"competition_id" gorm:"column:competition_id;primaryKey;autoIncrement"`
	ChampionshipID   *int      `json:"championship_id,omitempty" gorm:"column:championship_id;index"`
	Name             string    `json:"name" gorm:"column:name;not null"`
	RoundNumber      *int      `json:"round_number,omitempty" gorm:"column:round_number"`
	TrackName        string    `json:"track_name" gorm:"column:track_name;not null"`
	DateStart        time.Time `json:"date_start" gorm:"column:date_start"`
	DateEnd          time.Time `json:"date_end" gorm:"column:date_end"`
	WeekendFormat    string    `json:"weekend_format" gorm:"column:weekend_format"`
	PointsSystemJSON *string   `json:"points_system_json,omitempty" gorm:"column:points_system_json"`
	IsCompleted      bool      `json:"is_completed" gorm:"column:is_completed;not null;default:false"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at;not null;autoCreateTime"`
}

func (Competition) TableName() string { return "competitions" }

type Championship struct {
	ChampionshipID int        `json:"championship_id" gorm:"column:championship_id;primaryKey;autoIncrement"`
	Name           string     `json:"name" gorm:"column:name;not null"`
	Description    *string    `json:"description,omitempty" gorm:"column:description"`
	Season         int        `json:"season" gorm:"column:season"`
	StartDate      *time.Time `json:"start_date,omitempty" gorm:"column:start_date"`
	EndDate        *time.Time `json:"end_date,omitempty" gorm:"column:end_date"`
	IsCompleted    bool       `json:"is_completed" gorm:"column:is_completed;not null;default:false"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;not null;autoCreateTime"`
}

func (Championship) TableName() string { return "championships" }
