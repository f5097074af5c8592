package models

import (
	"time"

	"gorm.io/datatypes"
)

// PointsSystem is a named scoring configuration. PositionPoints maps the
// decimal position string ("1", "2", ...) to the points it awards.
// MinimumClassifiedPercentage and PointsForUnclassified are stored
// configuration only; the scoring engine does not apply them.
type PointsSystem struct {
	SystemID                    int            `json:"system_id" gorm:"column:system_id;primaryKey;autoIncrement"`
	Name                        string         `json:"name" gorm:"column:name;not null;uniqueIndex"`
	Description                 *string        `json:"description,omitempty" gorm:"column:description"`
	PositionPoints              datatypes.JSON `json:"position_points" gorm:"column:position_points_json;not null"`
	PolePositionPoints          float64        `json:"pole_position_points" gorm:"column:pole_position_points;not null;default:0"`
	FastestLapPoints            float64        `json:"fastest_lap_points" gorm:"column:fastest_lap_points;not null;default:0"`
	MinimumClassifiedPercentage float64        `json:"minimum_classified_percentage" gorm:"column:minimum_classified_percentage;not null;default:70"`
	PointsForUnclassified       bool           `json:"points_for_unclassified" gorm:"column:points_for_unclassified;not null;default:false"`
	DropWorstResults            int            `json:"drop_worst_results" gorm:"column:drop_worst_results;not null;default:0"`
	IsActive                    bool           `json:"is_active" gorm:"column:is_active;not null;default:true"`
	CreatedAt                   time.Time      `json:"created_at" gorm:"column:created_at;not null;autoCreateTime"`
}

func (PointsSystem) TableName() string { return "points_systems" }

// ManualPenalty is an admin-entered point deduction. The aggregator only
// reads active rows; deactivation keeps the audit trail.
type ManualPenalty struct {
	PenaltyID      int       `json:"penalty_id" gorm:"column:penalty_id;primaryKey;autoIncrement"`
	ChampionshipID int       `json:"championship_id" gorm:"column:championship_id;not null;index"`
	DriverID       string    `json:"driver_id" gorm:"column:driver_id;not null;index"`
	CompetitionID  *int      `json:"competition_id,omitempty" gorm:"column:competition_id"`
	PenaltyPoints  float64   `json:"penalty_points" gorm:"column:penalty_points;not null"`
	Reason         string    `json:"reason" gorm:"column:reason;not null"`
	AppliedBy      string    `json:"applied_by" gorm:"column:applied_by"`
	AppliedAt      time.Time `json:"applied_at" gorm:"column:applied_at;not null;autoCreateTime"`
	IsActive       bool      `json:"is_active" gorm:"column:is_active;not null;default:true"`
}

func (ManualPenalty) TableName() string { return "manual_penalties" }
