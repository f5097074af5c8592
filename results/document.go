// Package results parses Assetto Corsa Competizione server result exports:
// the JSON documents themselves, their mixed encodings, and the metadata
// carried by the export filename.
package results

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	ErrMalformedDocument = errors.New("malformed session document")
	ErrMissingStructure  = errors.New("session document missing required structure")
	ErrBadFilename       = errors.New("filename does not match session export pattern")
)

// Document is one session result export. Unknown fields are ignored; the
// server writes far more than the pipeline consumes.
type Document struct {
	TrackName         string        `json:"trackName"`
	ServerName        string        `json:"serverName"`
	SessionType       string        `json:"sessionType"`
	SessionIndex      int           `json:"sessionIndex"`
	SessionResult     *Scoreboard   `json:"sessionResult"`
	Laps              []LapLine     `json:"laps"`
	Penalties         []PenaltyLine `json:"penalties"`
	PostRacePenalties []PenaltyLine `json:"post_race_penalties"`
}

// Scoreboard is the sessionResult block: overall best lap plus the final
// leaderboard in finishing order.
type Scoreboard struct {
	BestLap          *int              `json:"bestlap"`
	LeaderBoardLines []LeaderBoardLine `json:"leaderBoardLines"`
}

type LeaderBoardLine struct {
	Car           CarInfo    `json:"car"`
	CurrentDriver DriverInfo `json:"currentDriver"`
	Timing        TimingInfo `json:"timing"`
	IsSpectator   bool       `json:"bIsSpectator"`
}

type CarInfo struct {
	CarID      int          `json:"carId"`
	RaceNumber int          `json:"raceNumber"`
	CarModel   int          `json:"carModel"`
	Drivers    []DriverInfo `json:"drivers"`
}

type DriverInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ShortName string `json:"shortName"`
	PlayerID  string `json:"playerId"`
}

type TimingInfo struct {
	BestLap   *int `json:"bestLap"`
	TotalTime *int `json:"totalTime"`
	LapCount  int  `json:"lapCount"`
}

type LapLine struct {
	CarID          int   `json:"carId"`
	LapTime        int   `json:"laptime"`
	IsValidForBest bool  `json:"isValidForBest"`
	Splits         []int `json:"splits"`
}

type PenaltyLine struct {
	CarID        int    `json:"carId"`
	Reason       string `json:"reason"`
	Penalty      string `json:"penalty"`
	PenaltyValue int    `json:"penaltyValue"`
	ViolationLap int    `json:"violationInLap"`
	ClearedLap   int    `json:"clearedInLap"`
}

// Parse decodes a raw export through the encoding ladder and unmarshals it.
// Failures here mean the file stays unmarked and eligible for retry.
func Parse(raw []byte) (*Document, error) {
	text := DecodeText(raw)

	var doc Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.TrackName == "" {
		return fmt.Errorf("%w: trackName", ErrMissingStructure)
	}
	if d.SessionResult == nil {
		return fmt.Errorf("%w: sessionResult", ErrMissingStructure)
	}
	if d.SessionResult.LeaderBoardLines == nil {
		return fmt.Errorf("%w: sessionResult.leaderBoardLines", ErrMissingStructure)
	}
	return nil
}

var hintPattern = regexp.MustCompile(`id=(\d+)`)

// CompetitionHint extracts the "id=N" marker some leagues embed in the
// server name. Validation against stored competitions is the ingestor's job.
func (d *Document) CompetitionHint() (int, bool) {
	m := hintPattern.FindStringSubmatch(d.ServerName)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// DriverID resolves the player id of a leaderboard line, falling back to the
// first listed car driver. Empty means the export carries no usable id.
func (l *LeaderBoardLine) DriverID() string {
	if l.CurrentDriver.PlayerID != "" {
		return l.CurrentDriver.PlayerID
	}
	if len(l.Car.Drivers) > 0 {
		return l.Car.Drivers[0].PlayerID
	}
	return ""
}

// IsRaceType reports whether a normalized session type is a race session.
func IsRaceType(sessionType string) bool {
	return strings.HasPrefix(sessionType, "R")
}

// IsQualifyingType reports whether a normalized session type is qualifying.
func IsQualifyingType(sessionType string) bool {
	return strings.HasPrefix(sessionType, "Q")
}
