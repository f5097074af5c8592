package services

import "errors"

// Shared errors used across services and the HTTP mapping.
var (
	// Generic not-found (catch-all)
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors
	ErrValidationFailed      = errors.New("validation failed")
	ErrNameRequired          = errors.New("name is required")
	ErrSeasonInvalid         = errors.New("season must be positive")
	ErrTrustLevelInvalid     = errors.New("trust level must be between 0 and 2")
	ErrPointsMapInvalid      = errors.New("position points must be a JSON object of position to points")
	ErrPenaltyPointsInvalid  = errors.New("penalty points must be positive")
	ErrReportFormatInvalid   = errors.New("unsupported bad driver report format")
	ErrEntrylistInvalid      = errors.New("entrylist document is invalid")
	ErrCompetitionCompleted  = errors.New("competition is already completed")
	ErrClusterEmpty          = errors.New("cluster holds no sessions")
	ErrClusterAlreadyGrouped = errors.New("cluster contains sessions already assigned to a competition")

	// Conflict errors
	ErrPointsSystemNameConflict = errors.New("points system name already in use")
	ErrSessionAlreadyIngested   = errors.New("session file already ingested")

	// Authentication and authorization errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")

	// Entity-specific not-found errors (more context than ErrNotFound)
	ErrDriverNotFound        = errors.New("driver not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrCompetitionNotFound   = errors.New("competition not found")
	ErrChampionshipNotFound  = errors.New("championship not found")
	ErrPointsSystemNotFound  = errors.New("points system not found")
	ErrManualPenaltyNotFound = errors.New("manual penalty not found")

	// Pipeline-stage failures (wrap the underlying cause)
	ErrIngestFailed    = errors.New("ingestion failed")
	ErrGroupingFailed  = errors.New("weekend grouping failed")
	ErrScoringFailed   = errors.New("competition scoring failed")
	ErrStandingsFailed = errors.New("standings recompute failed")
	ErrSyncFailed      = errors.New("results sync failed")

	// ErrStoreNotConfigured is returned by operations that need the object
	// store when no bucket is configured.
	ErrStoreNotConfigured = errors.New("object store is not configured")
)
