package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the service.
type Config struct {
	DatabaseURL string
	ServerPort  int

	JWTSecretKey      string
	AdminUsername     string
	AdminPasswordHash string

	ResultsInboxDir string

	// Remote sync is disabled when the endpoint or bucket is empty.
	SyncEndpoint        string
	SyncBucket          string
	SyncPrefix          string
	SyncAccessKeyID     string
	SyncSecretAccessKey string

	SchedulerInterval time.Duration
	AutoSync          bool

	LogDir        string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	CORSAllowedOrigins []string

	BadReportWarnThreshold int
	EntrylistFlagPrefix    string
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present (local development); a missing file is fine.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	adminHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if adminHash == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	interval, err := envDurationSeconds("SCHEDULER_INTERVAL", 300)
	if err != nil {
		return nil, err
	}
	autoSync, err := envBool("AUTO_SYNC", false)
	if err != nil {
		return nil, err
	}
	logMaxSize, err := envInt("LOG_MAX_SIZE_MB", 20)
	if err != nil {
		return nil, err
	}
	logMaxBackups, err := envInt("LOG_MAX_BACKUPS", 5)
	if err != nil {
		return nil, err
	}
	logMaxAge, err := envInt("LOG_MAX_AGE_DAYS", 28)
	if err != nil {
		return nil, err
	}
	warnThreshold, err := envInt("BAD_REPORT_WARN_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:            dbURL,
		ServerPort:             port,
		JWTSecretKey:           jwtKey,
		AdminUsername:          envString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash:      adminHash,
		ResultsInboxDir:        envString("RESULTS_INBOX_DIR", "./results"),
		SyncEndpoint:           os.Getenv("SYNC_ENDPOINT"),
		SyncBucket:             os.Getenv("SYNC_BUCKET"),
		SyncPrefix:             os.Getenv("SYNC_PREFIX"),
		SyncAccessKeyID:        os.Getenv("SYNC_ACCESS_KEY_ID"),
		SyncSecretAccessKey:    os.Getenv("SYNC_SECRET_ACCESS_KEY"),
		SchedulerInterval:      interval,
		AutoSync:               autoSync,
		LogDir:                 os.Getenv("LOG_DIR"),
		LogMaxSizeMB:           logMaxSize,
		LogMaxBackups:          logMaxBackups,
		LogMaxAgeDays:          logMaxAge,
		CORSAllowedOrigins:     envStringList("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),
		BadReportWarnThreshold: warnThreshold,
		EntrylistFlagPrefix:    envString("ENTRYLIST_FLAG_PREFIX", "BAD>"),
	}

	return cfg, nil
}

// SyncEnabled reports whether the remote results bucket is configured.
func (c *Config) SyncEnabled() bool {
	return c.SyncEndpoint != "" && c.SyncBucket != ""
}
