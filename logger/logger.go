package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/accstats/accstats/config"
)

// New builds the application logger. Without a log directory it writes to
// stdout only; with one it tees into a size-rotated file as well.
func New(cfg *config.Config) (*slog.Logger, error) {
	if cfg.LogDir == "" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339,
		})), nil
	}

	if cfg.LogMaxSizeMB <= 0 || cfg.LogMaxBackups <= 0 || cfg.LogMaxAgeDays <= 0 {
		return nil, fmt.Errorf("invalid log rotation config: size=%d backups=%d age_days=%d",
			cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir failed: %w", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "accstats.log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}

	w := io.MultiWriter(os.Stdout, logFile)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	})), nil
}
