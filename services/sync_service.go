package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/accstats/accstats/models"
	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/storage"
)

const (
	SyncStatusDownloaded = "downloaded"
	SyncStatusSkipped    = "skipped"
	SyncStatusFailed     = "failed"
)

const (
	syncConcurrency    = 4
	syncAttempts       = 3
	syncInitialBackoff = time.Second
	syncMaxBackoff     = 30 * time.Second
)

type SyncOutcome struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Size     int64  `json:"size"`
	Reason   string `json:"reason,omitempty"`
}

type SyncReport struct {
	Listed     int           `json:"listed"`
	Downloaded int           `json:"downloaded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Outcomes   []SyncOutcome `json:"outcomes"`
}

type SyncService interface {
	// Pull mirrors new result exports from the bucket into the inbox
	// directory. One object's failure never aborts the pull.
	Pull(ctx context.Context) (*SyncReport, error)
}

type syncService struct {
	store      storage.ObjectStore
	syncedRepo repositories.SyncedFileRepository
	inboxDir   string
	logger     *slog.Logger
}

func NewSyncService(store storage.ObjectStore, syncedRepo repositories.SyncedFileRepository, inboxDir string, logger *slog.Logger) SyncService {
	return &syncService{
		store:      store,
		syncedRepo: syncedRepo,
		inboxDir:   inboxDir,
		logger:     logger,
	}
}

func (s *syncService) Pull(ctx context.Context) (*SyncReport, error) {
	objects, err := s.store.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: preparing inbox %s: %w", ErrSyncFailed, s.inboxDir, err)
	}

	report := &SyncReport{Outcomes: make([]SyncOutcome, 0, len(objects))}
	var mu sync.Mutex
	record := func(outcome SyncOutcome) {
		mu.Lock()
		report.Outcomes = append(report.Outcomes, outcome)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(syncConcurrency)
	for _, object := range objects {
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		report.Listed++
		object := object
		g.Go(func() error {
			record(s.pullObject(ctx, object))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	sort.Slice(report.Outcomes, func(i, j int) bool {
		return report.Outcomes[i].Key < report.Outcomes[j].Key
	})
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case SyncStatusDownloaded:
			report.Downloaded++
		case SyncStatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	s.logger.Info("bucket pull finished",
		slog.Int("listed", report.Listed),
		slog.Int("downloaded", report.Downloaded),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (s *syncService) pullObject(ctx context.Context, object storage.ObjectInfo) SyncOutcome {
	filename := path.Base(object.Key)
	outcome := SyncOutcome{Key: object.Key, Filename: filename, Size: object.Size}

	known, err := s.syncedRepo.GetByFilename(ctx, filename)
	if err == nil && known.FileSize == object.Size {
		outcome.Status = SyncStatusSkipped
		outcome.Reason = "already synced"
		return outcome
	}

	hash, err := s.downloadWithRetry(ctx, object.Key, filename)
	if err != nil {
		s.logger.Error("object download failed",
			slog.String("key", object.Key), slog.Any("error", err))
		outcome.Status = SyncStatusFailed
		outcome.Reason = err.Error()
		return outcome
	}

	err = s.syncedRepo.Upsert(ctx, &models.SyncedFile{
		Filename:   filename,
		FileHash:   hash,
		FileSize:   object.Size,
		RemotePath: object.Key,
	})
	if err != nil {
		outcome.Status = SyncStatusFailed
		outcome.Reason = fmt.Sprintf("recording sync: %v", err)
		return outcome
	}

	outcome.Status = SyncStatusDownloaded
	return outcome
}

// downloadWithRetry fetches one object into the inbox, hashing as it
// writes. The file appears under its final name only after a complete
// download, via rename from a temp file.
func (s *syncService) downloadWithRetry(ctx context.Context, key, filename string) (string, error) {
	target := filepath.Join(s.inboxDir, filename)

	hash := ""
	operation := func() error {
		body, err := s.store.Download(ctx, key)
		if err != nil {
			return err
		}
		defer body.Close()

		tmp, err := os.CreateTemp(s.inboxDir, filename+".*.part")
		if err != nil {
			return backoff.Permanent(err)
		}
		digest := sha256.New()
		_, err = io.Copy(io.MultiWriter(tmp, digest), body)
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tmp.Name())
			return err
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			os.Remove(tmp.Name())
			return backoff.Permanent(err)
		}
		hash = hex.EncodeToString(digest.Sum(nil))
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = syncInitialBackoff
	policy.MaxInterval = syncMaxBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.2

	err := backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), syncAttempts-1))
	if err != nil {
		return "", err
	}
	return hash, nil
}
