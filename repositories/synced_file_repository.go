package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accstats/accstats/models"
)

var ErrSyncedFileNotFound = errors.New("synced file not found")

type SyncedFileRepository interface {
	// Upsert records a downloaded file, replacing hash, size and remote
	// path on re-download. Processing state is left alone.
	Upsert(ctx context.Context, file *models.SyncedFile) error
	GetByFilename(ctx context.Context, filename string) (*models.SyncedFile, error)
	// MarkProcessed stamps the ingestion outcome, inserting the row first
	// when the file never went through sync.
	MarkProcessed(ctx context.Context, tx *gorm.DB, filename, result string) error
	ListUnprocessed(ctx context.Context) ([]models.SyncedFile, error)
}

type gormSyncedFileRepository struct {
	db *gorm.DB
}

func NewGormSyncedFileRepository(db *gorm.DB) SyncedFileRepository {
	return &gormSyncedFileRepository{db: db}
}

func (r *gormSyncedFileRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormSyncedFileRepository) Upsert(ctx context.Context, file *models.SyncedFile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "filename"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"file_hash":   file.FileHash,
				"file_size":   file.FileSize,
				"remote_path": file.RemotePath,
				"synced_at":   time.Now(),
			}),
		}).
		Create(file).Error
}

func (r *gormSyncedFileRepository) GetByFilename(ctx context.Context, filename string) (*models.SyncedFile, error) {
	var file models.SyncedFile
	err := r.db.WithContext(ctx).First(&file, "filename = ?", filename).Error
	if err != nil {
		return nil, translateNotFound(err, ErrSyncedFileNotFound)
	}
	return &file, nil
}

func (r *gormSyncedFileRepository) MarkProcessed(ctx context.Context, tx *gorm.DB, filename, result string) error {
	now := time.Now()
	return r.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "filename"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"processed_in_db":   true,
				"processed_at":      now,
				"processing_result": result,
			}),
		}).
		Create(&models.SyncedFile{
			Filename:         filename,
			ProcessedInDB:    true,
			ProcessedAt:      &now,
			ProcessingResult: &result,
		}).Error
}

func (r *gormSyncedFileRepository) ListUnprocessed(ctx context.Context) ([]models.SyncedFile, error) {
	files := make([]models.SyncedFile, 0)
	err := r.db.WithContext(ctx).
		Where("processed_in_db = ?", false).
		Order("filename ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
