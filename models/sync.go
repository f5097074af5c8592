package models

import "time"

// SyncedFile tracks one result export pulled from the remote bucket and
// whether ingestion has consumed it. ProcessingResult keeps the short
// human-readable ingest summary for operators.
type SyncedFile struct {
	Filename         string     `json:"filename" gorm:"column:filename;primaryKey"`
	FileHash         string     `json:"file_hash" gorm:"column:file_hash;not null"`
	FileSize         int64      `json:"file_size" gorm:"column:file_size"`
	RemotePath       string     `json:"remote_path" gorm:"column:remote_path"`
	SyncedAt         time.Time  `json:"synced_at" gorm:"column:synced_at;not null;autoCreateTime"`
	ProcessedInDB    bool       `json:"processed_in_db" gorm:"column:processed_in_db;not null;default:false"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty" gorm:"column:processed_at"`
	ProcessingResult *string    `json:"processing_result,omitempty" gorm:"column:processing_result"`
}

func (SyncedFile) TableName() string { return "synced_files" }
