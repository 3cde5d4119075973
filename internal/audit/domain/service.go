package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionUpload = "backup.upload"

	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// BackupRecord is one attempt to write a ledger file to remote storage.
type BackupRecord struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"index;size:320" json:"user_id"`
	Action    string            `gorm:"size:64" json:"action"`
	Provider  string            `gorm:"size:32" json:"provider"`
	Filename  string            `gorm:"size:512" json:"filename"`
	RemoteID  string            `gorm:"size:512" json:"remote_id,omitempty"`
	Outcome   string            `gorm:"size:16" json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Entries   int               `json:"entries"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (BackupRecord) TableName() string { return "backup_records" }

type RecordRequest struct {
	UserID   string
	Action   string
	Provider string
	Filename string
	RemoteID string
	Entries  int
	Err      error
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	ListByUser(ctx context.Context, userID string, limit int) ([]BackupRecord, error)
	// Prune deletes records created before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *BackupRecord) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]BackupRecord, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidAction = errors.New("invalid_action")
)
