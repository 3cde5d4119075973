package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/macrolog/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Migrate creates the backup_records table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.BackupRecord{})
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.BackupRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.BackupRecord, error) {
	var records []domain.BackupRecord
	stmt := db.WithContext(ctx).Model(&domain.BackupRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.BackupRecord{})
	return res.RowsAffected, res.Error
}
