package backup

import (
	"context"
	"fmt"

	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/backup/drive"
	"github.com/smallbiznis/macrolog/internal/backup/s3"
	"github.com/smallbiznis/macrolog/internal/backup/service"
	"github.com/smallbiznis/macrolog/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("backup.service",
	fx.Provide(NewObjectStore),
	fx.Provide(NewFilenames),
	fx.Provide(service.NewService),
)

// NewObjectStore selects the remote store named by BACKUP_PROVIDER.
func NewObjectStore(cfg config.Config, log *zap.Logger) (backupdomain.ObjectStore, error) {
	switch cfg.Backup.Provider {
	case config.BackupProviderDrive:
		return drive.New(cfg, log), nil
	case config.BackupProviderS3:
		return s3.New(context.Background(), cfg, log)
	default:
		return nil, fmt.Errorf("unsupported backup provider %q", cfg.Backup.Provider)
	}
}

func NewFilenames(cfg config.Config) backupdomain.Filenames {
	return backupdomain.Filenames{Prefix: cfg.Backup.FilePrefix}
}
