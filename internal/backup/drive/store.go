package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/config"
	obstracing "github.com/smallbiznis/macrolog/internal/observability/tracing"
	"go.uber.org/zap"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName = config.BackupProviderDrive
	csvMimeType  = "text/csv"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Store keeps ledger files in the authorizing user's Google Drive.
type Store struct {
	endpoint string
	log      *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Store {
	return &Store{
		endpoint: cfg.Backup.DriveAPI,
		log:      log.Named("backup.drive"),
	}
}

func (s *Store) Provider() string { return providerName }

func (s *Store) Find(ctx context.Context, cred backupdomain.Credential, name string) (backupdomain.Object, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return backupdomain.Object{}, err
	}

	query := fmt.Sprintf("name = '%s' and trashed = false", queryEscaper.Replace(name))
	res, err := svc.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return backupdomain.Object{}, mapError(err)
	}
	if len(res.Files) == 0 {
		return backupdomain.Object{}, backupdomain.ErrObjectNotFound
	}

	file := res.Files[0]
	return backupdomain.Object{ID: file.Id, Name: file.Name}, nil
}

func (s *Store) Create(ctx context.Context, cred backupdomain.Credential, name string, content io.Reader) (backupdomain.Object, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return backupdomain.Object{}, err
	}

	file, err := svc.Files.Create(&gdrive.File{Name: name, MimeType: csvMimeType}).
		Media(content, googleapi.ContentType(csvMimeType)).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return backupdomain.Object{}, mapError(err)
	}
	s.log.Debug("drive file created", zap.String("file_id", file.Id))
	return backupdomain.Object{ID: file.Id, Name: file.Name}, nil
}

func (s *Store) Update(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object, content io.Reader) (backupdomain.Object, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return backupdomain.Object{}, err
	}

	file, err := svc.Files.Update(obj.ID, &gdrive.File{}).
		Media(content, googleapi.ContentType(csvMimeType)).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return backupdomain.Object{}, mapError(err)
	}
	return backupdomain.Object{ID: file.Id, Name: file.Name}, nil
}

func (s *Store) Download(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object) (io.ReadCloser, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Files.Get(obj.ID).Context(ctx).Download()
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Body, nil
}

func (s *Store) service(ctx context.Context, cred backupdomain.Credential) (*gdrive.Service, error) {
	if cred == nil {
		return nil, backupdomain.ErrCredentialRejected
	}

	opts := []option.ClientOption{
		option.WithHTTPClient(obstracing.WrapHTTPClient(cred.HTTPClient(ctx))),
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return gdrive.NewService(ctx, opts...)
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", backupdomain.ErrCredentialRejected, err)
	}
	return err
}
