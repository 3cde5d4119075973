package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/config"
	"go.uber.org/zap"
)

const csvContentType = "text/csv; charset=utf-8"

var ErrBucketNotConfigured = errors.New("s3_bucket_not_configured")

// API is the subset of the S3 client used by Store.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store keeps ledger files in a bucket. Access uses the AWS credential chain,
// the per-session credential is not consulted. S3 has no trash, so every
// existing key is live.
type Store struct {
	client API
	bucket string
	prefix string
	log    *zap.Logger
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Backup.S3Bucket)
	if bucket == "" {
		return nil, ErrBucketNotConfigured
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Backup.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Backup.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.Backup.S3Endpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, bucket, cfg.Backup.S3Prefix, log), nil
}

func NewWithClient(client API, bucket, prefix string, log *zap.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.Named("backup.s3"),
	}
}

func (s *Store) Provider() string { return config.BackupProviderS3 }

func (s *Store) Find(ctx context.Context, _ backupdomain.Credential, name string) (backupdomain.Object, error) {
	key := s.key(name)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return backupdomain.Object{}, backupdomain.ErrObjectNotFound
		}
		return backupdomain.Object{}, err
	}
	return backupdomain.Object{ID: key, Name: name}, nil
}

func (s *Store) Create(ctx context.Context, _ backupdomain.Credential, name string, content io.Reader) (backupdomain.Object, error) {
	return s.put(ctx, backupdomain.Object{ID: s.key(name), Name: name}, content)
}

func (s *Store) Update(ctx context.Context, _ backupdomain.Credential, obj backupdomain.Object, content io.Reader) (backupdomain.Object, error) {
	if obj.ID == "" {
		obj.ID = s.key(obj.Name)
	}
	return s.put(ctx, obj, content)
}

func (s *Store) put(ctx context.Context, obj backupdomain.Object, content io.Reader) (backupdomain.Object, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.ID),
		Body:        content,
		ContentType: aws.String(csvContentType),
	})
	if err != nil {
		return backupdomain.Object{}, err
	}
	s.log.Debug("s3 object written", zap.String("key", obj.ID))
	return obj, nil
}

func (s *Store) Download(ctx context.Context, _ backupdomain.Credential, obj backupdomain.Object) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj.ID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, backupdomain.ErrObjectNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
