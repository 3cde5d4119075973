package domain

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/smallbiznis/macrolog/internal/ledger"
)

var (
	ErrRemoteWrite        = errors.New("remote_write_failed")
	ErrRemoteRead         = errors.New("remote_read_failed")
	ErrObjectNotFound     = errors.New("object_not_found")
	ErrCredentialRejected = errors.New("credential_rejected")
	ErrInvalidFilename    = errors.New("invalid_filename")
	ErrInvalidUser        = errors.New("invalid_user")
)

// Credential authorizes calls to the remote store.
type Credential interface {
	HTTPClient(ctx context.Context) *http.Client
}

// Object identifies a stored file. ID is provider specific.
type Object struct {
	ID   string
	Name string
}

// ObjectStore is the remote backup collaborator. Find must ignore objects the
// provider marks as deleted and return ErrObjectNotFound when nothing matches.
type ObjectStore interface {
	Provider() string
	Find(ctx context.Context, cred Credential, name string) (Object, error)
	Create(ctx context.Context, cred Credential, name string, content io.Reader) (Object, error)
	Update(ctx context.Context, cred Credential, obj Object, content io.Reader) (Object, error)
	Download(ctx context.Context, cred Credential, obj Object) (io.ReadCloser, error)
}

type Service interface {
	// Upload writes content as filename, replacing a live object with the same
	// name or creating one. Failures are wrapped with ErrRemoteWrite.
	Upload(ctx context.Context, cred Credential, userID string, content []byte, filename string) error
	// UploadLedger encodes entries as CSV and uploads them.
	UploadLedger(ctx context.Context, cred Credential, userID string, entries []ledger.Entry, filename string) error
	// Restore returns the entries stored in filename, or nil when the object
	// does not exist.
	Restore(ctx context.Context, cred Credential, filename string) ([]ledger.Entry, error)
}
