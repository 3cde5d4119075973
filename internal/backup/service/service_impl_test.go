package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Provider() string { return "mock" }

func (m *mockStore) Find(ctx context.Context, cred backupdomain.Credential, name string) (backupdomain.Object, error) {
	args := m.Called(name)
	return args.Get(0).(backupdomain.Object), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, cred backupdomain.Credential, name string, content io.Reader) (backupdomain.Object, error) {
	data, _ := io.ReadAll(content)
	args := m.Called(name, string(data))
	return args.Get(0).(backupdomain.Object), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object, content io.Reader) (backupdomain.Object, error) {
	data, _ := io.ReadAll(content)
	args := m.Called(obj, string(data))
	return args.Get(0).(backupdomain.Object), args.Error(1)
}

func (m *mockStore) Download(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object) (io.ReadCloser, error) {
	args := m.Called(obj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Record(ctx context.Context, req auditdomain.RecordRequest) error {
	args := m.Called(req.Action, req.Filename, req.RemoteID, req.Entries, req.Err != nil)
	return args.Error(0)
}

func (m *mockAudit) ListByUser(ctx context.Context, userID string, limit int) ([]auditdomain.BackupRecord, error) {
	return nil, nil
}

func (m *mockAudit) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type nopCredential struct{}

func (nopCredential) HTTPClient(ctx context.Context) *http.Client { return http.DefaultClient }

func newTestService(t *testing.T, store *mockStore, audit *mockAudit) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := &Service{
		store:      store,
		scratchDir: dir,
		location:   time.UTC,
		log:        zaptest.NewLogger(t),
	}
	if audit != nil {
		svc.auditSvc = audit
	}
	return svc, dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	items, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, items, "scratch files left behind")
}

const filename = "historial_consumo_ana@example.com_2024-05-01.csv"

func TestUploadCreatesWhenMissing(t *testing.T) {
	store := &mockStore{}
	audit := &mockAudit{}
	svc, dir := newTestService(t, store, audit)

	store.On("Find", filename).Return(backupdomain.Object{}, backupdomain.ErrObjectNotFound)
	store.On("Create", filename, "a,b\n1,2\n").Return(backupdomain.Object{ID: "file-1", Name: filename}, nil)
	audit.On("Record", auditdomain.ActionUpload, filename, "file-1", 1, false).Return(nil)

	err := svc.Upload(context.Background(), nopCredential{}, "ana@example.com", []byte("a,b\n1,2\n"), filename)
	require.NoError(t, err)

	store.AssertExpectations(t)
	audit.AssertExpectations(t)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assertDirEmpty(t, dir)
}

func TestUploadUpdatesExisting(t *testing.T) {
	store := &mockStore{}
	svc, dir := newTestService(t, store, nil)
	existing := backupdomain.Object{ID: "file-1", Name: filename}

	store.On("Find", filename).Return(existing, nil)
	store.On("Update", existing, "x\n").Return(existing, nil)

	err := svc.Upload(context.Background(), nopCredential{}, "ana@example.com", []byte("x\n"), filename)
	require.NoError(t, err)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assertDirEmpty(t, dir)
}

func TestUploadFailureIsRemoteWrite(t *testing.T) {
	store := &mockStore{}
	audit := &mockAudit{}
	svc, dir := newTestService(t, store, audit)
	cause := errors.New("quota exceeded")

	store.On("Find", filename).Return(backupdomain.Object{}, backupdomain.ErrObjectNotFound)
	store.On("Create", filename, "x\n").Return(backupdomain.Object{}, cause)
	audit.On("Record", auditdomain.ActionUpload, filename, "", 0, true).Return(errors.New("db down"))

	err := svc.Upload(context.Background(), nopCredential{}, "ana@example.com", []byte("x\n"), filename)
	require.Error(t, err)
	assert.ErrorIs(t, err, backupdomain.ErrRemoteWrite)
	assert.ErrorIs(t, err, cause)

	store.AssertNumberOfCalls(t, "Create", 1)
	audit.AssertExpectations(t)
	assertDirEmpty(t, dir)
}

func TestUploadFindFailureKeepsCause(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(t, store, nil)

	store.On("Find", filename).Return(backupdomain.Object{}, backupdomain.ErrCredentialRejected)

	err := svc.Upload(context.Background(), nopCredential{}, "ana@example.com", []byte("x\n"), filename)
	assert.ErrorIs(t, err, backupdomain.ErrRemoteWrite)
	assert.ErrorIs(t, err, backupdomain.ErrCredentialRejected)
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newTestService(t, &mockStore{}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Upload(ctx, nopCredential{}, " ", nil, filename), backupdomain.ErrInvalidUser)
	assert.ErrorIs(t, svc.Upload(ctx, nopCredential{}, "ana@example.com", nil, " "), backupdomain.ErrInvalidFilename)
}

func TestUploadLedgerThenRestore(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(t, store, nil)
	ctx := context.Background()

	entries := []ledger.Entry{
		{Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), FoodName: "Apple", QuantityG: 150, Calories: 78, FatG: 0.3, ProteinG: 0.45, CarbsG: 21},
		{Timestamp: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), FoodName: "Rice", QuantityG: 200, Calories: 260, FatG: 0.6, ProteinG: 5.4, CarbsG: 56},
	}
	content, err := backupdomain.EncodeLedger(entries)
	require.NoError(t, err)

	obj := backupdomain.Object{ID: "file-1", Name: filename}
	store.On("Find", filename).Return(backupdomain.Object{}, backupdomain.ErrObjectNotFound).Once()
	store.On("Create", filename, string(content)).Return(obj, nil)
	require.NoError(t, svc.UploadLedger(ctx, nopCredential{}, "ana@example.com", entries, filename))

	store.On("Find", filename).Return(obj, nil)
	store.On("Download", obj).Return(content, nil)

	restored, err := svc.Restore(ctx, nopCredential{}, filename)
	require.NoError(t, err)
	assert.Equal(t, entries, restored)
}

func TestRestoreMissingObject(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(t, store, nil)

	store.On("Find", filename).Return(backupdomain.Object{}, backupdomain.ErrObjectNotFound)

	entries, err := svc.Restore(context.Background(), nopCredential{}, filename)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRestoreDownloadFailure(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(t, store, nil)
	obj := backupdomain.Object{ID: "file-1", Name: filename}

	store.On("Find", filename).Return(obj, nil)
	store.On("Download", obj).Return(nil, errors.New("boom"))

	_, err := svc.Restore(context.Background(), nopCredential{}, filename)
	assert.ErrorIs(t, err, backupdomain.ErrRemoteRead)
}

func TestCountRows(t *testing.T) {
	assert.Equal(t, 0, countRows(nil))
	assert.Equal(t, 0, countRows([]byte("header\n")))
	assert.Equal(t, 2, countRows([]byte("header\na\nb\n")))
}
