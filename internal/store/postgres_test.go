package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/store"
)

func newPostgresBackend(t *testing.T) (*store.PostgresBackend, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return store.NewPostgresBackend(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestPostgresBackend_PutScan(t *testing.T) {
	t.Parallel()
	backend, mock := newPostgresBackend(t)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scan := &store.Scan{ID: "scan-1", Hostname: "example.com", Status: store.StatusQueued, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO scans").
		WithArgs("scan-1", "example.com", "queued", now, now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, backend.PutScan(context.Background(), scan))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_GetScan(t *testing.T) {
	t.Parallel()
	backend, mock := newPostgresBackend(t)

	raw, err := json.Marshal(store.Scan{ID: "scan-1", Hostname: "example.com", Status: store.StatusRunning})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT data FROM scans WHERE id").
		WithArgs("scan-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))
	mock.ExpectQuery("SELECT data FROM scans WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	scan, err := backend.GetScan(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, scan.Status)

	_, err = backend.GetScan(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Snapshot(t *testing.T) {
	t.Parallel()
	backend, mock := newPostgresBackend(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snap := &store.Snapshot{
		Hostname:  "example.com",
		Mode:      store.ModeDraft,
		ScanID:    "scan-1",
		UpdatedAt: now,
		Blogs:     []store.ContentItem{{URL: "https://example.com/blog/a"}},
		Pages:     []store.ContentItem{},
	}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO opportunity_snapshots").
		WithArgs("example.com", "draft", false, "scan-1", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT data FROM opportunity_snapshots").
		WithArgs("example.com", "draft", false).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))

	require.NoError(t, backend.PutSnapshot(ctx, snap))

	got, err := backend.GetSnapshot(ctx, store.NewKey("example.com", "draft", false))
	require.NoError(t, err)
	require.Len(t, got.Blogs, 1)
	assert.Equal(t, "scan-1", got.ScanID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Sweep(t *testing.T) {
	t.Parallel()
	backend, mock := newPostgresBackend(t)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM opportunity_snapshots").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM scans").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := backend.Sweep(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Migrate(t *testing.T) {
	t.Parallel()
	backend, mock := newPostgresBackend(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scans").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, backend.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
