package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/facebook-auto-poster/internal/models"
)

func newTestPostgreSQLStorage(t *testing.T) (*PostgreSQLStorage, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS poster_batches").WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := newPostgreSQLStorage(context.Background(), db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgreSQLStorage_LoadLastBatch(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectQuery(`SELECT identifiers FROM poster_batches WHERE id = \$1`).
		WithArgs("last_batch").
		WillReturnRows(sqlmock.NewRows([]string{"identifiers"}).AddRow("{A1,B2}"))

	batch, err := store.LoadLastBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, batch.IDs())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStorage_LoadLastBatch_NoRows(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectQuery(`SELECT identifiers FROM poster_batches`).
		WillReturnRows(sqlmock.NewRows([]string{"identifiers"}))

	batch, err := store.LoadLastBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStorage_LoadLastBatch_Error(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectQuery(`SELECT identifiers FROM poster_batches`).WillReturnError(errors.New("connection reset"))

	_, err := store.LoadLastBatch(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistence))
}

func TestPostgreSQLStorage_SaveLastBatch(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectExec(`INSERT INTO poster_batches`).
		WithArgs("last_batch", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveLastBatch(context.Background(), models.NewPostedBatch("A1", "B2"))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStorage_SaveLastBatch_Error(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectExec(`INSERT INTO poster_batches`).WillReturnError(errors.New("read-only transaction"))

	err := store.SaveLastBatch(context.Background(), models.NewPostedBatch("A1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistence))
}

func TestPostgreSQLStorage_RunStatus(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)
	now := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO poster_run_status`).
		WithArgs("run_status", "r1", now, sqlmock.AnyArg(), models.StatusSuccess, "", 3, 1, 1, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT run_id, last_attempt, last_successful_run`).
		WithArgs("run_status").
		WillReturnRows(sqlmock.NewRows([]string{
			"run_id", "last_attempt", "last_successful_run", "status", "error_message", "fetched", "eligible", "published", "failed",
		}).AddRow("r1", now, now, models.StatusSuccess, "", 3, 1, 1, 0))

	err := store.UpdateRunStatus(context.Background(), models.RunStatus{
		RunID: "r1", LastAttempt: now, LastSuccessfulRun: now, Status: models.StatusSuccess,
		Fetched: 3, Eligible: 1, Published: 1,
	})
	require.NoError(t, err)

	status, err := store.GetRunStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", status.RunID)
	assert.Equal(t, 1, status.Published)
	assert.True(t, now.Equal(status.LastSuccessfulRun))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStorage_GetRunStatus_NeverRun(t *testing.T) {
	store, mock := newTestPostgreSQLStorage(t)

	mock.ExpectQuery(`SELECT run_id`).WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	status, err := store.GetRunStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.StatusNeverRun, status.Status)
}
