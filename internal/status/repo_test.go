package status_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stocktake/backend/internal/status"
)

func TestPostgresRepo_GetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := status.NewPostgresRepo(db)

	t.Run("Idle", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"is_processing", "start_time", "progress_current", "progress_total", "progress_message", "error", "user_id", "last_updated"}).
			AddRow(false, nil, 0, 0, "", "", "", time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("SELECT is_processing, start_time, progress_current, progress_total, progress_message, error, user_id, last_updated FROM processing_status WHERE id = 1")).
			WillReturnRows(rows)

		st, err := repo.GetStatus(context.Background())
		require.NoError(t, err)
		assert.False(t, st.IsProcessing)
		assert.Nil(t, st.StartTime)
		assert.Nil(t, st.Progress)
	})

	t.Run("Processing", func(t *testing.T) {
		started := time.Now().Add(-time.Minute)
		rows := sqlmock.NewRows([]string{"is_processing", "start_time", "progress_current", "progress_total", "progress_message", "error", "user_id", "last_updated"}).
			AddRow(true, started, 4, 10, "embedding", "", "u1", time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("SELECT is_processing, start_time")).
			WillReturnRows(rows)

		st, err := repo.GetStatus(context.Background())
		require.NoError(t, err)
		assert.True(t, st.IsProcessing)
		require.NotNil(t, st.StartTime)
		require.NotNil(t, st.Progress)
		assert.Equal(t, 4, st.Progress.Current)
		assert.Equal(t, "u1", st.UserID)
	})
}

func TestPostgresRepo_SaveStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := status.NewPostgresRepo(db)
	now := time.Now()

	st := &status.ProcessingStatus{
		IsProcessing: true,
		StartTime:    &now,
		Progress:     &status.Progress{Current: 2, Total: 8, Message: "embedding"},
		UserID:       "u1",
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE processing_status")).
		WithArgs(true, sqlmock.AnyArg(), 2, 8, "embedding", "", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SaveStatus(context.Background(), st))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Lock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := status.NewPostgresRepo(db)

	t.Run("Get Absent", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, acquired_at FROM processing_lock WHERE id = 1")).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "acquired_at"}))

		lock, err := repo.GetLock(context.Background())
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("Get Held", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, acquired_at FROM processing_lock WHERE id = 1")).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "acquired_at"}).AddRow("u1", time.Now()))

		lock, err := repo.GetLock(context.Background())
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "u1", lock.UserID)
	})

	t.Run("Save Upserts", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_lock (id, user_id, acquired_at) VALUES (1, $1, $2)")).
			WithArgs("u1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SaveLock(context.Background(), &status.Lock{UserID: "u1"}))
	})

	t.Run("Delete", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM processing_lock WHERE id = 1")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteLock(context.Background()))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
