package status

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists the singleton status document and the lock document
// with last-writer-wins semantics. GetLock returns (nil, nil) when no lock
// is held.
type Repository interface {
	GetStatus(ctx context.Context) (*ProcessingStatus, error)
	SaveStatus(ctx context.Context, st *ProcessingStatus) error
	GetLock(ctx context.Context) (*Lock, error)
	SaveLock(ctx context.Context, l *Lock) error
	DeleteLock(ctx context.Context) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetStatus(ctx context.Context) (*ProcessingStatus, error) {
	st := &ProcessingStatus{}
	var startTime sql.NullTime
	var current, total int
	var message string

	query := `SELECT is_processing, start_time, progress_current, progress_total, progress_message, error, user_id, last_updated FROM processing_status WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(
		&st.IsProcessing, &startTime, &current, &total, &message,
		&st.Error, &st.UserID, &st.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if startTime.Valid {
		t := startTime.Time
		st.StartTime = &t
	}
	if st.IsProcessing || current > 0 || total > 0 {
		st.Progress = &Progress{Current: current, Total: total, Message: message}
	}
	return st, nil
}

func (r *PostgresRepo) SaveStatus(ctx context.Context, st *ProcessingStatus) error {
	var startTime sql.NullTime
	if st.StartTime != nil {
		startTime = sql.NullTime{Time: *st.StartTime, Valid: true}
	}
	var current, total int
	var message string
	if st.Progress != nil {
		current, total, message = st.Progress.Current, st.Progress.Total, st.Progress.Message
	}

	query := `
		UPDATE processing_status
		SET is_processing = $1, start_time = $2, progress_current = $3, progress_total = $4, progress_message = $5, error = $6, user_id = $7, last_updated = NOW()
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query, st.IsProcessing, startTime, current, total, message, st.Error, st.UserID)
	return err
}

func (r *PostgresRepo) GetLock(ctx context.Context) (*Lock, error) {
	l := &Lock{}
	query := `SELECT user_id, acquired_at FROM processing_lock WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&l.UserID, &l.AcquiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *PostgresRepo) SaveLock(ctx context.Context, l *Lock) error {
	query := `
		INSERT INTO processing_lock (id, user_id, acquired_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, acquired_at = EXCLUDED.acquired_at
	`
	acquiredAt := l.AcquiredAt
	if acquiredAt.IsZero() {
		acquiredAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query, l.UserID, acquiredAt)
	return err
}

func (r *PostgresRepo) DeleteLock(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_lock WHERE id = 1`)
	return err
}
