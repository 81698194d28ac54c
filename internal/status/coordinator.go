package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrLockHeld signals that another writer owns the processing slot. Callers
// surface it distinctly so users can be told to retry later.
var ErrLockHeld = errors.New("processing already in progress")

// ErrNotProcessing signals a progress update outside an active run.
var ErrNotProcessing = errors.New("no processing run is active")

// Coordinator owns the singleton status/lock record and enforces the
// single-writer discipline: Idle -> Processing (locked) -> {Idle, Idle+Error}.
// The discipline is cooperative; callers must funnel every mutation through
// this API.
type Coordinator struct {
	repo              Repository
	lockTTL           time.Duration // guards a writer that died right after Start
	processingTimeout time.Duration // guards a writer that died mid-run
}

func NewCoordinator(repo Repository, lockTTL, processingTimeout time.Duration) *Coordinator {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Minute
	}
	return &Coordinator{repo: repo, lockTTL: lockTTL, processingTimeout: processingTimeout}
}

// TryAcquireLock grants the slot when it is free, already owned by userID,
// or held by a lock older than the lock TTL.
func (c *Coordinator) TryAcquireLock(ctx context.Context, userID string) (bool, error) {
	lock, err := c.repo.GetLock(ctx)
	if err != nil {
		return false, fmt.Errorf("read lock: %w", err)
	}
	if lock != nil && lock.UserID != userID && time.Since(lock.AcquiredAt) <= c.lockTTL {
		return false, nil
	}
	if lock != nil && lock.UserID != userID {
		slog.WarnContext(ctx, "reclaiming stale processing lock",
			"previous_user", lock.UserID, "age", time.Since(lock.AcquiredAt))
	}
	if err := c.repo.SaveLock(ctx, &Lock{UserID: userID, AcquiredAt: time.Now()}); err != nil {
		return false, fmt.Errorf("save lock: %w", err)
	}
	return true, nil
}

// Start transitions the slot to Processing on behalf of userID.
func (c *Coordinator) Start(ctx context.Context, userID string) error {
	ok, err := c.TryAcquireLock(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}

	now := time.Now()
	st := &ProcessingStatus{
		IsProcessing: true,
		StartTime:    &now,
		Progress:     &Progress{Message: "starting"},
		UserID:       userID,
		LastUpdated:  now,
	}
	if err := c.repo.SaveStatus(ctx, st); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	slog.InfoContext(ctx, "processing started", "user_id", userID)
	return nil
}

// UpdateProgress records batch-level progress and renews the lock. Valid
// only while Processing; StartTime and UserID are preserved.
func (c *Coordinator) UpdateProgress(ctx context.Context, current, total int, message string) error {
	st, err := c.repo.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if !st.IsProcessing {
		return ErrNotProcessing
	}

	st.Progress = &Progress{Current: current, Total: total, Message: message}
	st.LastUpdated = time.Now()
	if err := c.repo.SaveStatus(ctx, st); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	// A live writer keeps its lock fresh.
	return c.repo.SaveLock(ctx, &Lock{UserID: st.UserID, AcquiredAt: time.Now()})
}

// SetError transitions to Idle-with-error and releases the lock
// unconditionally.
func (c *Coordinator) SetError(ctx context.Context, message string) error {
	st := &ProcessingStatus{
		IsProcessing: false,
		Error:        message,
		LastUpdated:  time.Now(),
	}
	if err := c.repo.SaveStatus(ctx, st); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return c.repo.DeleteLock(ctx)
}

// End transitions to clean Idle and releases the lock.
func (c *Coordinator) End(ctx context.Context) error {
	st := &ProcessingStatus{
		IsProcessing: false,
		LastUpdated:  time.Now(),
	}
	if err := c.repo.SaveStatus(ctx, st); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return c.repo.DeleteLock(ctx)
}

// GetStatus returns the latest persisted snapshot. A run older than the
// processing timeout is force-failed as a side effect of the read, so a
// crashed writer cannot wedge the slot forever.
func (c *Coordinator) GetStatus(ctx context.Context) (*ProcessingStatus, error) {
	st, err := c.repo.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	if st.IsProcessing && st.StartTime != nil && time.Since(*st.StartTime) > c.processingTimeout {
		slog.WarnContext(ctx, "processing run exceeded timeout, reclaiming",
			"user_id", st.UserID, "started_at", st.StartTime)
		st.IsProcessing = false
		st.Error = fmt.Sprintf("processing timed out after %s", c.processingTimeout)
		st.LastUpdated = time.Now()
		if err := c.repo.SaveStatus(ctx, st); err != nil {
			return nil, fmt.Errorf("save status: %w", err)
		}
		if err := c.repo.DeleteLock(ctx); err != nil {
			return nil, fmt.Errorf("release lock: %w", err)
		}
	}
	return st, nil
}
