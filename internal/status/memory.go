package status

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository for tests and single-binary setups.
type MemoryRepo struct {
	mu     sync.Mutex
	status ProcessingStatus
	lock   *Lock
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{status: ProcessingStatus{LastUpdated: time.Now()}}
}

func (r *MemoryRepo) GetStatus(ctx context.Context) (*ProcessingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	if r.status.StartTime != nil {
		t := *r.status.StartTime
		st.StartTime = &t
	}
	if r.status.Progress != nil {
		p := *r.status.Progress
		st.Progress = &p
	}
	return &st, nil
}

func (r *MemoryRepo) SaveStatus(ctx context.Context, st *ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *st
	cp.LastUpdated = time.Now()
	r.status = cp
	return nil
}

func (r *MemoryRepo) GetLock(ctx context.Context) (*Lock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lock == nil {
		return nil, nil
	}
	l := *r.lock
	return &l, nil
}

func (r *MemoryRepo) SaveLock(ctx context.Context, l *Lock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	if cp.AcquiredAt.IsZero() {
		cp.AcquiredAt = time.Now()
	}
	r.lock = &cp
	return nil
}

func (r *MemoryRepo) DeleteLock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lock = nil
	return nil
}
