package status

import "time"

// Progress is the chunk-level accounting exposed to pollers.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProcessingStatus is the singleton record describing the ingestion slot.
// It is only ever mutated through the Coordinator.
type ProcessingStatus struct {
	IsProcessing bool       `json:"is_processing"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	Progress     *Progress  `json:"progress,omitempty"`
	Error        string     `json:"error,omitempty"`
	UserID       string     `json:"user_id,omitempty"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// Lock associates the processing slot with one user. It expires after the
// lock TTL unless renewed by a progress update; the overall processing
// timeout (longer) covers writers that keep renewing but never finish.
type Lock struct {
	UserID     string    `json:"user_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}
