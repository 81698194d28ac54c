package job

import (
	"encoding/json"
	"time"
)

// Job is a dead-lettered ingestion run, kept so operators can inspect the
// failure and replay the original queue payload.
type Job struct {
	ID         string          `json:"id"`
	ResourceID string          `json:"resource_id"`
	Handler    string          `json:"handler"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
	Retries    int             `json:"retries"`
	CreatedAt  time.Time       `json:"created_at"`
}
