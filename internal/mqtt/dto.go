package mqtt

import "time"

// ProgressMessage is published to <topic>/progress while an extraction runs.
type ProgressMessage struct {
	JobID     string    `json:"jobId"`
	Source    string    `json:"source"`
	Progress  float64   `json:"progress"` // fraction in [0, 1]
	Timestamp time.Time `json:"timestamp"`
}

// ResultMessage is published to <topic>/result once an extraction finishes.
type ResultMessage struct {
	JobID     string    `json:"jobId"`
	Source    string    `json:"source"`
	Status    string    `json:"status"` // completed or failed
	Rows      int       `json:"rows"`
	Kind      string    `json:"kind,omitempty"` // failure kind, empty on success
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"durationSeconds"`
	Timestamp time.Time `json:"timestamp"`
}

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
