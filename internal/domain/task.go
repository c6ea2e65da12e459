package domain

import "time"

// Ingestion task status constants
const (
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
	TaskStatusError      = "error"
	// TaskStatusUnknown is reported for task IDs the tracker has never seen.
	// It is a caller mistake, not a processing failure, so it is distinct
	// from TaskStatusError.
	TaskStatusUnknown = "unknown"
)

// IngestionTask is the mutable status record for one background ingestion.
// It is owned by the ProgressTracker; pipeline stages mutate it through the
// tracker until it reaches a terminal status (done or error).
type IngestionTask struct {
	ID        string            `json:"task_id"`
	Status    string            `json:"status"`
	Progress  int               `json:"progress"`
	Message   string            `json:"message"`
	Metadata  *DocumentMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Terminal reports whether the task can no longer transition.
func (t *IngestionTask) Terminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusError
}
