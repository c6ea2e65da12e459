package service

import (
	"sync"
	"time"

	"github.com/lawgic-ai/docqa/internal/domain"
)

// ProgressTracker maps ingestion task IDs to their mutable status records.
// Tasks move processing → done or processing → error; terminal states never
// transition again. Progress updates are last-write-wins — callers are
// expected to report monotonically, the tracker does not enforce it.
type ProgressTracker struct {
	mu    sync.RWMutex
	tasks map[string]*domain.IngestionTask
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{tasks: make(map[string]*domain.IngestionTask)}
}

// Create registers a new task in the processing state.
func (t *ProgressTracker) Create(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tasks[taskID] = &domain.IngestionTask{
		ID:        taskID,
		Status:    domain.TaskStatusProcessing,
		Progress:  0,
		Message:   "Initializing...",
		CreatedAt: time.Now(),
	}
}

// Update overwrites progress and message for a non-terminal task. Updates to
// unknown or terminal tasks are dropped.
func (t *ProgressTracker) Update(taskID string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok || task.Terminal() {
		return
	}
	task.Progress = progress
	task.Message = message
}

// AttachMetadata records document metadata on the task once the ingestion
// pipeline has derived it, so polling clients can observe it.
func (t *ProgressTracker) AttachMetadata(taskID string, meta domain.DocumentMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok || task.Terminal() {
		return
	}
	task.Metadata = &meta
}

// Done marks a task complete. No-op if the task is already terminal.
func (t *ProgressTracker) Done(taskID, message string) {
	t.finish(taskID, domain.TaskStatusDone, 100, message)
}

// Fail marks a task failed with the underlying error message. No-op if the
// task is already terminal.
func (t *ProgressTracker) Fail(taskID, message string) {
	t.finish(taskID, domain.TaskStatusError, 0, message)
}

func (t *ProgressTracker) finish(taskID, status string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok || task.Terminal() {
		return
	}
	task.Status = status
	task.Progress = progress
	task.Message = message
}

// Get returns a copy of the task record, or ok=false for unknown IDs.
func (t *ProgressTracker) Get(taskID string) (domain.IngestionTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	task, ok := t.tasks[taskID]
	if !ok {
		return domain.IngestionTask{}, false
	}
	return *task, true
}
