// internal/tasks/types.go
package tasks

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status represents the current lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Type identifies the named kind of work a task performs when it is
// enqueued by type rather than by an explicit closure.
type Type string

const (
	TypeJobSearch        Type = "job_search"
	TypeCaptcha          Type = "captcha"
	TypeStateRestoration Type = "state_restoration"
	TypeRecovery         Type = "recovery"
	TypeVerification     Type = "verification"
)

// Work is the deferred unit of work a task executes. It must return
// promptly after ctx is cancelled.
type Work func(ctx context.Context) (interface{}, error)

// Task represents a unit of work managed by the Task Manager.
type Task struct {
	ID          string                 `json:"id"`
	Type        Type                   `json:"type,omitempty"`
	Priority    int                    `json:"priority"`
	Status      Status                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Result      interface{}            `json:"result,omitempty"`
	Err         string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`

	work            Work
	cancel          func()
	cancelRequested atomic.Bool
}

// validTransitions defines the sticky-terminal lifecycle from spec.md §3/§8.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusTimeout:   {},
	StatusCancelled: {},
}

// NewTask creates a pending task wrapping the given deferred work.
func NewTask(taskType Type, priority int, work Work) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Priority:  priority,
		Status:    StatusPending,
		Metadata:  make(map[string]interface{}),
		CreatedAt: time.Now(),
		work:      work,
	}
}

// Validate checks that the task has sane field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.work == nil {
		return fmt.Errorf("task %s has no work to run", t.ID)
	}
	return nil
}

// TransitionTo attempts to move the task to a new status, enforcing that
// terminal states are sticky.
func (t *Task) TransitionTo(newStatus Status) error {
	allowed, ok := validTransitions[t.Status]
	if !ok {
		return fmt.Errorf("unknown current status: %s", t.Status)
	}
	for _, s := range allowed {
		if s == newStatus {
			t.Status = newStatus
			if t.IsTerminal() {
				now := time.Now()
				t.CompletedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", t.Status, newStatus)
}

// IsTerminal returns true if the task can no longer change status.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}
