package eventbus

import (
	"time"

	"github.com/jobpilot/automation/internal/types"
)

// Subject constants. The Activity Log, Task Manager, and Controller each
// publish under their own wildcard root so the Dashboard can subscribe to
// activity.>, task.>, or session.> independently.
const (
	SubjectActivityLogged = "activity.logged"

	SubjectTaskCreated   = "task.created"
	SubjectTaskStarted   = "task.started"
	SubjectTaskCompleted = "task.completed"
	SubjectTaskFailed    = "task.failed"

	SubjectSessionStarted = "session.started"
	SubjectSessionPaused  = "session.paused"
	SubjectSessionResumed = "session.resumed"
	SubjectSessionEnded   = "session.ended"

	// SubjectAllActivity, SubjectAllTasks and SubjectAllSessions are the
	// wildcard subjects the Dashboard's WebSocket relay subscribes to.
	SubjectAllActivity = "activity.>"
	SubjectAllTasks    = "task.>"
	SubjectAllSessions = "session.>"
)

// ActivityMessage wraps one activity log row as published to the bus.
type ActivityMessage struct {
	Record types.ActivityRecord `json:"record"`
}

// TaskMessage describes a task lifecycle transition.
type TaskMessage struct {
	TaskID     string    `json:"task_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Err        string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionMessage describes a session lifecycle transition.
type SessionMessage struct {
	State      types.SessionState `json:"state"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// ClientInfo describes one connection recorded by the embedded server, as
// returned by EmbeddedServer.GetConnectedClients.
type ClientInfo struct {
	ClientID    string    `json:"client_id"`
	ConnectedAt time.Time `json:"connected_at"`
}
