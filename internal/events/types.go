package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the subject class of a published event.
type EventType string

// Event type constants. Activity, task and session match the NATS subjects
// the eventbus package publishes under (activity.>, task.>, session.>);
// learning and alert have no eventbus subject.
const (
	EventActivity EventType = "activity"
	EventTask     EventType = "task"
	EventSession  EventType = "session"
	EventLearning EventType = "learning"
	EventAlert    EventType = "alert"
)

// Priority constants for events
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// Event represents a system event that can be published and subscribed to
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType EventType, source, target string, priority int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Target:    target,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// AllEventTypes returns all defined event types
func AllEventTypes() []EventType {
	return []EventType{
		EventActivity,
		EventTask,
		EventSession,
		EventLearning,
		EventAlert,
	}
}
