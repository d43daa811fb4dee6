package eventbus

import (
	"log"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

// ActivityLogger matches the narrow LogActivity contract the tracker,
// Task Manager and Controller all depend on.
type ActivityLogger interface {
	LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string)
}

// ActivityPublisher wraps an ActivityLogger so every logged row is also
// published to the bus under activity.logged, letting any number of
// Dashboard processes relay it to their own WebSocket clients.
type ActivityPublisher struct {
	next   ActivityLogger
	client *Client
}

// NewActivityPublisher wraps next; client may be nil to run bus-free (the
// wrapper then behaves exactly like next).
func NewActivityPublisher(next ActivityLogger, client *Client) *ActivityPublisher {
	return &ActivityPublisher{next: next, client: client}
}

// LogActivity delegates to the wrapped logger first, then best-effort
// publishes the resulting record. A publish failure never masks the
// underlying log write.
func (p *ActivityPublisher) LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string) {
	p.next.LogActivity(activityType, details, status, agentName, jobID)

	if p.client == nil {
		return
	}
	msg := ActivityMessage{Record: types.ActivityRecord{
		Timestamp: time.Now(),
		AgentName: agentName,
		JobID:     jobID,
		Type:      activityType,
		Details:   details,
		Status:    status,
	}}
	if err := p.client.PublishJSON(SubjectActivityLogged, msg); err != nil {
		log.Printf("[eventbus] failed to publish activity: %v", err)
	}
}
