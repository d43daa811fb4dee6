package server

import (
	"github.com/jobpilot/automation/internal/eventbus"
)

// EventBridge relays Event Bus traffic onto the Dashboard's WebSocket hub,
// so every connected browser sees activity, task and session events as
// they happen anywhere in the system, not just the local process.
type EventBridge struct {
	handler *eventbus.Handler
	hub     *Hub
}

// NewEventBridge wires client to the Dashboard's hub. Call Start to begin
// relaying.
func NewEventBridge(client *eventbus.Client, hub *Hub) *EventBridge {
	b := &EventBridge{hub: hub}
	b.handler = eventbus.NewHandler(client, eventbus.HandlerCallbacks{
		OnActivityLogged: b.onActivity,
		OnTaskTransition: b.onTask,
		OnSessionChanged: b.onSession,
	})
	return b
}

// Start subscribes the bridge to the bus's wildcard subjects.
func (b *EventBridge) Start() error {
	return b.handler.Start()
}

// Stop unsubscribes the bridge.
func (b *EventBridge) Stop() {
	b.handler.Stop()
}

func (b *EventBridge) onActivity(msg eventbus.ActivityMessage) error {
	b.hub.BroadcastActivity(msg.Record)
	return nil
}

func (b *EventBridge) onTask(msg eventbus.TaskMessage) error {
	b.hub.BroadcastTask(msg)
	return nil
}

func (b *EventBridge) onSession(msg eventbus.SessionMessage) error {
	b.hub.BroadcastState(msg.State)
	return nil
}
