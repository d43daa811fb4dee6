package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// HandlerCallbacks are invoked as messages for each event class arrive.
// A nil callback simply drops messages of that class.
type HandlerCallbacks struct {
	OnActivityLogged func(msg ActivityMessage) error
	OnTaskTransition func(msg TaskMessage) error
	OnSessionChanged func(msg SessionMessage) error
}

// Handler subscribes to the bus's wildcard subjects and fans incoming
// messages out to HandlerCallbacks. The Dashboard uses it to relay bus
// traffic to WebSocket clients.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks

	subs   []*nats.Subscription
	subsMu sync.Mutex

	running bool
}

// NewHandler creates a Handler over an already-connected Client.
func NewHandler(client *Client, callbacks HandlerCallbacks) *Handler {
	return &Handler{
		client:    client,
		callbacks: callbacks,
		subs:      make([]*nats.Subscription, 0),
	}
}

// Start subscribes to activity.>, task.> and session.>.
func (h *Handler) Start() error {
	if h.running {
		return fmt.Errorf("handler already running")
	}
	h.running = true

	sub, err := h.client.Subscribe(SubjectAllActivity, h.handleActivity)
	if err != nil {
		return fmt.Errorf("failed to subscribe to activity: %w", err)
	}
	h.addSub(sub)

	sub, err = h.client.Subscribe(SubjectAllTasks, h.handleTask)
	if err != nil {
		return fmt.Errorf("failed to subscribe to tasks: %w", err)
	}
	h.addSub(sub)

	sub, err = h.client.Subscribe(SubjectAllSessions, h.handleSession)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sessions: %w", err)
	}
	h.addSub(sub)

	log.Printf("[eventbus] handler started, subscribed to %d subjects", len(h.subs))
	return nil
}

// Stop unsubscribes from every subject the handler holds.
func (h *Handler) Stop() {
	if !h.running {
		return
	}

	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()

	h.running = false
	log.Printf("[eventbus] handler stopped")
}

func (h *Handler) addSub(sub *nats.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleActivity(msg *Message) {
	var m ActivityMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[eventbus] invalid activity message: %v", err)
		return
	}
	if h.callbacks.OnActivityLogged != nil {
		if err := h.callbacks.OnActivityLogged(m); err != nil {
			log.Printf("[eventbus] activity callback error: %v", err)
		}
	}
}

func (h *Handler) handleTask(msg *Message) {
	var m TaskMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[eventbus] invalid task message: %v", err)
		return
	}
	if h.callbacks.OnTaskTransition != nil {
		if err := h.callbacks.OnTaskTransition(m); err != nil {
			log.Printf("[eventbus] task callback error: %v", err)
		}
	}
}

func (h *Handler) handleSession(msg *Message) {
	var m SessionMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[eventbus] invalid session message: %v", err)
		return
	}
	if h.callbacks.OnSessionChanged != nil {
		if err := h.callbacks.OnSessionChanged(m); err != nil {
			log.Printf("[eventbus] session callback error: %v", err)
		}
	}
}
