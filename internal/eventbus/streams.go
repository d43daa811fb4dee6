package eventbus

import (
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// StreamManager manages JetStream streams for the application
type StreamManager struct {
	js nats.JetStreamContext
}

// NewStreamManager creates a new StreamManager with JetStream context
func NewStreamManager(nc *nats.Conn) (*StreamManager, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	return &StreamManager{
		js: js,
	}, nil
}

// SetupStreams creates or updates all required JetStream streams
func (sm *StreamManager) SetupStreams() error {
	// Define stream configurations
	streams := []nats.StreamConfig{
		{
			Name:        "ACTIVITY",
			Description: "Activity log entries emitted by agents and the controller",
			Subjects:    []string{"activity.>"},
			Storage:     nats.FileStorage,
			MaxAge:      24 * time.Hour,
			Retention:   nats.LimitsPolicy,
		},
		{
			Name:        "TASK",
			Description: "Task lifecycle transitions from the Task Manager",
			Subjects:    []string{"task.>"},
			Storage:     nats.MemoryStorage,
			MaxAge:      1 * time.Hour,
			Retention:   nats.LimitsPolicy,
		},
		{
			Name:        "SESSION",
			Description: "Session start/pause/resume/end transitions from the Controller",
			Subjects:    []string{"session.>"},
			Storage:     nats.MemoryStorage,
			MaxAge:      1 * time.Hour,
			Retention:   nats.LimitsPolicy,
		},
	}

	// Create or update each stream
	for _, streamCfg := range streams {
		if err := sm.createOrUpdateStream(streamCfg); err != nil {
			return err
		}
	}

	log.Println("[eventbus] All streams configured successfully")
	return nil
}

// createOrUpdateStream creates a new stream or updates an existing one
func (sm *StreamManager) createOrUpdateStream(cfg nats.StreamConfig) error {
	// Try to get existing stream info
	info, err := sm.js.StreamInfo(cfg.Name)

	if err != nil {
		// Stream doesn't exist, create it
		if err == nats.ErrStreamNotFound {
			log.Printf("[eventbus] Creating stream %s with subjects %v", cfg.Name, cfg.Subjects)
			_, err := sm.js.AddStream(&cfg)
			if err != nil {
				log.Printf("[eventbus] Error creating stream %s: %v", cfg.Name, err)
				return err
			}
			log.Printf("[eventbus] Stream %s created successfully", cfg.Name)
			return nil
		}

		// Other error occurred
		log.Printf("[eventbus] Error getting stream info for %s: %v", cfg.Name, err)
		return err
	}

	// Stream exists, update it if needed
	log.Printf("[eventbus] Stream %s already exists, updating configuration", cfg.Name)
	_, err = sm.js.UpdateStream(&cfg)
	if err != nil {
		log.Printf("[eventbus] Error updating stream %s: %v", cfg.Name, err)
		return err
	}

	log.Printf("[eventbus] Stream %s updated successfully (messages: %d)", cfg.Name, info.State.Msgs)
	return nil
}

// DeleteStream deletes a stream by name (useful for cleanup/testing)
func (sm *StreamManager) DeleteStream(name string) error {
	log.Printf("[eventbus] Deleting stream %s", name)
	err := sm.js.DeleteStream(name)
	if err != nil {
		log.Printf("[eventbus] Error deleting stream %s: %v", name, err)
		return err
	}
	log.Printf("[eventbus] Stream %s deleted successfully", name)
	return nil
}

// GetStreamInfo returns information about a specific stream
func (sm *StreamManager) GetStreamInfo(name string) (*nats.StreamInfo, error) {
	return sm.js.StreamInfo(name)
}
