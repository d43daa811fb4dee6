package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// telemetryEvent is one JSONL line mirrored for every outcome, independent
// of the SQLite outcomes table, for external tooling that wants to tail a
// flat file instead of querying the database.
type telemetryEvent struct {
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	Confidence float64                `json:"confidence"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

type telemetryWriter struct {
	mu   sync.Mutex
	file *os.File
}

func newTelemetryWriter(path string) (*telemetryWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("learning: failed to create telemetry dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("learning: failed to open telemetry file: %w", err)
	}
	return &telemetryWriter{file: f}, nil
}

func (w *telemetryWriter) write(event telemetryEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')
	w.file.Write(data)
}

func (w *telemetryWriter) Close() error {
	return w.file.Close()
}
