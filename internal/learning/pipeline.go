// Package learning implements the Learning Pipeline: a per-action record of
// outcomes with rolling success-rate and average-confidence queries, backed
// by an optional SQLite store so history survives a daemon restart.
package learning

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

const defaultWindow = 50

// Pipeline stores outcome history per action name. db and telemetry are nil
// for a pure in-memory Pipeline built with New; Open wires both.
type Pipeline struct {
	mu        sync.RWMutex
	outcomes  map[string][]types.OutcomeRecord
	db        *sql.DB
	telemetry *telemetryWriter
}

// New creates an empty, in-memory-only Learning Pipeline. Outcomes do not
// survive a restart; use Open for the persisted variant the daemon runs.
func New() *Pipeline {
	return &Pipeline{outcomes: make(map[string][]types.OutcomeRecord)}
}

// Record appends an outcome for action. Confidence is clamped before
// storage so a corrupted value cannot propagate into downstream scoring.
// If the Pipeline was built with Open, the outcome is also persisted to
// SQLite and, if telemetry is enabled, mirrored as a JSONL line.
func (p *Pipeline) Record(action string, success bool, confidence float64, context map[string]interface{}) {
	record := types.OutcomeRecord{
		Success:    success,
		Confidence: types.ClampConfidence(confidence),
		Context:    context,
	}
	record.Timestamp = time.Now()

	p.mu.Lock()
	p.outcomes[action] = append(p.outcomes[action], record)
	p.mu.Unlock()

	log.Printf("[Learning] recorded outcome for %s: success=%v confidence=%.2f", action, success, record.Confidence)

	p.persist(action, record)
	if p.telemetry != nil {
		p.telemetry.write(telemetryEvent{
			Action:     action,
			Success:    record.Success,
			Confidence: record.Confidence,
			Context:    record.Context,
			Timestamp:  record.Timestamp.Format(time.RFC3339),
		})
	}
}

// SuccessRate returns the fraction of successful outcomes among the last
// window records for action, or 0.0 if there is no data.
func (p *Pipeline) SuccessRate(action string, window int) float64 {
	if window <= 0 {
		window = defaultWindow
	}
	recent := p.recent(action, window)
	if len(recent) == 0 {
		return 0.0
	}

	successes := 0
	for _, r := range recent {
		if r.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(recent))
}

// AverageConfidence returns the mean confidence among the last window
// records for action, or 0.0 if there is no data.
func (p *Pipeline) AverageConfidence(action string, window int) float64 {
	if window <= 0 {
		window = defaultWindow
	}
	recent := p.recent(action, window)
	if len(recent) == 0 {
		return 0.0
	}

	var total float64
	for _, r := range recent {
		total += r.Confidence
	}
	return total / float64(len(recent))
}

// HasData reports whether any outcomes have been recorded for action.
func (p *Pipeline) HasData(action string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.outcomes[action]) > 0
}

func (p *Pipeline) recent(action string, window int) []types.OutcomeRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := p.outcomes[action]
	if len(all) <= window {
		out := make([]types.OutcomeRecord, len(all))
		copy(out, all)
		return out
	}
	out := make([]types.OutcomeRecord, window)
	copy(out, all[len(all)-window:])
	return out
}

// Close releases the underlying SQLite handle and telemetry file, if any.
// Safe to call on a Pipeline built with New, which holds neither.
func (p *Pipeline) Close() error {
	if p.telemetry != nil {
		if err := p.telemetry.Close(); err != nil {
			log.Printf("[Learning] failed to close telemetry file: %v", err)
		}
	}
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
