package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jobpilot/automation/internal/types"
	_ "modernc.org/sqlite"
)

const outcomesSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	success INTEGER NOT NULL,
	confidence REAL NOT NULL,
	context TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_action ON outcomes(action, created_at);
`

// Open creates (or reopens) a SQLite-backed Learning Pipeline at dbPath,
// replaying every previously recorded outcome into memory before
// returning, so SuccessRate/AverageConfidence see history from before the
// current process started.
func Open(dbPath string) (*Pipeline, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("learning: failed to create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("learning: failed to open store: %w", err)
	}
	if _, err := db.Exec(outcomesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("learning: failed to initialize schema: %w", err)
	}

	p := &Pipeline{outcomes: make(map[string][]types.OutcomeRecord), db: db}
	if err := p.loadLocked(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// EnableTelemetry mirrors every future Record call as a JSONL line under
// storagePath, independent of the SQLite outcomes table, for tooling that
// wants to tail a flat file rather than query the database.
func (p *Pipeline) EnableTelemetry(storagePath string) error {
	w, err := newTelemetryWriter(filepath.Join(storagePath, "outcomes.jsonl"))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.telemetry = w
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) loadLocked() error {
	rows, err := p.db.Query(`SELECT action, success, confidence, context, created_at FROM outcomes ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("learning: failed to load outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var contextJSON sql.NullString
		var success int
		var confidence float64
		var createdAt time.Time
		if err := rows.Scan(&action, &success, &confidence, &contextJSON, &createdAt); err != nil {
			return fmt.Errorf("learning: failed to scan outcome row: %w", err)
		}
		record := types.OutcomeRecord{Success: success != 0, Confidence: confidence, Timestamp: createdAt}
		if contextJSON.Valid && contextJSON.String != "" {
			if err := json.Unmarshal([]byte(contextJSON.String), &record.Context); err != nil {
				log.Printf("[Learning] failed to unmarshal stored context for %s: %v", action, err)
			}
		}
		p.outcomes[action] = append(p.outcomes[action], record)
	}
	return rows.Err()
}

// persist is a no-op when the Pipeline was built with New rather than Open.
func (p *Pipeline) persist(action string, record types.OutcomeRecord) {
	if p.db == nil {
		return
	}
	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		log.Printf("[Learning] failed to marshal outcome context: %v", err)
		return
	}
	_, err = p.db.Exec(
		`INSERT INTO outcomes (action, success, confidence, context, created_at) VALUES (?, ?, ?, ?, ?)`,
		action, boolToInt(record.Success), record.Confidence, string(contextJSON), record.Timestamp,
	)
	if err != nil {
		log.Printf("[Learning] failed to persist outcome: %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
