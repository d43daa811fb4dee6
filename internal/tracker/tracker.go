// Package tracker implements the Activity Log: an append-only, size-rotated
// CSV record of every agent action.
package tracker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jobpilot/automation/internal/types"
)

var columns = []string{"row_id", "timestamp", "agent_name", "job_id", "type", "details", "status"}

var jobsAppliedColumns = []string{
	"job_title", "company", "location", "is_easy_apply", "recruiter_name",
	"recruiter_link", "application_status",
}

// Config controls rotation behaviour.
type Config struct {
	DataDir          string
	MaxFileSizeBytes int64
}

// DefaultConfig mirrors the original implementation's 5 MB rotation threshold.
func DefaultConfig() Config {
	return Config{DataDir: "./logs", MaxFileSizeBytes: 5_000_000}
}

// Tracker is the Activity Log. All writes and rotations happen inside a
// single mutex-guarded critical section; reads merge the in-memory cache
// with whatever is currently on disk.
type Tracker struct {
	mu              sync.Mutex
	dataDir         string
	activityFile    string
	jobsAppliedFile string
	maxFileSize     int64
	history         []types.ActivityRecord
	stats           map[string]*ActionStats
}

// ActionStats is a running per-action-type tally, kept in memory only: it
// resets with the process and is never read back from the CSV file.
type ActionStats struct {
	Count        int           `json:"count"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	TotalLatency time.Duration `json:"-"`
	LastSeen     time.Time     `json:"last_seen"`
}

// AverageLatency returns the mean time between consecutive LogActivity
// calls for this action type, or zero until a second sample exists.
func (s *ActionStats) AverageLatency() time.Duration {
	if s.Count < 2 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Count-1)
}

// New creates a Tracker rooted at cfg.DataDir, creating the directory if
// necessary.
func New(cfg Config) (*Tracker, error) {
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = DefaultConfig().MaxFileSizeBytes
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return &Tracker{
		dataDir:         cfg.DataDir,
		activityFile:    filepath.Join(cfg.DataDir, "activity_log.csv"),
		jobsAppliedFile: filepath.Join(cfg.DataDir, "jobs_applied.csv"),
		maxFileSize:     cfg.MaxFileSizeBytes,
		stats:           make(map[string]*ActionStats),
	}, nil
}

// LogActivity mints a row_id and timestamp, prints the entry to the
// terminal, and appends it to the active CSV file, rotating first if needed.
// Errors are printed to stdout rather than returned: a logging failure must
// never abort the caller's action.
func (t *Tracker) LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string) {
	record := types.ActivityRecord{
		RowID:     uuid.New().String(),
		Timestamp: time.Now(),
		AgentName: agentName,
		JobID:     jobID,
		Type:      activityType,
		Details:   details,
		Status:    status,
	}

	fmt.Printf("[Tracker] %s | %s | %s | %s | %s\n",
		record.Timestamp.Format("2006-01-02 15:04:05"), agentName, activityType, details, status)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rotateIfNeededLocked(); err != nil {
		fmt.Printf("[Tracker] error rotating log file: %v\n", err)
	}
	if err := t.appendLocked(record); err != nil {
		fmt.Printf("[Tracker] error writing to CSV: %v\n", err)
	}
	t.history = append(t.history, record)
	t.updateStatsLocked(record)
}

// updateStatsLocked folds record into its action type's running tally.
// Caller must hold t.mu.
func (t *Tracker) updateStatsLocked(record types.ActivityRecord) {
	s, ok := t.stats[record.Type]
	if !ok {
		s = &ActionStats{}
		t.stats[record.Type] = s
	}
	if !s.LastSeen.IsZero() {
		s.TotalLatency += record.Timestamp.Sub(s.LastSeen)
	}
	s.Count++
	s.LastSeen = record.Timestamp
	switch record.Status {
	case types.StatusSuccess:
		s.Succeeded++
	case types.StatusFailed, types.StatusError:
		s.Failed++
	}
}

// Snapshot returns a copy of the current per-action-type tallies, keyed by
// activity type (e.g. "application", "session", "captcha").
func (t *Tracker) Snapshot() map[string]ActionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]ActionStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}

func (t *Tracker) appendLocked(record types.ActivityRecord) error {
	_, statErr := os.Stat(t.activityFile)
	fileExists := statErr == nil

	f, err := os.OpenFile(t.activityFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !fileExists {
		if err := w.Write(columns); err != nil {
			return err
		}
	}
	row := []string{
		record.RowID,
		record.Timestamp.Format("2006-01-02 15:04:05"),
		record.AgentName,
		record.JobID,
		record.Type,
		record.Details,
		string(record.Status),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// appendJobsAppliedLocked appends one row to the platform CSV. Caller must
// hold t.mu.
func (t *Tracker) appendJobsAppliedLocked(posting types.JobPosting) error {
	_, statErr := os.Stat(t.jobsAppliedFile)
	fileExists := statErr == nil

	f, err := os.OpenFile(t.jobsAppliedFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !fileExists {
		if err := w.Write(jobsAppliedColumns); err != nil {
			return err
		}
	}
	row := []string{
		posting.JobTitle,
		posting.Company,
		posting.Location,
		strconv.FormatBool(posting.IsEasyApply),
		posting.RecruiterName,
		posting.RecruiterLink,
		string(posting.ApplicationStatus),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// rotateIfNeededLocked renames the active file with a timestamp suffix once
// it reaches maxFileSize. Caller must hold t.mu.
func (t *Tracker) rotateIfNeededLocked() error {
	info, err := os.Stat(t.activityFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < t.maxFileSize {
		return nil
	}

	rotatedName := filepath.Join(t.dataDir, fmt.Sprintf("activity_log_%s.csv", time.Now().Format("20060102_150405")))
	if err := os.Rename(t.activityFile, rotatedName); err != nil {
		return err
	}
	fmt.Printf("[Tracker] log file rotated. Old file: %s\n", rotatedName)
	return nil
}

// GetActivities returns every record in the active file, optionally filtered
// by type. It reads through to disk rather than relying solely on the
// in-memory cache.
func (t *Tracker) GetActivities(typeFilter string) ([]types.ActivityRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.readFileLocked()
	if err != nil {
		return nil, err
	}
	if typeFilter == "" {
		return records, nil
	}

	filtered := make([]types.ActivityRecord, 0, len(records))
	for _, r := range records {
		if r.Type == typeFilter {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (t *Tracker) readFileLocked() ([]types.ActivityRecord, error) {
	f, err := os.Open(t.activityFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]types.ActivityRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(columns) {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", row[1], time.Local)
		if err != nil {
			ts = time.Time{}
		}
		records = append(records, types.ActivityRecord{
			RowID:     row[0],
			Timestamp: ts,
			AgentName: row[2],
			JobID:     row[3],
			Type:      row[4],
			Details:   row[5],
			Status:    types.ActivityStatus(row[6]),
		})
	}
	return records, nil
}

// RecordApplication appends a row to the platform CSV (jobs_applied.csv) and
// logs the attempt to the Activity Log, satisfying the LinkedIn agent's
// ApplicationRecorder contract.
func (t *Tracker) RecordApplication(posting types.JobPosting) error {
	t.mu.Lock()
	err := t.appendJobsAppliedLocked(posting)
	t.mu.Unlock()
	if err != nil {
		fmt.Printf("[Tracker] error writing to jobs_applied.csv: %v\n", err)
	}

	details := fmt.Sprintf("%s at %s (%s)", posting.JobTitle, posting.Company, posting.Location)
	status := types.StatusSuccess
	if posting.ApplicationStatus == types.AppFailed {
		status = types.StatusFailed
	}
	t.LogActivity("application", details, status, "linkedin", posting.JobID)
	return nil
}

// GetRecent returns records within the last windowMinutes, optionally
// filtered by a set of types and a status. It merges the in-memory cache
// with whatever is currently on disk, deduplicated by row_id.
func (t *Tracker) GetRecent(windowMinutes int, typeFilter []string, statusFilter types.ActivityStatus) ([]types.ActivityRecord, error) {
	t.mu.Lock()
	onDisk, err := t.readFileLocked()
	cached := append([]types.ActivityRecord(nil), t.history...)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(onDisk))
	merged := make([]types.ActivityRecord, 0, len(onDisk)+len(cached))
	for _, r := range onDisk {
		seen[r.RowID] = true
		merged = append(merged, r)
	}
	for _, r := range cached {
		if !seen[r.RowID] {
			merged = append(merged, r)
		}
	}

	typeSet := make(map[string]bool, len(typeFilter))
	for _, tf := range typeFilter {
		typeSet[tf] = true
	}
	cutoff := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	out := make([]types.ActivityRecord, 0, len(merged))
	for _, r := range merged {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		if len(typeSet) > 0 && !typeSet[r.Type] {
			continue
		}
		if statusFilter != "" && r.Status != statusFilter {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
