// Package profile implements the User Profile Store: a keyed persistence
// layer for operator profiles and job preferences, selectable between a
// JSON-file-per-user backend and a single CSV file (one row per profile).
package profile

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

// Store creates, reads, updates and deletes operator profiles.
type Store interface {
	Load() error
	Create(profile *types.UserProfile) (*types.UserProfile, error)
	Get(userID string) (*types.UserProfile, bool)
	Update(userID string, updater func(*types.UserProfile)) (*types.UserProfile, error)
	Delete(userID string) bool
	UpdateCVInfo(userID, path string, data *types.CVRecord) (*types.UserProfile, error)
	All() []*types.UserProfile
}

// JSONStore persists one JSON file per user under dir. Writes serialise
// through a single store-wide lock; this mirrors the dashboard state store's
// debounced-save shape but profiles are small enough to flush immediately.
type JSONStore struct {
	mu       sync.RWMutex
	dir      string
	profiles map[string]*types.UserProfile
}

// NewJSONStore creates a store rooted at dir. Call Load to populate it from
// disk before use.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{
		dir:      dir,
		profiles: make(map[string]*types.UserProfile),
	}
}

// Load reads every *.json file in dir into memory. A missing directory is not
// an error; it is created lazily on the first write.
func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var p types.UserProfile
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		s.profiles[p.UserID] = &p
	}
	return nil
}

func (s *JSONStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// saveLocked writes profile to disk. Caller must hold s.mu.
func (s *JSONStore) saveLocked(p *types.UserProfile) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(p.UserID), data, 0o644)
}

// Create inserts a new profile, stamping created_at/updated_at to now, and
// rejects a duplicate user_id.
func (s *JSONStore) Create(p *types.UserProfile) (*types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UserID]; exists {
		return nil, fmtErrUserExists(p.UserID)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.profiles[p.UserID] = p
	if err := s.saveLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a profile by ID.
func (s *JSONStore) Get(userID string) (*types.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// Update applies updater to the stored profile and refreshes updated_at.
func (s *JSONStore) Update(userID string, updater func(*types.UserProfile)) (*types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmtErrUserNotFound(userID)
	}

	updater(p)
	p.UpdatedAt = time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.saveLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateCVInfo attaches parsed CV data and the source path to a profile.
func (s *JSONStore) UpdateCVInfo(userID, path string, data *types.CVRecord) (*types.UserProfile, error) {
	return s.Update(userID, func(p *types.UserProfile) {
		p.CurrentCVPath = path
		p.ParsedCVData = data
		p.CVLastUpdated = time.Now()
	})
}

// Delete removes a profile, returning whether it existed.
func (s *JSONStore) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return false
	}
	delete(s.profiles, userID)
	os.Remove(s.path(userID))
	return true
}

// All returns every known profile, in no particular order.
func (s *JSONStore) All() []*types.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

var csvColumns = []string{
	"user_id", "full_name", "email", "phone", "job_preferences",
	"current_cv_path", "cv_last_updated", "parsed_cv_data", "created_at", "updated_at",
}

// CSVStore persists every profile as one row in a single CSV file. Nested
// fields (job preferences, parsed CV data) are marshalled to JSON within
// their own cell, mirroring the way the Activity Log keeps each row flat.
// The whole file is rewritten on every mutation: profile counts are small
// enough that this is simpler than in-place row editing.
type CSVStore struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]*types.UserProfile
	order    []string
}

// NewCSVStore creates a store backed by the single file at path. Call Load
// to populate it from disk before use.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{
		path:     path,
		profiles: make(map[string]*types.UserProfile),
	}
}

// Load reads every row of the CSV file into memory. A missing file is not
// an error; it is created lazily on the first write.
func (s *CSVStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	for _, row := range rows[1:] {
		if len(row) != len(csvColumns) {
			continue
		}
		p, err := rowToProfile(row)
		if err != nil {
			continue
		}
		s.profiles[p.UserID] = p
		s.order = append(s.order, p.UserID)
	}
	return nil
}

func profileToRow(p *types.UserProfile) ([]string, error) {
	prefs, err := json.Marshal(p.Preferences)
	if err != nil {
		return nil, err
	}
	var cvData string
	if p.ParsedCVData != nil {
		b, err := json.Marshal(p.ParsedCVData)
		if err != nil {
			return nil, err
		}
		cvData = string(b)
	}
	var cvLastUpdated string
	if !p.CVLastUpdated.IsZero() {
		cvLastUpdated = p.CVLastUpdated.Format(time.RFC3339)
	}
	return []string{
		p.UserID,
		p.FullName,
		p.Email,
		p.Phone,
		string(prefs),
		p.CurrentCVPath,
		cvLastUpdated,
		cvData,
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func rowToProfile(row []string) (*types.UserProfile, error) {
	p := &types.UserProfile{
		UserID:        row[0],
		FullName:      row[1],
		Email:         row[2],
		Phone:         row[3],
		CurrentCVPath: row[5],
	}
	if row[4] != "" {
		if err := json.Unmarshal([]byte(row[4]), &p.Preferences); err != nil {
			return nil, err
		}
	}
	if row[6] != "" {
		ts, err := time.Parse(time.RFC3339, row[6])
		if err == nil {
			p.CVLastUpdated = ts
		}
	}
	if row[7] != "" {
		var cv types.CVRecord
		if err := json.Unmarshal([]byte(row[7]), &cv); err != nil {
			return nil, err
		}
		p.ParsedCVData = &cv
	}
	if ts, err := time.Parse(time.RFC3339, row[8]); err == nil {
		p.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, row[9]); err == nil {
		p.UpdatedAt = ts
	}
	return p, nil
}

// saveAllLocked rewrites the whole CSV file from the in-memory profile map.
// Caller must hold s.mu.
func (s *CSVStore) saveAllLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, userID := range s.order {
		p, ok := s.profiles[userID]
		if !ok {
			continue
		}
		row, err := profileToRow(p)
		if err != nil {
			return err
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Create inserts a new profile, stamping created_at/updated_at to now, and
// rejects a duplicate user_id.
func (s *CSVStore) Create(p *types.UserProfile) (*types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UserID]; exists {
		return nil, fmtErrUserExists(p.UserID)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.profiles[p.UserID] = p
	s.order = append(s.order, p.UserID)
	if err := s.saveAllLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a profile by ID.
func (s *CSVStore) Get(userID string) (*types.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// Update applies updater to the stored profile and refreshes updated_at.
func (s *CSVStore) Update(userID string, updater func(*types.UserProfile)) (*types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmtErrUserNotFound(userID)
	}

	updater(p)
	p.UpdatedAt = time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.saveAllLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateCVInfo attaches parsed CV data and the source path to a profile.
func (s *CSVStore) UpdateCVInfo(userID, path string, data *types.CVRecord) (*types.UserProfile, error) {
	return s.Update(userID, func(p *types.UserProfile) {
		p.CurrentCVPath = path
		p.ParsedCVData = data
		p.CVLastUpdated = time.Now()
	})
}

// Delete removes a profile, returning whether it existed.
func (s *CSVStore) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return false
	}
	delete(s.profiles, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.saveAllLocked()
	return true
}

// All returns every known profile, in no particular order.
func (s *CSVStore) All() []*types.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}
