package types

import (
	"fmt"
	"time"
)

// ActivityStatus is the terminal or informational status of one activity row.
type ActivityStatus string

const (
	StatusSuccess   ActivityStatus = "success"
	StatusError     ActivityStatus = "error"
	StatusFailed    ActivityStatus = "failed"
	StatusInfo      ActivityStatus = "info"
	StatusCreated   ActivityStatus = "created"
	StatusCancelled ActivityStatus = "cancelled"
	StatusTimeout   ActivityStatus = "timeout"
)

// ActivityRecord is one immutable row in the activity log.
type ActivityRecord struct {
	RowID     string         `json:"row_id"`
	Timestamp time.Time      `json:"timestamp"`
	AgentName string         `json:"agent_name"`
	JobID     string         `json:"job_id"`
	Type      string         `json:"type"`
	Details   string         `json:"details"`
	Status    ActivityStatus `json:"status"`
}

// ApplicationStatus is the outcome of one job application attempt.
type ApplicationStatus string

const (
	AppApplied    ApplicationStatus = "applied"
	AppRedirected ApplicationStatus = "redirected"
	AppSkipped    ApplicationStatus = "skipped"
	AppFailed     ApplicationStatus = "failed"
)

// JobPosting is produced by the LinkedIn agent and consumed by the tracker.
type JobPosting struct {
	JobID             string            `json:"job_id"`
	JobTitle          string            `json:"job_title"`
	Company           string            `json:"company"`
	Location          string            `json:"location"`
	IsEasyApply       bool              `json:"is_easy_apply"`
	RecruiterName     string            `json:"recruiter_name,omitempty"`
	RecruiterLink     string            `json:"recruiter_link,omitempty"`
	ApplicationStatus ApplicationStatus `json:"application_status"`
}

// WorkMode is one of the operator's acceptable working arrangements.
type WorkMode string

const (
	WorkOnsite   WorkMode = "onsite"
	WorkRemote   WorkMode = "remote"
	WorkHybrid   WorkMode = "hybrid"
	WorkFlexible WorkMode = "flexible"
)

// JobPreferences narrows the set of listings the platform agent should pursue.
type JobPreferences struct {
	Titles    []string   `json:"titles"`
	Locations []string   `json:"locations"`
	WorkModes []WorkMode `json:"work_modes"`
}

// CVRecord holds extracted and optionally LLM-enriched résumé data.
type CVRecord struct {
	RawText        string   `json:"raw_text"`
	Filename       string   `json:"filename"`
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Education      []string `json:"education,omitempty"`
	Experience     []string `json:"experience,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Languages      []string `json:"languages,omitempty"`
}

// UserProfile is one operator's stored identity and preferences.
type UserProfile struct {
	UserID         string         `json:"user_id"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	Preferences    JobPreferences `json:"job_preferences"`
	CurrentCVPath  string         `json:"current_cv_path,omitempty"`
	CVLastUpdated  time.Time      `json:"cv_last_updated,omitempty"`
	ParsedCVData   *CVRecord      `json:"parsed_cv_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate enforces the profile's data-model invariants.
func (p UserProfile) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !looksLikeEmail(p.Email) {
		return fmt.Errorf("invalid email: %q", p.Email)
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return fmt.Errorf("updated_at (%s) precedes created_at (%s)", p.UpdatedAt, p.CreatedAt)
	}
	return nil
}

func looksLikeEmail(s string) bool {
	at := -1
	for i, r := range s {
		if r == '@' {
			if at != -1 {
				return false
			}
			at = i
		}
	}
	if at <= 0 || at >= len(s)-1 {
		return false
	}
	dot := false
	for _, r := range s[at+1:] {
		if r == '.' {
			dot = true
		}
	}
	return dot
}

// OutcomeRecord is one entry in the learning pipeline, keyed externally by action name.
type OutcomeRecord struct {
	Timestamp  time.Time              `json:"timestamp"`
	Success    bool                   `json:"success"`
	Confidence float64                `json:"confidence"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// SessionState is the controller's view of the current automation session.
type SessionState struct {
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Paused      bool       `json:"paused"`
	Stopped     bool       `json:"stopped"`
	CurrentTask string     `json:"current_task,omitempty"`
}

// NewSessionState returns a fresh, never-started session.
func NewSessionState() *SessionState {
	return &SessionState{Paused: false, Stopped: true}
}

// ClampConfidence forces a value into [0,1], guarding against corrupted scores
// propagating through the learning pipeline.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
