// Package activityfilter is the read-only UI façade over the Activity
// Log: it categorises, tags and narrows log entries without ever
// mutating the underlying log.
package activityfilter

import (
	"strings"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

// Category is one of the fixed UI-facing buckets a record is classified
// into, or one of the two status-derived pseudo-categories.
type Category string

const (
	CategoryAll          Category = "ALL"
	CategoryNavigation   Category = "Navigation"
	CategoryData         Category = "Data"
	CategorySystem       Category = "System"
	CategoryAgents       Category = "Agents"
	CategoryErrorsOnly   Category = "Errors Only"
	CategorySuccessOnly  Category = "Success Only"
)

// typePrefixCategories maps an activity record's Type field to the
// category it belongs to for display purposes. Unrecognised types fall
// back to CategorySystem.
var typePrefixCategories = map[string]Category{
	"navigation": CategoryNavigation,
	"search":     CategoryAgents,
	"apply":      CategoryAgents,
	"captcha":    CategoryAgents,
	"task":       CategorySystem,
	"session":    CategorySystem,
	"profile":    CategoryData,
	"cv":         CategoryData,
	"learning":   CategoryData,
}

// CategoryOf classifies a record's Type into its display category.
func CategoryOf(recordType string) Category {
	if cat, ok := typePrefixCategories[recordType]; ok {
		return cat
	}
	return CategorySystem
}

// TimeRange is a named or custom window ending at now.
type TimeRange struct {
	// Named is one of "5m", "15m", "1h", "Today"; empty means Custom is used.
	Named string
	// Custom, when Named is empty, bounds the window explicitly.
	Custom struct {
		Start, End time.Time
	}
}

func (r TimeRange) bounds(now time.Time) (time.Time, time.Time) {
	switch r.Named {
	case "5m":
		return now.Add(-5 * time.Minute), now
	case "15m":
		return now.Add(-15 * time.Minute), now
	case "1h":
		return now.Add(-1 * time.Hour), now
	case "Today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), now
	default:
		return r.Custom.Start, r.Custom.End
	}
}

// Query narrows the loaded window by category, agent, time range and a
// free-text substring match against Details.
type Query struct {
	Category   Category
	Agent      string
	Range      TimeRange
	SearchText string
}

// Reader is the narrow slice of the tracker the filter needs: the
// currently-loaded window of records.
type Reader interface {
	GetActivities(typeFilter string) ([]types.ActivityRecord, error)
}

// Filter applies Query over the records Reader currently has loaded,
// without ever mutating them.
type Filter struct {
	reader Reader
}

// New creates a Filter over reader.
func New(reader Reader) *Filter {
	return &Filter{reader: reader}
}

// Apply loads the full unfiltered window from the reader and returns the
// subset matching q, in O(n) over that window.
func (f *Filter) Apply(q Query) ([]types.ActivityRecord, error) {
	records, err := f.reader.GetActivities("")
	if err != nil {
		return nil, err
	}
	return ApplyTo(records, q, time.Now()), nil
}

// ApplyTo filters an already-loaded slice of records; exported so
// callers holding records from another source (e.g. GetRecent) can reuse
// the same filtering logic without touching the log again.
func ApplyTo(records []types.ActivityRecord, q Query, now time.Time) []types.ActivityRecord {
	start, end := q.Range.bounds(now)
	hasRange := !start.IsZero() || !end.IsZero()

	out := make([]types.ActivityRecord, 0, len(records))
	for _, r := range records {
		if !matchesCategory(r, q.Category) {
			continue
		}
		if q.Agent != "" && r.AgentName != q.Agent {
			continue
		}
		if hasRange && (r.Timestamp.Before(start) || r.Timestamp.After(end)) {
			continue
		}
		if q.SearchText != "" && !strings.Contains(strings.ToLower(r.Details), strings.ToLower(q.SearchText)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesCategory(r types.ActivityRecord, category Category) bool {
	switch category {
	case "", CategoryAll:
		return true
	case CategoryErrorsOnly:
		return r.Status == types.StatusError || r.Status == types.StatusFailed || r.Status == types.StatusTimeout
	case CategorySuccessOnly:
		return r.Status == types.StatusSuccess
	default:
		return CategoryOf(r.Type) == category
	}
}
