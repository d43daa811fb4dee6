package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.metrics == nil {
		t.Error("metrics map should be initialized")
	}
	if c.history == nil {
		t.Error("history slice should be initialized")
	}
	if c.maxHistory != 1000 {
		t.Errorf("maxHistory = %d, want 1000", c.maxHistory)
	}
}

func TestUpdatePlatformMetrics(t *testing.T) {
	c := NewCollector()

	metrics := &types.PlatformMetrics{
		Platform:           "linkedin",
		TokensUsed:         5000,
		FailedApplications: 2,
	}
	c.UpdatePlatformMetrics("linkedin", metrics)

	retrieved := c.GetPlatformMetrics("linkedin")
	if retrieved == nil {
		t.Fatal("GetPlatformMetrics returned nil")
	}
	if retrieved.TokensUsed != 5000 {
		t.Errorf("TokensUsed = %d, want 5000", retrieved.TokensUsed)
	}
	if retrieved.FailedApplications != 2 {
		t.Errorf("FailedApplications = %d, want 2", retrieved.FailedApplications)
	}
}

func TestUpdatePlatformMetricsMerge(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{
		Platform:           "linkedin",
		TokensUsed:         5000,
		FailedApplications: 2,
		EstimatedCost:      0.50,
	})

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{
		Platform:   "linkedin",
		TokensUsed: 10000,
		// FailedApplications: 0 - should not override existing value
	})

	retrieved := c.GetPlatformMetrics("linkedin")
	if retrieved.TokensUsed != 10000 {
		t.Errorf("TokensUsed = %d, want 10000", retrieved.TokensUsed)
	}
}

func TestGetAllMetrics(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{TokensUsed: 100})
	c.UpdatePlatformMetrics("indeed", &types.PlatformMetrics{TokensUsed: 200})
	c.UpdatePlatformMetrics("glassdoor", &types.PlatformMetrics{TokensUsed: 300})

	all := c.GetAllMetrics()
	if len(all) != 3 {
		t.Errorf("expected 3 platforms, got %d", len(all))
	}

	all["linkedin"].TokensUsed = 999
	original := c.GetPlatformMetrics("linkedin")
	if original.TokensUsed == 999 {
		t.Error("GetAllMetrics should return a copy, not original reference")
	}
}

func TestGetPlatformMetricsNotFound(t *testing.T) {
	c := NewCollector()

	retrieved := c.GetPlatformMetrics("nonexistent")
	if retrieved != nil {
		t.Error("expected nil for non-existent platform")
	}
}

func TestSetPlatformIdle(t *testing.T) {
	c := NewCollector()

	c.SetPlatformIdle("linkedin")

	m := c.GetPlatformMetrics("linkedin")
	if m == nil {
		t.Fatal("SetPlatformIdle should create metrics entry")
	}
	if m.IdleSince.IsZero() {
		t.Error("IdleSince should be set")
	}

	originalIdleTime := m.IdleSince
	time.Sleep(10 * time.Millisecond)
	c.SetPlatformIdle("linkedin")

	m = c.GetPlatformMetrics("linkedin")
	if !m.IdleSince.Equal(originalIdleTime) {
		t.Error("IdleSince should not change if already idle")
	}
}

func TestSetPlatformActive(t *testing.T) {
	c := NewCollector()

	c.SetPlatformIdle("linkedin")
	m := c.GetPlatformMetrics("linkedin")
	if m.IdleSince.IsZero() {
		t.Fatal("platform should be idle")
	}

	c.SetPlatformActive("linkedin")
	m = c.GetPlatformMetrics("linkedin")
	if !m.IdleSince.IsZero() {
		t.Error("IdleSince should be cleared when active")
	}
}

func TestSetPlatformActiveNonExistent(t *testing.T) {
	c := NewCollector()
	c.SetPlatformActive("nonexistent")
}

func TestTakeSnapshot(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{TokensUsed: 100})
	c.UpdatePlatformMetrics("indeed", &types.PlatformMetrics{TokensUsed: 200})

	snapshot := c.TakeSnapshot()

	if snapshot.Timestamp.IsZero() {
		t.Error("snapshot should have timestamp")
	}
	if len(snapshot.Platforms) != 2 {
		t.Errorf("snapshot should have 2 platforms, got %d", len(snapshot.Platforms))
	}

	history := c.GetHistory()
	if len(history) != 1 {
		t.Errorf("history should have 1 snapshot, got %d", len(history))
	}
}

func TestSnapshotHistoryLimit(t *testing.T) {
	c := NewCollector()
	c.maxHistory = 10

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{TokensUsed: 100})

	for i := 0; i < 15; i++ {
		c.TakeSnapshot()
	}

	history := c.GetHistory()
	if len(history) > c.maxHistory {
		t.Errorf("history length %d should not exceed maxHistory %d", len(history), c.maxHistory)
	}
}

func TestResetHistory(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{TokensUsed: 100})
	c.TakeSnapshot()
	c.TakeSnapshot()

	if len(c.GetHistory()) == 0 {
		t.Fatal("should have history before reset")
	}

	c.ResetHistory()

	if len(c.GetHistory()) != 0 {
		t.Error("history should be empty after reset")
	}
}

func TestIncrementFailedApplications(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{FailedApplications: 2})

	c.IncrementFailedApplications("linkedin")
	m := c.GetPlatformMetrics("linkedin")
	if m.FailedApplications != 3 {
		t.Errorf("FailedApplications = %d, want 3", m.FailedApplications)
	}

	c.IncrementFailedApplications("nonexistent")
}

func TestIncrementConsecutiveFailures(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{ConsecutiveFailures: 1})

	c.IncrementConsecutiveFailures("linkedin")
	m := c.GetPlatformMetrics("linkedin")
	if m.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", m.ConsecutiveFailures)
	}
}

func TestResetConsecutiveFailures(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{ConsecutiveFailures: 5})

	c.ResetConsecutiveFailures("linkedin")
	m := c.GetPlatformMetrics("linkedin")
	if m.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", m.ConsecutiveFailures)
	}
}

func TestRemovePlatform(t *testing.T) {
	c := NewCollector()

	c.UpdatePlatformMetrics("linkedin", &types.PlatformMetrics{TokensUsed: 100})

	if c.GetPlatformMetrics("linkedin") == nil {
		t.Fatal("platform should exist before removal")
	}

	c.RemovePlatform("linkedin")

	if c.GetPlatformMetrics("linkedin") != nil {
		t.Error("platform should not exist after removal")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			platform := "linkedin"
			for j := 0; j < 100; j++ {
				c.UpdatePlatformMetrics(platform, &types.PlatformMetrics{TokensUsed: int64(j)})
				c.SetPlatformIdle(platform)
				c.SetPlatformActive(platform)
				c.GetPlatformMetrics(platform)
				c.GetAllMetrics()
			}
		}(i)
	}

	wg.Wait()

	if c.GetPlatformMetrics("linkedin") == nil {
		t.Error("platform should exist after concurrent operations")
	}
}
