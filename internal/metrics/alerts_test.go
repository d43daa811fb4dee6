package metrics

import (
	"testing"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

func TestNewAlertEngine(t *testing.T) {
	thresholds := types.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds)

	if engine == nil {
		t.Fatal("NewAlertEngine returned nil")
	}
	if engine.thresholds.FailedApplicationsMax != 10 {
		t.Errorf("FailedApplicationsMax = %d, want 10", engine.thresholds.FailedApplicationsMax)
	}
}

func TestSetGetThresholds(t *testing.T) {
	engine := NewAlertEngine(types.DefaultAlertThresholds())

	newThresholds := types.AlertThresholds{
		FailedApplicationsMax: 20,
		IdleTimeMaxSeconds:    1200,
	}
	engine.SetThresholds(newThresholds)

	retrieved := engine.GetThresholds()
	if retrieved.FailedApplicationsMax != 20 {
		t.Errorf("FailedApplicationsMax = %d, want 20", retrieved.FailedApplicationsMax)
	}
}

func TestCheckMetricsFailedApplications(t *testing.T) {
	thresholds := types.AlertThresholds{FailedApplicationsMax: 5}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin":  {Platform: "linkedin", FailedApplications: 3}, // below
		"indeed":    {Platform: "indeed", FailedApplications: 5},   // at
		"glassdoor": {Platform: "glassdoor", FailedApplications: 8}, // above
	}

	alerts := engine.CheckMetrics(metrics)

	count := 0
	for _, alert := range alerts {
		if alert.Type == "failed_applications" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 failed_applications alerts, got %d", count)
	}
}

func TestCheckMetricsIdleTimeout(t *testing.T) {
	thresholds := types.AlertThresholds{IdleTimeMaxSeconds: 1}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", IdleSince: time.Now().Add(-2 * time.Second)},
		"indeed":   {Platform: "indeed", IdleSince: time.Time{}},
	}

	alerts := engine.CheckMetrics(metrics)

	idleAlerts := 0
	for _, alert := range alerts {
		if alert.Type == "idle_timeout" {
			idleAlerts++
		}
	}
	if idleAlerts != 1 {
		t.Errorf("expected 1 idle_timeout alert, got %d", idleAlerts)
	}
}

func TestCheckMetricsTokenUsage(t *testing.T) {
	thresholds := types.AlertThresholds{TokenUsageMax: 100000}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", TokensUsed: 50000},
		"indeed":   {Platform: "indeed", TokensUsed: 100000},
	}

	alerts := engine.CheckMetrics(metrics)

	tokenAlerts := 0
	for _, alert := range alerts {
		if alert.Type == "token_usage" {
			tokenAlerts++
		}
	}
	if tokenAlerts != 1 {
		t.Errorf("expected 1 token_usage alert, got %d", tokenAlerts)
	}
}

func TestCheckMetricsConsecutiveFailures(t *testing.T) {
	thresholds := types.AlertThresholds{ConsecutiveFailuresMax: 3}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", ConsecutiveFailures: 2},
		"indeed":   {Platform: "indeed", ConsecutiveFailures: 3},
	}

	alerts := engine.CheckMetrics(metrics)

	count := 0
	for _, alert := range alerts {
		if alert.Type == "consecutive_failures" {
			count++
			if alert.Severity != "critical" {
				t.Error("consecutive_failures alert should be critical")
			}
		}
	}
	if count != 1 {
		t.Errorf("expected 1 consecutive_failures alert, got %d", count)
	}
}

func TestCheckMetricsNoAlertForZeroThreshold(t *testing.T) {
	thresholds := types.AlertThresholds{FailedApplicationsMax: 0}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", FailedApplications: 100},
	}

	alerts := engine.CheckMetrics(metrics)

	for _, alert := range alerts {
		if alert.Type == "failed_applications" {
			t.Error("should not alert when threshold is 0")
		}
	}
}

func TestCheckCaptchaQueue(t *testing.T) {
	thresholds := types.AlertThresholds{CaptchaQueueMax: 5}
	engine := NewAlertEngine(thresholds)

	if alert := engine.CheckCaptchaQueue(3); alert != nil {
		t.Error("should not alert below threshold")
	}

	alert := engine.CheckCaptchaQueue(5)
	if alert == nil {
		t.Fatal("expected captcha_queue alert")
	}
	if alert.Type != "captcha_queue" {
		t.Errorf("alert.Type = %q, want %q", alert.Type, "captcha_queue")
	}
	if alert.Severity != "critical" {
		t.Error("captcha_queue should be critical")
	}
}

func TestCheckCaptchaQueueDisabled(t *testing.T) {
	thresholds := types.AlertThresholds{CaptchaQueueMax: 0}
	engine := NewAlertEngine(thresholds)

	if alert := engine.CheckCaptchaQueue(100); alert != nil {
		t.Error("should not alert when threshold is 0")
	}
}

func TestAlertDeduplication(t *testing.T) {
	thresholds := types.AlertThresholds{FailedApplicationsMax: 5}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", FailedApplications: 10},
	}

	alerts1 := engine.CheckMetrics(metrics)
	if len(alerts1) == 0 {
		t.Fatal("expected alert on first check")
	}

	alerts2 := engine.CheckMetrics(metrics)
	if len(alerts2) != 0 {
		t.Error("should not produce duplicate alert within 5 minutes")
	}
}

func TestAlertHasUniqueID(t *testing.T) {
	thresholds := types.AlertThresholds{FailedApplicationsMax: 5}
	engine := NewAlertEngine(thresholds)

	metrics := map[string]*types.PlatformMetrics{
		"linkedin": {Platform: "linkedin", FailedApplications: 10},
		"indeed":   {Platform: "indeed", FailedApplications: 10},
	}

	alerts := engine.CheckMetrics(metrics)
	if len(alerts) < 2 {
		t.Skip("not enough alerts to test uniqueness")
	}

	ids := make(map[string]bool)
	for _, alert := range alerts {
		if ids[alert.ID] {
			t.Error("alert IDs should be unique")
		}
		ids[alert.ID] = true
	}
}
