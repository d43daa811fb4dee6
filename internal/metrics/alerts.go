package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
	"github.com/google/uuid"
)

// AlertEngine checks metrics against thresholds and generates alerts.
type AlertEngine interface {
	SetThresholds(thresholds types.AlertThresholds)
	GetThresholds() types.AlertThresholds
	CheckMetrics(metrics map[string]*types.PlatformMetrics) []*types.Alert
	CheckCaptchaQueue(pendingCount int) *types.Alert
}

// AlertChecker implements AlertEngine.
type AlertChecker struct {
	mu         sync.RWMutex
	thresholds types.AlertThresholds
	// recentAlerts suppresses re-firing the same alert within 5 minutes.
	recentAlerts map[string]time.Time
}

// NewAlertEngine creates a new alert engine.
func NewAlertEngine(thresholds types.AlertThresholds) *AlertChecker {
	return &AlertChecker{
		thresholds:   thresholds,
		recentAlerts: make(map[string]time.Time),
	}
}

// SetThresholds updates alert thresholds.
func (a *AlertChecker) SetThresholds(thresholds types.AlertThresholds) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = thresholds
}

// GetThresholds returns current thresholds.
func (a *AlertChecker) GetThresholds() types.AlertThresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

func (a *AlertChecker) shouldAlert(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	for k, t := range a.recentAlerts {
		if now.Sub(t) > 5*time.Minute {
			delete(a.recentAlerts, k)
		}
	}

	if _, exists := a.recentAlerts[key]; exists {
		return false
	}
	a.recentAlerts[key] = now
	return true
}

// CheckMetrics examines all platform metrics and returns alerts for any
// threshold breach.
func (a *AlertChecker) CheckMetrics(metrics map[string]*types.PlatformMetrics) []*types.Alert {
	a.mu.RLock()
	thresholds := a.thresholds
	a.mu.RUnlock()

	var alerts []*types.Alert

	for platform, m := range metrics {
		if thresholds.FailedApplicationsMax > 0 && m.FailedApplications >= thresholds.FailedApplicationsMax {
			key := fmt.Sprintf("failed_applications_%s", platform)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:        uuid.New().String(),
					Type:      "failed_applications",
					Platform:  platform,
					Message:   fmt.Sprintf("%s has %d failed applications (threshold: %d)", platform, m.FailedApplications, thresholds.FailedApplicationsMax),
					Severity:  "warning",
					CreatedAt: time.Now(),
				})
			}
		}

		if thresholds.IdleTimeMaxSeconds > 0 && !m.IdleSince.IsZero() {
			idleSeconds := int(time.Since(m.IdleSince).Seconds())
			if idleSeconds >= thresholds.IdleTimeMaxSeconds {
				key := fmt.Sprintf("idle_%s", platform)
				if a.shouldAlert(key) {
					alerts = append(alerts, &types.Alert{
						ID:        uuid.New().String(),
						Type:      "idle_timeout",
						Platform:  platform,
						Message:   fmt.Sprintf("%s has been idle for %d seconds", platform, idleSeconds),
						Severity:  "warning",
						CreatedAt: time.Now(),
					})
				}
			}
		}

		if thresholds.TokenUsageMax > 0 && m.TokensUsed >= thresholds.TokenUsageMax {
			key := fmt.Sprintf("tokens_%s", platform)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:        uuid.New().String(),
					Type:      "token_usage",
					Platform:  platform,
					Message:   fmt.Sprintf("%s has used %d tokens (threshold: %d)", platform, m.TokensUsed, thresholds.TokenUsageMax),
					Severity:  "warning",
					CreatedAt: time.Now(),
				})
			}
		}

		if thresholds.ConsecutiveFailuresMax > 0 && m.ConsecutiveFailures >= thresholds.ConsecutiveFailuresMax {
			key := fmt.Sprintf("consecutive_failures_%s", platform)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:        uuid.New().String(),
					Type:      "consecutive_failures",
					Platform:  platform,
					Message:   fmt.Sprintf("%s has %d consecutive failed applications", platform, m.ConsecutiveFailures),
					Severity:  "critical",
					CreatedAt: time.Now(),
				})
			}
		}
	}

	return alerts
}

// CheckCaptchaQueue checks the number of tasks waiting on a CAPTCHA
// solve against the configured backlog threshold.
func (a *AlertChecker) CheckCaptchaQueue(pendingCount int) *types.Alert {
	a.mu.RLock()
	thresholds := a.thresholds
	a.mu.RUnlock()

	if thresholds.CaptchaQueueMax <= 0 {
		return nil
	}

	if pendingCount >= thresholds.CaptchaQueueMax {
		key := "captcha_queue"
		if a.shouldAlert(key) {
			return &types.Alert{
				ID:        uuid.New().String(),
				Type:      "captcha_queue",
				Message:   fmt.Sprintf("CAPTCHA queue has %d pending task(s) (threshold: %d)", pendingCount, thresholds.CaptchaQueueMax),
				Severity:  "critical",
				CreatedAt: time.Now(),
			}
		}
	}

	return nil
}
