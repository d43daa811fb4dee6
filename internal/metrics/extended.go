// internal/metrics/extended.go
package metrics

import (
	"sync"
	"time"
)

// HealthStatus represents a platform agent's health.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthIdle    HealthStatus = "idle"
	HealthStuck   HealthStatus = "stuck"
	HealthFailing HealthStatus = "failing"
)

// PlatformHealthMetrics provides comprehensive metrics for one platform
// agent, beyond the raw counters in types.PlatformMetrics.
type PlatformHealthMetrics struct {
	Platform string `json:"platform"`

	ApplicationsCompleted int   `json:"applications_completed"`
	TotalTokens           int64 `json:"total_tokens"`
	TotalTimeSeconds      int64 `json:"total_time_seconds"`

	CurrentJobID string `json:"current_job_id,omitempty"`
	QueueDepth   int    `json:"queue_depth"`

	LastActivity        time.Time `json:"last_activity"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	FailedApplications  int       `json:"failed_applications"`
}

// TokensPerApplication returns the average tokens spent per completed
// application.
func (m *PlatformHealthMetrics) TokensPerApplication() int64 {
	if m.ApplicationsCompleted == 0 {
		return 0
	}
	return m.TotalTokens / int64(m.ApplicationsCompleted)
}

// AvgApplicationTimeSeconds returns the average time per completed
// application in seconds.
func (m *PlatformHealthMetrics) AvgApplicationTimeSeconds() int64 {
	if m.ApplicationsCompleted == 0 {
		return 0
	}
	return m.TotalTimeSeconds / int64(m.ApplicationsCompleted)
}

// HealthStatus classifies the platform's current state from its failure
// streak and idle time.
func (m *PlatformHealthMetrics) HealthStatus() HealthStatus {
	if m.ConsecutiveFailures >= 3 {
		return HealthFailing
	}

	idleTime := time.Since(m.LastActivity)
	if idleTime > 30*time.Minute {
		return HealthStuck
	}
	if idleTime > 10*time.Minute {
		return HealthIdle
	}
	return HealthHealthy
}

// PipelineMetrics aggregates health metrics across every active platform
// for the Dashboard's overview panel.
type PipelineMetrics struct {
	mu        sync.RWMutex
	SessionID string                            `json:"session_id"`
	Platforms map[string]*PlatformHealthMetrics `json:"platforms"`
	// TokenRate is the estimated cost per token, used by EstimatedCost.
	TokenRate float64 `json:"token_rate"`
}

// NewPipelineMetrics creates a pipeline metrics tracker for one session.
func NewPipelineMetrics(sessionID string, tokenRate float64) *PipelineMetrics {
	return &PipelineMetrics{
		SessionID: sessionID,
		Platforms: make(map[string]*PlatformHealthMetrics),
		TokenRate: tokenRate,
	}
}

// AddPlatformMetrics adds or replaces the metrics for a platform.
func (p *PipelineMetrics) AddPlatformMetrics(platform string, m *PlatformHealthMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Platforms[platform] = m
}

// TotalApplications returns total completed applications across every
// platform.
func (p *PipelineMetrics) TotalApplications() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := 0
	for _, m := range p.Platforms {
		total += m.ApplicationsCompleted
	}
	return total
}

// TotalTokens returns total LLM tokens spent across every platform.
func (p *PipelineMetrics) TotalTokens() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total int64
	for _, m := range p.Platforms {
		total += m.TotalTokens
	}
	return total
}

// ActivePlatforms returns the count of platforms that are healthy or idle
// (i.e. not stuck or failing).
func (p *PipelineMetrics) ActivePlatforms() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, m := range p.Platforms {
		switch m.HealthStatus() {
		case HealthHealthy, HealthIdle:
			count++
		}
	}
	return count
}

// EstimatedCost estimates total LLM spend from tokens used and TokenRate.
func (p *PipelineMetrics) EstimatedCost() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total int64
	for _, m := range p.Platforms {
		total += m.TotalTokens
	}
	return float64(total) * p.TokenRate
}
