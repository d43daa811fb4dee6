// Package metrics aggregates per-platform throughput and LLM spend, takes
// periodic snapshots for the Dashboard's history view, and raises alerts
// when a platform's failure rate, idle time or CAPTCHA backlog crosses a
// configured threshold.
package metrics

import (
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

// Collector aggregates and stores per-platform metrics.
type Collector interface {
	UpdatePlatformMetrics(platform string, metrics *types.PlatformMetrics)
	GetPlatformMetrics(platform string) *types.PlatformMetrics
	GetAllMetrics() map[string]*types.PlatformMetrics
	SetPlatformIdle(platform string)
	SetPlatformActive(platform string)
	TakeSnapshot() types.MetricsSnapshot
	GetHistory() []types.MetricsSnapshot
	ResetHistory()
	IncrementFailedApplications(platform string)
	IncrementConsecutiveFailures(platform string)
	ResetConsecutiveFailures(platform string)
	RemovePlatform(platform string)
}

// MetricsCollector implements Collector.
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*types.PlatformMetrics
	history    []types.MetricsSnapshot
	maxHistory int
}

// NewCollector creates a new metrics collector.
func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*types.PlatformMetrics),
		history:    []types.MetricsSnapshot{},
		maxHistory: 1000,
	}
}

// UpdatePlatformMetrics updates or creates metrics for a platform.
func (c *MetricsCollector) UpdatePlatformMetrics(platform string, metrics *types.PlatformMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.metrics[platform]
	if existing == nil {
		c.metrics[platform] = metrics
		return
	}

	if metrics.Applied > 0 {
		existing.Applied = metrics.Applied
	}
	if metrics.Skipped > 0 {
		existing.Skipped = metrics.Skipped
	}
	if metrics.TokensUsed > 0 {
		existing.TokensUsed = metrics.TokensUsed
	}
	if metrics.EstimatedCost > 0 {
		existing.EstimatedCost = metrics.EstimatedCost
	}
	if metrics.FailedApplications > 0 {
		existing.FailedApplications = metrics.FailedApplications
	}
	if metrics.ConsecutiveFailures > 0 {
		existing.ConsecutiveFailures = metrics.ConsecutiveFailures
	}
	existing.LastUpdated = time.Now()
}

// GetPlatformMetrics returns metrics for a specific platform.
func (c *MetricsCollector) GetPlatformMetrics(platform string) *types.PlatformMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.metrics[platform]; ok {
		copy := *m
		return &copy
	}
	return nil
}

// GetAllMetrics returns metrics for every tracked platform.
func (c *MetricsCollector) GetAllMetrics() map[string]*types.PlatformMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*types.PlatformMetrics)
	for k, v := range c.metrics {
		copy := *v
		result[k] = &copy
	}
	return result
}

// SetPlatformIdle marks a platform idle, recording idle start time.
func (c *MetricsCollector) SetPlatformIdle(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[platform]; ok {
		if m.IdleSince.IsZero() {
			m.IdleSince = time.Now()
		}
	} else {
		c.metrics[platform] = &types.PlatformMetrics{
			Platform:    platform,
			IdleSince:   time.Now(),
			LastUpdated: time.Now(),
		}
	}
}

// SetPlatformActive clears idle status.
func (c *MetricsCollector) SetPlatformActive(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[platform]; ok {
		m.IdleSince = time.Time{}
		m.LastUpdated = time.Now()
	}
}

// TakeSnapshot captures current metrics state.
func (c *MetricsCollector) TakeSnapshot() types.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := types.MetricsSnapshot{
		Timestamp: time.Now(),
		Platforms: make(map[string]*types.PlatformMetrics),
	}

	for k, v := range c.metrics {
		copy := *v
		snapshot.Platforms[k] = &copy
	}

	c.history = append(c.history, snapshot)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}

	return snapshot
}

// GetHistory returns metrics history.
func (c *MetricsCollector) GetHistory() []types.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]types.MetricsSnapshot, len(c.history))
	copy(result, c.history)
	return result
}

// ResetHistory clears metrics history.
func (c *MetricsCollector) ResetHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []types.MetricsSnapshot{}
}

// IncrementFailedApplications increases the failed-application count.
func (c *MetricsCollector) IncrementFailedApplications(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[platform]; ok {
		m.FailedApplications++
		m.LastUpdated = time.Now()
	}
}

// IncrementConsecutiveFailures increases the consecutive-failure streak.
func (c *MetricsCollector) IncrementConsecutiveFailures(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[platform]; ok {
		m.ConsecutiveFailures++
		m.LastUpdated = time.Now()
	}
}

// ResetConsecutiveFailures clears the consecutive-failure streak.
func (c *MetricsCollector) ResetConsecutiveFailures(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[platform]; ok {
		m.ConsecutiveFailures = 0
		m.LastUpdated = time.Now()
	}
}

// RemovePlatform removes a platform's metrics.
func (c *MetricsCollector) RemovePlatform(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metrics, platform)
}

// DefaultTokenRate is a rough blended $/token estimate used when the
// operator hasn't configured a provider-specific rate.
const DefaultTokenRate = 0.000002

// HealthSnapshot derives a PipelineMetrics health overview from the
// current per-platform counters, classifying each platform as healthy,
// idle, stuck or failing for the Dashboard's overview panel.
func (c *MetricsCollector) HealthSnapshot(sessionID string, tokenRate float64) *PipelineMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pm := NewPipelineMetrics(sessionID, tokenRate)
	for platform, m := range c.metrics {
		pm.AddPlatformMetrics(platform, &PlatformHealthMetrics{
			Platform:              platform,
			ApplicationsCompleted: m.Applied,
			TotalTokens:           m.TokensUsed,
			FailedApplications:    m.FailedApplications,
			ConsecutiveFailures:   m.ConsecutiveFailures,
			LastActivity:          m.LastUpdated,
		})
	}
	return pm
}
