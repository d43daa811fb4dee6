// Package controller implements session lifecycle, agent wiring, and
// end-to-end retry/backoff over whole search-and-apply flows.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/tasks"
	"github.com/jobpilot/automation/internal/types"
)

// ActivityLogger is the narrow slice of the tracker the Controller needs.
type ActivityLogger interface {
	LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string)
}

// PlatformAgent is satisfied by any platform-specific agent capable of
// running a full search-and-apply flow or applying to one known job
// posting directly. *linkedin.Agent implements it.
type PlatformAgent interface {
	SearchJobsAndApply(ctx context.Context, jobTitle, location string) (int, error)
	ApplyToJobURL(ctx context.Context, jobURL, cvPath string) (types.ApplicationStatus, error)
}

// Config controls the Controller's retry policy around whole flows.
type Config struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	BackoffFactor  float64
}

// DefaultConfig mirrors the original implementation's session-level
// retry defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseRetryDelay: 2 * time.Second, BackoffFactor: 2.0}
}

// pauseFlag is a cooperative flag implementing navigation.PauseFlag and
// captcha/formfiller's implicit pause contract; platforms consult it
// indirectly through the navigation.Agent they were constructed with.
type pauseFlag struct {
	mu     sync.RWMutex
	paused bool
}

func (p *pauseFlag) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *pauseFlag) set(v bool) {
	p.mu.Lock()
	p.paused = v
	p.mu.Unlock()
}

// Notifier is the narrow slice of the notification manager the Controller
// needs to alert the operator when a flow aborts instead of retrying.
type Notifier interface {
	NotifyOperatorNeedsInput(message string) error
}

// MetricsRecorder is the narrow slice of the metrics Collector the
// Controller needs to keep per-platform throughput and failure counts
// current. Nil is a valid Controller state (metrics recording is
// optional); see SetMetrics.
type MetricsRecorder interface {
	UpdatePlatformMetrics(platform string, metrics *types.PlatformMetrics)
	IncrementFailedApplications(platform string)
	IncrementConsecutiveFailures(platform string)
	ResetConsecutiveFailures(platform string)
}

// Controller owns the session lifecycle: the platform agents, the Task
// Manager, and the shared pause flag every long-running agent loop
// observes.
type Controller struct {
	cfg       Config
	tasks     *tasks.Manager
	logger    ActivityLogger
	platforms map[string]PlatformAgent
	pause     *pauseFlag
	metrics   MetricsRecorder
	notifier  Notifier

	mu      sync.Mutex
	session types.SessionState
}

// New creates a Controller over an already-configured Task Manager and
// platform agent registry (keyed by lowercase platform name, e.g.
// "linkedin").
func New(cfg Config, taskManager *tasks.Manager, logger ActivityLogger, platforms map[string]PlatformAgent) *Controller {
	return &Controller{
		cfg:       cfg,
		tasks:     taskManager,
		logger:    logger,
		platforms: platforms,
		pause:     &pauseFlag{},
		session:   *types.NewSessionState(),
	}
}

// PauseFlag exposes the Controller's cooperative pause signal so platform
// agents' navigation layers can be constructed against it.
func (c *Controller) PauseFlag() interface{ Paused() bool } {
	return c.pause
}

// SetMetrics wires a metrics Collector so RunPlatformFlow's outcomes are
// recorded per platform. Safe to call once before the Controller is used
// concurrently; nil disables recording.
func (c *Controller) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// SetNotifier wires an operator-alert channel. Nil disables alerting; the
// abort-instead-of-retry decision in RunPlatformFlow is unaffected either
// way.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

func (c *Controller) notify(message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyOperatorNeedsInput(message); err != nil {
		c.log("notification", fmt.Sprintf("failed to notify operator: %v", err), types.StatusError)
	}
}

func (c *Controller) log(activityType, details string, status types.ActivityStatus) {
	if c.logger != nil {
		c.logger.LogActivity(activityType, details, status, "Controller", "")
	}
}

// StartSession marks the session active and logs the transition.
func (c *Controller) StartSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.session = types.SessionState{StartedAt: &now, Paused: false, Stopped: false}
	c.log("session", "session started", types.StatusSuccess)
	return nil
}

// EndSession stops the session and logs the transition. Agent and
// browser ownership are relinquished by the caller, not the Controller.
func (c *Controller) EndSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Stopped = true
	c.session.CurrentTask = ""
	c.log("session", "session ended", types.StatusSuccess)
	return nil
}

// PauseSession raises the shared pause flag; long-running agent loops
// observe it at their next cooperative point.
func (c *Controller) PauseSession() {
	c.mu.Lock()
	c.session.Paused = true
	c.mu.Unlock()
	c.pause.set(true)
	c.log("session", "session paused", types.StatusInfo)
}

// ResumeSession clears the shared pause flag.
func (c *Controller) ResumeSession() {
	c.mu.Lock()
	c.session.Paused = false
	c.mu.Unlock()
	c.pause.set(false)
	c.log("session", "session resumed", types.StatusInfo)
}

// State returns a snapshot of the current session state.
func (c *Controller) State() types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// RunPlatformFlow wraps a full search-and-apply pass for platform in a
// retry loop bounded by cfg.MaxRetries, with exponential backoff between
// attempts. The last error is returned if every attempt fails.
func (c *Controller) RunPlatformFlow(ctx context.Context, platform, jobTitle, location string) (int, error) {
	agent, ok := c.platforms[platform]
	if !ok {
		return 0, fmt.Errorf("controller: unknown platform %q", platform)
	}

	c.mu.Lock()
	c.session.CurrentTask = fmt.Sprintf("job_search_apply:%s", platform)
	c.mu.Unlock()

	var lastErr error
	delay := c.cfg.BaseRetryDelay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		processed, err := agent.SearchJobsAndApply(ctx, jobTitle, location)
		if err == nil {
			c.log("job_search_apply", fmt.Sprintf("processed %d listings on %s", processed, platform), types.StatusSuccess)
			if c.metrics != nil {
				c.metrics.UpdatePlatformMetrics(platform, &types.PlatformMetrics{Platform: platform, Applied: processed})
				c.metrics.ResetConsecutiveFailures(platform)
			}
			return processed, nil
		}

		lastErr = err
		c.log("job_search_apply", fmt.Sprintf("attempt %d/%d failed: %v", attempt+1, c.cfg.MaxRetries+1, err), types.StatusError)
		if c.metrics != nil {
			c.metrics.IncrementFailedApplications(platform)
			c.metrics.IncrementConsecutiveFailures(platform)
		}

		if errors.Is(err, types.ErrLoggedOut) {
			c.notify(fmt.Sprintf("%s session logged out, operator re-authentication required", platform))
			return 0, fmt.Errorf("controller: %s flow aborted, session logged out: %w", platform, err)
		}

		if errors.Is(err, types.ErrCaptchaRequired) {
			c.notify(fmt.Sprintf("%s requires CAPTCHA solving, operator intervention required", platform))
			return 0, fmt.Errorf("controller: %s flow aborted, captcha required: %w", platform, err)
		}

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.cfg.BackoffFactor)
		}
	}

	c.log("job_search_apply", fmt.Sprintf("exhausted retries on %s: %v", platform, lastErr), types.StatusFailed)
	return 0, fmt.Errorf("controller: %s flow failed after %d attempts: %w", platform, c.cfg.MaxRetries+1, lastErr)
}

// ApplyToJob enqueues a single-job application through the Task Manager
// under the job_search task type.
func (c *Controller) ApplyToJob(ctx context.Context, platform, jobURL, cvPath string) (interface{}, error) {
	agent, ok := c.platforms[platform]
	if !ok {
		return nil, fmt.Errorf("controller: unknown platform %q", platform)
	}

	task := c.tasks.Create(tasks.TypeJobSearch, 0, func(ctx context.Context) (interface{}, error) {
		return agent.ApplyToJobURL(ctx, jobURL, cvPath)
	})
	return c.tasks.Run(ctx, task)
}
