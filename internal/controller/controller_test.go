package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jobpilot/automation/internal/tasks"
	"github.com/jobpilot/automation/internal/types"
)

type fakeLogger struct{ entries []string }

func (l *fakeLogger) LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string) {
	l.entries = append(l.entries, activityType+":"+string(status))
}

type fakePlatform struct {
	searchCalls   int
	failFirstN    int
	applyStatus   types.ApplicationStatus
	applyErr      error
}

func (p *fakePlatform) SearchJobsAndApply(ctx context.Context, jobTitle, location string) (int, error) {
	p.searchCalls++
	if p.searchCalls <= p.failFirstN {
		return 0, errors.New("transient failure")
	}
	return 2, nil
}

func (p *fakePlatform) ApplyToJobURL(ctx context.Context, jobURL, cvPath string) (types.ApplicationStatus, error) {
	return p.applyStatus, p.applyErr
}

func fastCfg() Config {
	return Config{MaxRetries: 2, BaseRetryDelay: time.Millisecond, BackoffFactor: 1.0}
}

func TestStartAndEndSession(t *testing.T) {
	logger := &fakeLogger{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), logger, nil)

	if err := c.StartSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State().Stopped {
		t.Fatal("expected session to be running after start")
	}
	if err := c.EndSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.State().Stopped {
		t.Fatal("expected session to be stopped after end")
	}
}

func TestPauseResumeSession(t *testing.T) {
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, nil)
	c.PauseSession()
	if !c.State().Paused {
		t.Fatal("expected session paused")
	}
	if !c.PauseFlag().Paused() {
		t.Fatal("expected shared pause flag raised")
	}
	c.ResumeSession()
	if c.State().Paused {
		t.Fatal("expected session resumed")
	}
	if c.PauseFlag().Paused() {
		t.Fatal("expected shared pause flag cleared")
	}
}

func TestRunPlatformFlowSucceedsFirstAttempt(t *testing.T) {
	platform := &fakePlatform{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})

	processed, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2", processed)
	}
	if platform.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1", platform.searchCalls)
	}
}

func TestRunPlatformFlowRetriesThenSucceeds(t *testing.T) {
	platform := &fakePlatform{failFirstN: 2}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})

	_, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if platform.searchCalls != 3 {
		t.Errorf("searchCalls = %d, want 3", platform.searchCalls)
	}
}

func TestRunPlatformFlowExhaustsRetries(t *testing.T) {
	platform := &fakePlatform{failFirstN: 10}
	logger := &fakeLogger{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), logger, map[string]PlatformAgent{"linkedin": platform})

	_, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestRunPlatformFlowUnknownPlatform(t *testing.T) {
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{})
	if _, err := c.RunPlatformFlow(context.Background(), "indeed", "Engineer", "Remote"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

type fakeMetrics struct {
	updated             []string
	failedApplications  map[string]int
	consecutiveFailures map[string]int
	resets              int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{failedApplications: map[string]int{}, consecutiveFailures: map[string]int{}}
}

func (f *fakeMetrics) UpdatePlatformMetrics(platform string, metrics *types.PlatformMetrics) {
	f.updated = append(f.updated, platform)
}

func (f *fakeMetrics) IncrementFailedApplications(platform string) {
	f.failedApplications[platform]++
}

func (f *fakeMetrics) IncrementConsecutiveFailures(platform string) {
	f.consecutiveFailures[platform]++
}

func (f *fakeMetrics) ResetConsecutiveFailures(platform string) {
	f.resets++
}

func TestRunPlatformFlowRecordsMetricsOnSuccess(t *testing.T) {
	platform := &fakePlatform{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})
	fm := newFakeMetrics()
	c.SetMetrics(fm)

	if _, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fm.updated) != 1 || fm.updated[0] != "linkedin" {
		t.Errorf("expected one metrics update for linkedin, got %v", fm.updated)
	}
	if fm.resets != 1 {
		t.Errorf("expected consecutive failures reset once, got %d", fm.resets)
	}
}

func TestRunPlatformFlowRecordsMetricsOnFailure(t *testing.T) {
	platform := &fakePlatform{failFirstN: 10}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})
	fm := newFakeMetrics()
	c.SetMetrics(fm)

	if _, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if fm.failedApplications["linkedin"] != fastCfg().MaxRetries+1 {
		t.Errorf("failedApplications = %d, want %d", fm.failedApplications["linkedin"], fastCfg().MaxRetries+1)
	}
}

type loggedOutPlatform struct {
	calls int
}

func (p *loggedOutPlatform) SearchJobsAndApply(ctx context.Context, jobTitle, location string) (int, error) {
	p.calls++
	return 0, fmt.Errorf("linkedin: %w", types.ErrLoggedOut)
}

func (p *loggedOutPlatform) ApplyToJobURL(ctx context.Context, jobURL, cvPath string) (types.ApplicationStatus, error) {
	return types.AppFailed, types.ErrLoggedOut
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) NotifyOperatorNeedsInput(message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func TestRunPlatformFlowAbortsOnLoggedOutWithoutRetrying(t *testing.T) {
	platform := &loggedOutPlatform{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})
	notifier := &fakeNotifier{}
	c.SetNotifier(notifier)

	_, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote")
	if err == nil {
		t.Fatal("expected an error when the session is logged out")
	}
	if !errors.Is(err, types.ErrLoggedOut) {
		t.Errorf("expected wrapped ErrLoggedOut, got %v", err)
	}
	if platform.calls != 1 {
		t.Errorf("expected exactly one attempt before aborting, got %d", platform.calls)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("expected one operator notification, got %d", len(notifier.messages))
	}
}

type captchaPlatform struct {
	calls int
}

func (p *captchaPlatform) SearchJobsAndApply(ctx context.Context, jobTitle, location string) (int, error) {
	p.calls++
	return 0, fmt.Errorf("linkedin: %w", types.ErrCaptchaRequired)
}

func (p *captchaPlatform) ApplyToJobURL(ctx context.Context, jobURL, cvPath string) (types.ApplicationStatus, error) {
	return types.AppFailed, types.ErrCaptchaRequired
}

func TestRunPlatformFlowAbortsOnCaptchaRequiredWithoutRetrying(t *testing.T) {
	platform := &captchaPlatform{}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})
	notifier := &fakeNotifier{}
	c.SetNotifier(notifier)

	_, err := c.RunPlatformFlow(context.Background(), "linkedin", "Engineer", "Remote")
	if err == nil {
		t.Fatal("expected an error when a captcha is required")
	}
	if !errors.Is(err, types.ErrCaptchaRequired) {
		t.Errorf("expected wrapped ErrCaptchaRequired, got %v", err)
	}
	if platform.calls != 1 {
		t.Errorf("expected exactly one attempt before aborting, got %d", platform.calls)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("expected one operator notification, got %d", len(notifier.messages))
	}
}

func TestApplyToJobDispatchesThroughTaskManager(t *testing.T) {
	platform := &fakePlatform{applyStatus: types.AppApplied}
	c := New(fastCfg(), tasks.NewManager(tasks.DefaultConfig(), nil), nil, map[string]PlatformAgent{"linkedin": platform})

	result, err := c.ApplyToJob(context.Background(), "linkedin", "https://linkedin.com/jobs/view/1", "/tmp/cv.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != types.AppApplied {
		t.Errorf("result = %v, want %v", result, types.AppApplied)
	}
}
