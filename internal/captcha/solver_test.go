package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobpilot/automation/internal/browser"
)

type fakeElement struct {
	screenshot []byte
	err        error
}

func (e *fakeElement) Click(ctx context.Context) error           { return nil }
func (e *fakeElement) Fill(ctx context.Context, v string) error  { return nil }
func (e *fakeElement) Type(ctx context.Context, t string) error  { return nil }
func (e *fakeElement) Screenshot(ctx context.Context) ([]byte, error) {
	return e.screenshot, e.err
}
func (e *fakeElement) GetAttribute(ctx context.Context, name string) (string, error) { return "", nil }
func (e *fakeElement) InnerText(ctx context.Context) (string, error)                 { return "", nil }

type fakePage struct {
	hasCaptcha bool
}

func (p *fakePage) Navigate(ctx context.Context, url string, w browser.WaitUntil) error { return nil }
func (p *fakePage) GoBack(ctx context.Context) error                                    { return nil }
func (p *fakePage) Reload(ctx context.Context) error                                    { return nil }
func (p *fakePage) WaitForSelector(ctx context.Context, selector string, timeoutMs int) (browser.Element, error) {
	if !p.hasCaptcha {
		return nil, errors.New("timeout")
	}
	return &fakeElement{screenshot: []byte("png-bytes")}, nil
}
func (p *fakePage) QuerySelector(ctx context.Context, selector string) (browser.Element, error) {
	return nil, nil
}
func (p *fakePage) QuerySelectorAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return nil, nil
}
func (p *fakePage) Click(ctx context.Context, selector string) error          { return nil }
func (p *fakePage) Fill(ctx context.Context, selector, value string) error    { return nil }
func (p *fakePage) Type(ctx context.Context, selector, text string) error     { return nil }
func (p *fakePage) Evaluate(ctx context.Context, js string) (interface{}, error) {
	return nil, nil
}
func (p *fakePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) { return nil, nil }
func (p *fakePage) SwitchToFrame(ctx context.Context, selector string) error      { return nil }
func (p *fakePage) SwitchToMainFrame(ctx context.Context) error                  { return nil }
func (p *fakePage) ScrollToBottom(ctx context.Context, stepPx int) error          { return nil }
func (p *fakePage) ScrollToElement(ctx context.Context, selector string) error    { return nil }
func (p *fakePage) DragAndDrop(ctx context.Context, src, dst string) error        { return nil }
func (p *fakePage) MouseWheel(ctx context.Context, dx, dy float64) error          { return nil }
func (p *fakePage) Hover(ctx context.Context, selector string) error             { return nil }
func (p *fakePage) URL() string                                                  { return "" }
func (p *fakePage) Close(ctx context.Context) error                              { return nil }

type fakePrompter struct {
	solution string
}

func (p *fakePrompter) PromptForSolution(ctx context.Context, imagePath string) (string, error) {
	return p.solution, nil
}

type fakeSolver struct {
	solution string
	ready    bool
}

func (s *fakeSolver) Submit(ctx context.Context, imageBase64 string) (string, error) {
	return "req-1", nil
}
func (s *fakeSolver) Poll(ctx context.Context, requestID string) (string, bool, error) {
	return s.solution, s.ready, nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	cfg.MaxWaitTime = 20 * time.Millisecond
	return cfg
}

func TestHandleCaptchaNoneDetected(t *testing.T) {
	agent := New(fastConfig(), nil, nil)
	solution, err := agent.HandleCaptcha(context.Background(), &fakePage{hasCaptcha: false}, "#captcha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solution != "" {
		t.Fatalf("expected empty solution, got %q", solution)
	}
}

func TestHandleCaptchaManualFallback(t *testing.T) {
	cfg := fastConfig()
	cfg.Mode = ModeManual
	cfg.DataDir = t.TempDir()

	agent := New(cfg, nil, &fakePrompter{solution: "ABCD"})
	solution, err := agent.HandleCaptcha(context.Background(), &fakePage{hasCaptcha: true}, "#captcha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solution != "ABCD" {
		t.Fatalf("solution = %q, want ABCD", solution)
	}
}

func TestHandleCaptchaExternalSolved(t *testing.T) {
	cfg := fastConfig()
	cfg.Mode = ModeExternal

	agent := New(cfg, &fakeSolver{solution: "XYZ", ready: true}, &fakePrompter{solution: "fallback"})
	solution, err := agent.HandleCaptcha(context.Background(), &fakePage{hasCaptcha: true}, "#captcha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solution != "XYZ" {
		t.Fatalf("solution = %q, want XYZ", solution)
	}
}

func TestHandleCaptchaExternalTimesOutFallsBackToManual(t *testing.T) {
	cfg := fastConfig()
	cfg.Mode = ModeExternal
	cfg.DataDir = t.TempDir()

	agent := New(cfg, &fakeSolver{ready: false}, &fakePrompter{solution: "manual-solution"})
	solution, err := agent.HandleCaptcha(context.Background(), &fakePage{hasCaptcha: true}, "#captcha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solution != "manual-solution" {
		t.Fatalf("solution = %q, want manual-solution after external timeout", solution)
	}
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) NotifyOperatorNeedsInput(message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func TestHandleManualNotifiesOperator(t *testing.T) {
	cfg := fastConfig()
	cfg.DataDir = t.TempDir()

	agent := New(cfg, nil, &fakePrompter{solution: "solved"})
	notifier := &fakeNotifier{}
	agent.SetNotifier(notifier)

	solution, err := agent.HandleCaptcha(context.Background(), &fakePage{hasCaptcha: true}, "#captcha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solution != "solved" {
		t.Fatalf("solution = %q, want solved", solution)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one operator notification, got %d", len(notifier.messages))
	}
}

func TestVerifyLoginStatus(t *testing.T) {
	agent := New(fastConfig(), nil, nil)
	if !agent.VerifyLoginStatus(context.Background(), &fakePage{hasCaptcha: true}, "#profile") {
		t.Fatal("expected login status true when selector resolves")
	}
	if agent.VerifyLoginStatus(context.Background(), &fakePage{hasCaptcha: false}, "#profile") {
		t.Fatal("expected login status false when selector does not resolve")
	}
}
