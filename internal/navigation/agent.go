// Package navigation implements the generic Navigation Agent: stateless
// page interactions with human-like pacing and cooperative pause support.
package navigation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jobpilot/automation/internal/browser"
	"github.com/jobpilot/automation/internal/types"
)

// PauseFlag is the shared cooperative pause signal. NavigateTo, Reload,
// Click, Type, ScrollToElement, DragAndDrop and ScrollToBottom check it
// before acting; ExtractText, GetAttribute, WaitForText, WaitForCondition,
// Screenshot, ElementPresent, EvaluateScript, ExtractLinks, SwitchToIframe
// and SwitchBackToMainFrame do not.
type PauseFlag interface {
	Paused() bool
}

// Config controls pacing and retry behaviour.
type Config struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	BackoffFactor  float64
	MaxWaitTime    time.Duration
	MinDelay       time.Duration
	MaxDelay       time.Duration
	PollInterval   time.Duration
}

// DefaultConfig mirrors the original implementation's pacing defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseRetryDelay: 1 * time.Second,
		BackoffFactor:  2.0,
		MaxWaitTime:    10 * time.Second,
		MinDelay:       300 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		PollInterval:   250 * time.Millisecond,
	}
}

// Agent wraps a browser.Page with pacing, retry and pause cooperation.
type Agent struct {
	cfg   Config
	page  browser.Page
	pause PauseFlag
}

// New creates an Agent over page. pause may be nil to disable pause
// cooperation (useful in tests).
func New(cfg Config, page browser.Page, pause PauseFlag) *Agent {
	return &Agent{cfg: cfg, page: page, pause: pause}
}

// waitIfPaused blocks in PollInterval increments until the pause flag
// clears, or ctx is cancelled.
func (a *Agent) waitIfPaused(ctx context.Context) error {
	if a.pause == nil {
		return nil
	}
	for a.pause.Paused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}
	}
	return nil
}

func (a *Agent) humanDelay(ctx context.Context) {
	span := a.cfg.MaxDelay - a.cfg.MinDelay
	d := a.cfg.MinDelay
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// gate is called at the head of NavigateTo, Reload, Click, Type,
// ScrollToElement and DragAndDrop: pause-check then human pacing delay.
// ScrollToBottom only pause-checks; the other public methods call neither.
func (a *Agent) gate(ctx context.Context) error {
	if err := a.waitIfPaused(ctx); err != nil {
		return err
	}
	a.humanDelay(ctx)
	return nil
}

// NavigateTo makes up to MaxRetries+1 attempts with exponential backoff
// between them, each attempt bounded by MaxWaitTime. An attempt that errors
// or overruns MaxWaitTime counts as failed; once every attempt has failed it
// returns ErrNavFailed wrapping the last error.
func (a *Agent) NavigateTo(ctx context.Context, url string) error {
	if err := a.gate(ctx); err != nil {
		return err
	}

	var lastErr error
	delay := a.cfg.BaseRetryDelay
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.MaxWaitTime)
		err := a.page.Navigate(attemptCtx, url, browser.WaitUntilDOMReady)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < a.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * a.cfg.BackoffFactor)
		}
	}
	return fmt.Errorf("navigation: %s: %w: %v", url, types.ErrNavFailed, lastErr)
}

// Reload refreshes the current page, used as the generic recovery step
// before retrying an interaction that failed to find or use an element.
func (a *Agent) Reload(ctx context.Context) error {
	if err := a.gate(ctx); err != nil {
		return err
	}
	return a.page.Reload(ctx)
}

// Click clicks selector, returning false (not an error) if the element
// cannot be found or interacted with.
func (a *Agent) Click(ctx context.Context, selector string) bool {
	if err := a.gate(ctx); err != nil {
		return false
	}
	return a.page.Click(ctx, selector) == nil
}

// Type clears the field (unless clearFirst is false) then types text.
func (a *Agent) Type(ctx context.Context, selector, text string, clearFirst bool) bool {
	if err := a.gate(ctx); err != nil {
		return false
	}
	if clearFirst {
		if err := a.page.Fill(ctx, selector, ""); err != nil {
			return false
		}
	}
	return a.page.Type(ctx, selector, text) == nil
}

// ExtractText returns the inner text of the first element matching
// selector, or "" if not found.
func (a *Agent) ExtractText(ctx context.Context, selector string) string {
	el, err := a.page.QuerySelector(ctx, selector)
	if err != nil || el == nil {
		return ""
	}
	text, err := el.InnerText(ctx)
	if err != nil {
		return ""
	}
	return text
}

// GetAttribute returns the named attribute of the first element matching
// selector, or "" if not found.
func (a *Agent) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	el, err := a.page.QuerySelector(ctx, selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", fmt.Errorf("navigation: element not found: %s", selector)
	}
	return el.GetAttribute(ctx, name)
}

// WaitForText polls ExtractText until it equals expected or timeout elapses.
func (a *Agent) WaitForText(ctx context.Context, selector, expected string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = a.cfg.MaxWaitTime
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.ExtractText(ctx, selector) == expected {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(a.cfg.PollInterval):
		}
	}
	return false
}

// WaitForCondition polls fn until it returns true, timeout elapses, or ctx
// is cancelled.
func (a *Agent) WaitForCondition(ctx context.Context, fn func() bool, timeout time.Duration, poll time.Duration) bool {
	if timeout <= 0 {
		timeout = a.cfg.MaxWaitTime
	}
	if poll <= 0 {
		poll = a.cfg.PollInterval
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
	return false
}

// ScrollToBottom asks the page to scroll to the bottom in step-sized
// increments, then waits pause once for content to load.
func (a *Agent) ScrollToBottom(ctx context.Context, step int, pause time.Duration) error {
	if err := a.waitIfPaused(ctx); err != nil {
		return err
	}
	if err := a.page.ScrollToBottom(ctx, step); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-time.After(pause):
	}
	return nil
}

// ScrollToElement scrolls selector into view.
func (a *Agent) ScrollToElement(ctx context.Context, selector string) error {
	if err := a.gate(ctx); err != nil {
		return err
	}
	return a.page.ScrollToElement(ctx, selector)
}

// Screenshot captures the full page to path and also returns the image
// bytes. An empty path skips the file write.
func (a *Agent) Screenshot(ctx context.Context, path string) ([]byte, error) {
	data, err := a.page.Screenshot(ctx, true)
	if err != nil || path == "" {
		return data, err
	}
	return data, os.WriteFile(path, data, 0o644)
}

// ElementPresent reports whether selector resolves within timeout.
func (a *Agent) ElementPresent(ctx context.Context, selector string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = a.cfg.MaxWaitTime
	}
	_, err := a.page.WaitForSelector(ctx, selector, int(timeout.Milliseconds()))
	return err == nil
}

// EvaluateScript runs js in the page context.
func (a *Agent) EvaluateScript(ctx context.Context, js string) (interface{}, error) {
	return a.page.Evaluate(ctx, js)
}

// ExtractLinks returns the href attribute of every element matching
// selector (default "a" when empty).
func (a *Agent) ExtractLinks(ctx context.Context, selector string) ([]string, error) {
	if selector == "" {
		selector = "a"
	}
	els, err := a.page.QuerySelectorAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(els))
	for _, el := range els {
		href, err := el.GetAttribute(ctx, "href")
		if err == nil && href != "" {
			links = append(links, href)
		}
	}
	return links, nil
}

// SwitchToIframe mutates the internal page pointer; the context is
// stack-less, matching the single-level iframe contract.
func (a *Agent) SwitchToIframe(ctx context.Context, selector string) error {
	return a.page.SwitchToFrame(ctx, selector)
}

// SwitchBackToMainFrame restores the original root frame.
func (a *Agent) SwitchBackToMainFrame(ctx context.Context) error {
	return a.page.SwitchToMainFrame(ctx)
}

// DragAndDrop drags srcSelector onto dstSelector.
func (a *Agent) DragAndDrop(ctx context.Context, srcSelector, dstSelector string) error {
	if err := a.gate(ctx); err != nil {
		return err
	}
	return a.page.DragAndDrop(ctx, srcSelector, dstSelector)
}

// AcceptCookies clicks the given selector if present, returning whether it
// was found and clicked.
func (a *Agent) AcceptCookies(ctx context.Context, selector string) bool {
	if !a.ElementPresent(ctx, selector, 2*time.Second) {
		return false
	}
	return a.Click(ctx, selector)
}
