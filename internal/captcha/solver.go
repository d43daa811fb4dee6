// Package captcha implements the Credentials / CAPTCHA Agent: detects
// CAPTCHA challenges and resolves them either through an external HTTP
// solving service or by prompting the operator.
package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jobpilot/automation/internal/browser"
	"github.com/jobpilot/automation/internal/types"
)

// Mode selects how a detected CAPTCHA is resolved.
type Mode string

const (
	ModeManual   Mode = "manual"
	ModeExternal Mode = "external"
)

// Solver is the external CAPTCHA-solving HTTP service contract: submit an
// image, then poll for a solution.
type Solver interface {
	Submit(ctx context.Context, imageBase64 string) (requestID string, err error)
	Poll(ctx context.Context, requestID string) (solution string, ready bool, err error)
}

// Prompter requests manual CAPTCHA input from the operator, typically after
// showing them the saved screenshot at imagePath.
type Prompter interface {
	PromptForSolution(ctx context.Context, imagePath string) (string, error)
}

// Config controls the agent's pacing and backend selection.
type Config struct {
	Mode             Mode
	DataDir          string
	DefaultTimeoutMs int
	PollInterval     time.Duration
	MaxWaitTime      time.Duration
	MinDelay         time.Duration
	MaxDelay         time.Duration
}

// DefaultConfig mirrors the original implementation's manual-handler default.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeManual,
		DataDir:          "./data",
		DefaultTimeoutMs: 10000,
		PollInterval:     5 * time.Second,
		MaxWaitTime:      120 * time.Second,
		MinDelay:         300 * time.Millisecond,
		MaxDelay:         1 * time.Second,
	}
}

// Notifier alerts the operator when a CAPTCHA falls back to manual
// solving and needs their attention.
type Notifier interface {
	NotifyOperatorNeedsInput(message string) error
}

// Agent is the Credentials / CAPTCHA Agent.
type Agent struct {
	cfg      Config
	solver   Solver
	prompter Prompter
	notifier Notifier
}

// New creates an Agent. solver may be nil when cfg.Mode is ModeManual;
// prompter may be nil to fall back to stdin.
func New(cfg Config, solver Solver, prompter Prompter) *Agent {
	if prompter == nil {
		prompter = StdinPrompter{}
	}
	return &Agent{cfg: cfg, solver: solver, prompter: prompter}
}

// SetNotifier wires an operator-alert channel fired whenever a CAPTCHA
// falls back to manual solving. Nil disables alerting.
func (a *Agent) SetNotifier(n Notifier) {
	a.notifier = n
}

func (a *Agent) randomDelay(ctx context.Context) {
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

// HandleCaptcha waits for a CAPTCHA element; if none appears it returns
// ("", nil). If one appears it is solved via the configured backend.
func (a *Agent) HandleCaptcha(ctx context.Context, page browser.Page, captchaSelector string) (string, error) {
	el, err := page.WaitForSelector(ctx, captchaSelector, a.cfg.DefaultTimeoutMs)
	if err != nil || el == nil {
		fmt.Println("[CredentialsAgent] No CAPTCHA detected.")
		return "", nil
	}
	fmt.Println("[CredentialsAgent] CAPTCHA detected.")
	a.randomDelay(ctx)

	if a.cfg.Mode == ModeExternal && a.solver != nil {
		solution, err := a.handleExternal(ctx, el)
		if err == nil && solution != "" {
			a.randomDelay(ctx)
			return solution, nil
		}
		fmt.Printf("[CredentialsAgent] external solver unavailable (%v), falling back to manual\n", err)
	}
	return a.handleManual(ctx, el)
}

func (a *Agent) handleExternal(ctx context.Context, el browser.Element) (string, error) {
	fmt.Println("[CredentialsAgent] attempting external solver...")
	img, err := el.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	requestID, err := a.solver.Submit(ctx, base64.StdEncoding.EncodeToString(img))
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(a.cfg.MaxWaitTime)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}

		solution, ready, err := a.solver.Poll(ctx, requestID)
		if err != nil {
			return "", err
		}
		if ready {
			return solution, nil
		}
	}
	return "", fmt.Errorf("captcha: %w", types.ErrSolverUnavailable)
}

func (a *Agent) handleManual(ctx context.Context, el browser.Element) (string, error) {
	img, err := el.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(a.cfg.DataDir, fmt.Sprintf("temp_captcha_%s.png", uuid.New().String()))
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", err
	}
	defer os.Remove(path)

	if a.notifier != nil {
		if err := a.notifier.NotifyOperatorNeedsInput("CAPTCHA requires manual solving, see " + path); err != nil {
			fmt.Printf("[CredentialsAgent] failed to notify operator: %v\n", err)
		}
	}

	return a.prompter.PromptForSolution(ctx, path)
}

// VerifyLoginStatus checks for a selector that only appears once logged in.
func (a *Agent) VerifyLoginStatus(ctx context.Context, page browser.Page, successSelector string) bool {
	el, err := page.WaitForSelector(ctx, successSelector, a.cfg.DefaultTimeoutMs)
	return err == nil && el != nil
}

// LoginToPlatform is reserved: platform-specific login flows are not active
// in this implementation and are driven by the operator out of band.
func (a *Agent) LoginToPlatform(ctx context.Context, page browser.Page, email, password string) error {
	return fmt.Errorf("captcha: LoginToPlatform not implemented")
}

// StdinPrompter asks the operator to type the solution on the controlling
// terminal.
type StdinPrompter struct{}

func (StdinPrompter) PromptForSolution(ctx context.Context, imagePath string) (string, error) {
	fmt.Printf("CAPTCHA saved to %s. Enter the solution: ", imagePath)
	var solution string
	if _, err := fmt.Scanln(&solution); err != nil {
		return "", err
	}
	return solution, nil
}

// TwoCaptchaSolver implements Solver against the 2captcha-style submit/poll
// HTTP contract.
type TwoCaptchaSolver struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTwoCaptchaSolver creates a solver using apiKey. BaseURL defaults to the
// public 2captcha endpoint.
func NewTwoCaptchaSolver(apiKey string) *TwoCaptchaSolver {
	return &TwoCaptchaSolver{
		APIKey:     apiKey,
		BaseURL:    "https://2captcha.com",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (s *TwoCaptchaSolver) Submit(ctx context.Context, imageBase64 string) (string, error) {
	form := url.Values{
		"key":    {s.APIKey},
		"method": {"base64"},
		"body":   {imageBase64},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/in.php", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var sr submitResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", err
	}
	if sr.Status != 1 {
		return "", fmt.Errorf("captcha: submit failed: %s", sr.Request)
	}
	return sr.Request, nil
}

func (s *TwoCaptchaSolver) Poll(ctx context.Context, requestID string) (string, bool, error) {
	q := url.Values{
		"key":    {s.APIKey},
		"action": {"get"},
		"id":     {requestID},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return "", false, err
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}

	var sr submitResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", false, err
	}
	if sr.Status == 1 {
		return sr.Request, true, nil
	}
	if sr.Request == "CAPCHA_NOT_READY" {
		return "", false, nil
	}
	return "", false, fmt.Errorf("captcha: solve failed: %s", sr.Request)
}
