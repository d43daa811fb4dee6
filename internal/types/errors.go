package types

import "errors"

// Sentinel errors for the closed taxonomy described in the error handling
// design: agents wrap one of these with fmt.Errorf("...: %w", ...) and
// callers branch on kind with errors.Is.
var (
	ErrConfigInvalid          = errors.New("config.invalid")
	ErrNotFound               = errors.New("io.not_found")
	ErrTooLarge               = errors.New("io.too_large")
	ErrUnreadable             = errors.New("io.unreadable")
	ErrUnsupportedFormat      = errors.New("io.unsupported_format")
	ErrNavTimeout             = errors.New("net.timeout")
	ErrNavFailed              = errors.New("net.navigation")
	ErrElementNotFound        = errors.New("dom.not_found")
	ErrElementNotInteractable = errors.New("dom.not_interactable")
	ErrLoggedOut              = errors.New("session.logged_out")
	ErrCaptchaRequired        = errors.New("session.captcha_required")
	ErrTaskTimeout            = errors.New("task.timeout")
	ErrTaskCancelled          = errors.New("task.cancelled")
	ErrLLMUnavailable         = errors.New("external.llm")
	ErrSolverUnavailable      = errors.New("external.solver")
)
