package external

import "strings"

// sessionAlertKind classifies an EventSession alert by the wording the
// Controller uses when it aborts a platform flow (see
// internal/controller.Controller.RunPlatformFlow), so the webhook channels
// can render a sharper template than the generic event dump: an operator
// glancing at Slack/Discord/email needs to tell "go solve a CAPTCHA" apart
// from "go log back in" without opening the payload.
type sessionAlertKind int

const (
	sessionAlertNone sessionAlertKind = iota
	sessionAlertLoggedOut
	sessionAlertCaptchaRequired
)

func classifySessionAlert(eventType, message string) sessionAlertKind {
	if eventType != "session" {
		return sessionAlertNone
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "captcha"):
		return sessionAlertCaptchaRequired
	case strings.Contains(lower, "logged out") || strings.Contains(lower, "log back in") || strings.Contains(lower, "re-authentication"):
		return sessionAlertLoggedOut
	default:
		return sessionAlertNone
	}
}

func (k sessionAlertKind) title() string {
	switch k {
	case sessionAlertCaptchaRequired:
		return "CAPTCHA Requires Manual Solving"
	case sessionAlertLoggedOut:
		return "Session Logged Out"
	default:
		return ""
	}
}
