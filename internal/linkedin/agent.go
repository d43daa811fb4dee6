// Package linkedin implements the LinkedIn platform agent: job search,
// listing traversal, and application dispatch (Easy Apply or external
// redirect) built on top of the generic navigation, form-filling and
// CAPTCHA/credentials agents.
package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jobpilot/automation/internal/browser"
	"github.com/jobpilot/automation/internal/captcha"
	"github.com/jobpilot/automation/internal/formfiller"
	"github.com/jobpilot/automation/internal/navigation"
	"github.com/jobpilot/automation/internal/types"
)

const (
	selJobsTab        = "a[href*='/jobs/']"
	selJobCard        = ".jobs-search-results-list .job-card-container"
	selJobTitle       = ".jobs-details-top-card__job-title"
	selCompany        = ".jobs-details-top-card__company-url"
	selLocation       = ".jobs-details-top-card__bullet"
	selEasyApplyBtn   = "button.jobs-apply-button"
	selExternalApply  = "a[data-control-name='jobdetails_topcard_inapply']"
	selRecruiter      = ".jobs-poster__name"
	selSubmitApp      = "button[aria-label='Submit application']"
	selContinueApp    = "button[aria-label='Continue to next step']"
	selCaptchaImage   = "img[alt*='captcha' i]"
	selLoggedInMarker = ".global-nav__me-photo"
	selSearchBox      = "input[aria-label='Search by title, skill, or company']"
	selLocationBox    = "input[aria-label='City, state, or zip code']"
	selSearchSubmit   = "button.jobs-search-box__submit-button"
)

// ActivityLogger records one line of agent activity, matching the shape
// the tracker and task manager already use.
type ActivityLogger interface {
	LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string)
}

// ApplicationRecorder persists one completed application attempt.
type ApplicationRecorder interface {
	RecordApplication(posting types.JobPosting) error
}

// Config bounds how many listings one search pass will process.
type Config struct {
	MaxJobsPerSearch int
}

func DefaultConfig() Config {
	return Config{MaxJobsPerSearch: 10}
}

// Agent is the LinkedIn platform agent.
type Agent struct {
	cfg      Config
	page     browser.Page
	nav      *navigation.Agent
	filler   *formfiller.Filler
	creds    *captcha.Agent
	logger   ActivityLogger
	recorder ApplicationRecorder
	cvPath   string
}

// New creates a LinkedIn Agent. logger and recorder may be nil.
func New(cfg Config, page browser.Page, nav *navigation.Agent, filler *formfiller.Filler, creds *captcha.Agent, logger ActivityLogger, recorder ApplicationRecorder) *Agent {
	return &Agent{cfg: cfg, page: page, nav: nav, filler: filler, creds: creds, logger: logger, recorder: recorder}
}

// SetCVPath records the résumé path to upload during Easy Apply.
func (a *Agent) SetCVPath(path string) {
	a.cvPath = path
}

func (a *Agent) log(activityType, details string, status types.ActivityStatus, jobID string) {
	if a.logger != nil {
		a.logger.LogActivity(activityType, details, status, "LinkedInAgent", jobID)
	}
}

// VerifyLoginState reports whether the session is still authenticated.
func (a *Agent) VerifyLoginState(ctx context.Context) bool {
	return a.nav.ElementPresent(ctx, selLoggedInMarker, 5*time.Second)
}

// CheckCaptchaOrLogout raises ErrLoggedOut or ErrCaptchaRequired when the
// session can no longer proceed unattended.
func (a *Agent) CheckCaptchaOrLogout(ctx context.Context) error {
	if !a.VerifyLoginState(ctx) {
		return fmt.Errorf("linkedin: %w", types.ErrLoggedOut)
	}
	if a.nav.ElementPresent(ctx, selCaptchaImage, time.Second) {
		return fmt.Errorf("linkedin: %w", types.ErrCaptchaRequired)
	}
	return nil
}

func (a *Agent) isJobsURL() bool {
	u := strings.ToLower(a.page.URL())
	for _, pattern := range []string{"linkedin.com/jobs", "linkedin.com/my-items/saved-jobs", "/jobs/collections/", "/jobs/search", "/jobs/view"} {
		if strings.Contains(u, pattern) {
			return true
		}
	}
	return false
}

// GoToJobsTab clicks the top-nav Jobs link, falling back to direct
// navigation if the click doesn't land on a jobs page.
func (a *Agent) GoToJobsTab(ctx context.Context) error {
	if a.isJobsURL() {
		a.log("navigation", "already on jobs page", types.StatusInfo, "")
		return nil
	}
	if a.nav.Click(ctx, selJobsTab) && a.nav.WaitForCondition(ctx, a.isJobsURL, 5*time.Second, 200*time.Millisecond) {
		a.log("navigation", "navigated to jobs tab via click", types.StatusSuccess, "")
		return nil
	}
	if err := a.nav.NavigateTo(ctx, "https://www.linkedin.com/jobs/"); err != nil {
		a.log("navigation", fmt.Sprintf("failed to reach jobs page: %v", err), types.StatusError, "")
		return fmt.Errorf("linkedin: go to jobs tab: %w", err)
	}
	a.log("navigation", "navigated to jobs page via direct url", types.StatusSuccess, "")
	return nil
}

// SearchJobs submits a title/location query the way an operator would: type
// into the search box and location box, then submit. Falls back to pressing
// Enter in the search box if the submit button isn't clickable, and finally
// to a direct URL query if the search box itself isn't on the page.
func (a *Agent) SearchJobs(ctx context.Context, jobTitle, location string) error {
	if a.nav.ElementPresent(ctx, selSearchBox, 3*time.Second) {
		a.nav.Type(ctx, selSearchBox, jobTitle, true)
		if location != "" {
			a.nav.Type(ctx, selLocationBox, location, true)
		}
		if a.nav.Click(ctx, selSearchSubmit) || a.pressEnter(ctx, selSearchBox) {
			a.log("search", fmt.Sprintf("searched %q in %q via search box", jobTitle, location), types.StatusSuccess, "")
			return nil
		}
		a.log("search", "search box present but submit and enter both failed, falling back to direct url", types.StatusInfo, "")
	}

	q := url.Values{"keywords": {jobTitle}, "location": {location}}
	target := "https://www.linkedin.com/jobs/search/?" + q.Encode()
	if err := a.nav.NavigateTo(ctx, target); err != nil {
		a.log("search", fmt.Sprintf("search navigation failed: %v", err), types.StatusError, "")
		return fmt.Errorf("linkedin: search jobs: %w", err)
	}
	a.log("search", fmt.Sprintf("searched %q in %q via direct url", jobTitle, location), types.StatusSuccess, "")
	return nil
}

// pressEnter dispatches a keydown Enter event to selector, used as the
// fallback submit path when the search form has no clickable submit button.
func (a *Agent) pressEnter(ctx context.Context, selector string) bool {
	js := fmt.Sprintf(
		"(function(){var el=document.querySelector(%q); if(!el) return false; el.dispatchEvent(new KeyboardEvent('keydown',{key:'Enter',bubbles:true})); return true;})()",
		selector)
	result, err := a.nav.EvaluateScript(ctx, js)
	if err != nil {
		return false
	}
	ok, _ := result.(bool)
	return ok
}

// extractJobDetails reads the open job detail pane. A card with no title or
// company is malformed — still-loading DOM or a layout LinkedIn changed out
// from under the selectors — and is reported so the caller can recover or
// skip rather than recording a hollow application.
func (a *Agent) extractJobDetails(ctx context.Context) (types.JobPosting, error) {
	posting := types.JobPosting{
		JobTitle:      a.nav.ExtractText(ctx, selJobTitle),
		Company:       a.nav.ExtractText(ctx, selCompany),
		Location:      a.nav.ExtractText(ctx, selLocation),
		IsEasyApply:   a.nav.ElementPresent(ctx, selEasyApplyBtn, 2*time.Second),
		RecruiterName: a.nav.ExtractText(ctx, selRecruiter),
	}
	if links, err := a.nav.ExtractLinks(ctx, selRecruiter); err == nil && len(links) > 0 {
		posting.RecruiterLink = links[0]
	}
	if posting.JobTitle == "" || posting.Company == "" {
		return posting, fmt.Errorf("linkedin: job card missing title or company: %w", types.ErrElementNotFound)
	}
	return posting, nil
}

// recoverAndRetry is the generic policy for a dom.not_found/dom.not_interactable
// failure: reload the page once and retry action, rather than a job-card
// specific workaround. Returns whether action succeeded, with or without the
// reload.
func (a *Agent) recoverAndRetry(ctx context.Context, action func() bool) bool {
	if action() {
		return true
	}
	if err := a.nav.Reload(ctx); err != nil {
		return false
	}
	return action()
}

// ApplyToJob dispatches to Easy Apply or external redirect depending on
// the posting, returning the resulting ApplicationStatus.
func (a *Agent) ApplyToJob(ctx context.Context, posting types.JobPosting) types.ApplicationStatus {
	if posting.IsEasyApply {
		status, err := a.handleEasyApply(ctx, posting)
		if err != nil {
			a.log("apply", fmt.Sprintf("easy apply failed for %s: %v", posting.JobTitle, err), types.StatusFailed, posting.JobID)
			return types.AppFailed
		}
		return status
	}
	if a.nav.ElementPresent(ctx, selExternalApply, time.Second) {
		return a.handleExternalApply(ctx)
	}
	a.log("apply", fmt.Sprintf("no apply control found for %s, skipping", posting.JobTitle), types.StatusInfo, posting.JobID)
	return types.AppSkipped
}

func (a *Agent) handleEasyApply(ctx context.Context, posting types.JobPosting) (types.ApplicationStatus, error) {
	if !a.nav.Click(ctx, selEasyApplyBtn) {
		return types.AppFailed, errors.New("easy apply button not clickable")
	}

	data := map[string]string{}
	if a.cvPath != "" {
		data["resume"] = a.cvPath
	}
	mapping := []formfiller.Field{
		{Name: "resume", Type: formfiller.FieldUpload, Selector: "input[type='file'][name='fileId']", Required: false},
	}

	status, err := a.filler.FillEasyApply(ctx, data, mapping, formfiller.JobContext{JobTitle: posting.JobTitle}, selSubmitApp, selContinueApp)
	if err != nil {
		return types.AppFailed, err
	}
	if status == "applied" {
		return types.AppApplied, nil
	}
	return types.AppFailed, nil
}

func (a *Agent) handleExternalApply(ctx context.Context) types.ApplicationStatus {
	if !a.nav.Click(ctx, selExternalApply) {
		return types.AppFailed
	}
	a.log("apply", "external apply link clicked, treating as redirected", types.StatusInfo, "")
	return types.AppRedirected
}

func (a *Agent) recordApplication(posting types.JobPosting) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordApplication(posting); err != nil {
		a.log("apply", fmt.Sprintf("failed to record application for %s: %v", posting.JobTitle, err), types.StatusError, posting.JobID)
	}
}

// ProcessJobListings walks job cards on the current search results page,
// opening each and attempting an application, until maxJobs have been
// processed or the results are exhausted.
func (a *Agent) ProcessJobListings(ctx context.Context, maxJobs int) (int, error) {
	if maxJobs <= 0 {
		maxJobs = a.cfg.MaxJobsPerSearch
	}

	processed := 0
	for processed < maxJobs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := a.CheckCaptchaOrLogout(ctx); err != nil {
			return processed, err
		}

		cardSelector := fmt.Sprintf("%s:nth-child(%d)", selJobCard, processed+1)
		if !a.nav.ElementPresent(ctx, cardSelector, 2*time.Second) {
			if err := a.nav.ScrollToBottom(ctx, 400, time.Second); err != nil {
				return processed, fmt.Errorf("linkedin: scroll for more listings: %w", err)
			}
			if !a.nav.ElementPresent(ctx, cardSelector, 2*time.Second) {
				break
			}
		}

		if !a.recoverAndRetry(ctx, func() bool { return a.nav.Click(ctx, cardSelector) }) {
			a.log("apply", fmt.Sprintf("could not open job card %d after reload, skipping: %v", processed+1, types.ErrElementNotInteractable), types.StatusError, "")
			processed++
			continue
		}

		posting, err := a.extractJobDetails(ctx)
		if err != nil {
			if !a.recoverAndRetry(ctx, func() bool {
				posting, err = a.extractJobDetails(ctx)
				return err == nil
			}) {
				a.log("apply", fmt.Sprintf("job card %d malformed after reload, skipping: %v", processed+1, err), types.StatusError, "")
				processed++
				continue
			}
		}
		posting.JobID = fmt.Sprintf("job-%d", processed+1)
		posting.ApplicationStatus = a.ApplyToJob(ctx, posting)
		a.recordApplication(posting)
		a.log("apply", fmt.Sprintf("%s at %s: %s", posting.JobTitle, posting.Company, posting.ApplicationStatus), types.StatusSuccess, posting.JobID)

		if err := a.CheckCaptchaOrLogout(ctx); err != nil {
			return processed + 1, err
		}

		processed++
	}
	return processed, nil
}

// SearchJobsAndApply orchestrates the full search-and-apply flow for one
// title/location pair.
func (a *Agent) SearchJobsAndApply(ctx context.Context, jobTitle, location string) (int, error) {
	if err := a.CheckCaptchaOrLogout(ctx); err != nil {
		return 0, err
	}
	if err := a.GoToJobsTab(ctx); err != nil {
		return 0, err
	}
	if err := a.SearchJobs(ctx, jobTitle, location); err != nil {
		return 0, err
	}
	return a.ProcessJobListings(ctx, a.cfg.MaxJobsPerSearch)
}

// ApplyToJobURL navigates directly to a single job posting and attempts
// to apply, bypassing search.
func (a *Agent) ApplyToJobURL(ctx context.Context, jobURL, cvPath string) (types.ApplicationStatus, error) {
	if err := a.CheckCaptchaOrLogout(ctx); err != nil {
		return types.AppFailed, err
	}
	if cvPath != "" {
		a.SetCVPath(cvPath)
	}
	if err := a.nav.NavigateTo(ctx, jobURL); err != nil {
		return types.AppFailed, fmt.Errorf("linkedin: apply to job url: %w", err)
	}

	posting, err := a.extractJobDetails(ctx)
	if err != nil {
		if !a.recoverAndRetry(ctx, func() bool {
			posting, err = a.extractJobDetails(ctx)
			return err == nil
		}) {
			a.log("apply", fmt.Sprintf("job detail page malformed after reload: %v", err), types.StatusError, "")
			return types.AppFailed, err
		}
	}
	posting.ApplicationStatus = a.ApplyToJob(ctx, posting)
	a.recordApplication(posting)
	a.log("apply", fmt.Sprintf("%s at %s: %s", posting.JobTitle, posting.Company, posting.ApplicationStatus), types.StatusSuccess, posting.JobID)

	if err := a.CheckCaptchaOrLogout(ctx); err != nil {
		return posting.ApplicationStatus, err
	}
	return posting.ApplicationStatus, nil
}
