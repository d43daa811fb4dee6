// Package formfiller implements the Form Filler: fills heterogeneous form
// controls, generates cover letters via an LLM provider, and drives
// multi-step Easy-Apply-style flows.
package formfiller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jobpilot/automation/internal/llmprovider"
	"github.com/jobpilot/automation/internal/navigation"
)

// FieldType names a supported form control kind.
type FieldType string

const (
	FieldText               FieldType = "text"
	FieldSelect             FieldType = "select"
	FieldCheckbox           FieldType = "checkbox"
	FieldRadio              FieldType = "radio"
	FieldUpload             FieldType = "upload"
	FieldCoverLetterText    FieldType = "cover_letter_text"
	FieldCoverLetterUpload  FieldType = "cover_letter_upload"
)

// Field is one entry in a form mapping.
type Field struct {
	Name     string
	Type     FieldType
	Selector string
	Required bool
}

// JobContext supplies the inputs a cover letter is generated from.
type JobContext struct {
	JobTitle       string
	JobDescription string
}

// PathPrompter asks the operator for a replacement file path when an
// upload's configured path is missing.
type PathPrompter interface {
	PromptForPath(ctx context.Context, fieldName string) (string, error)
}

// TextPrompter asks the operator to supply manual text when cover-letter
// generation fails twice and the field is required.
type TextPrompter interface {
	PromptForText(ctx context.Context, fieldName string) (string, error)
}

// Config controls error policy.
type Config struct {
	// RaiseOnError aborts FillForm on the first field error; otherwise
	// per-field errors are logged and the loop continues.
	RaiseOnError bool
}

// Filler is the Form Filler.
type Filler struct {
	cfg          Config
	nav          *navigation.Agent
	provider     llmprovider.Provider
	pathPrompter PathPrompter
	textPrompter TextPrompter
}

// New creates a Filler. provider may be llmprovider.Null{}; prompters may
// be nil to skip operator interaction (fields are then skipped instead).
func New(cfg Config, nav *navigation.Agent, provider llmprovider.Provider, pathPrompter PathPrompter, textPrompter TextPrompter) *Filler {
	return &Filler{cfg: cfg, nav: nav, provider: provider, pathPrompter: pathPrompter, textPrompter: textPrompter}
}

// FillForm fills every field in mapping using values from data, keyed by
// field Name.
func (f *Filler) FillForm(ctx context.Context, data map[string]string, mapping []Field, job JobContext) error {
	for _, field := range mapping {
		if err := f.fillField(ctx, field, data[field.Name], job); err != nil {
			if f.cfg.RaiseOnError {
				return fmt.Errorf("formfiller: field %s: %w", field.Name, err)
			}
			fmt.Printf("[FormFiller] field %s failed: %v\n", field.Name, err)
		}
	}
	return nil
}

func (f *Filler) fillField(ctx context.Context, field Field, value string, job JobContext) error {
	switch field.Type {
	case FieldText:
		f.nav.Type(ctx, field.Selector, value, true)
		return nil

	case FieldSelect:
		return f.selectOption(ctx, field.Selector, value)

	case FieldCheckbox:
		return f.setCheckbox(ctx, field.Selector, value == "true")

	case FieldRadio:
		selector := fmt.Sprintf("%s[value='%s']", field.Selector, value)
		if !f.nav.Click(ctx, selector) {
			return fmt.Errorf("radio option not found: %s", selector)
		}
		return nil

	case FieldUpload:
		return f.upload(ctx, field, value)

	case FieldCoverLetterText:
		letter, err := f.generateCoverLetter(ctx, field, job)
		if err != nil {
			return err
		}
		f.nav.Type(ctx, field.Selector, letter, true)
		return nil

	case FieldCoverLetterUpload:
		return f.uploadCoverLetter(ctx, field, job)

	default:
		return fmt.Errorf("unknown field type %q", field.Type)
	}
}

func (f *Filler) selectOption(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(
		"(function(){var el=document.querySelector(%q); if(!el) return false; el.value=%q; el.dispatchEvent(new Event('change')); return true;})()",
		selector, value)
	result, err := f.nav.EvaluateScript(ctx, js)
	if err != nil {
		return err
	}
	if ok, _ := result.(bool); !ok {
		return fmt.Errorf("select option not found: %s", selector)
	}
	return nil
}

func (f *Filler) setCheckbox(ctx context.Context, selector string, desired bool) error {
	checked, _ := f.nav.GetAttribute(ctx, selector, "checked")
	current := checked != ""
	if current == desired {
		return nil
	}
	if !f.nav.Click(ctx, selector) {
		return fmt.Errorf("checkbox not found: %s", selector)
	}
	return nil
}

func (f *Filler) upload(ctx context.Context, field Field, path string) error {
	if _, err := os.Stat(path); err != nil {
		if !field.Required {
			fmt.Printf("[FormFiller] optional upload %s missing, skipping\n", field.Name)
			return nil
		}
		if f.pathPrompter == nil {
			return fmt.Errorf("required upload missing: %s", path)
		}
		newPath, err := f.pathPrompter.PromptForPath(ctx, field.Name)
		if err != nil || newPath == "" {
			return fmt.Errorf("required upload missing and no replacement supplied: %s", path)
		}
		path = newPath
	}
	if !f.nav.Type(ctx, field.Selector, path, true) {
		return fmt.Errorf("upload failed: %s", field.Selector)
	}
	return nil
}

func (f *Filler) generateCoverLetter(ctx context.Context, field Field, job JobContext) (string, error) {
	letter, err := f.requestCoverLetter(ctx, job)
	if err == nil {
		return letter, nil
	}
	letter, err = f.requestCoverLetter(ctx, job)
	if err == nil {
		return letter, nil
	}

	if field.Required {
		if f.textPrompter == nil {
			return "", fmt.Errorf("cover letter generation failed and no manual fallback available")
		}
		return f.textPrompter.PromptForText(ctx, field.Name)
	}
	return "", nil
}

func (f *Filler) requestCoverLetter(ctx context.Context, job JobContext) (string, error) {
	req := llmprovider.Request{
		Model: "cover-letter",
		Messages: []llmprovider.Message{
			{Role: "system", Content: "Write a concise cover letter under 200 words."},
			{Role: "user", Content: fmt.Sprintf("Job title: %s\nDescription: %s", job.JobTitle, job.JobDescription)},
		},
		Temperature: 0.7,
		MaxTokens:   400,
	}
	return f.provider.Complete(ctx, req)
}

func (f *Filler) uploadCoverLetter(ctx context.Context, field Field, job JobContext) error {
	letter, err := f.generateCoverLetter(ctx, field, job)
	if err != nil || letter == "" {
		return err
	}

	tmp, err := os.CreateTemp("", "cover_letter_*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(letter); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	if !f.nav.Type(ctx, field.Selector, tmp.Name(), true) {
		return fmt.Errorf("cover letter upload failed: %s", field.Selector)
	}
	return nil
}

// SubmitForm clicks submitSelector and reports whether the click succeeded.
func (f *Filler) SubmitForm(ctx context.Context, submitSelector string) bool {
	return f.nav.Click(ctx, submitSelector)
}

const maxEasyApplySteps = 20

// FillEasyApply drives the multi-step Easy-Apply loop: fill fields visible
// on the current step, submit if a submit button is present, else advance
// via "continue". Returns "applied" or "failed".
func (f *Filler) FillEasyApply(ctx context.Context, data map[string]string, mapping []Field, job JobContext, submitSelector, continueSelector string) (string, error) {
	for step := 0; step < maxEasyApplySteps; step++ {
		if err := f.FillForm(ctx, data, mapping, job); err != nil {
			return "failed", err
		}

		if f.nav.ElementPresent(ctx, submitSelector, 2*time.Second) {
			if f.SubmitForm(ctx, submitSelector) {
				return "applied", nil
			}
			return "failed", nil
		}
		if f.nav.ElementPresent(ctx, continueSelector, 2*time.Second) {
			f.nav.Click(ctx, continueSelector)
			continue
		}
		return "failed", nil
	}
	return "failed", fmt.Errorf("formfiller: exceeded %d easy-apply steps", maxEasyApplySteps)
}
