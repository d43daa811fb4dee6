// Package confidence implements the Confidence Scorer: combines the
// Learning Pipeline's historical success rate with an optional LLM
// judgement into a single score in [0,1].
package confidence

import (
	"context"
	"fmt"
	"log"

	"github.com/jobpilot/automation/internal/llmprovider"
	"github.com/jobpilot/automation/internal/types"
)

const defaultBaseConfidence = 0.6

// HistorySource is the narrow slice of the Learning Pipeline the scorer
// needs, kept as a local interface to avoid an import cycle.
type HistorySource interface {
	HasData(action string) bool
	SuccessRate(action string, window int) float64
}

// TelemetrySink receives one event per computation. Informational only; the
// caller decides thresholds.
type TelemetrySink interface {
	Record(action string, success bool, confidence float64, actionContext map[string]interface{})
}

// Config controls scorer behaviour.
type Config struct {
	BaseConfidence float64
	UseLLM         bool
}

// DefaultConfig mirrors the original implementation's baseConfidence=0.6,
// LLM judgement disabled.
func DefaultConfig() Config {
	return Config{BaseConfidence: defaultBaseConfidence, UseLLM: false}
}

// Scorer computes per-action confidence scores.
type Scorer struct {
	cfg       Config
	history   HistorySource
	telemetry TelemetrySink
	provider  llmprovider.Provider
}

// New creates a Scorer. provider may be llmprovider.Null{} when cfg.UseLLM
// is false; telemetry may be nil.
func New(cfg Config, history HistorySource, provider llmprovider.Provider, telemetry TelemetrySink) *Scorer {
	if cfg.BaseConfidence == 0 {
		cfg.BaseConfidence = defaultBaseConfidence
	}
	return &Scorer{cfg: cfg, history: history, provider: provider, telemetry: telemetry}
}

// Compute returns a confidence score in [0,1] for action given context.
func (s *Scorer) Compute(ctx context.Context, action string, actionContext map[string]interface{}) float64 {
	h := s.heuristic(action)
	score := h

	if s.cfg.UseLLM && s.provider != nil {
		judged, err := s.judge(ctx, action, actionContext, h)
		if err != nil {
			log.Printf("[Confidence] LLM judgement unavailable for %s: %v", action, err)
		} else {
			score = (h + judged) / 2
		}
	}

	score = types.ClampConfidence(score)
	if s.telemetry != nil {
		s.telemetry.Record(action, true, score, actionContext)
	}
	return score
}

// heuristic returns baseConfidence when the pipeline has no data for action,
// otherwise the average of baseConfidence and the historical success rate.
func (s *Scorer) heuristic(action string) float64 {
	if s.history == nil || !s.history.HasData(action) {
		return s.cfg.BaseConfidence
	}
	return (s.history.SuccessRate(action, 50) + s.cfg.BaseConfidence) / 2
}

func (s *Scorer) judge(ctx context.Context, action string, actionContext map[string]interface{}, h float64) (float64, error) {
	req := llmprovider.Request{
		Model: "judge",
		Messages: []llmprovider.Message{
			{Role: "system", Content: "Rate confidence in [0,1] for the proposed action."},
			{Role: "user", Content: fmt.Sprintf("action=%s heuristic=%.2f context=%v", action, h, actionContext)},
		},
		Temperature: 0,
		MaxTokens:   8,
	}
	reply, err := s.provider.Complete(ctx, req)
	if err != nil {
		return 0, err
	}

	var judged float64
	if _, err := fmt.Sscanf(reply, "%f", &judged); err != nil {
		return 0, fmt.Errorf("confidence: unparseable judgement %q: %w", reply, err)
	}
	return types.ClampConfidence(judged), nil
}
