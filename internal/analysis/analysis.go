// Package analysis produces advisory, qualitative feedback for a submitted
// result. Its output is never applied to the result's score or feedback.
package analysis

import (
	"context"
	"errors"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
)

var (
	// ErrUnavailable is returned when no analysis backend is configured or
	// the configured backend cannot be reached.
	ErrUnavailable = errors.New("analysis unavailable")
	// ErrInProgress is returned when an analysis for the same result is
	// already running.
	ErrInProgress = errors.New("analysis already in progress")
)

// Settings are per-request overrides. Zero values keep the analyzer's
// defaults.
type Settings struct {
	Model       string                `json:"model,omitempty"`
	Temperature float64               `json:"temperature,omitempty"`
	Variant     prompts.PromptVariant `json:"variant,omitempty"`
}

// Request is the input of one analysis.
type Request struct {
	Assessment model.Assessment
	Result     model.Result
	Scores     grading.ScoreMap
	Settings   Settings
}

// Response is advisory output. SuggestedScore and CategoryAnalysis are
// optional.
type Response struct {
	Narrative         string                         `json:"narrative"`
	SuggestedFeedback string                         `json:"suggested_feedback"`
	SuggestedScore    *float64                       `json:"suggested_score,omitempty"`
	CategoryAnalysis  map[string]model.CategoryNotes `json:"category_analysis,omitempty"`
}

// Analyzer produces an analysis for a single result.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
}

// Disabled is the analyzer used when nothing is configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, Request) (*Response, error) {
	return nil, ErrUnavailable
}

// answerText renders an answer the way a reader would see it.
func answerText(q model.Question, a model.Answer) string {
	switch q.Type {
	case model.TypeMultipleChoice:
		var text string
		for i, id := range a.SelectedOptionIDs {
			if i > 0 {
				text += "; "
			}
			if opt, ok := q.Option(id); ok {
				text += opt.Text
			} else {
				text += id
			}
		}
		return text
	case model.TypeVideo:
		return a.MediaRef
	default:
		return a.TextAnswer
	}
}
