package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
)

const (
	analysisPurpose   = "analysis"
	analysisMaxTokens = 2048
)

var analysisSchema = &llm.Schema{
	Name:        "assessment_analysis",
	Description: "Qualitative analysis of one assessment result",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"narrative":          map[string]any{"type": "string"},
			"suggested_feedback": map[string]any{"type": "string"},
			"suggested_score":    map[string]any{"type": "number"},
			"category_analysis": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category":   map[string]any{"type": "string"},
						"strengths":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"weaknesses": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required":             []any{"category", "strengths", "weaknesses"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"narrative", "suggested_feedback", "suggested_score", "category_analysis"},
		"additionalProperties": false,
	},
}

// llmOutput is the wire shape of the model's answer. Categories come back as
// a list because strict structured output does not allow free-form keys.
type llmOutput struct {
	Narrative         string  `json:"narrative"`
	SuggestedFeedback string  `json:"suggested_feedback"`
	SuggestedScore    float64 `json:"suggested_score"`
	CategoryAnalysis  []struct {
		Category   string   `json:"category"`
		Strengths  []string `json:"strengths"`
		Weaknesses []string `json:"weaknesses"`
	} `json:"category_analysis"`
}

// LLMAnalyzer asks a language model for the analysis.
type LLMAnalyzer struct {
	provider    llm.Provider
	variant     prompts.PromptVariant
	temperature float64
}

// NewLLMAnalyzer returns an analyzer backed by provider. A nil provider
// yields an analyzer that always reports ErrUnavailable.
func NewLLMAnalyzer(provider llm.Provider, variant prompts.PromptVariant, temperature float64) *LLMAnalyzer {
	if variant == "" {
		variant = prompts.PromptStandard
	}
	return &LLMAnalyzer{provider: provider, variant: variant, temperature: temperature}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) (*Response, error) {
	if a.provider == nil {
		return nil, ErrUnavailable
	}

	variant := a.variant
	if req.Settings.Variant != "" {
		variant = req.Settings.Variant
	}
	temperature := a.temperature
	if req.Settings.Temperature > 0 {
		temperature = req.Settings.Temperature
	}

	sum := grading.Aggregate(req.Assessment.Questions, req.Scores)
	prompt, err := prompts.BuildAnalysisPrompt(variant, promptData(req, sum))
	if err != nil {
		return nil, fmt.Errorf("build analysis prompt: %w", err)
	}

	llmReq := llm.UserPrompt("", prompt)
	llmReq.Model = req.Settings.Model
	llmReq.Schema = analysisSchema
	llmReq.MaxTokens = analysisMaxTokens
	llmReq.Temperature = temperature

	resp, err := a.provider.Generate(llm.WithPurpose(ctx, analysisPurpose), llmReq)
	if err != nil {
		if unavailable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	var out llmOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, &llm.InvalidResponseError{Content: resp.Content, Err: err}
	}
	slog.Debug("analysis generated", "result_id", req.Result.ID, "model", resp.Model, "variant", variant)
	return out.response(sum.MaxPossible), nil
}

func (o llmOutput) response(maxPossible float64) *Response {
	score := grading.Clamp(o.SuggestedScore, maxPossible)
	r := &Response{
		Narrative:         o.Narrative,
		SuggestedFeedback: o.SuggestedFeedback,
		SuggestedScore:    &score,
	}
	if len(o.CategoryAnalysis) > 0 {
		r.CategoryAnalysis = make(map[string]model.CategoryNotes, len(o.CategoryAnalysis))
		for _, c := range o.CategoryAnalysis {
			notes := r.CategoryAnalysis[c.Category]
			notes.Strengths = append(notes.Strengths, c.Strengths...)
			notes.Weaknesses = append(notes.Weaknesses, c.Weaknesses...)
			r.CategoryAnalysis[c.Category] = notes
		}
	}
	return r
}

func unavailable(err error) bool {
	var ue *llm.UnavailableError
	return errors.Is(err, llm.ErrNoCredentials) || errors.As(err, &ue)
}

func promptData(req Request, sum grading.Summary) prompts.AnalysisData {
	data := prompts.AnalysisData{
		Title:       req.Assessment.Title,
		Description: req.Assessment.Description,
		ScoringMode: string(req.Assessment.ScoringMode),
		Total:       sum.Total,
		MaxPossible: sum.MaxPossible,
		Percentage:  sum.Percentage,
		Level:       string(sum.Level),
	}
	for i, q := range req.Assessment.Questions {
		qd := prompts.QuestionData{
			Number:   i + 1,
			Type:     string(q.Type),
			Category: q.CategoryName(),
			Text:     q.Text,
			MaxScore: q.MaxScore,
			Score:    grading.Clamp(req.Scores[q.ID], q.MaxScore),
		}
		for _, o := range q.Options {
			qd.Options = append(qd.Options, o.Text)
		}
		if ans, ok := req.Result.Answer(q.ID); ok {
			qd.Answer = answerText(q, ans)
		}
		data.Questions = append(data.Questions, qd)
	}
	for _, name := range sortedCategories(sum) {
		b := sum.ByCategory[name]
		data.Categories = append(data.Categories, prompts.CategoryData{
			Name:       name,
			Score:      b.Score,
			MaxScore:   b.MaxScore,
			Percentage: b.Percentage(),
		})
	}
	return data
}
