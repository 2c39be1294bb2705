package analysis

import (
	"encoding/json"

	"github.com/pavelanni/assessor/internal/llm"
)

// MockFallback answers every request of an llm.MockProvider with a fixed,
// schema-valid analysis. It lets the full LLM path run without a provider.
func MockFallback(llm.Request) llm.MockResponse {
	content, _ := json.Marshal(map[string]any{
		"narrative": "## Assessment Analysis\n\nThis analysis was produced by the mock provider. " +
			"Review the answers manually before grading.",
		"suggested_feedback": "Thank you for completing the assessment. A reviewer will follow up with detailed feedback.",
		"suggested_score":    0,
		"category_analysis":  []any{},
	})
	return llm.MockResponse{
		Content: content,
		Usage:   llm.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
	}
}
