package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
)

func TestMain(m *testing.M) {
	if err := prompts.Load(nil); err != nil {
		panic(err)
	}
	m.Run()
}

func sampleRequest(textAnswer string) Request {
	a := model.Assessment{
		ID:          "a1",
		Title:       "Frontend Development",
		ScoringMode: model.ScoringWeighted,
		Questions: []model.Question{
			{
				ID:       "q1",
				Type:     model.TypeMultipleChoice,
				Text:     "Which of the following is NOT a valid CSS selector?",
				Category: "CSS",
				MaxScore: 5,
				Options: []model.Option{
					{ID: "1", Text: "#header"},
					{ID: "2", Text: ".container"},
					{ID: "3", Text: "*main", IsCorrect: true, Score: 5},
				},
			},
			{
				ID:       "q2",
				Type:     model.TypeText,
				Text:     "Explain the concept of virtual DOM in React and its benefits.",
				Category: "React",
				MaxScore: 10,
			},
		},
	}
	r := model.Result{
		ID:           "r1",
		AssessmentID: "a1",
		Answers: []model.Answer{
			{QuestionID: "q1", SelectedOptionIDs: []string{"3"}},
			{QuestionID: "q2", TextAnswer: textAnswer},
		},
	}
	return Request{
		Assessment: a,
		Result:     r,
		Scores:     grading.ScoreMap{"q1": 5, "q2": 0},
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Analyze(context.Background(), sampleRequest("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBuiltinNarrative(t *testing.T) {
	resp, err := Builtin{}.Analyze(context.Background(), sampleRequest("short"))
	require.NoError(t, err)

	want := "## Assessment Analysis\n\n" +
		"Overall Score: 5/15 (33%)\n\n" +
		"The candidate needs significant improvement in understanding key concepts. " +
		"\n\n### Breakdown by Question Type:\n\n" +
		"- Multiple-choice questions: 5/5 (100%)\n" +
		"  The candidate excelled in multiple-choice questions.\n" +
		"- Text questions: 0/10 (0%)\n" +
		"  The candidate struggled with text questions.\n" +
		"\n\n### Text Response Analysis:\n\n" +
		"Question 1: \"Explain the concept of virtual DOM in React and it...\"\n" +
		"Response: short\n" +
		"Analysis: The response is too brief and lacks sufficient detail.\n\n"
	assert.Equal(t, want, resp.Narrative)
	assert.True(t, strings.HasPrefix(resp.SuggestedFeedback, "This assessment indicates"))
	require.NotNil(t, resp.SuggestedScore)
	assert.Equal(t, 5.0, *resp.SuggestedScore)

	assert.Equal(t, []string{"Strong results in CSS (100%)"}, resp.CategoryAnalysis["CSS"].Strengths)
	assert.Equal(t, []string{"Needs more work on React (0%)"}, resp.CategoryAnalysis["React"].Weaknesses)
}

func TestBuiltinTextRemarks(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"brief", strings.Repeat("a", 100), "too brief"},
		{"adequate", strings.Repeat("a", 150), "could be more detailed"},
		{"comprehensive", strings.Repeat("a", 201), "comprehensive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Builtin{}.Analyze(context.Background(), sampleRequest(tt.answer))
			require.NoError(t, err)
			assert.Contains(t, resp.Narrative, tt.want)
			if len(tt.answer) > 100 {
				assert.Contains(t, resp.Narrative, "Response: "+strings.Repeat("a", 100)+"...\n")
			}
		})
	}

	// Unanswered text questions are not remarked on.
	resp, err := Builtin{}.Analyze(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	assert.NotContains(t, resp.Narrative, "Text Response Analysis")
}

func TestBuiltinFeedbackBands(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{95, "Excellent work!"},
		{90, "Excellent work!"},
		{80, "Good job!"},
		{75, "Good job!"},
		{60, "You've shown satisfactory"},
		{59, "This assessment indicates"},
	}
	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(suggestedFeedback(tt.pct), tt.want), "pct %d", tt.pct)
	}
}

func TestBuiltinCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Builtin{}.Analyze(ctx, sampleRequest("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func llmAnswer(t *testing.T, v any) llm.MockResponse {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return llm.MockResponse{Content: b}
}

func TestLLMAnalyzer(t *testing.T) {
	mock := llm.NewMockProvider(llmAnswer(t, map[string]any{
		"narrative":          "Solid CSS, weak React.",
		"suggested_feedback": "Review the virtual DOM.",
		"suggested_score":    42,
		"category_analysis": []any{
			map[string]any{"category": "CSS", "strengths": []any{"selectors"}, "weaknesses": []any{}},
			map[string]any{"category": "React", "strengths": []any{}, "weaknesses": []any{"reconciliation"}},
		},
	}))
	a := NewLLMAnalyzer(mock, "", 0.2)

	req := sampleRequest("virtual DOM is a copy")
	req.Settings = Settings{Model: "gpt-4o", Variant: prompts.PromptStrict}
	resp, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Solid CSS, weak React.", resp.Narrative)
	assert.Equal(t, "Review the virtual DOM.", resp.SuggestedFeedback)
	require.NotNil(t, resp.SuggestedScore)
	assert.Equal(t, 15.0, *resp.SuggestedScore, "suggested score is clamped to the maximum")
	assert.Equal(t, []string{"selectors"}, resp.CategoryAnalysis["CSS"].Strengths)
	assert.Equal(t, []string{"reconciliation"}, resp.CategoryAnalysis["React"].Weaknesses)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gpt-4o", calls[0].Model)
	assert.Equal(t, 0.2, calls[0].Temperature)
	require.NotNil(t, calls[0].Schema)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "CURRENT SCORE: 5/15 (33%, Poor)")
	assert.Contains(t, prompt, "virtual DOM is a copy")
	assert.Contains(t, prompt, "*main")
}

func TestLLMAnalyzerUnavailable(t *testing.T) {
	_, err := NewLLMAnalyzer(nil, "", 0).Analyze(context.Background(), sampleRequest("x"))
	assert.ErrorIs(t, err, ErrUnavailable)

	// An empty mock reports the provider as unavailable.
	_, err = NewLLMAnalyzer(llm.NewMockProvider(), "", 0).Analyze(context.Background(), sampleRequest("x"))
	assert.ErrorIs(t, err, ErrUnavailable)

	mock := llm.NewMockProvider(llm.MockResponse{Err: llm.ErrNoCredentials})
	_, err = NewLLMAnalyzer(mock, "", 0).Analyze(context.Background(), sampleRequest("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLLMAnalyzerInvalidOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"narrative": 1}`)})
	_, err := NewLLMAnalyzer(mock, "", 0).Analyze(context.Background(), sampleRequest("x"))
	var invalid *llm.InvalidResponseError
	assert.ErrorAs(t, err, &invalid)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestMockFallback(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Fallback = MockFallback
	resp, err := NewLLMAnalyzer(mock, prompts.PromptLenient, 0).Analyze(context.Background(), sampleRequest("x"))
	require.NoError(t, err)
	assert.Contains(t, resp.Narrative, "mock provider")
	require.NotNil(t, resp.SuggestedScore)
	assert.Zero(t, *resp.SuggestedScore)
}

// blockingAnalyzer waits until released or cancelled.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, _ Request) (*Response, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &Response{Narrative: "done"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCoordinatorSingleFlight(t *testing.T) {
	b := newBlockingAnalyzer()
	c := NewCoordinator(b, 0)

	type outcome struct {
		resp *Response
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		resp, err := c.Run(context.Background(), "r1", sampleRequest("x"))
		first <- outcome{resp, err}
	}()
	<-b.started
	assert.True(t, c.InFlight("r1"))

	_, err := c.Run(context.Background(), "r1", sampleRequest("x"))
	assert.ErrorIs(t, err, ErrInProgress)

	// A different result is not blocked.
	other := NewCoordinator(Builtin{}, 0)
	_, err = other.Run(context.Background(), "r2", sampleRequest("x"))
	assert.NoError(t, err)

	close(b.release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, "done", got.resp.Narrative)
	assert.False(t, c.InFlight("r1"))
}

func TestCoordinatorCancel(t *testing.T) {
	b := newBlockingAnalyzer()
	c := NewCoordinator(b, 0)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), "r1", sampleRequest("x"))
		errc <- err
	}()
	<-b.started

	assert.True(t, c.Cancel("r1"))
	assert.False(t, c.InFlight("r1"), "cancel frees the slot immediately")
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.False(t, c.Cancel("r1"))
}

func TestCoordinatorTimeout(t *testing.T) {
	c := NewCoordinator(newBlockingAnalyzer(), 20*time.Millisecond)
	_, err := c.Run(context.Background(), "r1", sampleRequest("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinatorDisabled(t *testing.T) {
	c := NewCoordinator(nil, 0)
	assert.False(t, c.Enabled())
	_, err := c.Run(context.Background(), "r1", sampleRequest("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, NewCoordinator(Builtin{}, 0).Enabled())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "ok", outcomeOf(nil))
	assert.Equal(t, "unavailable", outcomeOf(ErrUnavailable))
	assert.Equal(t, "cancelled", outcomeOf(context.Canceled))
	assert.Equal(t, "timeout", outcomeOf(context.DeadlineExceeded))
	assert.Equal(t, "error", outcomeOf(errors.New("boom")))
}
