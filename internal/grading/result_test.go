package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/assessor/internal/model"
)

func TestResultScores(t *testing.T) {
	a := sampleAssessment(model.ScoringWeighted)
	r := model.Result{
		Answers: []model.Answer{
			{QuestionID: "q-mc", SelectedOptionIDs: []string{"3"}},
			{QuestionID: "q-text-id", TextAnswer: "hello"},
		},
		Analytics: &model.Analytics{
			QuestionScores: map[string]float64{"q-text-id": 7, "removed": 3},
		},
	}

	// Stored scores only count once the result is graded.
	scores, err := ResultScores(a, r)
	require.NoError(t, err)
	assert.Equal(t, ScoreMap{"q-mc": 5, "q-text-id": 0}, scores)

	score, now := 12.0, time.Now()
	r.Score, r.GradedAt = &score, &now
	scores, err = ResultScores(a, r)
	require.NoError(t, err)
	assert.Equal(t, ScoreMap{"q-mc": 5, "q-text-id": 7}, scores)
}
