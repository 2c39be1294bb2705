package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/assessor/internal/model"
)

func TestValidateSubmission(t *testing.T) {
	a := sampleAssessment(model.ScoringWeighted)
	a.Questions = append(a.Questions, model.Question{ID: "q-video", Type: model.TypeVideo, MaxScore: 15})

	complete := []model.Answer{
		{QuestionID: "q-mc", SelectedOptionIDs: []string{"3"}},
		{QuestionID: "q-text-id", TextAnswer: "hello"},
		{QuestionID: "q-video", MediaRef: "videos/abc.webm"},
	}
	require.NoError(t, ValidateSubmission(a, complete))

	tests := []struct {
		name    string
		answers []model.Answer
		missing []string
	}{
		{
			name: "missing text answer",
			answers: []model.Answer{
				{QuestionID: "q-mc", SelectedOptionIDs: []string{"3"}},
				{QuestionID: "q-video", MediaRef: "v"},
			},
			missing: []string{"q-text-id"},
		},
		{
			name: "blank text is unanswered",
			answers: []model.Answer{
				{QuestionID: "q-mc", SelectedOptionIDs: []string{"3"}},
				{QuestionID: "q-text-id", TextAnswer: "   "},
				{QuestionID: "q-video", MediaRef: "v"},
			},
			missing: []string{"q-text-id"},
		},
		{
			name:    "nothing answered",
			answers: nil,
			missing: []string{"q-mc", "q-text-id", "q-video"},
		},
		{
			name: "empty selection and no media",
			answers: []model.Answer{
				{QuestionID: "q-mc"},
				{QuestionID: "q-text-id", TextAnswer: "ok"},
				{QuestionID: "q-video"},
			},
			missing: []string{"q-mc", "q-video"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmission(a, tt.answers)
			require.ErrorIs(t, err, ErrIncompleteAnswers)

			var inc *IncompleteAnswersError
			require.ErrorAs(t, err, &inc)
			assert.Equal(t, tt.missing, inc.QuestionIDs)
		})
	}
}

func TestValidateSubmission_Malformed(t *testing.T) {
	a := sampleAssessment(model.ScoringWeighted)

	err := ValidateSubmission(a, []model.Answer{
		{QuestionID: "q-mc", SelectedOptionIDs: []string{"42"}},
		{QuestionID: "q-text-id", TextAnswer: "x"},
	})
	assert.ErrorIs(t, err, ErrMalformedAnswer)

	err = ValidateSubmission(a, []model.Answer{
		{QuestionID: "q-mc", SelectedOptionIDs: []string{"3"}},
		{QuestionID: "q-text-id", MediaRef: "x"},
	})
	assert.ErrorIs(t, err, ErrMalformedAnswer)

	err = ValidateSubmission(a, []model.Answer{{QuestionID: "ghost", TextAnswer: "x"}})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}
