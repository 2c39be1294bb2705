package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/assessor/internal/model"
)

func mixedQuestions() []model.Question {
	return []model.Question{
		{ID: "q1", Type: model.TypeMultipleChoice, MaxScore: 5, Category: "Concepts"},
		{ID: "q2", Type: model.TypeMultipleChoice, MaxScore: 5, Category: "Concepts"},
		{ID: "q3", Type: model.TypeText, MaxScore: 10, Category: "Application"},
		{ID: "q4", Type: model.TypeVideo, MaxScore: 15},
		{ID: "q5", Type: model.TypeText},
	}
}

func TestAggregate_TotalsAndBuckets(t *testing.T) {
	qs := mixedQuestions()
	scores := ScoreMap{"q1": 5, "q2": 4, "q3": 3, "q4": 6, "stray": 100}

	sum := Aggregate(qs, scores)
	assert.Equal(t, 18.0, sum.Total, "stray ids are ignored")
	assert.Equal(t, 35.0, sum.MaxPossible, "missing max score counts as zero")
	assert.Equal(t, 51, sum.Percentage)
	assert.Equal(t, LevelAverage, sum.Level)

	assert.Equal(t, Bucket{Score: 9, MaxScore: 10, Questions: 2}, sum.ByType[model.TypeMultipleChoice])
	assert.Equal(t, Bucket{Score: 3, MaxScore: 10, Questions: 2}, sum.ByType[model.TypeText])
	assert.Equal(t, Bucket{Score: 6, MaxScore: 15, Questions: 1}, sum.ByType[model.TypeVideo])

	assert.Equal(t, Bucket{Score: 9, MaxScore: 10, Questions: 2}, sum.ByCategory["Concepts"])
	assert.Equal(t, Bucket{Score: 6, MaxScore: 15, Questions: 2}, sum.ByCategory[model.UncategorizedCategory])
}

func TestAggregate_PartitionsEveryQuestionOnce(t *testing.T) {
	qs := mixedQuestions()
	sum := Aggregate(qs, ScoreMap{})

	var byType, byCat int
	for _, b := range sum.ByType {
		byType += b.Questions
	}
	for _, b := range sum.ByCategory {
		byCat += b.Questions
	}
	assert.Equal(t, len(qs), byType)
	assert.Equal(t, len(qs), byCat)
}

func TestAggregate_ZeroMaxPossible(t *testing.T) {
	qs := []model.Question{{ID: "a", Type: model.TypeText}, {ID: "b", Type: model.TypeVideo}}
	sum := Aggregate(qs, ScoreMap{"a": 3})
	assert.Zero(t, sum.Percentage)
	assert.Zero(t, sum.Total)
	assert.Equal(t, LevelPoor, sum.Level)

	empty := Aggregate(nil, nil)
	assert.Zero(t, empty.Percentage)
	assert.Empty(t, empty.ByType)
}

func TestAggregate_Idempotent(t *testing.T) {
	qs := mixedQuestions()
	scores := ScoreMap{"q1": 5, "q3": 7}
	assert.Equal(t, Aggregate(qs, scores), Aggregate(qs, scores))
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		pct  int
		want Level
	}{
		{100, LevelExcellent},
		{90, LevelExcellent},
		{89, LevelVeryGood},
		{80, LevelVeryGood},
		{79, LevelGood},
		{70, LevelGood},
		{60, LevelSatisfactory},
		{59, LevelAverage},
		{50, LevelAverage},
		{40, LevelNeedsImprovement},
		{39, LevelPoor},
		{0, LevelPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.pct), "percentage %d", tt.pct)
	}
}

func TestClassify(t *testing.T) {
	qs := []model.Question{
		{ID: "a", Type: model.TypeMultipleChoice, MaxScore: 10, Category: "Strong"},
		{ID: "b", Type: model.TypeMultipleChoice, MaxScore: 10, Category: "Weak"},
		{ID: "c", Type: model.TypeMultipleChoice, MaxScore: 10, Category: "Middle"},
		{ID: "d", Type: model.TypeText, Category: "Empty"},
		{ID: "e", Type: model.TypeMultipleChoice, MaxScore: 10, Category: "Edge"},
	}
	sum := Aggregate(qs, ScoreMap{"a": 8, "b": 4, "c": 6, "e": 10})

	strengths, weaknesses := Classify(sum)
	assert.Equal(t, []string{"Edge", "Strong"}, strengths)
	assert.Equal(t, []string{"Weak"}, weaknesses)
}

func TestAnalytics(t *testing.T) {
	qs := mixedQuestions()
	a := Analytics(qs, ScoreMap{"q1": 5, "q2": 5, "q3": 1})

	require.NotNil(t, a.QuestionScores)
	assert.Len(t, a.QuestionScores, len(qs))
	assert.Equal(t, 10.0, a.CategoryScores["Concepts"])
	assert.Equal(t, 10.0, a.CategoryMaxScores["Concepts"])
	assert.Equal(t, []string{"Concepts"}, a.Strengths)
	assert.Equal(t, []string{"Application", model.UncategorizedCategory}, a.Weaknesses)
}
