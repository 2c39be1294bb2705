package grading

import "github.com/pavelanni/assessor/internal/model"

// ResultScores returns the current per-question scores of a result:
// automatic scores, with a graded result's stored question scores on top.
// Stored scores of questions that are no longer part of the assessment are
// ignored.
func ResultScores(a model.Assessment, r model.Result) (ScoreMap, error) {
	scores, err := ScoreAnswers(a, r.Answers)
	if err != nil {
		return nil, err
	}
	if r.Status() != model.StatusGraded || r.Analytics == nil {
		return scores, nil
	}
	stored := make(map[string]float64, len(r.Analytics.QuestionScores))
	for id, v := range r.Analytics.QuestionScores {
		if _, ok := a.Question(id); ok {
			stored[id] = v
		}
	}
	return Override(a, scores, stored)
}
