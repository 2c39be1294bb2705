package grading

import (
	"github.com/pavelanni/assessor/internal/model"
)

// ScoreMap maps question ids to their current score.
type ScoreMap map[string]float64

// strategy scores one answer for one question type. The answer has already
// been checked against the question's payload shape.
type strategy interface {
	score(mode model.ScoringMode, q model.Question, a model.Answer) (float64, error)
}

var strategies = map[model.QuestionType]strategy{
	model.TypeMultipleChoice: choiceStrategy{},
	model.TypeText:           manualStrategy{},
	model.TypeVideo:          manualStrategy{},
}

type choiceStrategy struct{}

func (choiceStrategy) score(mode model.ScoringMode, q model.Question, a model.Answer) (float64, error) {
	var weighted float64
	correct := false
	for _, id := range a.SelectedOptionIDs {
		opt, ok := q.Option(id)
		if !ok {
			return 0, malformed(q.ID, "unknown option "+id)
		}
		weighted += opt.Score
		if opt.IsCorrect {
			correct = true
		}
	}

	switch mode {
	case model.ScoringBinary:
		if correct {
			return Clamp(q.MaxScore, q.MaxScore), nil
		}
		return 0, nil
	default:
		return Clamp(weighted, q.MaxScore), nil
	}
}

// manualStrategy covers free-form content. It always starts at zero and is
// left for a grader to set.
type manualStrategy struct{}

func (manualStrategy) score(model.ScoringMode, model.Question, model.Answer) (float64, error) {
	return 0, nil
}

// Clamp bounds score to [0, limit]. A negative limit is treated as zero.
func Clamp(score, limit float64) float64 {
	if limit < 0 {
		limit = 0
	}
	switch {
	case score < 0:
		return 0
	case score > limit:
		return limit
	}
	return score
}

// Score returns the automatic score of a single answer.
// An answer with no payload scores zero.
func Score(mode model.ScoringMode, q model.Question, a model.Answer) (float64, error) {
	if a.QuestionID != q.ID {
		return 0, questionNotFound(a.QuestionID)
	}
	if err := checkShape(q, a); err != nil {
		return 0, err
	}
	s, ok := strategies[q.Type]
	if !ok {
		return 0, malformed(q.ID, "unsupported question type "+string(q.Type))
	}
	return s.score(mode, q, a)
}

// ScoreAnswers scores every question of the assessment. Questions without an
// answer score zero. Every question id is present in the returned map.
func ScoreAnswers(a model.Assessment, answers []model.Answer) (ScoreMap, error) {
	scores := make(ScoreMap, len(a.Questions))
	for _, q := range a.Questions {
		scores[q.ID] = 0
	}

	seen := make(map[string]bool, len(answers))
	for _, ans := range answers {
		q, ok := a.Question(ans.QuestionID)
		if !ok {
			return nil, questionNotFound(ans.QuestionID)
		}
		if seen[q.ID] {
			return nil, malformed(q.ID, "duplicate answer")
		}
		seen[q.ID] = true

		s, err := Score(a.ScoringMode, q, ans)
		if err != nil {
			return nil, err
		}
		scores[q.ID] = s
	}
	return scores, nil
}

// Override applies grader-entered scores on top of base, clamping each to the
// question's bounds. Ids that are not assessment questions are rejected.
func Override(a model.Assessment, base ScoreMap, manual map[string]float64) (ScoreMap, error) {
	out := make(ScoreMap, len(base))
	for id, v := range base {
		out[id] = v
	}
	for id, v := range manual {
		q, ok := a.Question(id)
		if !ok {
			return nil, questionNotFound(id)
		}
		out[id] = Clamp(v, q.MaxScore)
	}
	return out, nil
}

// checkShape verifies that the populated payload matches the question type.
func checkShape(q model.Question, a model.Answer) error {
	populated := 0
	if len(a.SelectedOptionIDs) > 0 {
		populated++
	}
	if a.TextAnswer != "" {
		populated++
	}
	if a.MediaRef != "" {
		populated++
	}
	if populated == 0 {
		return nil
	}
	if populated > 1 {
		return malformed(q.ID, "more than one payload")
	}

	switch q.Type {
	case model.TypeMultipleChoice:
		if len(a.SelectedOptionIDs) == 0 {
			return malformed(q.ID, "expected selected options")
		}
	case model.TypeText:
		if a.TextAnswer == "" {
			return malformed(q.ID, "expected text answer")
		}
	case model.TypeVideo:
		if a.MediaRef == "" {
			return malformed(q.ID, "expected media reference")
		}
	}
	return nil
}
