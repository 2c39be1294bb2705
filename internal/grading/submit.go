package grading

import (
	"strings"

	"github.com/pavelanni/assessor/internal/model"
)

// ValidateSubmission checks that every question has a usable answer and that
// every answer is well-formed. Unanswered questions are collected into a
// single *IncompleteAnswersError in assessment order; structural problems
// (unknown question, wrong payload, unknown option) are returned first.
func ValidateSubmission(a model.Assessment, answers []model.Answer) error {
	byQuestion := make(map[string]model.Answer, len(answers))
	for _, ans := range answers {
		q, ok := a.Question(ans.QuestionID)
		if !ok {
			return questionNotFound(ans.QuestionID)
		}
		if _, dup := byQuestion[q.ID]; dup {
			return malformed(q.ID, "duplicate answer")
		}
		if err := checkShape(q, ans); err != nil {
			return err
		}
		for _, id := range ans.SelectedOptionIDs {
			if _, ok := q.Option(id); !ok {
				return malformed(q.ID, "unknown option "+id)
			}
		}
		byQuestion[q.ID] = ans
	}

	var missing []string
	for _, q := range a.Questions {
		ans, ok := byQuestion[q.ID]
		if !ok || !answered(q, ans) {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return &IncompleteAnswersError{QuestionIDs: missing}
	}
	return nil
}

func answered(q model.Question, a model.Answer) bool {
	switch q.Type {
	case model.TypeMultipleChoice:
		return len(a.SelectedOptionIDs) > 0
	case model.TypeText:
		return strings.TrimSpace(a.TextAnswer) != ""
	case model.TypeVideo:
		return a.MediaRef != ""
	}
	return false
}
