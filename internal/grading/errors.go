package grading

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuestionNotFound indicates an answer references a question that is
	// not part of the assessment.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrMalformedAnswer indicates an answer payload that does not match the
	// question's declared type.
	ErrMalformedAnswer = errors.New("malformed answer")

	// ErrIncompleteAnswers indicates a submission that leaves required
	// questions unanswered.
	ErrIncompleteAnswers = errors.New("incomplete answers")
)

// QuestionError ties a sentinel error to the offending question.
type QuestionError struct {
	QuestionID string
	Reason     string
	Err        error
}

func (e *QuestionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("question %q: %v: %s", e.QuestionID, e.Err, e.Reason)
	}
	return fmt.Sprintf("question %q: %v", e.QuestionID, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

func questionNotFound(id string) error {
	return &QuestionError{QuestionID: id, Err: ErrQuestionNotFound}
}

func malformed(id, reason string) error {
	return &QuestionError{QuestionID: id, Reason: reason, Err: ErrMalformedAnswer}
}

// IncompleteAnswersError lists the questions a submission left unanswered,
// in assessment order.
type IncompleteAnswersError struct {
	QuestionIDs []string
}

func (e *IncompleteAnswersError) Error() string {
	return fmt.Sprintf("incomplete answers: %s", strings.Join(e.QuestionIDs, ", "))
}

func (e *IncompleteAnswersError) Unwrap() error { return ErrIncompleteAnswers }
