package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleAdmin can manage users, assessments and grading.
	UserRoleAdmin UserRole = "admin"
	// UserRoleReviewer grades submitted results.
	UserRoleReviewer UserRole = "reviewer"
	// UserRoleCreator builds and edits assessments.
	UserRoleCreator UserRole = "creator"
	// UserRoleTestTaker answers assessments.
	UserRoleTestTaker UserRole = "test-taker"
)

// ValidUserRole reports whether r is one of the known roles.
func ValidUserRole(r UserRole) bool {
	switch r {
	case UserRoleAdmin, UserRoleReviewer, UserRoleCreator, UserRoleTestTaker:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType is the kind of response a question expects.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeText           QuestionType = "text"
	TypeVideo          QuestionType = "video"
)

// QuestionTypes lists every question type in display order.
var QuestionTypes = []QuestionType{TypeMultipleChoice, TypeText, TypeVideo}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeText, TypeVideo:
		return true
	}
	return false
}

// ScoringMode selects how multiple-choice answers are scored for an assessment.
type ScoringMode string

const (
	// ScoringWeighted sums the score of every selected option. Binary
	// correctness is the special case of one option scored maxScore.
	ScoringWeighted ScoringMode = "weighted"
	// ScoringBinary awards maxScore when any selected option is correct.
	ScoringBinary ScoringMode = "binary"
)

// UncategorizedCategory is the bucket for questions without a category.
const UncategorizedCategory = "Uncategorized"

// Option is one choice of a multiple-choice question.
type Option struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	IsCorrect bool    `json:"is_correct,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// Question is a single gradable prompt. A zero MaxScore means the question
// carries no points.
type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Options  []Option     `json:"options,omitempty"`
	MaxScore float64      `json:"max_score"`
	Category string       `json:"category,omitempty"`
}

// CategoryName returns the question category, or UncategorizedCategory when unset.
func (q Question) CategoryName() string {
	if q.Category == "" {
		return UncategorizedCategory
	}
	return q.Category
}

// Option returns the option with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Assessment is a named collection of questions. It owns its questions.
type Assessment struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	TimeLimit    int         `json:"time_limit,omitempty"` // minutes, 0 means unlimited
	ScoringMode  ScoringMode `json:"scoring_mode"`
	Questions    []Question  `json:"questions"`
	CreatedAt    time.Time   `json:"created_at"`
	CreatedBy    string      `json:"created_by"`
	Archived     bool        `json:"archived"`
	LastModified *time.Time  `json:"last_modified,omitempty"`
}

// Question returns the assessment question with the given id.
func (a Assessment) Question(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answer is a test-taker's response to one question. Exactly one payload
// field is populated, chosen by the question type.
type Answer struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	TextAnswer        string   `json:"text_answer,omitempty"`
	MediaRef          string   `json:"media_ref,omitempty"`
}

// ResultStatus is the grading state of a result.
type ResultStatus string

const (
	StatusSubmitted ResultStatus = "submitted"
	StatusGraded    ResultStatus = "graded"
)

// CategoryNotes holds qualitative observations for one category.
type CategoryNotes struct {
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Analytics is derived data stored alongside a result.
type Analytics struct {
	QuestionScores    map[string]float64 `json:"question_scores,omitempty"`
	CategoryScores    map[string]float64 `json:"category_scores,omitempty"`
	CategoryMaxScores map[string]float64 `json:"category_max_scores,omitempty"`
	Strengths         []string           `json:"strengths,omitempty"`
	Weaknesses        []string           `json:"weaknesses,omitempty"`
	Narrative         string             `json:"narrative,omitempty"`
}

// Grading is the field group written when a result is graded. All four
// fields are always committed together.
type Grading struct {
	Score    float64   `json:"score"`
	Feedback string    `json:"feedback"`
	GradedAt time.Time `json:"graded_at"`
	GradedBy string    `json:"graded_by"`
}

// Result is one test-taker's submission and its grading outcome.
type Result struct {
	ID           string     `json:"id"`
	AssessmentID string     `json:"assessment_id"`
	UserID       string     `json:"user_id"`
	UserName     string     `json:"user_name"`
	UserEmail    string     `json:"user_email"`
	Answers      []Answer   `json:"answers"`
	Score        *float64   `json:"score,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	GradedBy     string     `json:"graded_by,omitempty"`
	Analytics    *Analytics `json:"analytics,omitempty"`
	Revision     int64      `json:"revision"`
}

// Status derives the lifecycle state from the grading fields.
func (r Result) Status() ResultStatus {
	if r.Score != nil && r.GradedAt != nil {
		return StatusGraded
	}
	return StatusSubmitted
}

// Answer returns the answer for the given question id.
func (r Result) Answer(questionID string) (Answer, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return Answer{}, false
}

// ShareLink grants token-based access to an assessment.
type ShareLink struct {
	ID           string     `json:"id"`
	AssessmentID string     `json:"assessment_id"`
	Token        string     `json:"token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	Active       bool       `json:"active"`
}

// AssessmentImport is used for loading assessments from JSON.
type AssessmentImport struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	TimeLimit   int         `json:"time_limit"`
	ScoringMode ScoringMode `json:"scoring_mode"`
	CreatedBy   string      `json:"created_by"`
	Archived    bool        `json:"archived"`
	Questions   []Question  `json:"questions"`
}
