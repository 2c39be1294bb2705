package model

import "time"

// ResultsExport is the top-level JSON structure for assessment result export.
type ResultsExport struct {
	AssessmentID string        `json:"assessment_id"`
	Title        string        `json:"title"`
	ScoringMode  ScoringMode   `json:"scoring_mode"`
	ExportedAt   time.Time     `json:"exported_at"`
	NumQuestions int           `json:"num_questions"`
	MaxPossible  float64       `json:"max_possible"`
	Results      []TakerResult `json:"results"`
}

// TakerResult holds one test-taker's submission data for export.
type TakerResult struct {
	ResultID    string           `json:"result_id"`
	UserID      string           `json:"user_id"`
	UserName    string           `json:"user_name"`
	UserEmail   string           `json:"user_email"`
	Status      ResultStatus     `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	GradedAt    *time.Time       `json:"graded_at,omitempty"`
	GradedBy    string           `json:"graded_by,omitempty"`
	Score       *float64         `json:"score,omitempty"`
	Percentage  int              `json:"percentage"`
	Level       string           `json:"level"`
	Feedback    string           `json:"feedback,omitempty"`
	Questions   []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Category   string       `json:"category"`
	MaxScore   float64      `json:"max_score"`
	Answer     *Answer      `json:"answer,omitempty"`
	Score      float64      `json:"score"`
}
