// Package export turns assessments and results into tables and documents
// that can be written as CSV or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/model"
)

// Table is a header plus rows of cells.
type Table struct {
	Header []string
	Rows   [][]string
}

var assessmentHeader = []string{
	"ID",
	"Title",
	"Description",
	"Time Limit",
	"Created At",
	"Created By",
	"Question ID",
	"Question Type",
	"Question Text",
	"Options",
	"Correct Answer",
	"Max Score",
}

// AssessmentTable returns one row per question. Options and correct answers
// are JSON arrays of option texts.
func AssessmentTable(a model.Assessment) Table {
	t := Table{Header: assessmentHeader}
	timeLimit := ""
	if a.TimeLimit > 0 {
		timeLimit = strconv.Itoa(a.TimeLimit)
	}
	for _, q := range a.Questions {
		var options, correct string
		if len(q.Options) > 0 {
			texts := make([]string, 0, len(q.Options))
			right := []string{}
			for _, o := range q.Options {
				texts = append(texts, o.Text)
				if o.IsCorrect {
					right = append(right, o.Text)
				}
			}
			options, correct = jsonArray(texts), jsonArray(right)
		}
		t.Rows = append(t.Rows, []string{
			a.ID,
			a.Title,
			a.Description,
			timeLimit,
			isoTime(a.CreatedAt),
			a.CreatedBy,
			q.ID,
			string(q.Type),
			q.Text,
			options,
			correct,
			formatScore(q.MaxScore),
		})
	}
	return t
}

var resultsHeader = []string{
	"Candidate Name",
	"Email",
	"Submission Date",
	"Score",
	"Percentage",
	"Level",
	"Status",
}

// ResultsTable returns one row per result of an export.
func ResultsTable(e model.ResultsExport) Table {
	t := Table{Header: resultsHeader}
	for _, r := range e.Results {
		score, status := "Not graded", "Pending"
		if r.Status == model.StatusGraded {
			status = "Graded"
			if r.Score != nil {
				score = formatScore(*r.Score)
			}
		}
		t.Rows = append(t.Rows, []string{
			r.UserName,
			r.UserEmail,
			r.SubmittedAt.Format("2006-01-02 15:04"),
			score,
			strconv.Itoa(r.Percentage) + "%",
			r.Level,
			status,
		})
	}
	return t
}

// BuildResultsExport assembles the full export of an assessment's results.
// Graded results report their committed score; pending ones their
// automatic score.
func BuildResultsExport(a model.Assessment, results []model.Result, now time.Time) (model.ResultsExport, error) {
	e := model.ResultsExport{
		AssessmentID: a.ID,
		Title:        a.Title,
		ScoringMode:  a.ScoringMode,
		ExportedAt:   now,
		NumQuestions: len(a.Questions),
		Results:      make([]model.TakerResult, 0, len(results)),
	}
	for _, q := range a.Questions {
		e.MaxPossible += q.MaxScore
	}

	for _, r := range results {
		scores, err := grading.ResultScores(a, r)
		if err != nil {
			return model.ResultsExport{}, fmt.Errorf("score result %s: %w", r.ID, err)
		}
		sum := grading.Aggregate(a.Questions, scores)
		pct := sum.Percentage
		if r.Score != nil {
			pct = grading.Percentage(*r.Score, sum.MaxPossible)
		}

		tr := model.TakerResult{
			ResultID:    r.ID,
			UserID:      r.UserID,
			UserName:    r.UserName,
			UserEmail:   r.UserEmail,
			Status:      r.Status(),
			SubmittedAt: r.SubmittedAt,
			GradedAt:    r.GradedAt,
			GradedBy:    r.GradedBy,
			Score:       r.Score,
			Percentage:  pct,
			Level:       string(grading.LevelFor(pct)),
			Feedback:    r.Feedback,
		}
		for _, q := range a.Questions {
			qr := model.QuestionResult{
				QuestionID: q.ID,
				Type:       q.Type,
				Text:       q.Text,
				Category:   q.CategoryName(),
				MaxScore:   q.MaxScore,
				Score:      scores[q.ID],
			}
			if ans, ok := r.Answer(q.ID); ok {
				qr.Answer = &ans
			}
			tr.Questions = append(tr.Questions, qr)
		}
		e.Results = append(e.Results, tr)
	}
	return e, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename builds a download name such as "Frontend_Development_results.csv".
func Filename(title, kind, ext string) string {
	return whitespace.ReplaceAllString(title, "_") + "_" + kind + "." + ext
}

func jsonArray(items []string) string {
	b, _ := json.Marshal(items)
	return string(b)
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
