package grading

import (
	"math"
	"sort"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	// StrengthThreshold is the category percentage at or above which a
	// category counts as a strength.
	StrengthThreshold = 80
	// WeaknessThreshold is the category percentage at or below which a
	// category counts as a weakness.
	WeaknessThreshold = 40
)

// Level is a performance band derived from a percentage.
type Level string

const (
	LevelExcellent        Level = "Excellent"
	LevelVeryGood         Level = "Very Good"
	LevelGood             Level = "Good"
	LevelSatisfactory     Level = "Satisfactory"
	LevelAverage          Level = "Average"
	LevelNeedsImprovement Level = "Needs Improvement"
	LevelPoor             Level = "Poor"
)

var levelBands = []struct {
	min   int
	level Level
}{
	{90, LevelExcellent},
	{80, LevelVeryGood},
	{70, LevelGood},
	{60, LevelSatisfactory},
	{50, LevelAverage},
	{40, LevelNeedsImprovement},
}

// LevelFor maps a percentage to its performance band. Each band includes its
// lower bound.
func LevelFor(percentage int) Level {
	for _, b := range levelBands {
		if percentage >= b.min {
			return b.level
		}
	}
	return LevelPoor
}

// Bucket accumulates score and max score for a group of questions.
type Bucket struct {
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Questions int     `json:"questions"`
}

// Percentage returns the rounded bucket percentage, 0 for an empty max.
func (b Bucket) Percentage() int {
	return Percentage(b.Score, b.MaxScore)
}

// Summary is the derived, read-only view over a score map.
type Summary struct {
	Total       float64                       `json:"total"`
	MaxPossible float64                       `json:"max_possible"`
	Percentage  int                           `json:"percentage"`
	Level       Level                         `json:"level"`
	ByType      map[model.QuestionType]Bucket `json:"by_type"`
	ByCategory  map[string]Bucket             `json:"by_category"`
}

// Percentage returns round(100*score/maxScore), or 0 when maxScore is not
// positive.
func Percentage(score, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(100 * score / maxScore))
}

// Aggregate rolls per-question scores into totals and breakdowns. Only ids of
// the given questions contribute; scores are clamped to each question's
// bounds and missing scores count as zero.
func Aggregate(questions []model.Question, scores ScoreMap) Summary {
	s := Summary{
		ByType:     make(map[model.QuestionType]Bucket),
		ByCategory: make(map[string]Bucket),
	}

	for _, q := range questions {
		maxScore := math.Max(q.MaxScore, 0)
		score := Clamp(scores[q.ID], maxScore)

		s.Total += score
		s.MaxPossible += maxScore

		t := s.ByType[q.Type]
		t.Score += score
		t.MaxScore += maxScore
		t.Questions++
		s.ByType[q.Type] = t

		cat := q.CategoryName()
		c := s.ByCategory[cat]
		c.Score += score
		c.MaxScore += maxScore
		c.Questions++
		s.ByCategory[cat] = c
	}

	s.Percentage = Percentage(s.Total, s.MaxPossible)
	s.Level = LevelFor(s.Percentage)
	return s
}

// Classify returns the sorted category names that are strengths and
// weaknesses. Categories with no attainable points are neither.
func Classify(s Summary) (strengths, weaknesses []string) {
	for name, b := range s.ByCategory {
		if b.MaxScore <= 0 {
			continue
		}
		pct := 100 * b.Score / b.MaxScore
		switch {
		case pct >= StrengthThreshold:
			strengths = append(strengths, name)
		case pct <= WeaknessThreshold:
			weaknesses = append(weaknesses, name)
		}
	}
	sort.Strings(strengths)
	sort.Strings(weaknesses)
	return strengths, weaknesses
}

// Analytics builds the stored analytics view for a score map.
func Analytics(questions []model.Question, scores ScoreMap) model.Analytics {
	sum := Aggregate(questions, scores)
	strengths, weaknesses := Classify(sum)

	a := model.Analytics{
		QuestionScores:    make(map[string]float64, len(questions)),
		CategoryScores:    make(map[string]float64, len(sum.ByCategory)),
		CategoryMaxScores: make(map[string]float64, len(sum.ByCategory)),
		Strengths:         strengths,
		Weaknesses:        weaknesses,
	}
	for _, q := range questions {
		a.QuestionScores[q.ID] = Clamp(scores[q.ID], q.MaxScore)
	}
	for name, b := range sum.ByCategory {
		a.CategoryScores[name] = b.Score
		a.CategoryMaxScores[name] = b.MaxScore
	}
	return a
}
