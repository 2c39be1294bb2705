package analysis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/model"
)

// Builtin is a deterministic analyzer that needs no external service. It
// reports the score breakdown and remarks on the length of text answers.
type Builtin struct{}

func (Builtin) Analyze(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := grading.Aggregate(req.Assessment.Questions, req.Scores)

	var b strings.Builder
	b.WriteString("## Assessment Analysis\n\n")
	fmt.Fprintf(&b, "Overall Score: %s/%s (%d%%)\n\n",
		formatScore(sum.Total), formatScore(sum.MaxPossible), sum.Percentage)
	b.WriteString(overallRemark(sum.Percentage))

	b.WriteString("\n\n### Breakdown by Question Type:\n\n")
	for _, t := range model.QuestionTypes {
		bucket, ok := sum.ByType[t]
		if !ok {
			continue
		}
		pct := bucket.Percentage()
		fmt.Fprintf(&b, "- %s questions: %s/%s (%d%%)\n",
			typeLabel(t), formatScore(bucket.Score), formatScore(bucket.MaxScore), pct)
		switch {
		case pct >= 80:
			fmt.Fprintf(&b, "  The candidate excelled in %s questions.\n", t)
		case pct >= 60:
			fmt.Fprintf(&b, "  The candidate performed adequately in %s questions.\n", t)
		default:
			fmt.Fprintf(&b, "  The candidate struggled with %s questions.\n", t)
		}
	}

	writeTextRemarks(&b, req)

	score := sum.Total
	if score > sum.MaxPossible {
		score = sum.MaxPossible
	}

	return &Response{
		Narrative:         b.String(),
		SuggestedFeedback: suggestedFeedback(sum.Percentage),
		SuggestedScore:    &score,
		CategoryAnalysis:  categoryNotes(sum),
	}, nil
}

func overallRemark(pct int) string {
	switch {
	case pct >= 90:
		return "The candidate demonstrated excellent understanding across all areas of the assessment. "
	case pct >= 75:
		return "The candidate showed strong knowledge in most areas of the assessment. "
	case pct >= 60:
		return "The candidate displayed satisfactory knowledge but has some areas for improvement. "
	default:
		return "The candidate needs significant improvement in understanding key concepts. "
	}
}

func suggestedFeedback(pct int) string {
	switch {
	case pct >= 90:
		return "Excellent work! You demonstrated outstanding knowledge across all areas of the assessment. " +
			"Your responses were thorough and showed deep understanding of the concepts."
	case pct >= 75:
		return "Good job! You showed solid understanding of most concepts in this assessment. " +
			"Continue building on your strengths while addressing a few areas where your understanding could be deeper."
	case pct >= 60:
		return "You've shown satisfactory understanding of the core concepts, but there are several areas where improvement is needed. " +
			"Focus on strengthening your knowledge in the weaker areas identified in the assessment."
	default:
		return "This assessment indicates that you need to revisit and strengthen your understanding of the fundamental concepts covered. " +
			"Consider reviewing the material again and seeking additional resources to help build your knowledge."
	}
}

func writeTextRemarks(b *strings.Builder, req Request) {
	var n int
	for _, q := range req.Assessment.Questions {
		if q.Type != model.TypeText {
			continue
		}
		a, ok := req.Result.Answer(q.ID)
		if !ok || a.TextAnswer == "" {
			continue
		}
		n++
		if n == 1 {
			b.WriteString("\n\n### Text Response Analysis:\n\n")
		}
		fmt.Fprintf(b, "Question %d: \"%s...\"\n", n, prefix(q.Text, 50))
		fmt.Fprintf(b, "Response: %s\n", truncate(a.TextAnswer, 100))

		switch length := utf8.RuneCountInString(a.TextAnswer); {
		case length > 200:
			b.WriteString("Analysis: The response is comprehensive and shows depth of understanding.\n")
		case length > 100:
			b.WriteString("Analysis: The response addresses the question but could be more detailed.\n")
		default:
			b.WriteString("Analysis: The response is too brief and lacks sufficient detail.\n")
		}
		b.WriteString("\n")
	}
}

// categoryNotes turns the category classification into short remarks.
func categoryNotes(sum grading.Summary) map[string]model.CategoryNotes {
	strengths, weaknesses := grading.Classify(sum)
	if len(strengths) == 0 && len(weaknesses) == 0 {
		return nil
	}
	notes := make(map[string]model.CategoryNotes, len(strengths)+len(weaknesses))
	for _, name := range strengths {
		notes[name] = model.CategoryNotes{
			Strengths: []string{fmt.Sprintf("Strong results in %s (%d%%)", name, sum.ByCategory[name].Percentage())},
		}
	}
	for _, name := range weaknesses {
		notes[name] = model.CategoryNotes{
			Weaknesses: []string{fmt.Sprintf("Needs more work on %s (%d%%)", name, sum.ByCategory[name].Percentage())},
		}
	}
	return notes
}

func typeLabel(t model.QuestionType) string {
	s := string(t)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return prefix(s, n) + "..."
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sortedCategories returns category names in a stable order.
func sortedCategories(sum grading.Summary) []string {
	names := make([]string, 0, len(sum.ByCategory))
	for name := range sum.ByCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
