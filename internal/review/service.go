// Package review drives a result through its lifecycle: submission,
// scoring, grading and advisory analysis.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/metrics"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

var (
	// ErrStaleAnalysis is returned when the result changed while its
	// analysis was running. The analysis is discarded.
	ErrStaleAnalysis = errors.New("result changed during analysis")
	// ErrInvalidGrade is returned for a score outside the attainable range.
	ErrInvalidGrade = errors.New("invalid grade")
	// ErrAssessmentArchived is returned when submitting to an archived
	// assessment.
	ErrAssessmentArchived = errors.New("assessment is archived")
)

// Taker identifies who submitted a result.
type Taker struct {
	UserID string
	Name   string
	Email  string
}

// Service implements the result lifecycle on top of a repository.
type Service struct {
	repo     store.Repository
	analyses *analysis.Coordinator
}

// NewService returns a service. A nil coordinator disables analysis.
func NewService(repo store.Repository, analyses *analysis.Coordinator) *Service {
	if analyses == nil {
		analyses = analysis.NewCoordinator(nil, 0)
	}
	return &Service{repo: repo, analyses: analyses}
}

// Submit validates answers against the assessment and stores a new result
// with automatic scores. Incomplete submissions are rejected with
// *grading.IncompleteAnswersError.
func (s *Service) Submit(ctx context.Context, assessmentID string, taker Taker, answers []model.Answer) (model.Result, error) {
	a, err := s.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return model.Result{}, err
	}
	if a.Archived {
		return model.Result{}, ErrAssessmentArchived
	}
	if err := grading.ValidateSubmission(a, answers); err != nil {
		return model.Result{}, err
	}
	scores, err := grading.ScoreAnswers(a, answers)
	if err != nil {
		return model.Result{}, err
	}
	analytics := grading.Analytics(a.Questions, scores)

	r, err := s.repo.CreateResult(ctx, model.Result{
		AssessmentID: a.ID,
		UserID:       taker.UserID,
		UserName:     taker.Name,
		UserEmail:    taker.Email,
		Answers:      answers,
		SubmittedAt:  time.Now(),
		Analytics:    &analytics,
	})
	if err != nil {
		return model.Result{}, fmt.Errorf("store result: %w", err)
	}
	metrics.ResultsSubmitted.Inc()
	return r, nil
}

// Scorecard is the derived scoring view of one result.
type Scorecard struct {
	Result     model.Result     `json:"result"`
	Scores     grading.ScoreMap `json:"scores"`
	Summary    grading.Summary  `json:"summary"`
	Strengths  []string         `json:"strengths"`
	Weaknesses []string         `json:"weaknesses"`
}

// Scores returns the current scores of a result with overrides applied on
// top. Nothing is stored.
func (s *Service) Scores(ctx context.Context, resultID string, overrides map[string]float64) (Scorecard, error) {
	r, a, err := s.load(ctx, resultID)
	if err != nil {
		return Scorecard{}, err
	}
	scores, err := grading.ResultScores(a, r)
	if err != nil {
		return Scorecard{}, err
	}
	if len(overrides) > 0 {
		if scores, err = grading.Override(a, scores, overrides); err != nil {
			return Scorecard{}, err
		}
	}
	sum := grading.Aggregate(a.Questions, scores)
	strengths, weaknesses := grading.Classify(sum)
	return Scorecard{
		Result:     r,
		Scores:     scores,
		Summary:    sum,
		Strengths:  strengths,
		Weaknesses: weaknesses,
	}, nil
}

// GradeInput is what a grader commits. A nil Score takes the total of the
// question scores.
type GradeInput struct {
	Score          *float64           `json:"score,omitempty"`
	Feedback       string             `json:"feedback"`
	QuestionScores map[string]float64 `json:"question_scores,omitempty"`
}

// Grade commits score, feedback, grading time and grader together.
// Grading an already graded result overwrites all four.
func (s *Service) Grade(ctx context.Context, resultID string, in GradeInput, grader string) (model.Result, error) {
	r, a, err := s.load(ctx, resultID)
	if err != nil {
		return model.Result{}, err
	}
	scores, err := grading.ResultScores(a, r)
	if err != nil {
		return model.Result{}, err
	}
	if scores, err = grading.Override(a, scores, in.QuestionScores); err != nil {
		return model.Result{}, err
	}

	analytics := grading.Analytics(a.Questions, scores)
	sum := grading.Aggregate(a.Questions, scores)
	score := sum.Total
	if in.Score != nil {
		score = *in.Score
		if score < 0 || score > sum.MaxPossible {
			return model.Result{}, fmt.Errorf("%w: score %g outside [0, %g]", ErrInvalidGrade, score, sum.MaxPossible)
		}
	}
	if r.Analytics != nil {
		analytics.Narrative = r.Analytics.Narrative
	}

	updated, err := s.repo.UpdateResult(ctx, r.ID, store.ResultPatch{
		Grading: &model.Grading{
			Score:    score,
			Feedback: in.Feedback,
			GradedAt: time.Now(),
			GradedBy: grader,
		},
		Analytics: &analytics,
	})
	if err != nil {
		return model.Result{}, err
	}
	metrics.ResultsGraded.Inc()
	slog.Info("graded result", "id", r.ID, "score", score, "graded_by", grader)
	return updated, nil
}

// Analyze runs the advisory analysis for a result and stores its narrative.
// Score and feedback are never touched. If the result changed while the
// analysis ran, the response is discarded and ErrStaleAnalysis returned.
func (s *Service) Analyze(ctx context.Context, resultID string, settings analysis.Settings) (*analysis.Response, error) {
	r, a, err := s.load(ctx, resultID)
	if err != nil {
		return nil, err
	}
	scores, err := grading.ResultScores(a, r)
	if err != nil {
		return nil, err
	}

	resp, err := s.analyses.Run(ctx, r.ID, analysis.Request{
		Assessment: a,
		Result:     r,
		Scores:     scores,
		Settings:   settings,
	})
	if err != nil {
		return nil, err
	}

	analytics := grading.Analytics(a.Questions, scores)
	if r.Analytics != nil {
		analytics = *r.Analytics
	}
	analytics.Narrative = resp.Narrative

	_, err = s.repo.UpdateResult(ctx, r.ID, store.ResultPatch{
		Analytics:      &analytics,
		ExpectRevision: r.Revision,
	})
	if errors.Is(err, store.ErrRevisionConflict) {
		metrics.AnalysisOutcomes.WithLabelValues("stale").Inc()
		slog.Warn("discarding stale analysis", "id", r.ID, "revision", r.Revision)
		return nil, ErrStaleAnalysis
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelAnalysis stops a running analysis for the result.
func (s *Service) CancelAnalysis(resultID string) bool {
	return s.analyses.Cancel(resultID)
}

// AnalysisEnabled reports whether an analysis backend is configured.
func (s *Service) AnalysisEnabled() bool {
	return s.analyses.Enabled()
}

func (s *Service) load(ctx context.Context, resultID string) (model.Result, model.Assessment, error) {
	r, err := s.repo.GetResult(ctx, resultID)
	if err != nil {
		return model.Result{}, model.Assessment{}, err
	}
	a, err := s.repo.GetAssessment(ctx, r.AssessmentID)
	if err != nil {
		return model.Result{}, model.Assessment{}, fmt.Errorf("assessment of result %s: %w", r.ID, err)
	}
	return r, a, nil
}
