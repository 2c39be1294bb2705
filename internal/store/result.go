package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/model"
)

// ResultPatch is a partial update of a result. Nil fields are left alone.
// A non-zero ExpectRevision makes the update conditional on the stored
// revision.
type ResultPatch struct {
	Grading        *model.Grading
	Analytics      *model.Analytics
	ExpectRevision int64
}

const resultColumns = `id, assessment_id, user_id, user_name, user_email, answers, score, feedback,
	submitted_at, graded_at, graded_by, analytics, revision`

// CreateResult stores a submitted result. The id is generated when empty
// and the revision starts at 1.
func (s *Store) CreateResult(ctx context.Context, r model.Result) (model.Result, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now()
	}
	r.Revision = 1

	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return model.Result{}, err
	}
	analytics, err := encodeAnalytics(r.Analytics)
	if err != nil {
		return model.Result{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, assessment_id, user_id, user_name, user_email, answers, score, feedback,
			submitted_at, graded_at, graded_by, analytics, revision)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AssessmentID, r.UserID, r.UserName, r.UserEmail, string(answers), r.Score, r.Feedback,
		r.SubmittedAt, r.GradedAt, r.GradedBy, analytics, r.Revision,
	)
	if err != nil {
		slog.Error("failed to create result", "assessment_id", r.AssessmentID, "error", err)
		return model.Result{}, err
	}
	slog.Info("created result", "id", r.ID, "assessment_id", r.AssessmentID)
	return r, nil
}

// UpdateResult applies patch in a single statement and bumps the revision.
// Grading fields are always written as a group.
func (s *Store) UpdateResult(ctx context.Context, id string, patch ResultPatch) (model.Result, error) {
	query := `UPDATE results SET revision = revision + 1`
	var args []any
	if g := patch.Grading; g != nil {
		query += `, score = ?, feedback = ?, graded_at = ?, graded_by = ?`
		args = append(args, g.Score, g.Feedback, g.GradedAt, g.GradedBy)
	}
	if patch.Analytics != nil {
		analytics, err := encodeAnalytics(patch.Analytics)
		if err != nil {
			return model.Result{}, err
		}
		query += `, analytics = ?`
		args = append(args, analytics)
	}
	query += ` WHERE id = ?`
	args = append(args, id)
	if patch.ExpectRevision > 0 {
		query += ` AND revision = ?`
		args = append(args, patch.ExpectRevision)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to update result", "id", id, "error", err)
		return model.Result{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := s.GetResult(ctx, id)
		if err != nil {
			return model.Result{}, err
		}
		return model.Result{}, fmt.Errorf("%w: result %s is at revision %d, expected %d",
			ErrRevisionConflict, id, current.Revision, patch.ExpectRevision)
	}

	updated, err := s.GetResult(ctx, id)
	if err != nil {
		return model.Result{}, err
	}
	slog.Info("updated result", "id", id, "revision", updated.Revision,
		"graded", patch.Grading != nil, "analytics", patch.Analytics != nil)
	return updated, nil
}

// GetResult returns a result by id.
func (s *Store) GetResult(ctx context.Context, id string) (model.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if err != nil {
		return model.Result{}, notFound(err)
	}
	return r, nil
}

// ListResultsByAssessment returns the results of one assessment in
// submission order.
func (s *Store) ListResultsByAssessment(ctx context.Context, assessmentID string) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE assessment_id = ? ORDER BY submitted_at, id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResult(sc scanner) (model.Result, error) {
	var (
		r         model.Result
		answers   string
		analytics sql.NullString
	)
	err := sc.Scan(&r.ID, &r.AssessmentID, &r.UserID, &r.UserName, &r.UserEmail, &answers, &r.Score,
		&r.Feedback, &r.SubmittedAt, &r.GradedAt, &r.GradedBy, &analytics, &r.Revision)
	if err != nil {
		return model.Result{}, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return model.Result{}, fmt.Errorf("decode answers of result %s: %w", r.ID, err)
	}
	if analytics.Valid && analytics.String != "" {
		r.Analytics = &model.Analytics{}
		if err := json.Unmarshal([]byte(analytics.String), r.Analytics); err != nil {
			return model.Result{}, fmt.Errorf("decode analytics of result %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func encodeAnalytics(a *model.Analytics) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
