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

// CreateAssessment stores a new assessment with its questions. Missing
// assessment, question and option ids are generated.
func (s *Store) CreateAssessment(ctx context.Context, a model.Assessment) (model.Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if err := normalizeAssessment(&a); err != nil {
		return model.Assessment{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assessment{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (id, title, description, time_limit, scoring_mode, created_at, created_by, archived, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.TimeLimit, a.ScoringMode, a.CreatedAt, a.CreatedBy, a.Archived, a.LastModified,
	)
	if err != nil {
		slog.Error("failed to create assessment", "id", a.ID, "error", err)
		return model.Assessment{}, err
	}
	if err := insertQuestions(ctx, tx, a.ID, a.Questions); err != nil {
		return model.Assessment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Assessment{}, err
	}
	slog.Info("created assessment", "id", a.ID, "title", a.Title, "questions", len(a.Questions))
	return a, nil
}

// UpdateAssessment replaces an assessment's fields and questions and stamps
// its last-modified time. Existing results are kept.
func (s *Store) UpdateAssessment(ctx context.Context, a model.Assessment) (model.Assessment, error) {
	if err := normalizeAssessment(&a); err != nil {
		return model.Assessment{}, err
	}
	now := time.Now()
	a.LastModified = &now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assessment{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE assessments SET title = ?, description = ?, time_limit = ?, scoring_mode = ?, archived = ?, last_modified = ?
		 WHERE id = ?`,
		a.Title, a.Description, a.TimeLimit, a.ScoringMode, a.Archived, a.LastModified, a.ID,
	)
	if err != nil {
		return model.Assessment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Assessment{}, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE assessment_id = ?`, a.ID); err != nil {
		return model.Assessment{}, err
	}
	if err := insertQuestions(ctx, tx, a.ID, a.Questions); err != nil {
		return model.Assessment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Assessment{}, err
	}
	slog.Info("updated assessment", "id", a.ID)
	return s.GetAssessment(ctx, a.ID)
}

// DeleteAssessment removes an assessment together with its questions,
// results and share links.
func (s *Store) DeleteAssessment(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM results WHERE assessment_id = ?`,
		`DELETE FROM share_links WHERE assessment_id = ?`,
		`DELETE FROM questions WHERE assessment_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("deleted assessment", "id", id)
	return nil
}

// SetAssessmentArchived sets the archived flag.
func (s *Store) SetAssessmentArchived(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET archived = ?, last_modified = ? WHERE id = ?`, archived, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("set assessment archived", "id", id, "archived", archived)
	return nil
}

// GetAssessment returns an assessment with its questions in order.
func (s *Store) GetAssessment(ctx context.Context, id string) (model.Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, time_limit, scoring_mode, created_at, created_by, archived, last_modified
		 FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err != nil {
		return model.Assessment{}, notFound(err)
	}
	if a.Questions, err = s.listQuestions(ctx, id); err != nil {
		return model.Assessment{}, err
	}
	return a, nil
}

// ListAssessments returns assessments ordered by creation time. Archived
// assessments are skipped unless includeArchived is set.
func (s *Store) ListAssessments(ctx context.Context, includeArchived bool) ([]model.Assessment, error) {
	query := `SELECT id, title, description, time_limit, scoring_mode, created_at, created_by, archived, last_modified
		FROM assessments`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	var list []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].Questions, err = s.listQuestions(ctx, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// AssessmentCount returns the number of stored assessments.
func (s *Store) AssessmentCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&count)
	return count, err
}

func scanAssessment(sc scanner) (model.Assessment, error) {
	var a model.Assessment
	err := sc.Scan(&a.ID, &a.Title, &a.Description, &a.TimeLimit, &a.ScoringMode,
		&a.CreatedAt, &a.CreatedBy, &a.Archived, &a.LastModified)
	return a, err
}

func (s *Store) listQuestions(ctx context.Context, assessmentID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, text, options, max_score, category FROM questions
		 WHERE assessment_id = ? ORDER BY position`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options string
		if err := rows.Scan(&q.ID, &q.Type, &q.Text, &options, &q.MaxScore, &q.Category); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func insertQuestions(ctx context.Context, tx *sql.Tx, assessmentID string, questions []model.Question) error {
	for i, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (assessment_id, id, position, type, text, options, max_score, category)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			assessmentID, q.ID, i, q.Type, q.Text, string(options), q.MaxScore, q.Category,
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	return nil
}

// normalizeAssessment fills defaults and rejects structurally invalid
// assessments.
func normalizeAssessment(a *model.Assessment) error {
	if a.Title == "" {
		return fmt.Errorf("%w: assessment title is required", ErrInvalid)
	}
	switch a.ScoringMode {
	case "":
		a.ScoringMode = model.ScoringWeighted
	case model.ScoringWeighted, model.ScoringBinary:
	default:
		return fmt.Errorf("%w: unknown scoring mode %q", ErrInvalid, a.ScoringMode)
	}
	if a.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalid)
	}

	seen := make(map[string]bool, len(a.Questions))
	for i := range a.Questions {
		q := &a.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalid, q.ID)
		}
		seen[q.ID] = true
		if !q.Type.Valid() {
			return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalid, q.ID, q.Type)
		}
		if q.MaxScore < 0 {
			return fmt.Errorf("%w: question %s has negative max score", ErrInvalid, q.ID)
		}
		if q.Type != model.TypeMultipleChoice {
			q.Options = nil
			continue
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %s has no options", ErrInvalid, q.ID)
		}
		optSeen := make(map[string]bool, len(q.Options))
		for j := range q.Options {
			o := &q.Options[j]
			if o.ID == "" {
				o.ID = uuid.NewString()
			}
			if optSeen[o.ID] {
				return fmt.Errorf("%w: question %s has duplicate option id %s", ErrInvalid, q.ID, o.ID)
			}
			optSeen[o.ID] = true
		}
	}
	return nil
}
