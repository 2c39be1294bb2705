package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// GetImportedFileHash returns the content hash recorded for path, or an
// empty string when the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`,
		path, hash, time.Now(),
	)
	return err
}

// ImportReport describes the outcome of one import.
type ImportReport struct {
	Name     string   `json:"name"`
	Hash     string   `json:"hash"`
	Skipped  bool     `json:"skipped"`
	Reason   string   `json:"reason,omitempty"`
	Imported []string `json:"imported,omitempty"`
}

// ImportAssessments loads assessments from a JSON document holding either
// one assessment or an array of them. name identifies the source for
// duplicate detection: unchanged content is skipped, and changed content is
// skipped unless force is set, in which case assessments with a known id
// are replaced.
func (s *Store) ImportAssessments(ctx context.Context, name string, data []byte, createdBy string, force bool) (ImportReport, error) {
	sum := sha256.Sum256(data)
	rep := ImportReport{Name: name, Hash: hex.EncodeToString(sum[:])}

	stored, err := s.GetImportedFileHash(ctx, name)
	if err != nil {
		return rep, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == rep.Hash {
		slog.Info("assessment file unchanged, skipping", "name", name)
		rep.Skipped, rep.Reason = true, "unchanged"
		return rep, nil
	}
	if stored != "" && !force {
		slog.Warn("assessment file changed since last import, skipping to keep existing results consistent",
			"name", name)
		rep.Skipped, rep.Reason = true, "changed"
		return rep, nil
	}

	imports, err := decodeImports(data)
	if err != nil {
		return rep, fmt.Errorf("%w: parse %s: %v", ErrInvalid, name, err)
	}

	for _, ai := range imports {
		a := model.Assessment{
			ID:          ai.ID,
			Title:       ai.Title,
			Description: ai.Description,
			TimeLimit:   ai.TimeLimit,
			ScoringMode: ai.ScoringMode,
			CreatedBy:   ai.CreatedBy,
			Archived:    ai.Archived,
			Questions:   ai.Questions,
		}
		if a.CreatedBy == "" {
			a.CreatedBy = createdBy
		}

		if a.ID != "" {
			if _, err := s.GetAssessment(ctx, a.ID); err == nil {
				updated, err := s.UpdateAssessment(ctx, a)
				if err != nil {
					return rep, fmt.Errorf("update assessment %s from %s: %w", a.ID, name, err)
				}
				rep.Imported = append(rep.Imported, updated.ID)
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return rep, err
			}
		}
		created, err := s.CreateAssessment(ctx, a)
		if err != nil {
			return rep, fmt.Errorf("insert assessment from %s: %w", name, err)
		}
		rep.Imported = append(rep.Imported, created.ID)
	}

	if err := s.SetImportedFileHash(ctx, name, rep.Hash); err != nil {
		return rep, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported assessments", "name", name, "count", len(rep.Imported))
	return rep, nil
}

func decodeImports(data []byte) ([]model.AssessmentImport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []model.AssessmentImport
		err := json.Unmarshal(trimmed, &list)
		return list, err
	}
	var one model.AssessmentImport
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []model.AssessmentImport{one}, nil
}
