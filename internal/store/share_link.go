package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/model"
)

// ErrShareLinkInvalid is returned for share links that are inactive or past
// their expiry.
var ErrShareLinkInvalid = errors.New("share link expired or inactive")

const shareLinkColumns = `id, assessment_id, token, expires_at, created_by, created_at, active`

// CreateShareLink issues a new active link for an assessment. A nil expiry
// never expires.
func (s *Store) CreateShareLink(ctx context.Context, assessmentID, createdBy string, expiresAt *time.Time) (model.ShareLink, error) {
	if _, err := s.GetAssessment(ctx, assessmentID); err != nil {
		return model.ShareLink{}, err
	}
	token, err := generateToken()
	if err != nil {
		return model.ShareLink{}, err
	}
	link := model.ShareLink{
		ID:           uuid.NewString(),
		AssessmentID: assessmentID,
		Token:        token,
		ExpiresAt:    expiresAt,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now(),
		Active:       true,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO share_links (`+shareLinkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.AssessmentID, link.Token, link.ExpiresAt, link.CreatedBy, link.CreatedAt, link.Active,
	)
	if err != nil {
		return model.ShareLink{}, err
	}
	slog.Info("created share link", "id", link.ID, "assessment_id", assessmentID)
	return link, nil
}

// ValidateShareLink returns the link for token if it belongs to the
// assessment, is active and has not expired.
func (s *Store) ValidateShareLink(ctx context.Context, assessmentID, token string) (model.ShareLink, error) {
	var l model.ShareLink
	err := s.db.QueryRowContext(ctx,
		`SELECT `+shareLinkColumns+` FROM share_links WHERE token = ? AND assessment_id = ?`, token, assessmentID,
	).Scan(&l.ID, &l.AssessmentID, &l.Token, &l.ExpiresAt, &l.CreatedBy, &l.CreatedAt, &l.Active)
	if err != nil {
		return model.ShareLink{}, notFound(err)
	}
	if !l.Active || (l.ExpiresAt != nil && time.Now().After(*l.ExpiresAt)) {
		return model.ShareLink{}, ErrShareLinkInvalid
	}
	return l, nil
}

// DeactivateShareLink turns a link off without deleting it.
func (s *Store) DeactivateShareLink(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE share_links SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListShareLinks returns the links of an assessment, newest first.
func (s *Store) ListShareLinks(ctx context.Context, assessmentID string) ([]model.ShareLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareLinkColumns+` FROM share_links WHERE assessment_id = ? ORDER BY created_at DESC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []model.ShareLink
	for rows.Next() {
		var l model.ShareLink
		if err := rows.Scan(&l.ID, &l.AssessmentID, &l.Token, &l.ExpiresAt, &l.CreatedBy, &l.CreatedAt, &l.Active); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
