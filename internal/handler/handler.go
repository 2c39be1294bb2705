package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/review"
	"github.com/pavelanni/assessor/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	repo   store.Repository
	review *review.Service
}

// New creates a Handler. Assessment and result reads go through repo, which
// may wrap s; users, sessions and share links use s directly.
func New(s *store.Store, repo store.Repository, svc *review.Service) *Handler {
	if repo == nil {
		repo = s
	}
	return &Handler{store: s, repo: repo, review: svc}
}

var (
	staff     = []model.UserRole{model.UserRoleAdmin, model.UserRoleReviewer, model.UserRoleCreator}
	graders   = []model.UserRole{model.UserRoleAdmin, model.UserRoleReviewer}
	authors   = []model.UserRole{model.UserRoleAdmin, model.UserRoleCreator}
	adminOnly = []model.UserRole{model.UserRoleAdmin}
)

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Get("/assessments/{assessmentID}/share/{token}", h.handleOpenShareLink)
		r.With(h.optionalAuth).Post("/assessments/{assessmentID}/results", h.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)

			r.Get("/assessments", h.handleListAssessments)
			r.Get("/assessments/{assessmentID}", h.handleGetAssessment)
			r.With(requireRole(authors...)).Post("/assessments", h.handleCreateAssessment)
			r.With(requireRole(authors...)).Put("/assessments/{assessmentID}", h.handleUpdateAssessment)
			r.With(requireRole(adminOnly...)).Delete("/assessments/{assessmentID}", h.handleDeleteAssessment)
			r.With(requireRole(authors...)).Post("/assessments/{assessmentID}/archive", h.handleArchiveAssessment)
			r.With(requireRole(staff...)).Get("/assessments/{assessmentID}/export.csv", h.handleExportAssessment)
			r.With(requireRole(authors...)).Post("/assessments/{assessmentID}/share", h.handleCreateShareLink)
			r.With(requireRole(authors...)).Get("/assessments/{assessmentID}/share", h.handleListShareLinks)
			r.With(requireRole(authors...)).Delete("/assessments/{assessmentID}/share/{linkID}", h.handleDeactivateShareLink)

			r.With(requireRole(graders...)).Get("/assessments/{assessmentID}/results", h.handleListResults)
			r.With(requireRole(graders...)).Get("/assessments/{assessmentID}/results/export.csv", h.handleExportResults)

			r.Get("/results/{resultID}", h.handleGetResult)
			r.With(requireRole(staff...)).Get("/results/{resultID}/scores", h.handleScores)
			r.With(requireRole(graders...)).Post("/results/{resultID}/grade", h.handleGrade)
			r.With(requireRole(graders...)).Post("/results/{resultID}/analysis", h.handleAnalyze)
			r.With(requireRole(graders...)).Delete("/results/{resultID}/analysis", h.handleCancelAnalysis)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(adminOnly...))
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
				r.Post("/assessments/upload", h.handleUploadAssessments)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return badRequest(err)
	}
	return nil
}

func currentUser(r *http.Request) *model.User {
	return model.UserFromContext(r.Context())
}

func userKey(u *model.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func isStaff(u *model.User) bool {
	return u != nil && hasRole(u, staff)
}

func hasRole(u *model.User, roles []model.UserRole) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// redact hides option correctness and weights from test-takers.
func redact(a model.Assessment) model.Assessment {
	qs := make([]model.Question, len(a.Questions))
	for i, q := range a.Questions {
		if len(q.Options) > 0 {
			opts := make([]model.Option, len(q.Options))
			for j, o := range q.Options {
				opts[j] = model.Option{ID: o.ID, Text: o.Text}
			}
			q.Options = opts
		}
		qs[i] = q
	}
	a.Questions = qs
	return a
}
