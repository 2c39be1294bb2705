package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/export"
	"github.com/pavelanni/assessor/internal/model"
)

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	includeArchived := isStaff(user) && r.URL.Query().Get("archived") == "1"

	list, err := h.repo.ListAssessments(r.Context(), includeArchived)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !isStaff(user) {
		for i := range list {
			list[i] = redact(list[i])
		}
	}
	if list == nil {
		list = []model.Assessment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetAssessment(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !isStaff(currentUser(r)) {
		a = redact(a)
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var a model.Assessment
	if err := decodeJSON(w, r, &a, false); err != nil {
		writeError(w, r, err)
		return
	}
	a.CreatedBy = currentUser(r).Username
	a.CreatedAt = time.Time{}
	a.LastModified = nil

	created, err := h.store.CreateAssessment(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	var a model.Assessment
	if err := decodeJSON(w, r, &a, false); err != nil {
		writeError(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "assessmentID")

	updated, err := h.store.UpdateAssessment(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteAssessment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAssessment(r.Context(), chi.URLParam(r, "assessmentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

func (h *Handler) handleArchiveAssessment(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	archived := true
	if req.Archived != nil {
		archived = *req.Archived
	}

	id := chi.URLParam(r, "assessmentID")
	if err := h.store.SetAssessmentArchived(r.Context(), id, archived); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "archived": archived})
}

func (h *Handler) handleExportAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetAssessment(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, export.Filename(a.Title, "assessment", "csv"), export.AssessmentTable(a))
}

func writeCSV(w http.ResponseWriter, filename string, t export.Table) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteCSV(w, t); err != nil {
		slog.Error("write CSV", "filename", filename, "error", err)
	}
}

type shareLinkRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) handleCreateShareLink(w http.ResponseWriter, r *http.Request) {
	var req shareLinkRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	link, err := h.store.CreateShareLink(r.Context(), chi.URLParam(r, "assessmentID"), currentUser(r).Username, req.ExpiresAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleListShareLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.store.ListShareLinks(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if links == nil {
		links = []model.ShareLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) handleDeactivateShareLink(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeactivateShareLink(r.Context(), chi.URLParam(r, "linkID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sharedAssessment struct {
	Link       model.ShareLink  `json:"link"`
	Assessment model.Assessment `json:"assessment"`
}

// handleOpenShareLink lets anyone holding a valid token see the assessment
// they were invited to.
func (h *Handler) handleOpenShareLink(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "assessmentID")
	link, err := h.store.ValidateShareLink(r.Context(), assessmentID, chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.repo.GetAssessment(r.Context(), assessmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sharedAssessment{Link: link, Assessment: redact(a)})
}
