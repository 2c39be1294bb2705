package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/export"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/review"
)

type submitRequest struct {
	Answers []model.Answer `json:"answers"`
	// Share link submissions carry the taker's identity in the body.
	ShareToken string `json:"share_token,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	assessmentID := chi.URLParam(r, "assessmentID")

	var taker review.Taker
	if user := currentUser(r); user != nil {
		taker = review.Taker{UserID: userKey(user), Name: user.DisplayName, Email: user.Email}
	} else {
		if req.ShareToken == "" {
			writeError(w, r, errUnauthorized)
			return
		}
		if _, err := h.store.ValidateShareLink(r.Context(), assessmentID, req.ShareToken); err != nil {
			writeError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, r, badRequest(errors.New("name is required")))
			return
		}
		taker = review.Taker{Name: req.Name, Email: req.Email}
	}

	result, err := h.review.Submit(r.Context(), assessmentID, taker, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type resultView struct {
	model.Result
	Status      model.ResultStatus `json:"status"`
	StatusLabel string             `json:"status_label"`
}

func newResultView(r *http.Request, res model.Result) resultView {
	status := res.Status()
	return resultView{
		Result:      res,
		Status:      status,
		StatusLabel: appI18n.Label(r.Context(), "Status", string(status)),
	}
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "assessmentID")
	if _, err := h.repo.GetAssessment(r.Context(), assessmentID); err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.repo.ListResultsByAssessment(r.Context(), assessmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]resultView, 0, len(results))
	for _, res := range results {
		views = append(views, newResultView(r, res))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetAssessment(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.repo.ListResultsByAssessment(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := export.BuildResultsExport(a, results, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, export.Filename(a.Title, "results", "csv"), export.ResultsTable(e))
}

// handleGetResult serves staff any result and test-takers only their own.
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.repo.GetResult(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	if !isStaff(user) && res.UserID != userKey(user) {
		writeError(w, r, errForbidden)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(r, res))
}

type scoresResponse struct {
	review.Scorecard
	Status      model.ResultStatus `json:"status"`
	LevelLabel  string             `json:"level_label"`
	StatusLabel string             `json:"status_label"`
}

// parseOverrides reads repeated override=questionID:score parameters.
func parseOverrides(r *http.Request) (map[string]float64, error) {
	values := r.URL.Query()["override"]
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(values))
	for _, v := range values {
		id, raw, ok := strings.Cut(v, ":")
		if !ok || id == "" {
			return nil, badRequest(errors.New("override must be questionID:score"))
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, badRequest(err)
		}
		out[id] = score
	}
	return out, nil
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	overrides, err := parseOverrides(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := h.review.Scores(r.Context(), chi.URLParam(r, "resultID"), overrides)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := card.Result.Status()
	writeJSON(w, http.StatusOK, scoresResponse{
		Scorecard:   card,
		Status:      status,
		LevelLabel:  appI18n.Label(r.Context(), "Level", string(card.Summary.Level)),
		StatusLabel: appI18n.Label(r.Context(), "Status", string(status)),
	})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var in review.GradeInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.review.Grade(r.Context(), chi.URLParam(r, "resultID"), in, currentUser(r).Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(r, res))
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var settings analysis.Settings
	if err := decodeJSON(w, r, &settings, true); err != nil {
		writeError(w, r, err)
		return
	}
	if settings.Variant != "" && !prompts.IsValidVariant(string(settings.Variant)) {
		writeError(w, r, badRequest(errors.New("unknown prompt variant "+string(settings.Variant))))
		return
	}
	if settings.Temperature < 0 || settings.Temperature > 2 {
		writeError(w, r, badRequest(errors.New("temperature must be within [0, 2]")))
		return
	}

	resp, err := h.review.Analyze(r.Context(), chi.URLParam(r, "resultID"), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	cancelled := h.review.CancelAnalysis(chi.URLParam(r, "resultID"))
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}
