package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/grading"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/review"
	"github.com/pavelanni/assessor/internal/store"
)

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unauthorized")
	errCredentials  = errors.New("invalid credentials")
	errForbidden    = errors.New("forbidden")
	errNoUpload     = errors.New("no file uploaded")
)

type requestError struct {
	err error
}

func (e *requestError) Error() string { return "bad request: " + e.err.Error() }
func (e *requestError) Unwrap() []error {
	return []error{errBadRequest, e.err}
}

func badRequest(err error) error {
	return &requestError{err: err}
}

type errorBody struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	QuestionIDs []string `json:"question_ids,omitempty"`
}

// writeError maps domain errors to HTTP responses with a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		incomplete *grading.IncompleteAnswersError
		qerr       *grading.QuestionError
	)

	status, body := http.StatusInternalServerError, errorBody{Error: "internal"}
	switch {
	case errors.As(err, &incomplete):
		status = http.StatusUnprocessableEntity
		body = errorBody{
			Error:       "incomplete_answers",
			Message:     appI18n.Tp(ctx, "ErrIncompleteAnswers", len(incomplete.QuestionIDs)),
			QuestionIDs: incomplete.QuestionIDs,
		}
	case errors.Is(err, grading.ErrQuestionNotFound), errors.Is(err, grading.ErrMalformedAnswer):
		status = http.StatusUnprocessableEntity
		msgID, code := "ErrMalformedAnswer", "malformed_answer"
		if errors.Is(err, grading.ErrQuestionNotFound) {
			msgID, code = "ErrQuestionNotFound", "question_not_found"
		}
		body = errorBody{Error: code}
		if errors.As(err, &qerr) {
			body.QuestionIDs = []string{qerr.QuestionID}
			body.Message = appI18n.Td(ctx, msgID, map[string]any{"QuestionID": qerr.QuestionID})
		} else {
			body.Message = appI18n.Td(ctx, msgID, map[string]any{"QuestionID": ""})
		}
	case errors.Is(err, errBadRequest):
		status, body = http.StatusBadRequest, errorBody{Error: "bad_request", Message: appI18n.T(ctx, "ErrInvalidRequest")}
	case errors.Is(err, errNoUpload):
		status, body = http.StatusBadRequest, errorBody{Error: "no_upload", Message: appI18n.T(ctx, "ErrUploadMissing")}
	case errors.Is(err, errCredentials):
		status, body = http.StatusUnauthorized, errorBody{Error: "invalid_credentials", Message: appI18n.T(ctx, "ErrInvalidCredentials")}
	case errors.Is(err, errUnauthorized):
		status, body = http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: appI18n.T(ctx, "ErrUnauthorized")}
	case errors.Is(err, errForbidden):
		status, body = http.StatusForbidden, errorBody{Error: "forbidden", Message: appI18n.T(ctx, "ErrForbidden")}
	case errors.Is(err, store.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Error: "not_found", Message: appI18n.T(ctx, "ErrNotFound")}
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusUnprocessableEntity
		body = errorBody{Error: "invalid_record", Message: appI18n.Td(ctx, "ErrInvalidRecord", map[string]any{"Detail": err.Error()})}
	case errors.Is(err, store.ErrShareLinkInvalid):
		status, body = http.StatusForbidden, errorBody{Error: "share_link_invalid", Message: appI18n.T(ctx, "ErrShareLinkInvalid")}
	case errors.Is(err, review.ErrInvalidGrade):
		status, body = http.StatusUnprocessableEntity, errorBody{Error: "invalid_grade", Message: appI18n.T(ctx, "ErrInvalidGrade")}
	case errors.Is(err, review.ErrAssessmentArchived):
		status, body = http.StatusConflict, errorBody{Error: "assessment_archived", Message: appI18n.T(ctx, "ErrAssessmentArchived")}
	case errors.Is(err, analysis.ErrInProgress):
		status, body = http.StatusConflict, errorBody{Error: "analysis_in_progress", Message: appI18n.T(ctx, "ErrAnalysisInProgress")}
	case errors.Is(err, review.ErrStaleAnalysis):
		status, body = http.StatusConflict, errorBody{Error: "analysis_stale", Message: appI18n.T(ctx, "ErrStaleAnalysis")}
	case errors.Is(err, analysis.ErrUnavailable):
		status, body = http.StatusServiceUnavailable, errorBody{Error: "analysis_unavailable", Message: appI18n.T(ctx, "ErrAnalysisUnavailable")}
	case errors.Is(err, context.Canceled):
		status, body = http.StatusConflict, errorBody{Error: "cancelled", Message: appI18n.T(ctx, "ErrAnalysisCancelled")}
	case errors.Is(err, context.DeadlineExceeded):
		status, body = http.StatusGatewayTimeout, errorBody{Error: "timeout", Message: appI18n.T(ctx, "ErrTimeout")}
	default:
		body.Message = appI18n.T(ctx, "ErrInternal")
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}
