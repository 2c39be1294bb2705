package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

const maxUploadBytes = 10 << 20

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, badRequest(errors.New("username and password required")))
		return
	}
	if req.Role == "" {
		req.Role = model.UserRoleTestTaker
	}
	if !model.ValidUserRole(req.Role) {
		writeError(w, r, badRequest(errors.New("unknown role "+string(req.Role))))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	user := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	id, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type uploadResponse struct {
	store.ImportReport
	Message string `json:"message"`
}

func (h *Handler) handleUploadAssessments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	file, header, err := r.FormFile("assessments_file")
	if err != nil {
		writeError(w, r, errNoUpload)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	force := r.FormValue("force") == "true"
	rep, err := h.store.ImportAssessments(r.Context(), header.Filename, data, currentUser(r).Username, force)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := uploadResponse{ImportReport: rep}
	if rep.Skipped {
		resp.Message = appI18n.Td(r.Context(), "AssessmentsSkipped", map[string]any{"Name": rep.Name, "Reason": rep.Reason})
	} else {
		resp.Message = appI18n.Tp(r.Context(), "AssessmentsImported", len(rep.Imported))
	}
	writeJSON(w, http.StatusOK, resp)
}
