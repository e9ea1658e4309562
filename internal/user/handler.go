package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/httpserver"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Handler 用户 HTTP 处理器。
type Handler struct {
	svc *Service
	log logger.Logger
}

func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register POST /users/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}
	if err := validate.Struct(in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("username, email and password are required"))
		return
	}

	p, err := h.svc.Register(r.Context(), in)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    p,
	})
}

// Login POST /users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}
	if err := validate.Struct(in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("email and password are required"))
		return
	}

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, res)
}

// Me GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		httpserver.WriteError(w, h.log, apperr.Unauthorized("missing auth context"))
		return
	}
	p, err := h.svc.GetProfile(r.Context(), ai.ID)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, p)
}

// List GET /users?page=&page_size=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	size := queryInt(r, "page_size", 20)
	res, err := h.svc.List(r.Context(), page, size)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, res)
}

// Update PUT /users/{id} — 本人或管理员。
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		httpserver.WriteError(w, h.log, apperr.Unauthorized("missing auth context"))
		return
	}
	id := chi.URLParam(r, "id")
	if ai.ID != id && !ai.HasRole("admin") {
		httpserver.WriteError(w, h.log, apperr.Forbidden("insufficient permissions"))
		return
	}

	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}
	p, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, p)
}

// Delete DELETE /users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User deleted",
	})
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
