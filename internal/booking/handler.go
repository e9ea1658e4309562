package booking

import (
	"encoding/json"
	"net/http"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/httpserver"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Handler 预订 HTTP 处理器。身份一律取自鉴权中间件写入的 ctx。
type Handler struct {
	svc *Service
	log logger.Logger
}

func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Create POST /bookings
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		httpserver.WriteError(w, h.log, apperr.Unauthorized("missing auth context"))
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid request body"))
		return
	}
	if err := validate.Struct(in); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("missing booking data"))
		return
	}

	b, err := h.svc.Create(r.Context(), ai.ID, in)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":    "Booking created successfully",
		"booking_id": b.ID,
	})
}

// Cancel DELETE /bookings/{id}
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		httpserver.WriteError(w, h.log, apperr.Unauthorized("missing auth context"))
		return
	}

	b, err := h.svc.Cancel(r.Context(), ai.ID, chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Booking cancelled",
		"bookingId": b.ID,
	})
}

// ListMine GET /bookings/mybookings
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		httpserver.WriteError(w, h.log, apperr.Unauthorized("missing auth context"))
		return
	}

	rows, err := h.svc.ListMine(r.Context(), ai.ID)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, rows)
}

// ListAll GET /bookings/admin
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListAll(r.Context())
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, rows)
}
