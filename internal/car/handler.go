package car

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/httpserver"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/SmartLinkDrive/CarRental/internal/media"
	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 10 << 20 // 单张图片上限 10MB

// Handler 车辆 HTTP 处理器。
type Handler struct {
	svc    *Service
	images media.ImageStore
	log    logger.Logger
}

func NewHandler(svc *Service, images media.ImageStore, log logger.Logger) *Handler {
	return &Handler{svc: svc, images: images, log: log}
}

// ListAll GET /cars
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	cars, err := h.svc.ListAll(r.Context())
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, cars)
}

// ListAvailable GET /cars/available
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	cars, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, cars)
}

// Refresh GET /cars/refresh-availability
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Refresh(r.Context())
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, result)
}

// GetByID GET /cars/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, c)
}

// Add POST /cars/addCar（multipart，图片必填）
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid multipart form"))
		return
	}

	imageURL, err := h.saveImage(r)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	if imageURL == "" {
		httpserver.WriteError(w, h.log, apperr.Validation("image is required"))
		return
	}

	price, err := parsePrice(r.FormValue("price_per_day"))
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}

	c, err := h.svc.Add(r.Context(), AddCarInput{
		Brand:       r.FormValue("brand"),
		Model:       r.FormValue("model"),
		Category:    r.FormValue("category"),
		Info:        r.FormValue("info"),
		PricePerDay: price,
		ImageURL:    imageURL,
	})
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, c)
}

// Edit PUT /cars/{id}（表单字段，图片可选）
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			httpserver.WriteError(w, h.log, apperr.Validation("invalid multipart form"))
			return
		}
	} else if err := r.ParseForm(); err != nil {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid form"))
		return
	}

	imageURL, err := h.saveImage(r)
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}

	price, err := parsePrice(r.FormValue("price_per_day"))
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	available := parseBool(r.FormValue("available"))

	c, err := h.svc.Edit(r.Context(), chi.URLParam(r, "id"), EditCarInput{
		Brand:       r.FormValue("brand"),
		Model:       r.FormValue("model"),
		Category:    r.FormValue("category"),
		Info:        r.FormValue("info"),
		PricePerDay: price,
		ImageURL:    imageURL,
		Available:   available,
	})
	if err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"message": "Car updated", "car": c})
}

// Delete DELETE /cars/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Remove(r.Context(), id); err != nil {
		httpserver.WriteError(w, h.log, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"message": "Car deleted", "id": id})
}

// saveImage 读取表单里的 image 文件并写入对象存储；
// 未携带文件时返回空串（由调用方决定是否必填）。
func (h *Handler) saveImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return "", nil
	}
	if err == multipart.ErrMessageTooLarge {
		return "", apperr.Validation("image too large")
	}
	if err != nil {
		return "", apperr.Validation("invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return "", apperr.Internal("failed to read image", err)
	}

	contentType := header.Header.Get("Content-Type")
	key, err := h.images.Upload(r.Context(), header.Filename, data, contentType)
	if err != nil {
		return "", apperr.Internal("failed to store image", err)
	}
	return "/uploads/" + key, nil
}

func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.Validation("price_per_day required")
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return 0, apperr.Validation("price_per_day must be a positive number")
	}
	return price, nil
}

func parseBool(raw string) bool {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
