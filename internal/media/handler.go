package media

import (
	"net/http"
	"strings"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/httpserver"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/go-chi/chi/v5"
)

// Handler 对外提供图片下载。key 即上传时生成的对象名。
type Handler struct {
	store ImageStore
	log   logger.Logger
}

func NewHandler(store ImageStore, log logger.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Serve GET /uploads/{key}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	// 对象 key 为 uuid+扩展名，不含路径分隔符
	if key == "" || strings.ContainsAny(key, "/\\") {
		httpserver.WriteError(w, h.log, apperr.Validation("invalid image key"))
		return
	}

	data, contentType, err := h.store.Download(r.Context(), key)
	if err != nil {
		httpserver.WriteError(w, h.log, apperr.NotFound("image"))
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
