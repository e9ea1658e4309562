package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
)

// WriteJSON 输出 JSON 响应。
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// errorBody 错误响应体。内部原因不下发，只记日志。
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// WriteError 将业务错误映射为 HTTP 响应；5xx 同时记录内部原因。
func WriteError(w http.ResponseWriter, log logger.Logger, err error) {
	ae := apperr.From(err)
	if ae.HTTPStatus >= http.StatusInternalServerError && log != nil {
		log.WithField("error", ae.Error()).Error("request failed")
	}
	WriteJSON(w, ae.HTTPStatus, errorBody{Code: ae.Code, Error: ae.Message})
}
