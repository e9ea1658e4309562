package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误码（对外暴露在响应体中，内部细节只进日志）。
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error 业务错误：携带对外错误码、消息与 HTTP 状态码。
// 内部原因（Err）只用于日志，不会出现在响应里。
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation 参数缺失/非法（含非正的租期天数）→ 400
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NotFound 资源不存在 → 404
func NotFound(resource string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict 车辆已被占用等状态冲突 → 409
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// Unauthorized 缺失/非法 token → 401
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden 角色不足或非本人操作 → 403
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// Internal 存储/依赖故障 → 500，message 面向客户端，err 只进日志。
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// CancelForbidden 取消预订时 “不存在” 与 “非本人” 刻意返回同一个错误，
// 避免通过响应区分预订是否存在。
func CancelForbidden() *Error {
	return Forbidden("unauthorized or booking not found")
}

// From 将任意 error 规整为 *Error；未知错误一律按 Internal 处理。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal error", err)
}
