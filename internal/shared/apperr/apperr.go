// Package apperr 定义业务错误分类及其 HTTP 状态码映射
//
// 服务层返回 *Error，handler 统一通过 HTTPStatus 转换为响应。
// Message 直接展示给调用方；Err 仅记录日志。
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// Kind 错误类别
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindPaymentRequired
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindValidation:      "validation",
	KindUnauthorized:    "unauthorized",
	KindPaymentRequired: "payment_required",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindConflict:        "conflict",
	KindRateLimited:     "rate_limited",
	KindUnavailable:     "unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus 类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func PaymentRequired(format string, args ...any) *Error {
	return newError(KindPaymentRequired, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return newError(KindRateLimited, format, args...)
}

// Wrap 附带底层原因的错误
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal 内部错误，对外只暴露通用信息
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// Unavailable 依赖不可用
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Service temporarily unavailable", Err: err}
}

// FromStorage 将存储层错误映射为业务错误
//
// entity 用于 NotFound 信息，如 "Associate" → "Associate not found"。
// 已经是 *Error 的原样返回。
func FromStorage(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Wrap(KindNotFound, err, entity+" not found")
	case errors.Is(err, storage.ErrDuplicate):
		return Wrap(KindConflict, err, entity+" already exists")
	case errors.Is(err, storage.ErrConflict), errors.Is(err, model.ErrInvalidTransition):
		return Wrap(KindConflict, err, transitionMessage(err, entity))
	default:
		return Unavailable(err)
	}
}

func transitionMessage(err error, entity string) string {
	var te *model.TransitionError
	if errors.As(err, &te) {
		return fmt.Sprintf("Cannot change %s status from %s to %s", te.Entity, te.From, te.To)
	}
	return entity + " was modified concurrently or is in a state that does not allow this operation"
}

// KindOf 返回错误类别，非 *Error 视为内部错误
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf 返回错误对应的 HTTP 状态码
func StatusOf(err error) int {
	return KindOf(err).HTTPStatus()
}

// MessageOf 返回对外展示的错误信息
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
