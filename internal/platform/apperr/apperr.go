package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model (code + reason) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInternal        Code = "INTERNAL"
)

// APIError は core から呼び出し側へ返す型付きエラー。
// Reason は失敗の種類（BREAK_ALREADY_OPEN など）を機械可読で表す。
type APIError struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s/%s: %s", e.Code, e.Reason, e.Message)
}

// Is matches on Code and Reason so sentinels work with errors.Is
// regardless of the message text.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason
}

// WithMessage returns a copy carrying a more specific message.
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	return &APIError{Code: e.Code, Reason: e.Reason, Message: fmt.Sprintf(format, args...)}
}

func Invalid(reason, msg string) *APIError {
	return &APIError{Code: CodeInvalidArgument, Reason: reason, Message: msg}
}
func NotFound(reason, msg string) *APIError {
	return &APIError{Code: CodeNotFound, Reason: reason, Message: msg}
}
func Conflict(reason, msg string) *APIError {
	return &APIError{Code: CodeConflict, Reason: reason, Message: msg}
}
func Forbidden(reason, msg string) *APIError {
	return &APIError{Code: CodeForbidden, Reason: reason, Message: msg}
}
func Internal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// ErrForbidden は存在/非存在を漏らさないための共通エラー
var ErrForbidden = Forbidden("ACCESS_DENIED", "access denied")

func CodeOf(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
