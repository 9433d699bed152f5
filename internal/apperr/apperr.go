// Package apperr - типизированные ошибки финансового ядра.
// Код ошибки говорит вызывающему, можно ли повторить операцию:
// CONCURRENCY_CONFLICT и STORAGE - можно (с чистого чтения),
// остальные - нет, пока не исправлен сам запрос.
package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE"
	CodeValidation          = "VALIDATION"
	CodeNotFound            = "NOT_FOUND"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeStorage             = "STORAGE"
)

// Error - структурная ошибка ядра. Сравнивать по Code через errors.As.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func AccountNotFound(code string) *Error {
	return &Error{Code: CodeAccountNotFound, Message: fmt.Sprintf("ledger account %q not found for organization", code)}
}

func InvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Conflict(msg string, err error) *Error {
	return &Error{Code: CodeConcurrencyConflict, Message: msg, Retryable: true, Err: err}
}

func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Message: "storage failure", Retryable: true, Err: err}
}

// CodeOf возвращает код ошибки или пустую строку, если ошибка не наша.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable сообщает, имеет ли смысл повторять операцию целиком.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
