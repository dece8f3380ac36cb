package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Queue Validation (QUE) ----

func ErrInvalidAmount() *AppError {
	return New("QUE_001", "Amount must be positive", http.StatusBadRequest)
}

func ErrEmptyCounterparty() *AppError {
	return New("QUE_002", "Counterparty is required", http.StatusBadRequest)
}

func ErrEntryNotFound(id string) *AppError {
	return New("QUE_003", fmt.Sprintf("Queue entry %s not found", id), http.StatusNotFound)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("QUE_004", fmt.Sprintf("Illegal status transition %s -> %s", from, to), http.StatusConflict)
}

// Validation returns a QUE_001-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("QUE_001", message, http.StatusBadRequest)
}

// ---- Payment Token (TOK) ----

func ErrTokenMalformed(reason string) *AppError {
	return New("TOK_001", fmt.Sprintf("Malformed payment token: %s", reason), http.StatusBadRequest)
}

func ErrTokenExpired() *AppError {
	return New("TOK_002", "Payment token has expired", http.StatusGone)
}

// ---- Connectivity & Transport (NET) ----

func ErrOffline() *AppError {
	return New("NET_001", "Device is offline", http.StatusServiceUnavailable)
}

func ErrLedgerRejected(err error) *AppError {
	return Wrap("NET_002", "Remote ledger rejected the payment", http.StatusBadGateway, err)
}

func ErrSubmitTimeout(err error) *AppError {
	return Wrap("NET_003", "Payment submission timed out", http.StatusGatewayTimeout, err)
}

func ErrLedgerUnreachable(err error) *AppError {
	return Wrap("NET_004", "Remote ledger is unreachable", http.StatusBadGateway, err)
}

// ---- Persistence (STO) ----

func ErrPersistence(err error) *AppError {
	return Wrap("STO_001", "Durable store read/write failed", http.StatusInternalServerError, err)
}

// ---- System (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
