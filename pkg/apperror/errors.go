package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"` // Client-visible context (e.g. existing receipt id)
	Err        error          `json:"-"`                 // Wrapped internal error (not exposed to client)
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

// WithDetail attaches a client-visible detail and returns the same error.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ErrBodyTooLarge is returned when a request body exceeds the configured cap.
func ErrBodyTooLarge(limit int64) *AppError {
	return New("VAL_002", "Request body too large", http.StatusRequestEntityTooLarge).
		WithDetail("max_bytes", limit)
}

// ---- Receipts (RCPT) ----

func ErrDuplicateReceipt(existingID string) *AppError {
	return New("RCPT_001", "Receipt already exists for this hash", http.StatusConflict).
		WithDetail("existing_receipt_id", existingID)
}

func ErrNotFound(entity string) *AppError {
	return New("RCPT_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Signing keys (KEY) ----

func ErrSigningKeyNotConfigured(err error) *AppError {
	return Wrap("KEY_001", "Signing key not configured", http.StatusServiceUnavailable, err)
}

func ErrSigningKeyInvalid(err error) *AppError {
	return Wrap("KEY_002", "Signing key material is invalid", http.StatusInternalServerError, err)
}

// ---- Anchoring (ANCHOR) ----

func ErrNothingQueued() *AppError {
	return New("ANCHOR_001", "No queued receipts", http.StatusBadRequest)
}

func ErrInvalidAnchorTransition(current string) *AppError {
	return New("ANCHOR_002", "Receipt cannot be queued from its current anchor status", http.StatusConflict).
		WithDetail("anchor_status", current)
}

func ErrBuildInProgress() *AppError {
	return New("ANCHOR_003", "A batch build is already in progress", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrAdminDisabled() *AppError {
	return New("AUTH_002", "Admin access is not configured", http.StatusServiceUnavailable)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded. Please retry shortly.", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
