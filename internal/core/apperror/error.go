// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule          = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientAvailable = "INSUFFICIENT_AVAILABLE"
	CodeNegativeStock         = "NEGATIVE_STOCK"
	CodeInvalidRelease        = "INVALID_RELEASE"

	// Frozen inventory scope (423) - transient, retry after the count completes
	CodeInventoryFrozen = "INVENTORY_FROZEN"

	// Concurrency (409) - transient, safe to retry with backoff
	CodeContention             = "CONTENTION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Ledger invariant broken (500) - fatal, requires manual reconciliation
	CodeInconsistentState = "INCONSISTENT_STATE"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientAvailable creates a reservation shortage error.
// Carries requested vs available so the caller can act without a second read.
func NewInsufficientAvailable(productID, locationID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientAvailable,
		Message:    "Insufficient available stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":  productID,
			"location_id": locationID,
			"requested":   requested,
			"available":   available,
		},
	}
}

// NewNegativeStock creates an error for a movement that would drive on-hand below zero.
func NewNegativeStock(productID, locationID string, attempted, onHand float64) *AppError {
	return &AppError{
		Code:       CodeNegativeStock,
		Message:    "Movement would result in negative stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":  productID,
			"location_id": locationID,
			"attempted":   attempted,
			"on_hand":     onHand,
		},
	}
}

// NewInvalidRelease signals a release exceeding the reserved quantity (caller bug).
func NewInvalidRelease(productID, locationID string, requested, reserved float64) *AppError {
	return &AppError{
		Code:       CodeInvalidRelease,
		Message:    "Release exceeds reserved quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id":  productID,
			"location_id": locationID,
			"requested":   requested,
			"reserved":    reserved,
		},
	}
}

// NewInventoryFrozen signals that the (product, location) scope is under an
// active physical count with inventory freeze. Transient: retry after the
// opname completes.
func NewInventoryFrozen(productID, locationID string, opnameID any) *AppError {
	return &AppError{
		Code:       CodeInventoryFrozen,
		Message:    "Inventory is frozen for physical counting",
		HTTPStatus: http.StatusLocked,
		Details: map[string]any{
			"product_id":  productID,
			"location_id": locationID,
			"opname_id":   opnameID,
		},
	}
}

// NewContention creates a lock-contention error. Transient, retry with backoff.
func NewContention(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeContention,
		Message:    "Resource is locked by a concurrent operation. Retry shortly.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInconsistentState signals a broken ledger invariant. Fatal: writes to the
// affected row must stop pending manual reconciliation; never auto-corrected.
func NewInconsistentState(productID, locationID string, stored, replayed float64) *AppError {
	return &AppError{
		Code:       CodeInconsistentState,
		Message:    "Ledger balance invariant violated",
		HTTPStatus: http.StatusInternalServerError,
		Details: map[string]any{
			"product_id":  productID,
			"location_id": locationID,
			"stored":      stored,
			"replayed":    replayed,
		},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsContention checks if error is CodeContention (retryable).
func IsContention(err error) bool {
	return hasCode(err, CodeContention)
}

// IsInventoryFrozen checks if error is CodeInventoryFrozen.
func IsInventoryFrozen(err error) bool {
	return hasCode(err, CodeInventoryFrozen)
}

// IsInconsistentState checks if error is CodeInconsistentState.
func IsInconsistentState(err error) bool {
	return hasCode(err, CodeInconsistentState)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return hasCode(err, CodeConcurrentModification)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
