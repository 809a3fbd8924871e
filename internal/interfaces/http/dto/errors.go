package dto

import "net/http"

// Transport error codes. Domain errors keep their own codes
// (NOT_FOUND, EXCESS_BLOCKED, ...) and are mapped below.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidJSON is used when the body is not valid JSON
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the operator token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the operator token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// shared domain errors
	"NOT_FOUND":     http.StatusNotFound,
	"INVALID_INPUT": http.StatusBadRequest,
	"UNAUTHORIZED":  http.StatusUnauthorized,
	"FORBIDDEN":     http.StatusForbidden,
	"INVALID_STATE": http.StatusUnprocessableEntity,
	"UNAVAILABLE":   http.StatusBadGateway,

	// dispensing errors
	"INVALID_ALLOCATION_KEY":  http.StatusBadRequest,
	"UNKNOWN_REQUIREMENT":     http.StatusNotFound,
	"INVALID_LOT":             http.StatusUnprocessableEntity,
	"NO_RESPONSIBLE_OPERATOR": http.StatusUnprocessableEntity,
	"CONFIRMATION_MISMATCH":   http.StatusUnprocessableEntity,
	"EXCESS_BLOCKED":          http.StatusUnprocessableEntity,
	"NOTHING_TO_SUBMIT":       http.StatusUnprocessableEntity,
	"NO_ORDER_SELECTED":       http.StatusConflict,
	"REVIEW_NOT_STARTED":      http.StatusConflict,
	"ORDER_SUPERSEDED":        http.StatusConflict,
	"DUPLICATE_SUBMISSION":    http.StatusConflict,
	"SUBMISSION_FAILED":       http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
