package dto

import "net/http"

// Error codes surfaced at the HTTP boundary. Domain codes pass through
// unchanged; the ones below originate in the interface layer itself.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request binding/validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeUnauthorized is used when authentication is missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeRateLimited is used when the rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeRequestTooLarge is used when the body exceeds the size limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps stable error codes to HTTP status codes.
// Domain codes not listed here fall back to 500.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Lookup failures. Email mismatch deliberately maps to 404 so the API
	// does not reveal whether an order number exists for another customer.
	"ORDER_NOT_FOUND": http.StatusNotFound,
	"EMAIL_MISMATCH":  http.StatusNotFound,

	// Submission rejections
	"ITEM_NOT_ELIGIBLE":       http.StatusUnprocessableEntity,
	"EVIDENCE_REQUIRED":       http.StatusUnprocessableEntity,
	"POLICY_EVALUATION_ERROR": http.StatusUnprocessableEntity,
	"INVALID_RETURN_REQUEST":  http.StatusBadRequest,
	"INVALID_QUANTITY":        http.StatusBadRequest,
	"INVALID_REASON":          http.StatusBadRequest,
	"UNSUPPORTED_MEDIA_TYPE":  http.StatusUnsupportedMediaType,

	// Lifecycle conflicts
	"ILLEGAL_TRANSITION":      http.StatusConflict,
	"MISSING_JUSTIFICATION":   http.StatusUnprocessableEntity,
	"CONCURRENT_MODIFICATION": http.StatusConflict,

	// Shared codes
	"INVALID_INPUT": http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not mapped.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
