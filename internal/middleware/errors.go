package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError represents a structured error response
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Redirect   string `json:"redirect,omitempty"`
	RetryAfter int    `json:"retry_after_ms,omitempty"`
}

// Common error codes
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeDatabaseError     = "DATABASE_ERROR"
	ErrCodeGenerationTimeout = "GENERATION_TIMEOUT"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
	ErrCodeMalformed         = "MALFORMED_RESPONSE"
	ErrCodeEmptyResult       = "EMPTY_RESULT"
	ErrCodeSuperseded        = "SUPERSEDED"
	ErrCodeCircuitOpen       = "CIRCUIT_OPEN"
	ErrCodeMailUnavailable   = "MAIL_UNAVAILABLE"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// RespondError sends a structured error response
func RespondError(c *gin.Context, status int, code string, message string) {
	RespondAPIError(c, status, APIError{Code: code, Message: message})
}

// RespondAPIError sends a fully populated structured error
func RespondAPIError(c *gin.Context, status int, apiErr APIError) {
	c.JSON(status, gin.H{"error": apiErr})
}

// RespondErrorWithDetails sends a structured error response with details
func RespondErrorWithDetails(c *gin.Context, status int, code string, message string, details string) {
	RespondAPIError(c, status, APIError{Code: code, Message: message, Details: details})
}

// RespondErrorWithRetry sends a structured error response with retry hint
func RespondErrorWithRetry(c *gin.Context, status int, code string, message string, retryAfterMs int) {
	RespondAPIError(c, status, APIError{Code: code, Message: message, RetryAfter: retryAfterMs})
}

// BadRequest sends a 400 error
func BadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 error
func Unauthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 error
func Forbidden(c *gin.Context, message string) {
	RespondError(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound sends a 404 error
func NotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends a 409 error
func Conflict(c *gin.Context, message string) {
	RespondError(c, http.StatusConflict, ErrCodeConflict, message)
}

// InternalError sends a 500 error
func InternalError(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}
