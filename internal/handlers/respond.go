package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/middleware"
)

// ProfileRedirect is where the client sends a user with an incomplete profile
const ProfileRedirect = "/profile"

// generationStatus maps a failed run onto an HTTP status and error code
func generationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, generation.ErrInvalidInput):
		return http.StatusUnprocessableEntity, middleware.ErrCodeInvalidInput
	case errors.Is(err, generation.ErrTimeout):
		return http.StatusGatewayTimeout, middleware.ErrCodeGenerationTimeout
	case errors.Is(err, generation.ErrMalformedResponse):
		return http.StatusBadGateway, middleware.ErrCodeMalformed
	case errors.Is(err, generation.ErrEmptyResult):
		return http.StatusNotFound, middleware.ErrCodeEmptyResult
	case errors.Is(err, generation.ErrCancelled):
		return http.StatusConflict, middleware.ErrCodeSuperseded
	default:
		return http.StatusBadGateway, middleware.ErrCodeUpstream
	}
}

// generationError builds the API error of a failed run
func generationError(err error, noun string) (int, middleware.APIError) {
	status, code := generationStatus(err)
	apiErr := middleware.APIError{
		Code:    code,
		Message: generation.UserMessage(err, noun),
	}
	if errors.Is(err, generation.ErrInvalidInput) {
		apiErr.Redirect = ProfileRedirect
	}
	return status, apiErr
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// respondFunctionError writes the {error, details?} body of the function surface
func respondFunctionError(c *gin.Context, status int, message, details string) {
	c.JSON(status, generation.FunctionError{Error: message, Details: details})
}
