package generation

import (
	"context"
	"errors"
)

// Failure kinds of a generation run. Callers match them with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("generation timed out")
	ErrUpstream           = errors.New("upstream error")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrEmptyResult        = errors.New("empty result")
	ErrCancelled          = errors.New("generation cancelled")
	errNoPreviousRequest  = errors.New("no previous request to retry")
	errControllerUnusable = errors.New("controller has no fetcher")
)

// Kind returns a stable short name for err, used in logs, metrics and API codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "upstream"
	}
}

// UserMessage is the short actionable text shown for a failed run.
// Upstream reasons are never included verbatim.
func UserMessage(err error, kind string) string {
	if kind == "" {
		kind = "results"
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "Please complete your profile with a field of interest first."
	case errors.Is(err, ErrTimeout):
		return "The request took too long. Please try again."
	case errors.Is(err, ErrEmptyResult):
		return "No " + kind + " found. Try adjusting your field of interest."
	case errors.Is(err, ErrCancelled):
		return "This request was replaced by a newer one."
	default:
		return "Failed to load " + kind + ". Please try again."
	}
}

// classifyFetchError maps an error returned by a Fetcher onto the taxonomy.
func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUpstream),
		errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrEmptyResult),
		errors.Is(err, ErrCancelled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return errors.Join(ErrCancelled, err)
	default:
		return errors.Join(ErrUpstream, err)
	}
}
