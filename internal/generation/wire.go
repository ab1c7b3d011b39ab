package generation

import (
	"strconv"
	"strings"

	"github.com/proflinker/api/internal/models"
)

// FunctionRequest is the body accepted by the generate-universities and
// generate-professors functions.
type FunctionRequest struct {
	FieldOfInterest string `json:"fieldOfInterest"`
	EducationLevel  string `json:"educationLevel,omitempty"`
	Count           string `json:"count,omitempty"`
	University      string `json:"university,omitempty"`
}

// FunctionError is the error body of every function
type FunctionError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ToRequest converts a function body into a controller request. An unparsable
// count falls back to the default.
func (f FunctionRequest) ToRequest(kind models.CandidateKind) Request {
	count, _ := strconv.Atoi(strings.TrimSpace(f.Count))
	return Request{
		Kind:            kind,
		FieldOfInterest: f.FieldOfInterest,
		EducationLevel:  f.EducationLevel,
		University:      f.University,
		Count:           count,
	}
}

// NewFunctionRequest builds the wire body for req
func NewFunctionRequest(req Request) FunctionRequest {
	f := FunctionRequest{
		FieldOfInterest: req.FieldOfInterest,
		EducationLevel:  req.EducationLevel,
		University:      req.University,
	}
	if req.Count > 0 {
		f.Count = strconv.Itoa(req.Count)
	}
	return f
}
