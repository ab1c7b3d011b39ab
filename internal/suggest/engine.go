package suggest

import (
	"context"
	"strings"

	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

// Engine proposes alternative inputs after a generation came back empty
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Suggestion is an adjusted request the user can run with one click
type Suggestion struct {
	Reason  string             `json:"reason"`
	Message string             `json:"message"`
	Request generation.Request `json:"request"`
}

// Suggest returns input adjustments for a request that produced no candidates
func (e *Engine) Suggest(ctx context.Context, req generation.Request) []Suggestion {
	suggestions := []Suggestion{}
	field := strings.TrimSpace(req.FieldOfInterest)

	// Compound fields: keep the first topic only
	if broader, ok := firstTopic(field); ok {
		next := req
		next.FieldOfInterest = broader
		suggestions = append(suggestions, Suggestion{
			Reason:  "broaden_field",
			Message: "Search for \"" + broader + "\" on its own",
			Request: next,
		})
	} else if words := strings.Fields(field); len(words) > 3 {
		next := req
		next.FieldOfInterest = strings.Join(words[len(words)-2:], " ")
		suggestions = append(suggestions, Suggestion{
			Reason:  "broaden_field",
			Message: "Try the broader field \"" + next.FieldOfInterest + "\"",
			Request: next,
		})
	}

	// Secondary filters narrow the search further
	if req.Kind == models.KindProfessors && req.University != "" {
		next := req
		next.University = ""
		suggestions = append(suggestions, Suggestion{
			Reason:  "drop_university",
			Message: "Search professors at any university",
			Request: next,
		})
	}
	if req.EducationLevel != "" {
		next := req
		next.EducationLevel = ""
		suggestions = append(suggestions, Suggestion{
			Reason:  "drop_education_level",
			Message: "Search without an education level",
			Request: next,
		})
	}

	if req.Count > generation.DefaultCount {
		next := req
		next.Count = generation.DefaultCount
		suggestions = append(suggestions, Suggestion{
			Reason:  "lower_count",
			Message: "Ask for fewer results",
			Request: next,
		})
	}

	e.logger.Info("suggested input adjustments",
		zap.String("kind", string(req.Kind)),
		zap.String("field_preview", field[:min(len(field), 20)]),
		zap.Int("suggestions", len(suggestions)),
	)

	return suggestions
}

func firstTopic(field string) (string, bool) {
	lower := strings.ToLower(field)
	for _, sep := range []string{",", " and ", " & ", "/"} {
		if i := strings.Index(lower, sep); i > 0 {
			if first := strings.TrimSpace(field[:i]); first != "" {
				return first, true
			}
		}
	}
	return "", false
}
