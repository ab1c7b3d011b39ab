package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

const recommenderSystemPrompt = `You are an academic advisor who recommends graduate programs and faculty.
Respond with a JSON array only. Do not add commentary or markdown.
Only suggest institutions and people that plausibly exist.`

// Recommender generates candidates with a language model.
type Recommender struct {
	completer Completer
	logger    *zap.Logger
}

// NewRecommender creates a recommender on top of a completer.
func NewRecommender(completer Completer, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{completer: completer, logger: logger}
}

// Fetch implements generation.Fetcher. The decoded response is not validated.
func (r *Recommender) Fetch(ctx context.Context, req generation.Request) (any, error) {
	var prompt string
	switch req.Kind {
	case models.KindUniversities:
		prompt = universitiesPrompt(req)
	case models.KindProfessors:
		prompt = professorsPrompt(req)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", generation.ErrInvalidInput, req.Kind)
	}

	text, err := r.completer.Complete(ctx, recommenderSystemPrompt, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		r.logger.Warn("language model call failed",
			zap.String("kind", string(req.Kind)),
			zap.Bool("rejected", errors.Is(err, ErrProviderRejected)),
			zap.Error(err),
		)
		return nil, errors.Join(generation.ErrUpstream, err)
	}

	return generation.DecodeRaw([]byte(StripCodeFences(text)))
}

// StripCodeFences removes a surrounding markdown code block, if present.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func universitiesPrompt(req generation.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend %d universities with strong programs in %q", req.Count, req.FieldOfInterest)
	if req.EducationLevel != "" {
		fmt.Fprintf(&b, " for a student applying at the %s level", req.EducationLevel)
	}
	b.WriteString(`.
Each array item must be an object with these keys:
"name", "country", "location", "departments" (array of strings), "research_areas" (array of strings),
"funding_level" ("low", "medium" or "high"), "ranking" (number, optional), "website", "description".`)
	return b.String()
}

func professorsPrompt(req generation.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend %d professors researching %q", req.Count, req.FieldOfInterest)
	if req.University != "" {
		fmt.Fprintf(&b, " at %s", req.University)
	}
	if req.EducationLevel != "" {
		fmt.Fprintf(&b, " who could supervise a %s student", req.EducationLevel)
	}
	b.WriteString(`.
Each array item must be an object with these keys:
"name", "title", "university", "department", "research_areas" (array of strings), "email", "website",
"recent_publications" (array of strings), "accepting_students" (boolean).`)
	return b.String()
}
