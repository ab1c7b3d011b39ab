package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/models"
)

// Normalizer turns raw upstream JSON into validated candidates. A batch either
// passes as a whole or fails as a whole.
type Normalizer struct {
	scorer Scorer
	newID  func() string
}

// NewNormalizer creates a normalizer. A nil scorer uses the random placeholder scorer.
func NewNormalizer(scorer Scorer) *Normalizer {
	if scorer == nil {
		scorer = NewRandomScorer(nil)
	}
	return &Normalizer{scorer: scorer, newID: uuid.NewString}
}

// DecodeRaw decodes an upstream body into a generic JSON value.
func DecodeRaw(body []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return raw, nil
}

// Universities normalizes a university generation response.
func (n *Normalizer) Universities(raw any, req Request) ([]models.University, error) {
	items, err := unwrap(raw, string(models.KindUniversities))
	if err != nil {
		return nil, err
	}

	out := make([]models.University, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: university %d is not an object", ErrMalformedResponse, i)
		}

		name := stringField(obj, "name")
		if name == "" {
			return nil, fmt.Errorf("%w: university %d has no name", ErrMalformedResponse, i)
		}
		country := stringField(obj, "country")
		location := stringField(obj, "location", "city")
		if country == "" && location == "" {
			return nil, fmt.Errorf("%w: university %q has no country or location", ErrMalformedResponse, name)
		}
		if country == "" {
			country = location
		}

		u := models.University{
			ID:            n.newID(),
			Name:          name,
			Country:       country,
			Location:      location,
			Departments:   listField(obj, req.FieldOfInterest, "departments"),
			ResearchAreas: listField(obj, req.FieldOfInterest, "research_areas", "researchAreas"),
			FundingLevel:  NormalizeFundingLevel(field(obj, "funding_level", "fundingLevel", "funding")),
			Ranking:       intField(obj, "ranking", "rank"),
			Website:       stringField(obj, "website", "url"),
			Description:   stringField(obj, "description"),
		}
		u.Match = n.scorer.Score(models.KindUniversities, req.FieldOfInterest)
		out = append(out, u)
	}

	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// Professors normalizes a professor generation response.
func (n *Normalizer) Professors(raw any, req Request) ([]models.Professor, error) {
	items, err := unwrap(raw, string(models.KindProfessors))
	if err != nil {
		return nil, err
	}

	out := make([]models.Professor, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: professor %d is not an object", ErrMalformedResponse, i)
		}

		name := stringField(obj, "name")
		if name == "" {
			return nil, fmt.Errorf("%w: professor %d has no name", ErrMalformedResponse, i)
		}

		p := models.Professor{
			ID:                 n.newID(),
			Name:               name,
			Title:              stringField(obj, "title"),
			University:         stringField(obj, "university", "institution"),
			Department:         stringField(obj, "department"),
			ResearchAreas:      listField(obj, req.FieldOfInterest, "research_areas", "researchAreas", "research_interests", "researchInterests"),
			Email:              stringField(obj, "email"),
			Website:            stringField(obj, "website", "url"),
			RecentPublications: optionalList(obj, "recent_publications", "recentPublications", "publications"),
			AcceptingStudents:  boolField(obj, "accepting_students", "acceptingStudents"),
		}
		if p.University == "" {
			p.University = req.University
		}
		p.Match = n.scorer.Score(models.KindProfessors, req.FieldOfInterest)
		out = append(out, p)
	}

	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// NormalizeFundingLevel case-folds a funding level and falls back to medium.
func NormalizeFundingLevel(v any) string {
	s, _ := v.(string)
	switch level := strings.ToLower(strings.TrimSpace(s)); level {
	case models.FundingLow, models.FundingMedium, models.FundingHigh:
		return level
	default:
		return models.FundingMedium
	}
}

// unwrap accepts a bare array, an object keyed by the collection name, or an
// object holding exactly one array-valued property.
func unwrap(raw any, collection string) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if arr, ok := v[collection].([]any); ok {
			return arr, nil
		}
		var found []any
		arrays := 0
		for _, val := range v {
			if arr, ok := val.([]any); ok {
				found = arr
				arrays++
			}
		}
		if arrays == 1 {
			return found, nil
		}
		return nil, fmt.Errorf("%w: object has no %q array", ErrMalformedResponse, collection)
	default:
		return nil, fmt.Errorf("%w: expected array or object, got %T", ErrMalformedResponse, raw)
	}
}

func field(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(obj map[string]any, keys ...string) string {
	switch v := field(obj, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(v))
	default:
		return ""
	}
}

func intField(obj map[string]any, keys ...string) *int {
	v, ok := field(obj, keys...).(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	i := int(v)
	return &i
}

func boolField(obj map[string]any, keys ...string) *bool {
	v, ok := field(obj, keys...).(bool)
	if !ok {
		return nil
	}
	return &v
}

// listField reads a string list, defaulting to a single-element list holding fallback.
func listField(obj map[string]any, fallback string, keys ...string) []string {
	if list := optionalList(obj, keys...); len(list) > 0 {
		return list
	}
	return []string{fallback}
}

func optionalList(obj map[string]any, keys ...string) []string {
	switch v := field(obj, keys...).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}
