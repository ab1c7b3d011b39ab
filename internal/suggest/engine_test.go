package suggest

import (
	"context"
	"testing"

	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func reasons(s []Suggestion) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = x.Reason
	}
	return out
}

func TestSuggestCompoundField(t *testing.T) {
	e := NewEngine(zap.NewNop())
	got := e.Suggest(context.Background(), generation.Request{
		Kind:            models.KindUniversities,
		FieldOfInterest: "Quantum computing and marine biology",
		Count:           6,
	})
	require.Len(t, got, 1)
	assert.Equal(t, "broaden_field", got[0].Reason)
	assert.Equal(t, "Quantum computing", got[0].Request.FieldOfInterest)
}

func TestSuggestLongField(t *testing.T) {
	e := NewEngine(zap.NewNop())
	got := e.Suggest(context.Background(), generation.Request{
		FieldOfInterest: "early modern Baltic maritime history",
	})
	require.NotEmpty(t, got)
	assert.Equal(t, "maritime history", got[0].Request.FieldOfInterest)
}

func TestSuggestDropsFilters(t *testing.T) {
	e := NewEngine(zap.NewNop())
	req := generation.Request{
		Kind:            models.KindProfessors,
		FieldOfInterest: "Robotics",
		University:      "Small College",
		EducationLevel:  "phd",
		Count:           15,
	}
	got := e.Suggest(context.Background(), req)
	assert.Equal(t, []string{"drop_university", "drop_education_level", "lower_count"}, reasons(got))
	assert.Empty(t, got[0].Request.University)
	assert.Equal(t, "phd", got[0].Request.EducationLevel)
	assert.Equal(t, generation.DefaultCount, got[2].Request.Count)
}

func TestSuggestNothingToChange(t *testing.T) {
	e := NewEngine(zap.NewNop())
	got := e.Suggest(context.Background(), generation.Request{FieldOfInterest: "Physics", Count: 6})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
