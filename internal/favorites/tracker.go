package favorites

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

// ErrEmptySelection is returned when completing with nothing selected
var ErrEmptySelection = errors.New("no candidates selected")

// Repository persists favorites
type Repository interface {
	AddUniversity(ctx context.Context, userID uuid.UUID, u models.University) error
	AddProfessor(ctx context.Context, userID uuid.UUID, p models.Professor) error
	ListUniversities(ctx context.Context, userID uuid.UUID) ([]models.FavoriteUniversity, error)
	ListProfessors(ctx context.Context, userID uuid.UUID) ([]models.FavoriteProfessor, error)
	Remove(ctx context.Context, userID uuid.UUID, kind models.CandidateKind, id uuid.UUID) (bool, error)
}

// Failure describes one candidate that could not be persisted
type Failure struct {
	ID    string               `json:"id"`
	Kind  models.CandidateKind `json:"kind"`
	Name  string               `json:"name"`
	Error string               `json:"error"`
}

// CompletionResult reports the outcome of persisting a selection
type CompletionResult struct {
	Saved  int       `json:"saved"`
	Failed []Failure `json:"failed"`
}

// Partial reports whether some but not all items were persisted
func (r CompletionResult) Partial() bool {
	return r.Saved > 0 && len(r.Failed) > 0
}

// Tracker keeps the pending selection and writes it through on completion only
type Tracker struct {
	selections SelectionStore
	repo       Repository
	events     eventbus.EventStore
	logger     *zap.Logger
	now        func() time.Time
}

func NewTracker(selections SelectionStore, repo Repository, events eventbus.EventStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		selections: selections,
		repo:       repo,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// Toggle adds the candidate to the selection, or removes it if present.
// It returns whether the candidate is selected afterwards.
func (t *Tracker) Toggle(ctx context.Context, userID uuid.UUID, item Item) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}
	item.SelectedAt = t.now().UTC()
	return t.selections.Toggle(ctx, userID, item)
}

// Selection returns the pending selection
func (t *Tracker) Selection(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	return t.selections.List(ctx, userID)
}

// Complete persists every selected candidate with one independent write each.
// Failures are collected rather than rolled back; only persisted items leave
// the selection.
func (t *Tracker) Complete(ctx context.Context, userID uuid.UUID) (CompletionResult, error) {
	items, err := t.selections.List(ctx, userID)
	if err != nil {
		return CompletionResult{}, err
	}
	if len(items) == 0 {
		return CompletionResult{}, ErrEmptySelection
	}

	result := CompletionResult{Failed: []Failure{}}
	saved := make([]string, 0, len(items))

	for _, item := range items {
		var err error
		switch item.Kind {
		case models.KindUniversities:
			err = t.repo.AddUniversity(ctx, userID, *item.University)
		case models.KindProfessors:
			err = t.repo.AddProfessor(ctx, userID, *item.Professor)
		default:
			err = ErrInvalidItem
		}

		if err != nil {
			t.logger.Warn("failed to persist favorite",
				zap.String("user_id", userID.String()),
				zap.String("kind", string(item.Kind)),
				zap.String("name", item.Name()),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, Failure{
				ID:    item.ID(),
				Kind:  item.Kind,
				Name:  item.Name(),
				Error: "could not be saved",
			})
			continue
		}
		result.Saved++
		saved = append(saved, item.ID())
	}

	if err := t.selections.Remove(ctx, userID, saved...); err != nil {
		t.logger.Warn("failed to clear persisted selection", zap.Error(err))
	}

	if t.events != nil {
		if err := t.events.Append(eventbus.SubjectFavoritesCompleted, map[string]any{
			"user_id": userID,
			"saved":   result.Saved,
			"failed":  len(result.Failed),
		}); err != nil {
			t.logger.Warn("failed to publish favorites event", zap.Error(err))
		}
	}

	return result, nil
}

// Favorites returns the persisted favorites of a user
func (t *Tracker) Favorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteUniversity, []models.FavoriteProfessor, error) {
	universities, err := t.repo.ListUniversities(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	professors, err := t.repo.ListProfessors(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return universities, professors, nil
}

// Remove deletes one persisted favorite
func (t *Tracker) Remove(ctx context.Context, userID uuid.UUID, kind models.CandidateKind, id uuid.UUID) (bool, error) {
	return t.repo.Remove(ctx, userID, kind, id)
}
