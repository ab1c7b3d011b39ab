package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/session"
	"go.uber.org/zap"
)

// Repository persists the remote profile
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (models.Profile, error)
	Upsert(ctx context.Context, p models.Profile) (models.Profile, error)
}

// Service owns the session draft and keeps the remote profile in step with it
type Service struct {
	drafts DraftStore
	repo   Repository
	hub    *session.Hub
	logger *zap.Logger
}

// NewService creates a profile service. repo may be nil when no database is configured.
func NewService(drafts DraftStore, repo Repository, hub *session.Hub, logger *zap.Logger) *Service {
	return &Service{drafts: drafts, repo: repo, hub: hub, logger: logger}
}

// Draft returns the session draft, seeding it from the remote profile on first use
func (s *Service) Draft(ctx context.Context, userID uuid.UUID) (Draft, error) {
	d, found, err := s.drafts.Load(ctx, userID)
	if err != nil {
		return DefaultDraft(), err
	}
	if found || s.repo == nil {
		return d, nil
	}

	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return d, nil
	}
	if err != nil {
		s.logger.Warn("failed to seed draft from profile", zap.String("user_id", userID.String()), zap.Error(err))
		return d, nil
	}

	d = DraftFromProfile(p)
	if err := s.drafts.Save(ctx, userID, d); err != nil {
		return d, err
	}
	return d, nil
}

// Update applies a patch to the draft and persists the profile subset. A
// change to a generation input cancels the user's in-flight generations
// through the session hub.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, patch Patch) (Draft, error) {
	current, err := s.Draft(ctx, userID)
	if err != nil {
		return current, err
	}

	next, changed := patch.Apply(current)
	if err := s.drafts.Save(ctx, userID, next); err != nil {
		return current, err
	}

	if s.repo != nil {
		if _, err := s.repo.Upsert(ctx, next.ToProfile(models.Profile{UserID: userID})); err != nil {
			return next, err
		}
	}

	if changed {
		s.hub.Publish(session.ProfileChanged, userID)
	}
	return next, nil
}

// Reset drops the session draft; the remote profile is kept
func (s *Service) Reset(ctx context.Context, userID uuid.UUID) error {
	return s.drafts.Clear(ctx, userID)
}
