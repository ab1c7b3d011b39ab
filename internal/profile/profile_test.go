package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	profiles map[uuid.UUID]models.Profile
	getErr   error
	saveErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{profiles: map[uuid.UUID]models.Profile{}}
}

func (r *fakeRepo) Get(_ context.Context, userID uuid.UUID) (models.Profile, error) {
	if r.getErr != nil {
		return models.Profile{}, r.getErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) Upsert(_ context.Context, p models.Profile) (models.Profile, error) {
	if r.saveErr != nil {
		return models.Profile{}, r.saveErr
	}
	r.profiles[p.UserID] = p
	return p, nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestDefaultDraft(t *testing.T) {
	d := DefaultDraft()
	assert.Equal(t, 6, d.DesiredCount)
	assert.False(t, d.CookieConsent)
	assert.False(t, d.Ready())
}

func TestDraftFieldsRoundTrip(t *testing.T) {
	d := Draft{
		FieldOfInterest: "Neuroscience",
		EducationLevel:  LevelPhD,
		UserName:        "Robin",
		DesiredCount:    9,
		CookieConsent:   true,
	}
	assert.Equal(t, d, DraftFromFields(d.Fields()))

	got := DraftFromFields(map[string]string{KeyDesiredCount: "lots", KeyCookieConsent: "maybe"})
	assert.Equal(t, 6, got.DesiredCount)
	assert.False(t, got.CookieConsent)
}

func TestPatchApply(t *testing.T) {
	d := DefaultDraft()

	next, changed := Patch{UserName: strPtr("Kim")}.Apply(d)
	assert.False(t, changed)
	assert.Equal(t, "Kim", next.UserName)

	next, changed = Patch{FieldOfInterest: strPtr("  Ecology ")}.Apply(next)
	assert.True(t, changed)
	assert.Equal(t, "Ecology", next.FieldOfInterest)

	next, _ = Patch{DesiredCount: intPtr(99)}.Apply(next)
	assert.Equal(t, 20, next.DesiredCount)
	next, _ = Patch{DesiredCount: intPtr(0)}.Apply(next)
	assert.Equal(t, 6, next.DesiredCount)
}

func TestDraftRequest(t *testing.T) {
	d := Draft{FieldOfInterest: "AI", EducationLevel: LevelMasters, DesiredCount: 4}
	req := d.Request(models.KindProfessors, "MIT")
	assert.Equal(t, models.KindProfessors, req.Kind)
	assert.Equal(t, "MIT", req.University)
	assert.Equal(t, 4, req.Count)
}

func TestMemoryDraftStore(t *testing.T) {
	s := NewMemoryDraftStore()
	ctx := context.Background()
	user := uuid.New()

	d, found, err := s.Load(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultDraft(), d)

	require.NoError(t, s.Save(ctx, user, Draft{FieldOfInterest: "Math", DesiredCount: 3}))
	d, found, err = s.Load(ctx, user)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Math", d.FieldOfInterest)

	require.NoError(t, s.Clear(ctx, user))
	_, found, _ = s.Load(ctx, user)
	assert.False(t, found)
}

func TestServiceSeedsDraftFromProfile(t *testing.T) {
	repo := newFakeRepo()
	user := uuid.New()
	repo.profiles[user] = models.Profile{UserID: user, FullName: "Ana", FieldOfInterest: "Chemistry"}

	svc := NewService(NewMemoryDraftStore(), repo, session.NewHub(), zap.NewNop())
	d, err := svc.Draft(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", d.FieldOfInterest)
	assert.Equal(t, "Ana", d.UserName)
	assert.Equal(t, 6, d.DesiredCount)
}

func TestServiceUpdatePublishesOnInputChange(t *testing.T) {
	repo := newFakeRepo()
	hub := session.NewHub()
	var events []session.Event
	hub.Subscribe(func(e session.Event) { events = append(events, e) })

	svc := NewService(NewMemoryDraftStore(), repo, hub, zap.NewNop())
	user := uuid.New()
	ctx := context.Background()

	_, err := svc.Update(ctx, user, Patch{UserName: strPtr("Lee")})
	require.NoError(t, err)
	assert.Empty(t, events)

	d, err := svc.Update(ctx, user, Patch{FieldOfInterest: strPtr("Geology")})
	require.NoError(t, err)
	assert.Equal(t, "Geology", d.FieldOfInterest)
	require.Len(t, events, 1)
	assert.Equal(t, session.ProfileChanged, events[0].Type)
	assert.Equal(t, user, events[0].UserID)

	assert.Equal(t, "Geology", repo.profiles[user].FieldOfInterest)
	assert.Equal(t, "Lee", repo.profiles[user].FullName)
}

func TestServiceUpdatePersistFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("db down")
	svc := NewService(NewMemoryDraftStore(), repo, nil, zap.NewNop())

	d, err := svc.Update(context.Background(), uuid.New(), Patch{FieldOfInterest: strPtr("Art")})
	assert.Error(t, err)
	assert.Equal(t, "Art", d.FieldOfInterest)
}

func TestServiceWithoutRepository(t *testing.T) {
	svc := NewService(NewMemoryDraftStore(), nil, nil, zap.NewNop())
	user := uuid.New()
	_, err := svc.Update(context.Background(), user, Patch{FieldOfInterest: strPtr("Music")})
	require.NoError(t, err)

	d, err := svc.Draft(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Music", d.FieldOfInterest)

	require.NoError(t, svc.Reset(context.Background(), user))
	d, _ = svc.Draft(context.Background(), user)
	assert.Equal(t, "", d.FieldOfInterest)
}
