package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/ai"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/favorites"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/mailer"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/profile"
	"github.com/proflinker/api/internal/session"
	"github.com/proflinker/api/internal/suggest"
	"github.com/proflinker/api/internal/usage"
	"github.com/proflinker/api/internal/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedScorer struct{}

func (fixedScorer) Score(models.CandidateKind, string) models.Match {
	return models.Match{Score: 80}
}

// memoryUsers is an in-process UserStore
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]models.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.Email] = *u
	return nil
}

func (m *memoryUsers) ByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) ByID(_ context.Context, id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

// memoryFavorites is an in-process favorites.Repository
type memoryFavorites struct {
	mu           sync.Mutex
	universities []models.FavoriteUniversity
	professors   []models.FavoriteProfessor
	failNames    map[string]bool
}

func (m *memoryFavorites) AddUniversity(_ context.Context, userID uuid.UUID, u models.University) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNames[u.Name] {
		return errors.New("write failed")
	}
	m.universities = append(m.universities, models.FavoriteUniversity{ID: uuid.New(), UserID: userID, University: u})
	return nil
}

func (m *memoryFavorites) AddProfessor(_ context.Context, userID uuid.UUID, p models.Professor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNames[p.Name] {
		return errors.New("write failed")
	}
	m.professors = append(m.professors, models.FavoriteProfessor{ID: uuid.New(), UserID: userID, Professor: p})
	return nil
}

func (m *memoryFavorites) ListUniversities(_ context.Context, _ uuid.UUID) ([]models.FavoriteUniversity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FavoriteUniversity(nil), m.universities...), nil
}

func (m *memoryFavorites) ListProfessors(_ context.Context, _ uuid.UUID) ([]models.FavoriteProfessor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FavoriteProfessor(nil), m.professors...), nil
}

func (m *memoryFavorites) Remove(_ context.Context, _ uuid.UUID, kind models.CandidateKind, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == models.KindUniversities {
		for i, f := range m.universities {
			if f.ID == id {
				m.universities = append(m.universities[:i], m.universities[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

// memoryCodes is an in-process verification.Repository
type memoryCodes struct {
	mu       sync.Mutex
	codes    []models.VerificationCode
	verified map[string]bool
}

func (m *memoryCodes) Create(_ context.Context, code models.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *memoryCodes) Consume(_ context.Context, email, codeHash string, now time.Time, maxAttempts int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := &m.codes[i]
		if c.Email != email || c.UsedAt != nil || !c.ExpiresAt.After(now) {
			continue
		}
		if c.CodeHash != codeHash {
			c.Attempts++
			if c.Attempts >= maxAttempts {
				c.UsedAt = &now
			}
			return false, nil
		}
		c.UsedAt = &now
		return true, nil
	}
	return false, nil
}

func (m *memoryCodes) MarkEmailVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verified == nil {
		m.verified = map[string]bool{}
	}
	m.verified[email] = true
	return nil
}

// outbox records sent mail
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last() mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type staticCompleter struct {
	text string
	err  error
}

func (s staticCompleter) Complete(context.Context, string, string) (string, error) {
	return s.text, s.err
}

// testServer wires every handler over in-memory collaborators
type testServer struct {
	router    *gin.Engine
	fetch     func(ctx context.Context, req generation.Request) (any, error)
	fetchMu   sync.Mutex
	registry  *generation.Registry
	hub       *session.Hub
	drafts    profile.DraftStore
	favorites *memoryFavorites
	codes     *memoryCodes
	mail      *outbox
	events    *eventbus.MemoryStore
	breaker   *middleware.CircuitBreaker
}

func universityPayload(names ...string) []any {
	out := make([]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{
			"name":           n,
			"country":        "Canada",
			"research_areas": []any{"Machine Learning"},
			"funding_level":  "HIGH",
		})
	}
	return out
}

// serverOption adjusts a testServer before it is wired
type serverOption func(*testServer)

func withDraftStore(store profile.DraftStore) serverOption {
	return func(ts *testServer) { ts.drafts = store }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	logger := zap.NewNop()

	ts := &testServer{
		hub:       session.NewHub(),
		drafts:    profile.NewMemoryDraftStore(),
		favorites: &memoryFavorites{failNames: map[string]bool{}},
		codes:     &memoryCodes{},
		mail:      &outbox{},
		events:    eventbus.NewMemoryStore(100),
		breaker:   middleware.NewCircuitBreakerWithConfig("generation", 3, 1, time.Minute),
	}
	for _, opt := range opts {
		opt(ts)
	}
	ts.fetch = func(context.Context, generation.Request) (any, error) {
		return universityPayload("University of Toronto", "McGill University"), nil
	}

	fetcher := generation.FetcherFunc(func(ctx context.Context, req generation.Request) (any, error) {
		ts.fetchMu.Lock()
		fn := ts.fetch
		ts.fetchMu.Unlock()
		return fn(ctx, req)
	})
	normalizer := generation.NewNormalizer(fixedScorer{})
	factory := func(uuid.UUID) *generation.UserControllers {
		return &generation.UserControllers{
			Universities: generation.NewController(fetcher, normalizer.Universities, generation.WithTimeout(time.Second)),
			Professors:   generation.NewController(fetcher, normalizer.Professors, generation.WithTimeout(time.Second)),
		}
	}
	ts.registry = generation.NewRegistry(factory, time.Minute)
	ts.hub.Subscribe(func(ev session.Event) {
		if ev.Type == session.LoggedOut {
			ts.registry.Forget(ev.UserID)
		}
	})

	profiles := profile.NewService(ts.drafts, nil, ts.hub, logger)
	tracker := favorites.NewTracker(favorites.NewMemorySelectionStore(), ts.favorites, ts.events, logger)
	m := metrics.New()
	writer := ai.NewEmailWriter(staticCompleter{text: "Subject: Research inquiry\n\nDear Professor Hinton,\n\nI admire your work."})
	codes := verification.NewCodeService(ts.codes, ts.mail, ts.events, "signing-key", 0, logger)

	ts.router = NewRouter(Routes{
		JWTSecret:   testSecret,
		CORSOrigins: "*",
		Logger:      logger,
		Metrics:     m,
		RBAC:        middleware.NewRBACMiddleware(nil, logger),
		Breaker:     ts.breaker,

		Health:          NewHealthHandler(),
		Auth:            NewAuthHandler(newMemoryUsers(), testSecret, ts.hub, logger),
		Profile:         NewProfileHandler(profiles, logger),
		Recommendations: NewRecommendationHandler(ts.registry, profiles, suggest.NewEngine(logger), logger),
		Favorites:       NewFavoritesHandler(tracker, m, logger),
		Emails:          NewEmailHandler(writer, ts.mail, profiles, ts.events, m, logger),
		Admin:           NewAdminHandler(usage.NewService(nil, logger), ts.events, logger),
		Functions: NewFunctionsHandler(FunctionDeps{
			Registry:       ts.registry,
			NewControllers: factory,
			Writer:         writer,
			Mail:           ts.mail,
			Codes:          codes,
			Events:         ts.events,
			Metrics:        m,
		}, logger),
	})
	return ts
}

func (ts *testServer) setFetch(fn func(ctx context.Context, req generation.Request) (any, error)) {
	ts.fetchMu.Lock()
	defer ts.fetchMu.Unlock()
	ts.fetch = fn
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Email:  "student@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email: "ada@example.com", Name: "Ada", Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[AuthResponse](t, w)
	assert.Equal(t, models.RoleStudent, registered.User.Role)
	assert.NotEmpty(t, registered.Token)
	assert.NotContains(t, w.Body.String(), "correct-horse")

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email: "ada@example.com", Name: "Ada", Password: "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[AuthResponse](t, w)

	w = ts.do(t, http.MethodGet, "/api/v1/user/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	assert.Equal(t, registered.User.ID, me.ID)
}

func TestRecommendationsRequireFieldOfInterest(t *testing.T) {
	ts := newTestServer(t)
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	w := ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[RecommendationResponse[models.University]](t, w)
	assert.Empty(t, resp.Candidates)
	assert.NotNil(t, resp.Candidates)
	require.NotNil(t, resp.Error)
	assert.Equal(t, middleware.ErrCodeInvalidInput, resp.Error.Code)
	assert.Equal(t, ProfileRedirect, resp.Error.Redirect)
}

func TestRecommendationsUseDraft(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()
	token := tokenFor(t, userID, models.RoleStudent)

	var seen generation.Request
	ts.setFetch(func(_ context.Context, req generation.Request) (any, error) {
		seen = req
		return universityPayload("University of Toronto"), nil
	})

	field := "Machine Learning"
	count := 3
	w := ts.do(t, http.MethodPut, "/api/v1/profile/draft", token, profile.Patch{FieldOfInterest: &field, DesiredCount: &count})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[DraftResponse](t, w).Ready)

	w = ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[RecommendationResponse[models.University]](t, w)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "high", resp.Candidates[0].FundingLevel)
	assert.Equal(t, generation.StatusSucceeded, resp.Status)
	assert.Equal(t, "Machine Learning", seen.FieldOfInterest)
	assert.Equal(t, 3, seen.Count)

	w = ts.do(t, http.MethodGet, "/api/v1/recommendations/universities", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[RecommendationResponse[models.University]](t, w)
	assert.Equal(t, resp.Token, snap.Token)
	assert.Len(t, snap.Candidates, 1)
}

func TestRecommendationFailures(t *testing.T) {
	tests := []struct {
		name   string
		fetch  func(ctx context.Context, req generation.Request) (any, error)
		status int
		code   string
	}{
		{
			name:   "upstream",
			fetch:  func(context.Context, generation.Request) (any, error) { return nil, errors.New("provider down") },
			status: http.StatusBadGateway,
			code:   middleware.ErrCodeUpstream,
		},
		{
			name:   "malformed",
			fetch:  func(context.Context, generation.Request) (any, error) { return "not a list", nil },
			status: http.StatusBadGateway,
			code:   middleware.ErrCodeMalformed,
		},
		{
			name:   "empty",
			fetch:  func(context.Context, generation.Request) (any, error) { return []any{}, nil },
			status: http.StatusNotFound,
			code:   middleware.ErrCodeEmptyResult,
		},
		{
			name: "timeout",
			fetch: func(ctx context.Context, _ generation.Request) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			status: http.StatusGatewayTimeout,
			code:   middleware.ErrCodeGenerationTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.setFetch(tt.fetch)
			token := tokenFor(t, uuid.New(), models.RoleStudent)

			w := ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token,
				map[string]any{"field_of_interest": "Quantum Computing and Cryptography"})
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decode[RecommendationResponse[models.University]](t, w)
			assert.NotNil(t, resp.Candidates)
			assert.Empty(t, resp.Candidates)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, w.Body.String(), "provider down")
			if tt.code == middleware.ErrCodeEmptyResult {
				assert.NotEmpty(t, resp.Suggestions)
			}
		})
	}
}

type brokenDrafts struct{}

func (brokenDrafts) Load(context.Context, uuid.UUID) (profile.Draft, bool, error) {
	return profile.Draft{}, false, errors.New("redis: connection refused")
}

func (brokenDrafts) Save(context.Context, uuid.UUID, profile.Draft) error {
	return errors.New("redis: connection refused")
}

func (brokenDrafts) Clear(context.Context, uuid.UUID) error {
	return errors.New("redis: connection refused")
}

func TestRecommendationDraftStoreDown(t *testing.T) {
	ts := newTestServer(t, withDraftStore(brokenDrafts{}))
	var calls atomic.Int32
	ts.setFetch(func(context.Context, generation.Request) (any, error) {
		calls.Add(1)
		return []any{}, nil
	})
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	w := ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token,
		map[string]any{"field_of_interest": "Linguistics"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	resp := decode[middleware.APIError](t, w)
	assert.Equal(t, middleware.ErrCodeUnavailable, resp.Code)
	assert.Positive(t, resp.RetryAfter)
	assert.Empty(t, resp.Redirect)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Zero(t, calls.Load())
}

func TestRecommendationRetryAndCancel(t *testing.T) {
	ts := newTestServer(t)
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	w := ts.do(t, http.MethodPost, "/api/v1/recommendations/professors/retry", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	ts.setFetch(func(context.Context, generation.Request) (any, error) {
		return []any{map[string]any{"name": "Geoffrey Hinton", "university": "University of Toronto"}}, nil
	})
	w = ts.do(t, http.MethodPost, "/api/v1/recommendations/professors", token, map[string]any{"field_of_interest": "Deep Learning"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/recommendations/professors/retry", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RecommendationResponse[models.Professor]](t, w)
	assert.Equal(t, 2, resp.Attempt)
	assert.Equal(t, "Deep Learning", resp.Request.FieldOfInterest)

	w = ts.do(t, http.MethodPost, "/api/v1/recommendations/professors/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/recommendations/lecturers", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSupersededRunAnswersConflict(t *testing.T) {
	ts := newTestServer(t)
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	ts.setFetch(func(ctx context.Context, req generation.Request) (any, error) {
		if req.FieldOfInterest == "slow" {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return universityPayload("University of " + req.FieldOfInterest), nil
	})

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token, map[string]any{"field_of_interest": "slow"})
	}()
	<-started

	w := ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token, map[string]any{"field_of_interest": "fast"})
	require.Equal(t, http.StatusOK, w.Code)
	close(release)

	old := <-first
	assert.Equal(t, http.StatusConflict, old.Code)
	resp := decode[RecommendationResponse[models.University]](t, old)
	assert.Empty(t, resp.Candidates)
	assert.Equal(t, middleware.ErrCodeSuperseded, resp.Error.Code)
}

func TestRunAnswersWithItsOwnOutcome(t *testing.T) {
	release := make(chan struct{})
	newer := make(chan struct{})
	fetcher := generation.FetcherFunc(func(ctx context.Context, req generation.Request) (any, error) {
		if req.FieldOfInterest == "Neuroscience" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return universityPayload("University of " + req.FieldOfInterest), nil
	})

	var ctrl *generation.Controller[models.University]
	ctrl = generation.NewController(fetcher, generation.NewNormalizer(fixedScorer{}).Universities,
		generation.WithObserver(func(r generation.Report) {
			// a second run starts as soon as the first one has settled
			if r.Token == 1 {
				_, _, err := ctrl.Start(context.Background(), generation.Request{Kind: models.KindUniversities, FieldOfInterest: "Neuroscience"})
				if err == nil {
					close(newer)
				}
			}
		}))

	h := &RecommendationHandler{logger: zap.NewNop()}
	r := gin.New()
	r.POST("/run", func(c *gin.Context) {
		run(c, h, ctrl, generation.Request{Kind: models.KindUniversities, FieldOfInterest: "Linguistics"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run", nil))
	<-newer

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[RecommendationResponse[models.University]](t, w)
	assert.Equal(t, uint64(1), resp.Token)
	assert.Equal(t, generation.StatusSucceeded, resp.Status)
	assert.Equal(t, "Linguistics", resp.Request.FieldOfInterest)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "University of Linguistics", resp.Candidates[0].Name)

	snap := ctrl.Snapshot()
	assert.Equal(t, uint64(2), snap.Token)
	assert.Equal(t, generation.StatusPending, snap.Status)

	close(release)
	require.Eventually(t, func() bool { return !ctrl.Pending() }, time.Second, 10*time.Millisecond)
}

func TestLogoutForgetsControllers(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()
	token := tokenFor(t, userID, models.RoleStudent)

	w := ts.do(t, http.MethodPost, "/api/v1/recommendations/universities", token, map[string]any{"field_of_interest": "Biology"})
	require.Equal(t, http.StatusOK, w.Code)
	_, found := ts.registry.Lookup(userID)
	require.True(t, found)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, found = ts.registry.Lookup(userID)
	assert.False(t, found)
}

func TestFunctionGenerate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/functions/v1/generate-universities", "", generation.FunctionRequest{
		FieldOfInterest: "Robotics", Count: "2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string][]models.University](t, w)
	assert.Len(t, body["universities"], 2)

	w = ts.do(t, http.MethodPost, "/functions/v1/generate-universities", "", generation.FunctionRequest{FieldOfInterest: "  "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fnErr := decode[generation.FunctionError](t, w)
	assert.Equal(t, "invalid_input", fnErr.Details)
	assert.NotEmpty(t, fnErr.Error)
}

func TestFunctionGenerateOpensCircuit(t *testing.T) {
	ts := newTestServer(t)
	ts.setFetch(func(context.Context, generation.Request) (any, error) { return nil, errors.New("boom") })

	for range 3 {
		w := ts.do(t, http.MethodPost, "/functions/v1/generate-professors", "", generation.FunctionRequest{FieldOfInterest: "Physics"})
		require.Equal(t, http.StatusBadGateway, w.Code)
	}
	w := ts.do(t, http.MethodPost, "/functions/v1/generate-professors", "", generation.FunctionRequest{FieldOfInterest: "Physics"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, middleware.CircuitOpen, ts.breaker.State())
}

func TestFunctionEmail(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/functions/v1/generate-email", "", ai.EmailRequest{
		Professor: models.Professor{Name: "Geoffrey Hinton"},
		Tone:      "friendly",
		UserData:  ai.Applicant{Name: "Ada"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[GenerateEmailResponse](t, w).GeneratedEmail, "Dear Professor Hinton")

	w = ts.do(t, http.MethodPost, "/functions/v1/generate-email", "", ai.EmailRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	msg := SendEmailFunctionRequest{
		From: "attacker@example.com", To: []string{"prof@example.edu"}, Subject: "Hello", HTML: "<p>Hi</p>",
	}
	w = ts.do(t, http.MethodPost, "/functions/v1/send-email", "", msg)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, ts.mail.count())

	token := tokenFor(t, uuid.New(), models.RoleStudent)
	w = ts.do(t, http.MethodPost, "/functions/v1/send-email", token, msg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"prof@example.edu"}, ts.mail.last().To)
	assert.Equal(t, "student@example.com", ts.mail.last().From)

	w = ts.do(t, http.MethodPost, "/functions/v1/send-email", token, SendEmailFunctionRequest{
		To: []string{"not-an-address"}, Subject: "Hello", HTML: "<p>Hi</p>",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	events, err := ts.events.Read(eventbus.SubjectEmailSent, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

func TestFunctionVerification(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/functions/v1/send-verification", "", VerificationRequest{Email: "Ada@Example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code := sixDigits.FindString(ts.mail.last().Text)
	require.NotEmpty(t, code)

	w = ts.do(t, http.MethodPost, "/functions/v1/verify-code", "", VerificationRequest{Email: "ada@example.com", Code: "000000x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/functions/v1/verify-code", "", VerificationRequest{Email: "ada@example.com", Code: code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, ts.codes.verified["ada@example.com"])

	w = ts.do(t, http.MethodPost, "/functions/v1/verify-code", "", VerificationRequest{Email: "ada@example.com", Code: code})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/functions/v1/send-verification", "", VerificationRequest{Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFavoritesFlow(t *testing.T) {
	ts := newTestServer(t)
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	toronto := favorites.Item{Kind: models.KindUniversities, University: &models.University{ID: "u1", Name: "University of Toronto", Country: "Canada"}}
	mcgill := favorites.Item{Kind: models.KindUniversities, University: &models.University{ID: "u2", Name: "McGill University", Country: "Canada"}}

	w := ts.do(t, http.MethodPost, "/api/v1/favorites/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, item := range []favorites.Item{toronto, mcgill, mcgill, mcgill} {
		w = ts.do(t, http.MethodPost, "/api/v1/favorites/selection/toggle", token, item)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.True(t, decode[ToggleResponse](t, w).Selected)

	w = ts.do(t, http.MethodPost, "/api/v1/favorites/selection/toggle", token, favorites.Item{Kind: models.KindProfessors})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.favorites.failNames["McGill University"] = true
	w = ts.do(t, http.MethodPost, "/api/v1/favorites/complete", token, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	result := decode[favorites.CompletionResult](t, w)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "u2", result.Failed[0].ID)

	w = ts.do(t, http.MethodGet, "/api/v1/favorites/selection", token, nil)
	assert.Contains(t, w.Body.String(), "McGill University")
	assert.NotContains(t, w.Body.String(), "University of Toronto")

	w = ts.do(t, http.MethodGet, "/api/v1/favorites", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode[FavoritesResponse](t, w)
	require.Len(t, saved.Universities, 1)
	assert.NotNil(t, saved.Professors)

	w = ts.do(t, http.MethodDelete, "/api/v1/favorites/universities/"+saved.Universities[0].ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/v1/favorites/universities/"+saved.Universities[0].ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmailDraftAndSend(t *testing.T) {
	ts := newTestServer(t)
	token := tokenFor(t, uuid.New(), models.RoleStudent)

	w := ts.do(t, http.MethodPost, "/api/v1/emails/draft", token, DraftEmailRequest{
		Professor: models.Professor{Name: "Geoffrey Hinton", Email: "hinton@example.edu"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decode[DraftEmailResponse](t, w)
	assert.Equal(t, "Research inquiry", draft.Subject)
	assert.True(t, len(draft.MailtoURL) > len("mailto:"))
	assert.Contains(t, draft.MailtoURL, "hinton@example.edu")

	w = ts.do(t, http.MethodPost, "/api/v1/emails/send", token, SendEmailRequest{
		To: "hinton@example.edu", Subject: draft.Subject, Body: draft.Body,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	sent := ts.mail.last()
	assert.Equal(t, "student@example.com", sent.From)
	assert.Contains(t, sent.HTML, "<p>")

	ts.mail.err = errors.New("smtp down")
	w = ts.do(t, http.MethodPost, "/api/v1/emails/send", token, SendEmailRequest{
		To: "hinton@example.edu", Subject: "Hi", Body: "Hello",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.events.Append(eventbus.SubjectFavoritesCompleted, map[string]any{"saved": 1}))

	w := ts.do(t, http.MethodGet, "/api/v1/admin/events", tokenFor(t, uuid.New(), models.RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := tokenFor(t, uuid.New(), models.RoleAdmin)
	w = ts.do(t, http.MethodGet, "/api/v1/admin/events", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), eventbus.SubjectFavoritesCompleted)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/generation-logs?kind=universities", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/admin/generation-logs?kind=lecturers", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeepHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []Check
		want   int
		status string
	}{
		{"all healthy", []Check{{Name: "database", Probe: ok}, {Name: "redis", Probe: nil}}, http.StatusOK, "healthy"},
		{"required failing", []Check{{Name: "database", Probe: failing}}, http.StatusServiceUnavailable, "degraded"},
		{"optional failing", []Check{{Name: "nats", Probe: failing, Optional: true}}, http.StatusOK, "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)
			r := gin.New()
			r.GET("/health/deep", h.DeepHealth)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/deep", nil))
			assert.Equal(t, tt.want, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}
}

func TestRouterServesOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/health"`)
}
