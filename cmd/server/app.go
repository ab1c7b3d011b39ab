package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/ai"
	"github.com/proflinker/api/internal/config"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/favorites"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/handlers"
	"github.com/proflinker/api/internal/mailer"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/profile"
	"github.com/proflinker/api/internal/session"
	"github.com/proflinker/api/internal/suggest"
	"github.com/proflinker/api/internal/usage"
	"github.com/proflinker/api/internal/verification"
	"go.uber.org/zap"
)

// app holds the wired services of one process
type app struct {
	cfg        *config.Config
	instanceID string
	db         *database.Postgres
	rdb        *database.Redis
	bus        *eventbus.Bus
	logger     *zap.Logger

	events     eventbus.EventStore
	hub        *session.Hub
	metrics    *metrics.Metrics
	breaker    *middleware.CircuitBreaker
	registry   *generation.Registry
	newPair    func(userID uuid.UUID) *generation.UserControllers
	drafts     profile.DraftStore
	selections favorites.SelectionStore
	profiles   *profile.Service
	tracker    *favorites.Tracker
	usage      *usage.Service
	writer     *ai.EmailWriter
	mail       mailer.Sender
	codes      *verification.CodeService
}

func newApp(cfg *config.Config, db *database.Postgres, rdb *database.Redis, bus *eventbus.Bus, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		db:         db,
		rdb:        rdb,
		bus:        bus,
		logger:     logger,
		hub:        session.NewHub(),
		metrics:    metrics.New(),
		breaker:    middleware.NewCircuitBreaker("generation"),
	}

	if bus != nil {
		a.events = bus
	} else {
		a.events = eventbus.NewMemoryStore(1000)
	}

	a.breaker.OnStateChange = func(name string, from, to middleware.CircuitState) {
		a.metrics.SetCircuitState(name, int(to))
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	if rdb != nil {
		a.drafts = profile.NewRedisDraftStore(rdb.Client())
		a.selections = favorites.NewRedisSelectionStore(rdb.Client())
	} else {
		a.drafts = profile.NewMemoryDraftStore()
		a.selections = favorites.NewMemorySelectionStore()
	}

	model, err := ai.NewModel(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	a.writer = ai.NewEmailWriter(model)

	var fetcher generation.Fetcher
	switch cfg.GenerationBackend {
	case "http":
		fetcher = generation.NewHTTPFetcher(cfg.AIServiceURL, cfg.AIServiceKey, nil)
	case "llm", "":
		fetcher = ai.NewRecommender(model, logger)
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.GenerationBackend)
	}

	a.usage = usage.NewService(usage.NewPostgresStore(db), logger)
	normalizer := generation.NewNormalizer(nil)
	a.newPair = func(userID uuid.UUID) *generation.UserControllers {
		opts := []generation.Option{
			generation.WithTimeout(cfg.GenerationTimeout),
			generation.WithDefaultCount(cfg.DefaultCount),
			generation.WithObserver(a.observeGeneration(userID)),
		}
		return &generation.UserControllers{
			Universities: generation.NewController(fetcher, normalizer.Universities, opts...),
			Professors:   generation.NewController(fetcher, normalizer.Professors, opts...),
		}
	}
	a.registry = generation.NewRegistry(a.newPair, cfg.RegistryIdleTTL)

	a.profiles = profile.NewService(a.drafts, profile.NewPostgresRepository(db), a.hub, logger)
	a.tracker = favorites.NewTracker(a.selections, favorites.NewPostgresRepository(db), a.events, logger)
	a.mail = mailer.New(cfg.SMTP, logger)
	a.codes = verification.NewCodeService(verification.NewPostgresRepository(db), a.mail, a.events, cfg.VerificationKey, cfg.VerificationTTL, logger)

	a.subscribe()
	return a, nil
}

// observeGeneration feeds every settled run to metrics, the usage log and
// the event stream
func (a *app) observeGeneration(userID uuid.UUID) func(generation.Report) {
	record := a.usage.Observer(userID)
	return func(r generation.Report) {
		a.metrics.ObserveGeneration(r)
		record(r)
		if !r.Applied {
			return
		}
		if err := a.events.Append(eventbus.SubjectGenerationCompleted, map[string]any{
			"user_id":    userID,
			"kind":       r.Request.Kind,
			"status":     r.Status,
			"count":      r.Count,
			"attempt":    r.Attempt,
			"error_kind": generation.Kind(r.Err),
		}); err != nil {
			a.logger.Warn("failed to publish generation event", zap.Error(err))
		}
	}
}

// subscribe connects session events to the components that react to them
func (a *app) subscribe() {
	a.hub.Subscribe(func(ev session.Event) {
		switch ev.Type {
		case session.ProfileChanged:
			a.registry.CancelUser(ev.UserID)
			a.appendSessionEvent(eventbus.SubjectProfileChanged, ev)
		case session.LoggedOut:
			a.registry.Forget(ev.UserID)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.drafts.Clear(ctx, ev.UserID); err != nil {
				a.logger.Warn("failed to clear draft on logout", zap.Error(err))
			}
			a.appendSessionEvent(eventbus.SubjectLogout, ev)
		}
	})

	// a profile change made through another replica cancels runs here too
	if a.bus.Connected() {
		_, err := a.bus.Subscribe(eventbus.SubjectProfileChanged, func(ev eventbus.Event) {
			var payload struct {
				UserID uuid.UUID `json:"user_id"`
				Origin string    `json:"origin"`
			}
			if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Origin == a.instanceID {
				return
			}
			a.registry.CancelUser(payload.UserID)
		})
		if err != nil {
			a.logger.Warn("failed to subscribe to profile changes", zap.Error(err))
		}
	}
}

func (a *app) appendSessionEvent(subject string, ev session.Event) {
	if err := a.events.Append(subject, map[string]any{
		"user_id": ev.UserID,
		"at":      ev.At,
		"origin":  a.instanceID,
	}); err != nil {
		a.logger.Warn("failed to publish session event", zap.String("subject", subject), zap.Error(err))
	}
}

func (a *app) healthChecks() []handlers.Check {
	checks := []handlers.Check{
		{Name: "database", Probe: a.db.Ping},
		{Name: "redis"},
		{Name: "nats", Optional: true},
		{Name: "generation_service", Optional: true},
	}
	if a.rdb != nil {
		checks[1].Probe = a.rdb.Ping
	}
	if a.bus != nil {
		checks[2].Probe = func(context.Context) error {
			if !a.bus.Connected() {
				return fmt.Errorf("disconnected")
			}
			return nil
		}
	}
	if a.cfg.GenerationBackend == "http" {
		checks[3].Probe = func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.AIServiceURL+"/health", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil
		}
	}
	return checks
}

func (a *app) router() *gin.Engine {
	cfg, logger := a.cfg, a.logger

	return handlers.NewRouter(handlers.Routes{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Metrics:     a.metrics,
		RBAC:        middleware.NewRBACMiddleware(middleware.NewPostgresRoleLookup(a.db), logger),
		Breaker:     a.breaker,

		Health:          handlers.NewHealthHandler(a.healthChecks()...),
		Auth:            handlers.NewAuthHandler(handlers.NewPostgresUserStore(a.db), cfg.JWTSecret, a.hub, logger),
		Profile:         handlers.NewProfileHandler(a.profiles, logger),
		Recommendations: handlers.NewRecommendationHandler(a.registry, a.profiles, suggest.NewEngine(logger), logger),
		Favorites:       handlers.NewFavoritesHandler(a.tracker, a.metrics, logger),
		Emails:          handlers.NewEmailHandler(a.writer, a.mail, a.profiles, a.events, a.metrics, logger),
		Admin:           handlers.NewAdminHandler(a.usage, a.events, logger),
		Functions: handlers.NewFunctionsHandler(handlers.FunctionDeps{
			Registry:       a.registry,
			NewControllers: a.newPair,
			Writer:         a.writer,
			Mail:           a.mail,
			Codes:          a.codes,
			Events:         a.events,
			Metrics:        a.metrics,
		}, logger),
	})
}
