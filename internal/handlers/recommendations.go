package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/profile"
	"github.com/proflinker/api/internal/suggest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/proflinker/api/internal/handlers")

// draftRetryAfter is the retry hint sent when the draft store is unreachable
const draftRetryAfter = 5 * time.Second

// RecommendationHandler runs the per-user generation controllers
type RecommendationHandler struct {
	registry *generation.Registry
	profiles *profile.Service
	suggest  *suggest.Engine
	logger   *zap.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(registry *generation.Registry, profiles *profile.Service, engine *suggest.Engine, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{registry: registry, profiles: profiles, suggest: engine, logger: logger}
}

// RecommendationRequest overrides draft values for one run. Omitted fields
// come from the session draft.
type RecommendationRequest struct {
	FieldOfInterest *string `json:"field_of_interest"`
	EducationLevel  *string `json:"education_level"`
	University      string  `json:"university"`
	Count           *int    `json:"count"`
}

// RecommendationResponse is the body of every run, retry, cancel and snapshot
type RecommendationResponse[T any] struct {
	Token       uint64               `json:"token"`
	Attempt     int                  `json:"attempt"`
	Status      generation.Status    `json:"status"`
	Request     generation.Request   `json:"request"`
	Candidates  []T                  `json:"candidates"`
	Error       *middleware.APIError `json:"error,omitempty"`
	Suggestions []suggest.Suggestion `json:"suggestions,omitempty"`
}

// Universities runs the university controller
// @Summary Generate university suggestions
// @Tags recommendations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body RecommendationRequest false "overrides"
// @Success 200 {object} RecommendationResponse[models.University]
// @Failure 422 {object} RecommendationResponse[models.University]
// @Failure 504 {object} RecommendationResponse[models.University]
// @Router /api/v1/recommendations/universities [post]
func (h *RecommendationHandler) Universities(c *gin.Context) {
	userID, req, ok := h.request(c, models.KindUniversities)
	if !ok {
		return
	}
	run(c, h, h.registry.For(userID).Universities, req)
}

// Professors runs the professor controller
// @Summary Generate professor suggestions
// @Tags recommendations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body RecommendationRequest false "overrides"
// @Success 200 {object} RecommendationResponse[models.Professor]
// @Router /api/v1/recommendations/professors [post]
func (h *RecommendationHandler) Professors(c *gin.Context) {
	userID, req, ok := h.request(c, models.KindProfessors)
	if !ok {
		return
	}
	run(c, h, h.registry.For(userID).Professors, req)
}

// Retry re-issues the last request of a kind
// @Summary Retry the last generation
// @Tags recommendations
// @Security BearerAuth
// @Param kind path string true "universities or professors"
// @Router /api/v1/recommendations/{kind}/retry [post]
func (h *RecommendationHandler) Retry(c *gin.Context) {
	uc, kind, ok := h.controllers(c, true)
	if !ok {
		return
	}
	switch kind {
	case models.KindUniversities:
		retry(c, h, uc.Universities, kind)
	case models.KindProfessors:
		retry(c, h, uc.Professors, kind)
	}
}

// Cancel aborts the pending run of a kind
// @Summary Cancel the pending generation
// @Tags recommendations
// @Security BearerAuth
// @Param kind path string true "universities or professors"
// @Router /api/v1/recommendations/{kind}/cancel [post]
func (h *RecommendationHandler) Cancel(c *gin.Context) {
	uc, kind, ok := h.controllers(c, false)
	if !ok {
		return
	}
	switch kind {
	case models.KindUniversities:
		uc.Universities.Cancel()
		respondSnapshot(c, uc.Universities.Snapshot())
	case models.KindProfessors:
		uc.Professors.Cancel()
		respondSnapshot(c, uc.Professors.Snapshot())
	}
}

// Snapshot returns the current controller state of a kind
// @Summary Controller state
// @Tags recommendations
// @Security BearerAuth
// @Param kind path string true "universities or professors"
// @Router /api/v1/recommendations/{kind} [get]
func (h *RecommendationHandler) Snapshot(c *gin.Context) {
	uc, kind, ok := h.controllers(c, false)
	if !ok {
		return
	}
	switch kind {
	case models.KindUniversities:
		respondSnapshot(c, uc.Universities.Snapshot())
	case models.KindProfessors:
		respondSnapshot(c, uc.Professors.Snapshot())
	}
}

func (h *RecommendationHandler) request(c *gin.Context, kind models.CandidateKind) (uuid.UUID, generation.Request, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return uuid.Nil, generation.Request{}, false
	}

	var body RecommendationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.BadRequest(c, err.Error())
			return uuid.Nil, generation.Request{}, false
		}
	}

	draft, err := h.profiles.Draft(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load draft", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondErrorWithRetry(c, http.StatusServiceUnavailable, middleware.ErrCodeUnavailable,
			"Your profile could not be loaded. Please try again.", int(draftRetryAfter.Milliseconds()))
		return uuid.Nil, generation.Request{}, false
	}

	req := draft.Request(kind, strings.TrimSpace(body.University))
	if body.FieldOfInterest != nil {
		req.FieldOfInterest = *body.FieldOfInterest
	}
	if body.EducationLevel != nil {
		req.EducationLevel = *body.EducationLevel
	}
	if body.Count != nil {
		req.Count = *body.Count
	}
	return userID, req, true
}

// controllers resolves the kind path parameter and the caller's controllers.
// create is false for read-only calls, which then see an idle controller.
func (h *RecommendationHandler) controllers(c *gin.Context, create bool) (*generation.UserControllers, models.CandidateKind, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return nil, "", false
	}

	kind := models.CandidateKind(c.Param("kind"))
	if !kind.Valid() {
		middleware.NotFound(c, "unknown recommendation kind")
		return nil, "", false
	}

	if !create {
		if uc, found := h.registry.Lookup(userID); found {
			return uc, kind, true
		}
	}
	return h.registry.For(userID), kind, true
}

func run[T any](c *gin.Context, h *RecommendationHandler, ctrl *generation.Controller[T], req generation.Request) {
	ctx, span := tracer.Start(c.Request.Context(), "recommendations."+string(req.Kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.kind", string(req.Kind)),
		attribute.Int("generation.count", req.Count),
	)

	o := generation.Outcome[T]{Request: req}
	_, out, err := ctrl.Start(ctx, req)
	if err != nil {
		o.Err = err
	} else {
		o = <-out
	}
	if o.Err != nil {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, generation.Kind(o.Err))
	}
	respondRun(c, h, o)
}

func retry[T any](c *gin.Context, h *RecommendationHandler, ctrl *generation.Controller[T], kind models.CandidateKind) {
	ctx, span := tracer.Start(c.Request.Context(), "recommendations.retry")
	defer span.End()
	span.SetAttributes(attribute.String("generation.kind", string(kind)))

	o := generation.Outcome[T]{Request: generation.Request{Kind: kind}}
	_, out, err := ctrl.StartRetry(ctx)
	if err != nil {
		o.Err = err
	} else {
		o = <-out
	}
	if o.Err != nil {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, generation.Kind(o.Err))
	}
	respondRun(c, h, o)
}

// respondRun answers from the run's own outcome. A superseded run answers 409
// and never carries the candidates of the run that replaced it.
func respondRun[T any](c *gin.Context, h *RecommendationHandler, o generation.Outcome[T]) {
	req, err := o.Request, o.Err
	if err == nil {
		c.JSON(http.StatusOK, RecommendationResponse[T]{
			Token:      o.Token,
			Attempt:    o.Attempt,
			Status:     o.Status(),
			Request:    req,
			Candidates: emptyIfNil(o.Candidates),
		})
		return
	}

	status, apiErr := generationError(err, string(req.Kind))
	resp := RecommendationResponse[T]{
		Token:      o.Token,
		Attempt:    o.Attempt,
		Status:     o.Status(),
		Request:    req,
		Candidates: []T{},
		Error:      &apiErr,
	}
	if errors.Is(err, generation.ErrEmptyResult) && h.suggest != nil {
		resp.Suggestions = h.suggest.Suggest(c.Request.Context(), req)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("generation failed",
			zap.String("kind", string(req.Kind)),
			zap.String("error_kind", generation.Kind(err)),
			zap.Error(err),
		)
	}
	c.JSON(status, resp)
}

func respondSnapshot[T any](c *gin.Context, snap generation.Snapshot[T]) {
	resp := RecommendationResponse[T]{
		Token:      snap.Token,
		Attempt:    snap.Attempt,
		Status:     snap.Status,
		Request:    snap.Request,
		Candidates: emptyIfNil(snap.Candidates),
	}
	if snap.Err != nil {
		_, apiErr := generationError(snap.Err, string(snap.Request.Kind))
		resp.Error = &apiErr
	}
	c.JSON(http.StatusOK, resp)
}
