package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/favorites"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

// FavoritesHandler handles selection and saved favorites
type FavoritesHandler struct {
	tracker *favorites.Tracker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewFavoritesHandler creates a new favorites handler
func NewFavoritesHandler(tracker *favorites.Tracker, m *metrics.Metrics, logger *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{tracker: tracker, metrics: m, logger: logger}
}

// ToggleResponse reports the selection state of one candidate after a toggle
type ToggleResponse struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

// FavoritesResponse lists saved favorites
type FavoritesResponse struct {
	Universities []models.FavoriteUniversity `json:"universities"`
	Professors   []models.FavoriteProfessor  `json:"professors"`
}

// Toggle adds or removes a candidate from the pending selection
// @Summary Toggle a candidate in the selection
// @Tags favorites
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body favorites.Item true "candidate"
// @Success 200 {object} ToggleResponse
// @Router /api/v1/favorites/selection/toggle [post]
func (h *FavoritesHandler) Toggle(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	var item favorites.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	selected, err := h.tracker.Toggle(c.Request.Context(), userID, item)
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidItem) {
			middleware.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("failed to toggle selection", zap.Error(err))
		middleware.InternalError(c, "failed to update selection")
		return
	}
	c.JSON(http.StatusOK, ToggleResponse{ID: item.ID(), Selected: selected})
}

// Selection returns the pending selection
// @Summary Pending selection
// @Tags favorites
// @Security BearerAuth
// @Produce json
// @Router /api/v1/favorites/selection [get]
func (h *FavoritesHandler) Selection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	items, err := h.tracker.Selection(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list selection", zap.Error(err))
		middleware.InternalError(c, "failed to load selection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": emptyIfNil(items)})
}

// Complete persists the pending selection. Writes are independent, so a
// partial failure answers 207 with the failed items listed.
// @Summary Save the selection as favorites
// @Tags favorites
// @Security BearerAuth
// @Produce json
// @Success 200 {object} favorites.CompletionResult
// @Success 207 {object} favorites.CompletionResult
// @Router /api/v1/favorites/complete [post]
func (h *FavoritesHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.tracker.Complete(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, favorites.ErrEmptySelection) {
			middleware.BadRequest(c, "select at least one university or professor")
			return
		}
		h.logger.Error("failed to complete selection", zap.Error(err))
		middleware.InternalError(c, "failed to save favorites")
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveFavorites(result.Saved, len(result.Failed))
	}

	status := http.StatusOK
	switch {
	case result.Partial():
		status = http.StatusMultiStatus
	case result.Saved == 0:
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

// List returns saved favorites
// @Summary Saved favorites
// @Tags favorites
// @Security BearerAuth
// @Produce json
// @Success 200 {object} FavoritesResponse
// @Router /api/v1/favorites [get]
func (h *FavoritesHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	universities, professors, err := h.tracker.Favorites(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list favorites", zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.ErrCodeDatabaseError, "failed to load favorites")
		return
	}
	c.JSON(http.StatusOK, FavoritesResponse{
		Universities: emptyIfNil(universities),
		Professors:   emptyIfNil(professors),
	})
}

// Remove deletes one saved favorite
// @Summary Remove a saved favorite
// @Tags favorites
// @Security BearerAuth
// @Param kind path string true "universities or professors"
// @Param id path string true "favorite id"
// @Success 204
// @Router /api/v1/favorites/{kind}/{id} [delete]
func (h *FavoritesHandler) Remove(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	kind := models.CandidateKind(c.Param("kind"))
	if !kind.Valid() {
		middleware.NotFound(c, "unknown favorite kind")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.BadRequest(c, "invalid favorite id")
		return
	}

	removed, err := h.tracker.Remove(c.Request.Context(), userID, kind, id)
	if err != nil {
		h.logger.Error("failed to remove favorite", zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.ErrCodeDatabaseError, "failed to remove favorite")
		return
	}
	if !removed {
		middleware.NotFound(c, "favorite not found")
		return
	}
	c.Status(http.StatusNoContent)
}
