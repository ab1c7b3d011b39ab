package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/profile"
	"go.uber.org/zap"
)

// ProfileHandler serves the session draft
type ProfileHandler struct {
	profiles *profile.Service
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *profile.Service, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// DraftResponse wraps a draft with its readiness for generation
type DraftResponse struct {
	Draft profile.Draft `json:"draft"`
	Ready bool          `json:"ready"`
}

// GetDraft returns the session draft
// @Summary Get the session draft
// @Tags profile
// @Security BearerAuth
// @Produce json
// @Success 200 {object} DraftResponse
// @Router /api/v1/profile/draft [get]
func (h *ProfileHandler) GetDraft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	d, err := h.profiles.Draft(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load draft", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.InternalError(c, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, DraftResponse{Draft: d, Ready: d.Ready()})
}

// UpdateDraft applies a partial update to the session draft
// @Summary Update the session draft
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body profile.Patch true "changed fields"
// @Success 200 {object} DraftResponse
// @Router /api/v1/profile/draft [put]
func (h *ProfileHandler) UpdateDraft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	var patch profile.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	d, err := h.profiles.Update(c.Request.Context(), userID, patch)
	if err != nil {
		h.logger.Error("failed to update draft", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.InternalError(c, "failed to save profile")
		return
	}
	c.JSON(http.StatusOK, DraftResponse{Draft: d, Ready: d.Ready()})
}

// ResetDraft drops the session draft; the saved profile is kept
// @Summary Reset the session draft
// @Tags profile
// @Security BearerAuth
// @Success 204
// @Router /api/v1/profile/draft [delete]
func (h *ProfileHandler) ResetDraft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.profiles.Reset(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to reset draft", zap.Error(err))
		middleware.InternalError(c, "failed to reset profile")
		return
	}
	c.Status(http.StatusNoContent)
}
