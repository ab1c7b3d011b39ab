package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/usage"
	"go.uber.org/zap"
)

// AdminHandler exposes operational listings to admins
type AdminHandler struct {
	usage  *usage.Service
	events eventbus.EventStore
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(usageSvc *usage.Service, events eventbus.EventStore, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{usage: usageSvc, events: events, logger: logger}
}

// GenerationLogs lists recent generation runs
// @Summary Recent generation runs
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param kind query string false "universities or professors"
// @Param status query string false "succeeded, failed or cancelled"
// @Param limit query int false "max rows"
// @Success 200 {array} models.GenerationLog
// @Router /api/v1/admin/generation-logs [get]
func (h *AdminHandler) GenerationLogs(c *gin.Context) {
	filter := usage.Filter{
		Kind:   models.CandidateKind(c.Query("kind")),
		Status: c.Query("status"),
		Limit:  queryInt(c, "limit"),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		middleware.BadRequest(c, "unknown kind")
		return
	}

	logs, err := h.usage.Recent(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list generation logs", zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.ErrCodeDatabaseError, "failed to load generation logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Events lists recent domain events
// @Summary Recent domain events
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param subject query string false "subject or prefix ending in >"
// @Param limit query int false "max events"
// @Success 200 {array} eventbus.Event
// @Router /api/v1/admin/events [get]
func (h *AdminHandler) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusOK, gin.H{"events": []eventbus.Event{}})
		return
	}

	subject := c.DefaultQuery("subject", "proflinker.>")
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	events, err := h.events.Read(subject, limit)
	if err != nil {
		h.logger.Error("failed to read events", zap.String("subject", subject), zap.Error(err))
		middleware.InternalError(c, "failed to read events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": emptyIfNil(events)})
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
