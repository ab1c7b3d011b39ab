package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "proflinker-api"
	serviceVersion = "0.1.0"
)

// Check probes one dependency. A nil Probe means the dependency is not configured.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
	// Optional checks report their state without degrading the service
	Optional bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks  []Check
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 5 * time.Second}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Health returns basic health status
// @Summary Liveness
// @Tags ops
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: serviceName,
		Version: serviceVersion,
	})
}

// DeepHealth probes every dependency concurrently
// @Summary Readiness with dependency checks
// @Tags ops
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health/deep [get]
func (h *HealthHandler) DeepHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var mu sync.Mutex
	deps := make(map[string]string, len(h.checks))
	allHealthy := true

	// probes never return an error to the group so one failure does not
	// cancel the others
	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		if check.Probe == nil {
			mu.Lock()
			deps[check.Name] = "not configured"
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			err := check.Probe(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				deps[check.Name] = "unhealthy: " + err.Error()
				if !check.Optional {
					allHealthy = false
				}
				return nil
			}
			deps[check.Name] = "healthy"
			return nil
		})
	}
	_ = g.Wait()

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:       status,
		Service:      serviceName,
		Version:      serviceVersion,
		Dependencies: deps,
	})
}
