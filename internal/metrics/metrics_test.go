package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration(generation.Report{
		Request: generation.Request{Kind: models.KindUniversities},
		Status:  generation.StatusFailed,
		Err:     generation.ErrTimeout,
		Latency: 30 * time.Second,
		Applied: true,
	})

	got := testutil.ToFloat64(m.generationRuns.WithLabelValues("universities", "failed", "timeout", "true"))
	assert.Equal(t, 1.0, got)
}

func TestObserveEmailAndFavorites(t *testing.T) {
	m := New()
	m.ObserveEmail("send", nil)
	m.ObserveEmail("send", errors.New("smtp down"))
	m.ObserveFavorites(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("send", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.favoritesSaved.WithLabelValues("saved")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/things/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proflinker_http_requests_total")
}
