package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestGinMiddleware_CountsByRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/recipes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recipes/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	body := scrape(t, m)
	assert.Contains(t, body, `restaurant_http_requests_total{method="GET",path="/api/recipes/:id",status="200"} 2`)
}

func TestOrderCounters(t *testing.T) {
	m := New()
	m.OrderPlaced(25.5)
	m.OrderPlaced(10)
	m.CheckoutFailed("write")
	m.StatusChanged("delivered")

	body := scrape(t, m)
	assert.Contains(t, body, "restaurant_orders_placed_total 2")
	assert.Contains(t, body, `restaurant_orders_checkout_failures_total{step="write"} 1`)
	assert.Contains(t, body, `restaurant_orders_status_changes_total{status="delivered"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderPlaced(1)
		m.CheckoutFailed("write")
		m.StatusChanged("pending")
		m.ImageProcessed("ok")
		m.SetActiveClients(3)
		m.ClientEvicted()
	})
}
