package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_Labels(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(DefaultProfilingConfig()))
	handler := func(c *gin.Context) {
		labels := map[string]string{}
		pprof.ForLabels(c.Request.Context(), func(k, v string) bool {
			labels[k] = v
			return true
		})
		c.JSON(http.StatusOK, labels)
	}
	router.GET("/api/v1/orders/:id", handler)
	router.GET("/health", handler)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders/1", nil))
	assert.JSONEq(t, `{"method":"GET","route":"/api/v1/orders/:id","resource":"orders"}`, w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestProfiling_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(ProfilingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		_, ok := pprof.Label(c.Request.Context(), "method")
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
}

func TestResourceFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/orders/:id":       "orders",
		"/api/v1/me/nodes":         "me",
		"/api/v2/tasks/dead":       "tasks",
		"/health":                  "health",
		"/swagger/*any":            "swagger",
		"/api/v1/:id":              "",
		"":                         "",
		"/api/version/agreements":  "version",
		"/api/V3/profiles/:handle": "profiles",
	}
	for route, want := range tests {
		assert.Equal(t, want, resourceFromRoute(route), route)
	}
}
