package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func tracedRouter(cfg TracingConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Tracing(cfg), SpanErrorMarker(), Identity(IdentityConfig{}), TracingAttributes())
	router.GET("/api/v1/orders/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.String(http.StatusBadGateway, "upstream")
	})
	router.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "missing") })
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return router
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(TracingConfig{ServiceName: "test", Enabled: false})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders/1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_ServerSpan(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(TracingConfig{ServiceName: "test", Enabled: true})

	req := identityRequest("alice", "")
	req.URL.Path = "/api/v1/orders/42"
	req.Header.Set(RequestIDHeader, "req-1")
	serve(router, req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/orders/:id", spans[0].Name())
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "req-1", attrs["request_id"].AsString())
	assert.Equal(t, "alice", attrs["enduser.id"].AsString())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_SkipPaths(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(TracingConfig{ServiceName: "test", Enabled: true, SkipPaths: []string{"/health"}})

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, sr.Ended())
}

func TestSpanErrorMarker(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(TracingConfig{ServiceName: "test", Enabled: true})

	serve(router, httptest.NewRequest(http.MethodGet, "/fail", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, assert.AnError.Error(), spanAttrs(spans[0])["error.message"].AsString())

	assert.Equal(t, int64(http.StatusNotFound), spanAttrs(spans[1])["http.status_code"].AsInt64())
}
