package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestTracingMiddleware_TagsSessionRoutes(t *testing.T) {
	recorder := newSpanRecorder(t)
	auth := services.NewAuthService("secret", time.Hour)
	token, err := auth.GenerateToken("call-1", "alice")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware(), TracingMiddleware())
	router.DELETE("/sessions/:id/pins/:stream_id", SessionAuthMiddleware(auth), func(c *gin.Context) {
		snapshot := domain.LayoutSnapshot{SessionID: "call-1", Mode: domain.ModeManual, Version: 7}
		SetLayoutContext(c, snapshot)
		c.JSON(http.StatusOK, snapshot)
	})

	req := httptest.NewRequest(http.MethodDelete, "/sessions/call-1/pins/cam-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "http.DELETE", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := spanAttributes(span)
	assert.Equal(t, "/sessions/:id/pins/:stream_id", attrs["http.route"].AsString())
	assert.Equal(t, "req-1", attrs["http.request_id"].AsString())
	assert.Equal(t, "call-1", attrs["session.id"].AsString())
	assert.Equal(t, "cam-1", attrs["stream.id"].AsString())
	assert.Equal(t, "alice", attrs["participant.id"].AsString())
	assert.Equal(t, "manual", attrs["layout.mode"].AsString())
	assert.Equal(t, int64(7), attrs["layout.version"].AsInt64())
	assert.Equal(t, int64(http.StatusOK), attrs["http.status_code"].AsInt64())
}

func TestTracingMiddleware_MarksFailures(t *testing.T) {
	recorder := newSpanRecorder(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TracingMiddleware())
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusServiceUnavailable)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := spanAttributes(spans[0])
	_, tagged := attrs["layout.mode"]
	assert.False(t, tagged)
	_, tagged = attrs["participant.id"]
	assert.False(t, tagged)
}
