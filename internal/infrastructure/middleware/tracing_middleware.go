package middleware

import (
	"time"

	"streamlayout/internal/core/domain"
	"streamlayout/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Context keys for the layout a handler responded with.
const (
	ContextLayoutMode    = "layout_mode"
	ContextLayoutVersion = "layout_version"
)

// SetLayoutContext records the layout a handler responded with so the request
// span can carry its mode and version.
func SetLayoutContext(c *gin.Context, snapshot domain.LayoutSnapshot) {
	c.Set(ContextLayoutMode, string(snapshot.Mode))
	c.Set(ContextLayoutVersion, int64(snapshot.Version))
}

// TracingMiddleware adds tracing to HTTP requests. Session routes are tagged
// with the session, the authenticated participant and the resulting layout.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start span
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.remote_addr", c.ClientIP()),
		)
		if id := c.GetString(ContextRequestID); id != "" {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
		if id := c.Param("id"); id != "" {
			span.SetAttributes(tracing.SessionIDKey.String(id))
		}
		if id := c.Param("stream_id"); id != "" {
			span.SetAttributes(tracing.StreamIDKey.String(id))
		}

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		// Set by the session auth middleware and handlers further down the chain.
		setLayoutAttributes(c, span)

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)
		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

func setLayoutAttributes(c *gin.Context, span trace.Span) {
	if v, ok := c.Get(ContextParticipantID); ok {
		if id, ok := v.(domain.ParticipantID); ok {
			span.SetAttributes(tracing.ParticipantIDKey.String(string(id)))
		}
	}
	if mode := c.GetString(ContextLayoutMode); mode != "" {
		span.SetAttributes(tracing.ModeKey.String(mode))
	}
	if version := c.GetInt64(ContextLayoutVersion); version > 0 {
		span.SetAttributes(tracing.VersionKey.Int64(version))
	}
}
