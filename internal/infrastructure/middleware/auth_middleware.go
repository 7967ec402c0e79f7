package middleware

import (
	"errors"
	"strings"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/services"
	apperrors "streamlayout/pkg/errors"
	"streamlayout/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextSessionID     = "session_id"
	ContextParticipantID = "participant_id"
)

// SessionAuthMiddleware requires a session token issued for the session named
// by the :id route parameter. The token is read from the Authorization
// header, or from the token query parameter for clients that cannot set
// headers.
func SessionAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.Error(apperrors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		sessionID := domain.SessionID(c.Param("id"))
		claims, err := authService.Authorize(token, sessionID)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				c.Error(apperrors.NewForbiddenError("token was not issued for this session"))
			} else {
				c.Error(apperrors.NewUnauthorizedError(err.Error()))
			}
			c.Abort()
			return
		}

		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextParticipantID, claims.ParticipantID)

		ctx := services.ContextWithClaims(c.Request.Context(), claims)
		ctx = logger.WithSessionID(ctx, string(claims.SessionID))
		ctx = logger.WithParticipantID(ctx, string(claims.ParticipantID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
