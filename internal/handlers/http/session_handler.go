package http

import (
	stderrors "errors"
	"net/http"
	"strings"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
	"streamlayout/internal/core/services"
	"streamlayout/internal/infrastructure/middleware"
	"streamlayout/internal/infrastructure/webrtc"
	"streamlayout/pkg/errors"
	"streamlayout/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var _ ports.HTTPHandler = (*SessionHandler)(nil)

type SessionHandler struct {
	layoutService ports.LayoutService
	authService   services.AuthService
	history       ports.EventHistory
	logger        *zap.SugaredLogger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(
	layoutService ports.LayoutService,
	authService services.AuthService,
	history ports.EventHistory,
	logger *zap.SugaredLogger,
) *SessionHandler {
	return &SessionHandler{
		layoutService: layoutService,
		authService:   authService,
		history:       history,
		logger:        logger,
	}
}

// SetupRoutes registers the session routes under /api/v1.
func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/sessions", h.CreateSession)

	session := api.Group("/sessions/:id", middleware.SessionAuthMiddleware(h.authService))
	{
		session.GET("/layout", h.GetLayout)
		session.PUT("/snapshot", h.UpdateSnapshot)
		session.POST("/pins", h.PinStream)
		session.DELETE("/pins/:stream_id", h.UnpinStream)
		session.DELETE("/pins", h.ClearPinnedStreams)
		session.PUT("/fullscreen", h.SetFullscreen)
		session.DELETE("/fullscreen", h.ClearFullscreen)
		session.PUT("/mode", h.SetMode)
		session.GET("/events", h.GetEvents)
		session.DELETE("", h.CloseSession)
	}
}

type CreateSessionRequest struct {
	ID                  string `json:"id"`
	LocalParticipantID  string `json:"local_participant_id" binding:"required"`
	DefaultCameraRear   *bool  `json:"default_camera_rear"`
	MaxPinnedStreams    *int   `json:"max_pinned_streams"`
	MaxMosaicStreams    *int   `json:"max_mosaic_streams"`
	MaxThumbnailStreams *int   `json:"max_thumbnail_streams"`
}

type SessionResponse struct {
	ID                 domain.SessionID      `json:"id"`
	LocalParticipantID domain.ParticipantID  `json:"local_participant_id"`
	Layout             domain.LayoutSnapshot `json:"layout"`
}

type PinRequest struct {
	StreamID string `json:"stream_id" binding:"required"`
	Prepend  bool   `json:"prepend"`
	Force    bool   `json:"force"`
}

type FullscreenRequest struct {
	StreamID string `json:"stream_id" binding:"required"`
}

type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// CreateSession opens a layout session and returns it with a token for
// the local participant.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.LocalParticipantID = strings.TrimSpace(req.LocalParticipantID)

	if req.ID != "" {
		if err := validation.ValidateSessionID(req.ID); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if err := validation.ValidateParticipantID(req.LocalParticipantID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	for name, v := range map[string]*int{
		"max_pinned_streams":    req.MaxPinnedStreams,
		"max_mosaic_streams":    req.MaxMosaicStreams,
		"max_thumbnail_streams": req.MaxThumbnailStreams,
	} {
		if v == nil {
			continue
		}
		if err := validation.ValidateNonNegative(*v, name); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	session, err := h.layoutService.CreateSession(c.Request.Context(), ports.SessionOptions{
		ID:                  domain.SessionID(req.ID),
		LocalParticipantID:  domain.ParticipantID(req.LocalParticipantID),
		DefaultCameraRear:   req.DefaultCameraRear,
		MaxPinnedStreams:    req.MaxPinnedStreams,
		MaxMosaicStreams:    req.MaxMosaicStreams,
		MaxThumbnailStreams: req.MaxThumbnailStreams,
	})
	if err != nil {
		switch {
		case stderrors.Is(err, domain.ErrSessionExists):
			c.Error(errors.NewConflictError("session already exists"))
		case stderrors.Is(err, domain.ErrInvalidConstraints):
			c.Error(errors.NewInvalidInputError(err.Error()))
		default:
			c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to create session", http.StatusInternalServerError))
		}
		return
	}

	token, err := h.authService.GenerateToken(session.ID(), session.LocalParticipantID())
	if err != nil {
		// A session nobody can reach is useless.
		_ = h.layoutService.CloseSession(c.Request.Context(), session.ID())
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to issue session token", http.StatusInternalServerError))
		return
	}

	h.logger.Infow("session created",
		"session_id", session.ID(),
		"participant_id", session.LocalParticipantID(),
	)

	c.JSON(http.StatusCreated, gin.H{
		"session": sessionResponse(session),
		"token":   token,
	})
}

// GetLayout returns the last emitted layout.
func (h *SessionHandler) GetLayout(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.writeLayout(c, session)
}

// UpdateSnapshot feeds live call state. The layout is recomputed after the
// debounce window unless flush=true is passed.
func (h *SessionHandler) UpdateSnapshot(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req webrtc.CallUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	session.Update(req.Snapshot(session.LocalParticipantID()))

	if c.Query("flush") == "true" {
		session.Flush()
		h.writeLayout(c, session)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *SessionHandler) PinStream(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateStreamID(req.StreamID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	pinned := session.PinStream(domain.StreamID(req.StreamID), req.Prepend, req.Force)
	snap := session.Layout()
	middleware.SetLayoutContext(c, snap)
	c.JSON(http.StatusOK, gin.H{
		"pinned": pinned,
		"layout": snap,
	})
}

func (h *SessionHandler) UnpinStream(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	streamID := c.Param("stream_id")
	if err := validation.ValidateStreamID(streamID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	session.UnpinStream(domain.StreamID(streamID))
	h.writeLayout(c, session)
}

func (h *SessionHandler) ClearPinnedStreams(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.ClearPinnedStreams()
	h.writeLayout(c, session)
}

func (h *SessionHandler) SetFullscreen(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req FullscreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateStreamID(req.StreamID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	fullscreen := session.SetFullscreenStream(domain.StreamID(req.StreamID))
	snap := session.Layout()
	middleware.SetLayoutContext(c, snap)
	c.JSON(http.StatusOK, gin.H{
		"fullscreen": fullscreen,
		"layout":     snap,
	})
}

func (h *SessionHandler) ClearFullscreen(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.ClearFullscreenStream()
	h.writeLayout(c, session)
}

// SetMode switches between automatic and manual arrangement.
func (h *SessionHandler) SetMode(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateOneOf(req.Mode, "mode", string(domain.ModeAuto), string(domain.ModeManual)); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	if domain.LayoutMode(req.Mode) == domain.ModeAuto {
		session.SwitchToAutoMode()
	} else {
		session.SwitchToManualMode()
	}
	h.writeLayout(c, session)
}

// GetEvents returns the recently published events of the session.
func (h *SessionHandler) GetEvents(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))
	if _, ok := h.session(c); !ok {
		return
	}

	events, err := h.history.Recent(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load events", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"events":     events,
	})
}

// CloseSession tears the session down and forgets its events.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	if err := h.layoutService.CloseSession(c.Request.Context(), sessionID); err != nil {
		h.abortWithSessionError(c, err)
		return
	}
	if err := h.history.Forget(c.Request.Context(), sessionID); err != nil {
		h.logger.Warnw("failed to drop event history", "session_id", sessionID, "error", err)
	}

	h.logger.Infow("session closed", "session_id", sessionID)
	c.Status(http.StatusNoContent)
}

// writeLayout responds with the session's current layout.
func (h *SessionHandler) writeLayout(c *gin.Context, session ports.LayoutSession) {
	snap := session.Layout()
	middleware.SetLayoutContext(c, snap)
	c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) session(c *gin.Context) (ports.LayoutSession, bool) {
	session, err := h.layoutService.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		h.abortWithSessionError(c, err)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) abortWithSessionError(c *gin.Context, err error) {
	if stderrors.Is(err, domain.ErrSessionNotFound) {
		c.Error(errors.NewNotFoundError("session"))
	} else {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load session", http.StatusInternalServerError))
	}
	c.Abort()
}

func sessionResponse(session ports.LayoutSession) SessionResponse {
	return SessionResponse{
		ID:                 session.ID(),
		LocalParticipantID: session.LocalParticipantID(),
		Layout:             session.Layout(),
	}
}
