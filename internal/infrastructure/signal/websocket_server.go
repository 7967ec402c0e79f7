package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
	"streamlayout/internal/core/services"
	"streamlayout/internal/infrastructure/middleware"
	"streamlayout/internal/infrastructure/webrtc"
	"streamlayout/pkg/config"
	apperrors "streamlayout/pkg/errors"
	"streamlayout/pkg/tracing"
	"streamlayout/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server to client message types.
const (
	TypeLayout         = "layout"
	TypePinScreenshare = "pin_screenshare"
	TypeFullscreen     = "fullscreen"
	TypeError          = "error"
)

// Client to server message types.
const (
	TypeSnapshot        = "snapshot"
	TypePin             = "pin"
	TypeUnpin           = "unpin"
	TypeClearPins       = "clear_pins"
	TypeSetFullscreen   = "fullscreen"
	TypeClearFullscreen = "clear_fullscreen"
	TypeMode            = "mode"
)

type SignalMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type PinPayload struct {
	StreamID domain.StreamID `json:"stream_id"`
	Prepend  bool            `json:"prepend"`
	Force    bool            `json:"force"`
}

type StreamPayload struct {
	StreamID domain.StreamID `json:"stream_id"`
}

type ModePayload struct {
	Mode domain.LayoutMode `json:"mode"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// WebSocketServer pushes a session's layouts and notifications to a renderer
// and accepts layout commands back on the same connection.
type WebSocketServer struct {
	layoutService ports.LayoutService
	authService   services.AuthService
	gate          *middleware.ConnectionGate
	cfg           *config.Config
	upgrader      websocket.Upgrader

	connections map[*websocket.Conn]domain.SessionID
	mu          sync.RWMutex

	pingInterval   time.Duration
	pongTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64

	logger *zap.SugaredLogger
}

// NewWebSocketServer creates a websocket server that pushes layouts for
// sessions owned by layoutService.
func NewWebSocketServer(
	layoutService ports.LayoutService,
	authService services.AuthService,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	s := &WebSocketServer{
		layoutService:  layoutService,
		authService:    authService,
		gate:           middleware.NewConnectionGate(cfg),
		cfg:            cfg,
		connections:    make(map[*websocket.Conn]domain.SessionID),
		pingInterval:   cfg.Signal.PingInterval,
		pongTimeout:    cfg.Signal.PongTimeout,
		writeTimeout:   cfg.Signal.WriteTimeout,
		maxMessageSize: cfg.Signal.MaxMessageSize,
		logger:         logger,
	}
	if limit := cfg.RateLimiting.WebSocket.MaxMessageSizeBytes; cfg.RateLimiting.Enabled && limit > 0 && limit < s.maxMessageSize {
		s.maxMessageSize = limit
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Auth.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket serves /ws?session_id=&token=.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	release, ok := s.gate.Acquire(r)
	if !ok {
		writeHTTPError(w, apperrors.NewRateLimitError())
		return
	}
	defer release()

	sessionID := domain.SessionID(r.URL.Query().Get("session_id"))
	if err := validation.ValidateSessionID(string(sessionID)); err != nil {
		writeHTTPError(w, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	claims, err := s.authService.Authorize(r.URL.Query().Get("token"), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			writeHTTPError(w, apperrors.NewForbiddenError("token was not issued for this session"))
		} else {
			writeHTTPError(w, apperrors.NewUnauthorizedError(err.Error()))
		}
		return
	}

	session, err := s.layoutService.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeHTTPError(w, apperrors.NewNotFoundError("session"))
		} else {
			writeHTTPError(w, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to load session", http.StatusInternalServerError))
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	s.mu.Lock()
	s.connections[conn] = sessionID
	s.mu.Unlock()

	s.logger.Infow("renderer connected",
		"session_id", sessionID,
		"participant_id", claims.ParticipantID,
	)

	s.serve(conn, session)

	s.mu.Lock()
	delete(s.connections, conn)
	s.mu.Unlock()
	conn.Close()

	s.logger.Infow("renderer disconnected",
		"session_id", sessionID,
		"participant_id", claims.ParticipantID,
	)
}

// serve owns every write to conn. The reader goroutine only forwards
// decoded messages.
func (s *WebSocketServer) serve(conn *websocket.Conn, session ports.LayoutSession) {
	sub := session.Subscribe()
	defer sub.Close()

	limiter := middleware.NewMessageLimiter(s.cfg)

	conn.SetReadLimit(s.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan SignalMessage, 10)
	errorChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			var msg SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			select {
			case messageChan <- msg:
			case <-done:
				return
			}
		}
	}()

	sessionID := session.ID()
	for {
		select {
		case layout, ok := <-sub.Layouts():
			if !ok {
				s.writeClose(conn, "session closed")
				return
			}
			if err := s.write(conn, outboundMessage{Type: TypeLayout, Payload: layout}); err != nil {
				s.logger.Infow("error sending layout", "session_id", sessionID, "error", err)
				return
			}

		case msg, ok := <-sub.Messages():
			if !ok {
				s.writeClose(conn, "session closed")
				return
			}
			out, known := encodeMessage(msg)
			if !known {
				continue
			}
			if err := s.write(conn, out); err != nil {
				s.logger.Infow("error sending message", "session_id", sessionID, "error", err)
				return
			}

		case msg := <-messageChan:
			if !limiter.Allow() {
				s.sendError(conn, "rate limit exceeded")
				continue
			}
			if err := s.handleMessage(context.Background(), session, msg); err != nil {
				s.logger.Infow("error handling message",
					"session_id", sessionID,
					"type", msg.Type,
					"error", err,
				)
				s.sendError(conn, err.Error())
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "session_id", sessionID, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message", "session_id", sessionID, "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, session ports.LayoutSession, msg SignalMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceWebSocketMessage(ctx, msg.Type, string(session.ID()))
	defer span.End()

	var err error
	switch msg.Type {
	case TypeSnapshot:
		var update webrtc.CallUpdate
		if err = decodePayload(msg, &update); err == nil {
			if err = update.Validate(); err == nil {
				session.Update(update.Snapshot(session.LocalParticipantID()))
			}
		}

	case TypePin:
		var p PinPayload
		if err = decodePayload(msg, &p); err == nil {
			err = validStream(msg.Type, p.StreamID)
		}
		if err == nil {
			session.PinStream(p.StreamID, p.Prepend, p.Force)
		}

	case TypeUnpin:
		var p StreamPayload
		if err = decodePayload(msg, &p); err == nil {
			err = validStream(msg.Type, p.StreamID)
		}
		if err == nil {
			session.UnpinStream(p.StreamID)
		}

	case TypeClearPins:
		session.ClearPinnedStreams()

	case TypeSetFullscreen:
		var p StreamPayload
		if err = decodePayload(msg, &p); err == nil {
			err = validStream(msg.Type, p.StreamID)
		}
		if err == nil {
			session.SetFullscreenStream(p.StreamID)
		}

	case TypeClearFullscreen:
		session.ClearFullscreenStream()

	case TypeMode:
		var p ModePayload
		if err = decodePayload(msg, &p); err == nil {
			switch p.Mode {
			case domain.ModeAuto:
				session.SwitchToAutoMode()
			case domain.ModeManual:
				session.SwitchToManualMode()
			default:
				err = fmt.Errorf("invalid mode %q", p.Mode)
			}
		}

	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func decodePayload(msg SignalMessage, v interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

func validStream(msgType string, id domain.StreamID) error {
	if err := validation.ValidateStreamID(string(id)); err != nil {
		return fmt.Errorf("%s: %w", msgType, err)
	}
	return nil
}

func encodeMessage(msg domain.Message) (outboundMessage, bool) {
	switch m := msg.(type) {
	case domain.PinScreenshareMessage:
		return outboundMessage{Type: TypePinScreenshare, Payload: m}, true
	case domain.FullScreenMessage:
		return outboundMessage{Type: TypeFullscreen, Payload: m}, true
	}
	return outboundMessage{}, false
}

func (s *WebSocketServer) write(conn *websocket.Conn, msg outboundMessage) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(msg)
}

func (s *WebSocketServer) sendError(conn *websocket.Conn, message string) {
	if err := s.write(conn, outboundMessage{Type: TypeError, Payload: ErrorPayload{Message: message}}); err != nil {
		s.logger.Debugw("error sending error message", "error", err)
	}
}

func (s *WebSocketServer) writeClose(conn *websocket.Conn, reason string) {
	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(s.writeTimeout))
}

func writeHTTPError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

// ConnectionCount reports open renderer connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Shutdown closes every open connection with a going-away frame.
func (s *WebSocketServer) Shutdown() {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	data := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(s.writeTimeout))
		conn.Close()
	}
}
