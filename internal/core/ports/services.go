package ports

import (
	"context"

	"streamlayout/internal/core/domain"
)

// MessageSender receives UI notifications. Sends never block and never fail
// from the caller's point of view.
type MessageSender interface {
	Send(msg domain.Message)
}

// MessageSenderFunc adapts a function to MessageSender.
type MessageSenderFunc func(msg domain.Message)

func (f MessageSenderFunc) Send(msg domain.Message) { f(msg) }

// Subscription delivers a session's output. Layouts carries only the latest
// snapshot; Messages is buffered and drops when the reader falls behind.
type Subscription interface {
	Layouts() <-chan domain.LayoutSnapshot
	Messages() <-chan domain.Message
	Close()
}

// LayoutSession is one call's layout engine plus its reconciliation loop.
type LayoutSession interface {
	ID() domain.SessionID
	LocalParticipantID() domain.ParticipantID
	Update(snapshot domain.CallSnapshot)
	Flush()
	Layout() domain.LayoutSnapshot
	IsInAutoMode() bool

	PinStream(id domain.StreamID, prepend, force bool) bool
	UnpinStream(id domain.StreamID)
	ClearPinnedStreams()
	SetFullscreenStream(id domain.StreamID) bool
	ClearFullscreenStream()
	SwitchToAutoMode()
	SwitchToManualMode()

	Subscribe() Subscription
	Close()
}

// SessionOptions configures a new session. Nil overrides fall back to the
// service defaults.
type SessionOptions struct {
	ID                  domain.SessionID
	LocalParticipantID  domain.ParticipantID
	DefaultCameraRear   *bool
	MaxPinnedStreams    *int
	MaxMosaicStreams    *int
	MaxThumbnailStreams *int
}

type LayoutService interface {
	CreateSession(ctx context.Context, opts SessionOptions) (LayoutSession, error)
	GetSession(ctx context.Context, id domain.SessionID) (LayoutSession, error)
	CloseSession(ctx context.Context, id domain.SessionID) error
	ListSessions(ctx context.Context) ([]domain.SessionID, error)
}

// LayoutMetrics records reconciliation outcomes.
type LayoutMetrics interface {
	RecordReconcile(sessionID domain.SessionID, snapshot domain.LayoutSnapshot)
	RecordPinSuggestion(sessionID domain.SessionID)
	RecordModeSwitch(sessionID domain.SessionID, mode domain.LayoutMode)
	RecordFullscreen(sessionID domain.SessionID, enabled bool)
	RecordSessionOpened(sessionID domain.SessionID)
	RecordSessionClosed(sessionID domain.SessionID)
}

// LayoutEventPublisher fans layout events out to other instances or
// observers. Publishing is best effort.
type LayoutEventPublisher interface {
	PublishLayout(ctx context.Context, snapshot domain.LayoutSnapshot) error
	PublishMessage(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error
	Close() error
}
