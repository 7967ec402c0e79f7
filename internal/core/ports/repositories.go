package ports

import (
	"context"
	"time"

	"streamlayout/internal/core/domain"
)

type SessionRepository interface {
	Add(ctx context.Context, session LayoutSession) error
	GetByID(ctx context.Context, id domain.SessionID) (LayoutSession, error)
	Remove(ctx context.Context, id domain.SessionID) (LayoutSession, error)
	List(ctx context.Context) ([]LayoutSession, error)
}

// Event types carried by EventRecord.Type.
const (
	EventLayoutChanged = "layout.changed"
	EventPinSuggested  = "layout.pin_suggested"
	EventFullscreen    = "layout.fullscreen"
)

// EventRecord is one published event as kept by an event recorder.
type EventRecord struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   interface{}      `json:"payload"`
}

// LayoutEvent wraps an emitted layout.
func LayoutEvent(snapshot domain.LayoutSnapshot) EventRecord {
	return EventRecord{
		Type:      EventLayoutChanged,
		SessionID: snapshot.SessionID,
		Timestamp: snapshot.UpdatedAt,
		Payload:   snapshot,
	}
}

// MessageEvent wraps a UI notification. The timestamp is left for the
// publisher to fill.
func MessageEvent(sessionID domain.SessionID, msg domain.Message) (EventRecord, bool) {
	switch m := msg.(type) {
	case domain.PinScreenshareMessage:
		return EventRecord{Type: EventPinSuggested, SessionID: sessionID, Payload: m}, true
	case domain.FullScreenMessage:
		return EventRecord{Type: EventFullscreen, SessionID: sessionID, Payload: m}, true
	}
	return EventRecord{}, false
}

// EventHistory exposes recently published events per session.
type EventHistory interface {
	Recent(ctx context.Context, sessionID domain.SessionID) ([]EventRecord, error)
	Forget(ctx context.Context, sessionID domain.SessionID) error
}
