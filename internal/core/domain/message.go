package domain

// Message is a fire-and-forget notification for the UI layer.
type Message interface {
	isMessage()
}

// PinScreenshareMessage asks the UI to offer pinning a new screen share.
type PinScreenshareMessage struct {
	StreamID    StreamID `json:"stream_id"`
	DisplayName string   `json:"display_name"`
}

func (PinScreenshareMessage) isMessage() {}

type FullScreenMessage struct {
	Enabled bool `json:"enabled"`
}

func (FullScreenMessage) isMessage() {}

var (
	FullScreenEnabled  = FullScreenMessage{Enabled: true}
	FullScreenDisabled = FullScreenMessage{Enabled: false}
)
