package domain

type CallState string

const (
	CallStateConnecting   CallState = "connecting"
	CallStateConnected    CallState = "connected"
	CallStateReconnecting CallState = "reconnecting"
	CallStateDisconnected CallState = "disconnected"
)

// Valid reports whether s is a known call state.
func (s CallState) Valid() bool {
	switch s {
	case CallStateConnecting, CallStateConnected, CallStateReconnecting, CallStateDisconnected:
		return true
	}
	return false
}

// CallSnapshot is one tick of live call state fed into a layout session.
type CallSnapshot struct {
	State            CallState `json:"state"`
	ParticipantCount int       `json:"participant_count"`
	IsOneToOne       bool      `json:"one_to_one"`
	Streams          []Stream  `json:"streams"`
}
