package domain

type StreamID string
type SessionID string
type ParticipantID string

// Stream is one participant's media source as resolved by the call. The
// layout engine only reclassifies streams, it never mutates them.
type Stream struct {
	ID            StreamID `json:"id"`
	HasVideo      bool     `json:"has_video"`
	IsScreenShare bool     `json:"is_screen_share"`
	IsEnabled     bool     `json:"is_enabled"`
	IsMine        bool     `json:"is_mine"`
	DisplayName   string   `json:"display_name"`
	Avatar        string   `json:"avatar,omitempty"`
}

func (s Stream) IsRemoteScreenShare() bool {
	return s.IsScreenShare && !s.IsMine
}

func (s Stream) IsLocalScreenShare() bool {
	return s.IsScreenShare && s.IsMine
}

func (s Stream) IsLocalCamera() bool {
	return s.IsMine && !s.IsScreenShare
}

func (s Stream) IsRemoteCamera() bool {
	return !s.IsMine && !s.IsScreenShare
}

// Preview returns the user shown for s inside a More tile.
func (s Stream) Preview() UserPreview {
	return UserPreview{DisplayName: s.DisplayName, Avatar: s.Avatar}
}

// UserPreview is the compact form of a stream shown inside an overflow bucket.
type UserPreview struct {
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}

// StreamIDSet indexes a snapshot by stream id.
func StreamIDSet(streams []Stream) map[StreamID]struct{} {
	set := make(map[StreamID]struct{}, len(streams))
	for _, s := range streams {
		set[s.ID] = struct{}{}
	}
	return set
}
