package domain

import (
	"encoding/json"
	"fmt"
)

// MoreItemID identifies the single overflow bucket of a rendered list.
const MoreItemID = "more"

type ItemState int

const (
	StateStandard ItemState = iota
	StateFeaturedPinned
	StateFeaturedFullscreen
	StateThumbnail
)

func (s ItemState) String() string {
	switch s {
	case StateStandard:
		return "standard"
	case StateFeaturedPinned:
		return "featured_pinned"
	case StateFeaturedFullscreen:
		return "featured_fullscreen"
	case StateThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// IsFeatured reports whether the state is one of the prominent states.
func (s ItemState) IsFeatured() bool {
	return s == StateFeaturedPinned || s == StateFeaturedFullscreen
}

func (s ItemState) MarshalText() ([]byte, error) {
	if s < StateStandard || s > StateThumbnail {
		return nil, fmt.Errorf("invalid item state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *ItemState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "standard":
		*s = StateStandard
	case "featured_pinned":
		*s = StateFeaturedPinned
	case "featured_fullscreen":
		*s = StateFeaturedFullscreen
	case "thumbnail":
		*s = StateThumbnail
	default:
		return fmt.Errorf("invalid item state %q", string(text))
	}
	return nil
}

// StreamItem is a display-ready entry: either a StreamTile or a MoreTile.
// Consumers switch on the concrete type; no other implementations exist.
type StreamItem interface {
	ItemID() string
	isStreamItem()
}

// StreamTile displays a single stream.
type StreamTile struct {
	ID     StreamID
	Stream Stream
	State  ItemState
}

func (t StreamTile) ItemID() string { return string(t.ID) }
func (StreamTile) isStreamItem()    {}

func (t StreamTile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string    `json:"type"`
		ID     StreamID  `json:"id"`
		Stream Stream    `json:"stream"`
		State  ItemState `json:"state"`
	}{"stream", t.ID, t.Stream, t.State})
}

// MoreTile is the overflow bucket. At most one exists per list and it is
// always the last tile before any trailing local streams.
type MoreTile struct {
	ID    string
	Users []UserPreview
}

func (m MoreTile) ItemID() string { return m.ID }
func (MoreTile) isStreamItem()    {}

func (m MoreTile) MarshalJSON() ([]byte, error) {
	users := m.Users
	if users == nil {
		users = []UserPreview{}
	}
	return json.Marshal(struct {
		Type  string        `json:"type"`
		ID    string        `json:"id"`
		Users []UserPreview `json:"users"`
	}{"more", m.ID, users})
}
