package domain

import "time"

type LayoutMode string

const (
	ModeAuto   LayoutMode = "auto"
	ModeManual LayoutMode = "manual"
)

func (m LayoutMode) Valid() bool {
	return m == ModeAuto || m == ModeManual
}

// LayoutSnapshot is what a session emits after every reconciliation.
type LayoutSnapshot struct {
	SessionID    SessionID    `json:"session_id"`
	Version      uint64       `json:"version"`
	Mode         LayoutMode   `json:"mode"`
	Items        []StreamItem `json:"items"`
	PinnedIDs    []StreamID   `json:"pinned_ids"`
	FullscreenID StreamID     `json:"fullscreen_id,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (l LayoutSnapshot) IsInAutoMode() bool {
	return l.Mode == ModeAuto
}

// OverflowSize returns how many streams are collapsed into the MoreTile.
func (l LayoutSnapshot) OverflowSize() int {
	for _, item := range l.Items {
		if more, ok := item.(MoreTile); ok {
			return len(more.Users)
		}
	}
	return 0
}
