package layout

import "streamlayout/internal/core/domain"

// FullscreenProvider shows exactly one stream, or nothing if it is gone.
type FullscreenProvider struct {
	StreamID domain.StreamID
}

// Items returns the fullscreen stream alone, or nothing when it is absent.
func (p FullscreenProvider) Items(streams []domain.Stream) []domain.StreamItem {
	for _, s := range streams {
		if s.ID == p.StreamID {
			return []domain.StreamItem{
				domain.StreamTile{ID: s.ID, Stream: s, State: domain.StateFeaturedFullscreen},
			}
		}
	}
	return []domain.StreamItem{}
}
