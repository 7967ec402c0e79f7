package layout

import (
	"fmt"

	"streamlayout/internal/core/domain"
)

// FeaturedProvider shows an explicit, ordered list of featured streams
// followed by thumbnails. Featured tiles follow FeaturedIDs order, not the
// snapshot order.
type FeaturedProvider struct {
	FeaturedIDs   []domain.StreamID
	MaxThumbnails int
	// FeaturedState defaults to StateFeaturedPinned when not a featured state.
	FeaturedState domain.ItemState
}

// Items returns the featured streams in FeaturedIDs order followed by the
// rest as thumbnails. It returns an empty list when nothing is featured.
func (p FeaturedProvider) Items(streams []domain.Stream) []domain.StreamItem {
	if p.MaxThumbnails < 0 {
		panic(fmt.Sprintf("layout: featured provider with negative thumbnail capacity %d", p.MaxThumbnails))
	}
	if len(p.FeaturedIDs) == 0 {
		return []domain.StreamItem{}
	}

	state := p.FeaturedState
	if !state.IsFeatured() {
		state = domain.StateFeaturedPinned
	}

	byID := make(map[domain.StreamID]domain.Stream, len(streams))
	for _, s := range streams {
		byID[s.ID] = s
	}

	items := make([]domain.StreamItem, 0, len(p.FeaturedIDs)+p.MaxThumbnails)
	featured := make(map[domain.StreamID]struct{}, len(p.FeaturedIDs))
	for _, id := range p.FeaturedIDs {
		s, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := featured[id]; dup {
			continue
		}
		featured[id] = struct{}{}
		items = append(items, domain.StreamTile{ID: s.ID, Stream: s, State: state})
	}

	_, rest := partition(streams, func(s domain.Stream) bool {
		_, ok := featured[s.ID]
		return ok
	})
	return overflow(items, rest, p.MaxThumbnails, domain.StateThumbnail)
}
