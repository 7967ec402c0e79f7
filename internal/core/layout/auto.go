package layout

import (
	"sort"

	"streamlayout/internal/core/domain"
)

// AutoLayout arranges streams without user input. It features the highest
// priority stream when the call shape calls for it and falls back to a
// mosaic otherwise.
type AutoLayout struct {
	constraints       Constraints
	defaultCameraRear bool

	featuredID domain.StreamID
	// shown is true once an earlier arrangement displayed a stream tile.
	shown bool
}

// NewAutoLayout returns an automatic layout that has not arranged anything
// yet.
func NewAutoLayout(constraints Constraints, defaultCameraRear bool) *AutoLayout {
	return &AutoLayout{
		constraints:       constraints,
		defaultCameraRear: defaultCameraRear,
	}
}

// Mode is always ModeAuto.
func (l *AutoLayout) Mode() domain.LayoutMode {
	return domain.ModeAuto
}

// FeaturedID returns the stream featured by the last arrangement, if any.
func (l *AutoLayout) FeaturedID() domain.StreamID {
	return l.featuredID
}

// Items arranges streams and remembers the featured stream so it keeps its
// slot on the next call.
func (l *AutoLayout) Items(streams []domain.Stream, isOneToOne bool) []domain.StreamItem {
	var items []domain.StreamItem
	if l.arrangeByPriority(streams, isOneToOne) && len(streams) > 0 {
		head := l.SortByPriority(streams)[0]
		l.featuredID = head.ID
		items = FeaturedProvider{
			FeaturedIDs:   []domain.StreamID{head.ID},
			MaxThumbnails: l.constraints.MaxThumbnailStreams,
		}.Items(streams)
	} else {
		l.featuredID = ""
		items = MosaicProvider{MaxStreams: l.constraints.MaxMosaicStreams}.Items(streams)
	}
	l.shown = hasStreamTile(items)
	return items
}

func (l *AutoLayout) arrangeByPriority(streams []domain.Stream, isOneToOne bool) bool {
	if isOneToOne {
		return true
	}
	remote := countRemoteScreenShares(streams)
	switch {
	case remote == 1:
		return true
	case remote > 1:
		// Several shares on the very first frame would flap between
		// arrangements; wait until something has been shown.
		return l.shown
	}
	return false
}

// SortByPriority returns a copy of streams ordered by descending priority.
// Equal priorities keep snapshot order.
func (l *AutoLayout) SortByPriority(streams []domain.Stream) []domain.Stream {
	ordered := make([]domain.Stream, len(streams))
	copy(ordered, streams)
	sort.SliceStable(ordered, func(i, j int) bool {
		return l.priority(ordered[i]) > l.priority(ordered[j])
	})
	return ordered
}

// priority packs the ranking criteria into a bit mask so that comparing
// masks is a lexicographic comparison of the criteria.
func (l *AutoLayout) priority(s domain.Stream) int {
	p := 0
	if s.ID == l.featuredID && s.IsScreenShare {
		p |= 1 << 3
	}
	if s.IsRemoteScreenShare() {
		p |= 1 << 2
	}
	if s.IsLocalCamera() && l.defaultCameraRear {
		p |= 1 << 1
	}
	if s.IsRemoteCamera() {
		p |= 1
	}
	return p
}

func countRemoteScreenShares(streams []domain.Stream) int {
	n := 0
	for _, s := range streams {
		if s.IsRemoteScreenShare() {
			n++
		}
	}
	return n
}
