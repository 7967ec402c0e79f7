package layout

import (
	"sort"

	"streamlayout/internal/core/domain"
)

// MosaicProvider arranges streams in a grid with no featured tile. Local
// streams always trail so the self view keeps a stable position.
type MosaicProvider struct {
	MaxStreams int
}

// Items returns every stream as a standard tile, overflowing into a More
// tile beyond MaxStreams.
func (p MosaicProvider) Items(streams []domain.Stream) []domain.StreamItem {
	if p.MaxStreams < 1 || len(streams) == 0 {
		return []domain.StreamItem{}
	}

	if len(streams) <= p.MaxStreams {
		ordered := make([]domain.Stream, len(streams))
		copy(ordered, streams)
		sort.SliceStable(ordered, func(i, j int) bool {
			return !ordered[i].IsMine && ordered[j].IsMine
		})
		return appendTiles(make([]domain.StreamItem, 0, len(ordered)), ordered, domain.StateStandard)
	}

	local, others := partition(streams, func(s domain.Stream) bool { return s.IsMine })
	items := make([]domain.StreamItem, 0, p.MaxStreams+1)

	// One slot of the remote budget goes to the overflow bucket.
	slots := p.MaxStreams - len(local) - 1
	if slots < 0 {
		slots = 0
	}
	if slots > len(others) {
		slots = len(others)
	}
	items = appendTiles(items, others[:slots], domain.StateStandard)
	if rest := others[slots:]; len(rest) > 0 {
		items = append(items, moreTile(rest))
	}
	return appendTiles(items, local, domain.StateStandard)
}
