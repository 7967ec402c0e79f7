package layout

import "streamlayout/internal/core/domain"

// Provider turns a stream snapshot into display items. Implementations are
// pure and total: an empty snapshot yields an empty, non-nil list.
type Provider interface {
	Items(streams []domain.Stream) []domain.StreamItem
}

func appendTiles(items []domain.StreamItem, streams []domain.Stream, state domain.ItemState) []domain.StreamItem {
	for _, s := range streams {
		items = append(items, domain.StreamTile{ID: s.ID, Stream: s, State: state})
	}
	return items
}

func moreTile(streams []domain.Stream) domain.MoreTile {
	users := make([]domain.UserPreview, 0, len(streams))
	for _, s := range streams {
		users = append(users, s.Preview())
	}
	return domain.MoreTile{ID: domain.MoreItemID, Users: users}
}

// overflow shows up to slots streams individually and collapses the rest.
// When everything fits, no bucket is produced.
func overflow(items []domain.StreamItem, streams []domain.Stream, capacity int, state domain.ItemState) []domain.StreamItem {
	if len(streams) <= capacity {
		return appendTiles(items, streams, state)
	}
	slots := capacity - 1
	if slots < 0 {
		slots = 0
	}
	items = appendTiles(items, streams[:slots], state)
	return append(items, moreTile(streams[slots:]))
}

func partition(streams []domain.Stream, pred func(domain.Stream) bool) (matched, rest []domain.Stream) {
	for _, s := range streams {
		if pred(s) {
			matched = append(matched, s)
		} else {
			rest = append(rest, s)
		}
	}
	return matched, rest
}

func hasStreamTile(items []domain.StreamItem) bool {
	for _, item := range items {
		if _, ok := item.(domain.StreamTile); ok {
			return true
		}
	}
	return false
}
