package layout

import "streamlayout/internal/core/domain"

// Layout is one arrangement policy selected by the Controller.
type Layout interface {
	Mode() domain.LayoutMode
	Items(streams []domain.Stream, isOneToOne bool) []domain.StreamItem
}
