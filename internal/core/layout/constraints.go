package layout

import (
	"fmt"

	"streamlayout/internal/core/domain"
)

// Constraints bounds every arrangement the engine produces.
type Constraints struct {
	// MaxPinnedStreams caps the pinned set. Zero disables pinning.
	MaxPinnedStreams int
	// MaxMosaicStreams is the number of tiles a mosaic may show,
	// overflow bucket included.
	MaxMosaicStreams int
	// MaxThumbnailStreams is the number of non-featured tiles shown next to
	// featured streams, overflow bucket included.
	MaxThumbnailStreams int
}

// DefaultConstraints returns two pins, an eight tile mosaic and four
// thumbnails.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxPinnedStreams:    2,
		MaxMosaicStreams:    8,
		MaxThumbnailStreams: 4,
	}
}

// Validate rejects negative capacities with domain.ErrInvalidConstraints.
func (c Constraints) Validate() error {
	if c.MaxPinnedStreams < 0 {
		return fmt.Errorf("%w: max pinned streams must be >= 0, got %d", domain.ErrInvalidConstraints, c.MaxPinnedStreams)
	}
	if c.MaxMosaicStreams < 0 {
		return fmt.Errorf("%w: max mosaic streams must be >= 0, got %d", domain.ErrInvalidConstraints, c.MaxMosaicStreams)
	}
	if c.MaxThumbnailStreams < 0 {
		return fmt.Errorf("%w: max thumbnail streams must be >= 0, got %d", domain.ErrInvalidConstraints, c.MaxThumbnailStreams)
	}
	return nil
}
