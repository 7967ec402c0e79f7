package layout

import "streamlayout/internal/core/domain"

// ManualLayout keeps the user's pin and fullscreen choices. Fullscreen wins
// over pins, pins win over the mosaic.
type ManualLayout struct {
	constraints Constraints

	streams      map[domain.StreamID]domain.Stream
	pinned       []domain.StreamID
	fullscreenID domain.StreamID
}

// NewManualLayout creates a manual layout with nothing pinned.
func NewManualLayout(constraints Constraints) *ManualLayout {
	return &ManualLayout{
		constraints: constraints,
		streams:     make(map[domain.StreamID]domain.Stream),
	}
}

func (l *ManualLayout) Mode() domain.LayoutMode {
	return domain.ModeManual
}

// Sync records the current snapshot, drops pins whose stream is gone and
// clears a fullscreen selection whose stream vanished. It reports whether
// the fullscreen selection was cleared.
func (l *ManualLayout) Sync(streams []domain.Stream) bool {
	l.streams = make(map[domain.StreamID]domain.Stream, len(streams))
	for _, s := range streams {
		l.streams[s.ID] = s
	}

	kept := l.pinned[:0]
	for _, id := range l.pinned {
		if _, ok := l.streams[id]; ok {
			kept = append(kept, id)
		}
	}
	l.pinned = kept
	l.normalize()

	if l.fullscreenID == "" {
		return false
	}
	if _, ok := l.streams[l.fullscreenID]; ok {
		return false
	}
	l.fullscreenID = ""
	return true
}

// Pin adds id to the pinned set. It fails when pinning is disabled, the
// stream is unknown or already pinned, or the set is full and force is not
// given. A forced pin evicts from the end opposite to the insertion.
func (l *ManualLayout) Pin(id domain.StreamID, prepend, force bool) bool {
	max := l.constraints.MaxPinnedStreams
	if max < 1 {
		return false
	}
	if _, ok := l.streams[id]; !ok {
		return false
	}
	if l.IsPinned(id) {
		return false
	}
	if len(l.pinned) >= max && !force {
		return false
	}

	if prepend {
		l.pinned = append([]domain.StreamID{id}, l.pinned...)
		if len(l.pinned) > max {
			l.pinned = l.pinned[:max]
		}
	} else {
		l.pinned = append(l.pinned, id)
		if len(l.pinned) > max {
			l.pinned = l.pinned[len(l.pinned)-max:]
		}
	}
	l.normalize()
	return true
}

// Unpin removes id from the pinned set. Unknown ids are ignored.
func (l *ManualLayout) Unpin(id domain.StreamID) {
	for i, pinned := range l.pinned {
		if pinned == id {
			l.pinned = append(l.pinned[:i], l.pinned[i+1:]...)
			return
		}
	}
}

// ClearPinned empties the pinned set.
func (l *ManualLayout) ClearPinned() {
	l.pinned = nil
}

// SetPinned replaces the pinned set. Unknown and duplicate ids are skipped
// and the result is cut to capacity from the tail.
func (l *ManualLayout) SetPinned(ids []domain.StreamID) {
	next := make([]domain.StreamID, 0, len(ids))
	seen := make(map[domain.StreamID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := l.streams[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}
	if len(next) > l.constraints.MaxPinnedStreams {
		next = next[:l.constraints.MaxPinnedStreams]
	}
	l.pinned = next
	l.normalize()
}

// PinnedIDs returns a copy of the pinned set.
func (l *ManualLayout) PinnedIDs() []domain.StreamID {
	out := make([]domain.StreamID, len(l.pinned))
	copy(out, l.pinned)
	return out
}

func (l *ManualLayout) IsPinned(id domain.StreamID) bool {
	for _, pinned := range l.pinned {
		if pinned == id {
			return true
		}
	}
	return false
}

// SetFullscreen selects id for fullscreen. Unknown streams are rejected.
func (l *ManualLayout) SetFullscreen(id domain.StreamID) bool {
	if _, ok := l.streams[id]; !ok {
		return false
	}
	l.fullscreenID = id
	return true
}

// ClearFullscreen reports whether a selection was cleared.
func (l *ManualLayout) ClearFullscreen() bool {
	if l.fullscreenID == "" {
		return false
	}
	l.fullscreenID = ""
	return true
}

func (l *ManualLayout) FullscreenID() domain.StreamID {
	return l.fullscreenID
}

// Items syncs against streams and arranges them with fullscreen, pinned
// or mosaic arrangement, in that order of precedence.
func (l *ManualLayout) Items(streams []domain.Stream, isOneToOne bool) []domain.StreamItem {
	l.Sync(streams)
	return l.provider().Items(streams)
}

func (l *ManualLayout) provider() Provider {
	switch {
	case l.fullscreenID != "":
		return FullscreenProvider{StreamID: l.fullscreenID}
	case len(l.pinned) > 0:
		return FeaturedProvider{
			FeaturedIDs:   l.PinnedIDs(),
			MaxThumbnails: l.constraints.MaxThumbnailStreams,
		}
	default:
		return MosaicProvider{MaxStreams: l.constraints.MaxMosaicStreams}
	}
}

// normalize keeps a pinned local screen share at the head of the set.
func (l *ManualLayout) normalize() {
	for i, id := range l.pinned {
		if i == 0 {
			continue
		}
		if s, ok := l.streams[id]; ok && s.IsLocalScreenShare() {
			copy(l.pinned[1:i+1], l.pinned[:i])
			l.pinned[0] = id
			return
		}
	}
}
