package layout

import (
	"fmt"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
)

// Changes lists screen shares that were not present in the previous snapshot.
type Changes struct {
	LocalScreenShares  []domain.Stream
	RemoteScreenShares []domain.Stream
}

// Controller switches between automatic and manual arrangement and decides
// when the UI should be asked to pin a new screen share. It is not safe for
// concurrent use; callers serialize access.
type Controller struct {
	constraints Constraints
	auto        *AutoLayout
	manual      *ManualLayout
	active      Layout
	// restore is the layout that was active before fullscreen was entered.
	restore Layout
	// shown is true when the last arrangement held at least one stream tile,
	// whichever layout produced it.
	shown bool

	sender  ports.MessageSender
	streams []domain.Stream
	seen    map[domain.StreamID]struct{}
}

// NewController validates constraints and starts in automatic mode. A nil
// sender discards notifications.
func NewController(constraints Constraints, defaultCameraRear bool, sender ports.MessageSender) (*Controller, error) {
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create layout controller: %w", err)
	}
	if sender == nil {
		sender = ports.MessageSenderFunc(func(domain.Message) {})
	}

	auto := NewAutoLayout(constraints, defaultCameraRear)
	return &Controller{
		constraints: constraints,
		auto:        auto,
		manual:      NewManualLayout(constraints),
		active:      auto,
		sender:      sender,
		seen:        make(map[domain.StreamID]struct{}),
	}, nil
}

// Mode reports the active layout's mode.
func (c *Controller) Mode() domain.LayoutMode {
	return c.active.Mode()
}

func (c *Controller) IsInAutoMode() bool {
	return c.active.Mode() == domain.ModeAuto
}

// PinnedStreams returns a copy of the pinned set.
func (c *Controller) PinnedStreams() []domain.StreamID {
	return c.manual.PinnedIDs()
}

// FullscreenStream is empty when fullscreen is off.
func (c *Controller) FullscreenStream() domain.StreamID {
	return c.manual.FullscreenID()
}

// SwitchToManualMode drops all pins and activates manual arrangement.
func (c *Controller) SwitchToManualMode() {
	c.manual.ClearPinned()
	c.activateManual()
}

// SwitchToAutoMode activates automatic arrangement. Pins survive so that a
// later switch back resumes them; an active fullscreen selection does not.
func (c *Controller) SwitchToAutoMode() {
	if c.manual.ClearFullscreen() {
		c.restore = nil
		c.sender.Send(domain.FullScreenDisabled)
	}
	c.active = c.auto
}

// PinStream pins id and activates manual arrangement. It reports false and
// changes nothing when the pin is rejected.
func (c *Controller) PinStream(id domain.StreamID, prepend, force bool) bool {
	if !c.manual.Pin(id, prepend, force) {
		return false
	}
	c.activateManual()
	return true
}

// activateManual makes manual arrangement active. During fullscreen it
// becomes the layout restored when fullscreen ends.
func (c *Controller) activateManual() {
	if c.manual.FullscreenID() != "" {
		c.restore = c.manual
	}
	c.active = c.manual
}

// UnpinStream is a no-op for ids that are not pinned.
func (c *Controller) UnpinStream(id domain.StreamID) {
	c.manual.Unpin(id)
}

// ClearPinnedStreams empties the pinned set without changing the mode.
func (c *Controller) ClearPinnedStreams() {
	c.manual.ClearPinned()
}

// SetPinnedStreams replaces the pinned set and activates manual arrangement.
func (c *Controller) SetPinnedStreams(ids []domain.StreamID) {
	c.manual.SetPinned(ids)
	c.activateManual()
}

// SetFullscreenStream shows id alone. The previously active layout is
// remembered and restored when fullscreen ends.
func (c *Controller) SetFullscreenStream(id domain.StreamID) bool {
	entering := c.manual.FullscreenID() == ""
	previous := c.active
	if !c.manual.SetFullscreen(id) {
		return false
	}
	if entering {
		c.restore = previous
		c.sender.Send(domain.FullScreenEnabled)
	}
	c.active = c.manual
	return true
}

// ClearFullscreenStream ends fullscreen and restores the layout that was
// active when it began.
func (c *Controller) ClearFullscreenStream() {
	if c.manual.ClearFullscreen() {
		c.endFullscreen()
	}
}

func (c *Controller) endFullscreen() {
	if c.restore != nil {
		c.active = c.restore
		c.restore = nil
	}
	c.sender.Send(domain.FullScreenDisabled)
}

// PinLocalScreenShare puts the local participant's screen share at the head
// of the pinned set. When that overflows the set, the entry at index 1 is
// evicted so the newest regular pin stays.
func (c *Controller) PinLocalScreenShare(id domain.StreamID) bool {
	max := c.constraints.MaxPinnedStreams
	if max < 1 || c.manual.IsPinned(id) {
		return false
	}

	next := []domain.StreamID{id}
	for _, pinned := range c.manual.PinnedIDs() {
		if pinned != id {
			next = append(next, pinned)
		}
	}
	if len(next) > max {
		next = append(next[:1], next[2:]...)
	}
	c.SetPinnedStreams(next)
	return c.manual.IsPinned(id)
}

// Observe records a new snapshot and returns the screen shares it introduced.
// A fullscreen stream that vanished ends fullscreen.
func (c *Controller) Observe(streams []domain.Stream) Changes {
	var changes Changes
	seen := make(map[domain.StreamID]struct{}, len(streams))
	for _, s := range streams {
		seen[s.ID] = struct{}{}
		if _, ok := c.seen[s.ID]; ok || !s.IsScreenShare {
			continue
		}
		if s.IsMine {
			changes.LocalScreenShares = append(changes.LocalScreenShares, s)
		} else {
			changes.RemoteScreenShares = append(changes.RemoteScreenShares, s)
		}
	}
	c.seen = seen

	c.streams = make([]domain.Stream, len(streams))
	copy(c.streams, streams)

	if c.manual.Sync(c.streams) {
		c.endFullscreen()
	}
	return changes
}

// Suggest asks the UI to pin each new remote screen share and returns the
// number of prompts sent. Pinned shares are skipped, and so is a lone remote
// share in automatic mode since it is featured anyway.
func (c *Controller) Suggest(remote []domain.Stream) int {
	if c.IsInAutoMode() && countRemoteScreenShares(c.streams) == 1 {
		return 0
	}
	sent := 0
	for _, s := range remote {
		if c.manual.IsPinned(s.ID) {
			continue
		}
		c.sender.Send(domain.PinScreenshareMessage{StreamID: s.ID, DisplayName: s.DisplayName})
		sent++
	}
	return sent
}

// Items arranges the last observed snapshot with the active layout.
func (c *Controller) Items(isOneToOne bool) []domain.StreamItem {
	c.auto.shown = c.shown
	items := c.active.Items(c.streams, isOneToOne)
	c.shown = hasStreamTile(items)
	return items
}

// Update observes streams, sends pin suggestions and returns the arrangement.
func (c *Controller) Update(streams []domain.Stream, isOneToOne bool) []domain.StreamItem {
	changes := c.Observe(streams)
	c.Suggest(changes.RemoteScreenShares)
	return c.Items(isOneToOne)
}
