package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamlayout/internal/core/domain"
)

func newTestController(t *testing.T) (*Controller, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	c, err := NewController(DefaultConstraints(), false, sender)
	require.NoError(t, err)
	return c, sender
}

func TestNewController_RejectsNegativeCapacity(t *testing.T) {
	c := DefaultConstraints()
	c.MaxThumbnailStreams = -1

	_, err := NewController(c, false, nil)

	assert.True(t, errors.Is(err, domain.ErrInvalidConstraints))
}

func TestController_StartsInAutoMode(t *testing.T) {
	c, _ := newTestController(t)

	assert.True(t, c.IsInAutoMode())
	assert.Equal(t, domain.ModeAuto, c.Mode())
}

func TestController_PinSwitchesToManual(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})

	assert.False(t, c.PinStream("unknown", false, false))
	assert.True(t, c.IsInAutoMode())

	assert.True(t, c.PinStream("a", false, false))
	assert.False(t, c.IsInAutoMode())
	assert.Equal(t, []string{"a:featured_pinned", "b:thumbnail"}, describe(c.Items(false)))
}

func TestController_AutoKeepsPinsForLater(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})
	c.PinStream("b", false, false)

	c.SwitchToAutoMode()
	assert.True(t, c.IsInAutoMode())
	assert.Equal(t, streamIDs("b"), c.PinnedStreams())
	assert.Equal(t, []string{"a:standard", "b:standard"}, describe(c.Items(false)))

	c.SwitchToManualMode()
	assert.False(t, c.IsInAutoMode())
	assert.Empty(t, c.PinnedStreams())
}

func TestController_FullscreenRestoresPreviousMode(t *testing.T) {
	c, sender := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})

	require.True(t, c.SetFullscreenStream("a"))
	assert.False(t, c.IsInAutoMode())
	assert.Equal(t, []string{"a:featured_fullscreen"}, describe(c.Items(false)))

	// Switching target while fullscreen does not notify again.
	require.True(t, c.SetFullscreenStream("b"))
	assert.Equal(t, 1, sender.count(domain.FullScreenEnabled))

	c.ClearFullscreenStream()
	c.ClearFullscreenStream()
	assert.True(t, c.IsInAutoMode())
	assert.Empty(t, c.FullscreenStream())
	assert.Equal(t, 1, sender.count(domain.FullScreenDisabled))
}

func TestController_FullscreenUnknownStream(t *testing.T) {
	c, sender := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a")})

	assert.False(t, c.SetFullscreenStream("x"))
	assert.True(t, c.IsInAutoMode())
	assert.Empty(t, sender.messages)
}

func TestController_FullscreenStreamVanishes(t *testing.T) {
	c, sender := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})
	c.PinStream("b", false, false)
	require.True(t, c.SetFullscreenStream("a"))

	c.Observe([]domain.Stream{remoteCamera("b")})
	c.Observe([]domain.Stream{remoteCamera("b")})

	assert.Empty(t, c.FullscreenStream())
	assert.Equal(t, 1, sender.count(domain.FullScreenDisabled))
	assert.False(t, c.IsInAutoMode())
	assert.Equal(t, []string{"b:featured_pinned"}, describe(c.Items(false)))
}

func TestController_FullscreenItemsAreExclusive(t *testing.T) {
	c, _ := newTestController(t)
	streams := []domain.Stream{
		remoteCamera("a"), remoteShare("s"), localCamera("me"), remoteCamera("b"),
	}
	c.Observe(streams)
	c.PinStream("a", false, false)
	c.PinStream("me", false, false)

	for _, s := range streams {
		require.True(t, c.SetFullscreenStream(s.ID))
		items := c.Items(false)
		require.Len(t, items, 1)
		assert.Equal(t, domain.StateFeaturedFullscreen, items[0].(domain.StreamTile).State)
	}
}

func TestController_SwitchToAutoEndsFullscreen(t *testing.T) {
	c, sender := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a")})
	c.SwitchToManualMode()
	c.SetFullscreenStream("a")

	c.SwitchToAutoMode()

	assert.True(t, c.IsInAutoMode())
	assert.Empty(t, c.FullscreenStream())
	assert.Equal(t, 1, sender.count(domain.FullScreenDisabled))
}

func TestController_SuggestInAutoMode(t *testing.T) {
	c, sender := newTestController(t)

	changes := c.Observe([]domain.Stream{remoteCamera("a"), remoteShare("s1")})
	assert.Equal(t, 0, c.Suggest(changes.RemoteScreenShares), "lone share is featured automatically")

	changes = c.Observe([]domain.Stream{remoteCamera("a"), remoteShare("s1"), remoteShare("s2")})
	require.Len(t, changes.RemoteScreenShares, 1)
	assert.Equal(t, 1, c.Suggest(changes.RemoteScreenShares))
	assert.Equal(t, []domain.Message{
		domain.PinScreenshareMessage{StreamID: "s2", DisplayName: "user-s2"},
	}, sender.messages)
}

func TestController_SuggestInManualMode(t *testing.T) {
	c, sender := newTestController(t)
	c.SwitchToManualMode()

	c.Update([]domain.Stream{remoteCamera("a"), remoteShare("s1")}, false)
	c.Update([]domain.Stream{remoteCamera("a"), remoteShare("s1")}, false)

	assert.Equal(t, []domain.Message{
		domain.PinScreenshareMessage{StreamID: "s1", DisplayName: "user-s1"},
	}, sender.messages)
}

func TestController_SuggestSkipsPinned(t *testing.T) {
	c, sender := newTestController(t)
	changes := c.Observe([]domain.Stream{remoteShare("s1"), remoteShare("s2")})
	c.PinStream("s1", false, false)

	assert.Equal(t, 1, c.Suggest(changes.RemoteScreenShares))
	assert.Equal(t, domain.StreamID("s2"), sender.messages[0].(domain.PinScreenshareMessage).StreamID)
}

func TestController_ObserveReportsLocalShares(t *testing.T) {
	c, _ := newTestController(t)

	changes := c.Observe([]domain.Stream{localCamera("me"), localShare("ms"), remoteCamera("a")})

	require.Len(t, changes.LocalScreenShares, 1)
	assert.Equal(t, domain.StreamID("ms"), changes.LocalScreenShares[0].ID)
	assert.Empty(t, changes.RemoteScreenShares)

	changes = c.Observe([]domain.Stream{localCamera("me"), localShare("ms")})
	assert.Empty(t, changes.LocalScreenShares)
}

func TestController_PinLocalScreenShare(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b"), localShare("ms")})
	c.PinStream("a", false, false)
	c.PinStream("b", false, false)

	assert.True(t, c.PinLocalScreenShare("ms"))
	assert.Equal(t, streamIDs("ms", "b"), c.PinnedStreams())
	assert.False(t, c.IsInAutoMode())

	assert.False(t, c.PinLocalScreenShare("ms"), "already pinned")
}

func TestController_PinLocalScreenShareDisabled(t *testing.T) {
	cons := DefaultConstraints()
	cons.MaxPinnedStreams = 0
	c, err := NewController(cons, false, nil)
	require.NoError(t, err)
	c.Observe([]domain.Stream{localShare("ms")})

	assert.False(t, c.PinLocalScreenShare("ms"))
	assert.True(t, c.IsInAutoMode())
}

func TestController_CoverageAcrossModes(t *testing.T) {
	c, _ := newTestController(t)
	var streams []domain.Stream
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		streams = append(streams, remoteCamera(id))
	}
	streams = append(streams, remoteShare("s"), localCamera("me"))

	check := func(label string) {
		counts := occurrences(c.Update(streams, false))
		assert.Len(t, counts, len(streams), label)
		for id, n := range counts {
			assert.Equal(t, 1, n, "%s stream=%s", label, id)
		}
	}

	check("auto")
	c.PinStream("c", false, false)
	check("manual pinned")
	c.SwitchToManualMode()
	check("manual mosaic")
}

func TestController_PinDuringFullscreenRestoresManual(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b"), remoteCamera("c")})

	require.True(t, c.SetFullscreenStream("a"))
	require.True(t, c.PinStream("b", false, false))
	c.ClearFullscreenStream()

	assert.False(t, c.IsInAutoMode())
	assert.Equal(t, streamIDs("b"), c.PinnedStreams())
	assert.Equal(t, []string{"b:featured_pinned", "a:thumbnail", "c:thumbnail"}, describe(c.Items(false)))
}

func TestController_ManualSwitchDuringFullscreenIsKept(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})

	require.True(t, c.SetFullscreenStream("a"))
	c.SwitchToManualMode()
	assert.Equal(t, domain.StreamID("a"), c.FullscreenStream())

	c.ClearFullscreenStream()
	assert.False(t, c.IsInAutoMode())
}

func TestController_FailedPinDuringFullscreenKeepsRestoreTarget(t *testing.T) {
	c, _ := newTestController(t)
	c.Observe([]domain.Stream{remoteCamera("a"), remoteCamera("b")})

	require.True(t, c.SetFullscreenStream("a"))
	assert.False(t, c.PinStream("unknown", false, false))
	c.ClearFullscreenStream()

	assert.True(t, c.IsInAutoMode())
}

func TestController_AutoAfterManualIsStable(t *testing.T) {
	c, _ := newTestController(t)
	streams := []domain.Stream{remoteShare("s1"), remoteShare("s2"), remoteCamera("a")}
	c.Observe(streams)
	c.SwitchToManualMode()
	require.Equal(t, []string{"s1:standard", "s2:standard", "a:standard"}, describe(c.Items(false)))

	c.SwitchToAutoMode()
	first := describe(c.Items(false))
	second := describe(c.Update(streams, false))

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"s1:featured_pinned", "s2:thumbnail", "a:thumbnail"}, first)
}

func TestController_AutoColdStartWaitsWithSeveralShares(t *testing.T) {
	c, _ := newTestController(t)
	streams := []domain.Stream{remoteShare("s1"), remoteShare("s2"), remoteCamera("a")}

	assert.Equal(t, []string{"s1:standard", "s2:standard", "a:standard"}, describe(c.Update(streams, false)))
	assert.Equal(t, []string{"s1:featured_pinned", "s2:thumbnail", "a:thumbnail"}, describe(c.Update(streams, false)))
	assert.Equal(t, []string{"s1:featured_pinned", "s2:thumbnail", "a:thumbnail"}, describe(c.Update(streams, false)))
}
