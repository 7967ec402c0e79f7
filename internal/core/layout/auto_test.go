package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamlayout/internal/core/domain"
)

func TestAutoLayout_OneToOneFeaturesHead(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)

	items := l.Items([]domain.Stream{localCamera("me"), remoteCamera("peer")}, true)

	require.Len(t, items, 2)
	assert.Equal(t, []string{"peer:featured_pinned", "me:thumbnail"}, describe(items))
	assert.Equal(t, domain.StreamID("peer"), l.FeaturedID())
	assert.Equal(t, domain.ModeAuto, l.Mode())
}

func TestAutoLayout_RearCameraOutranksRemoteCamera(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), true)

	items := l.Items([]domain.Stream{localCamera("me"), remoteCamera("peer")}, true)

	// Local rear camera outranks a remote camera.
	assert.Equal(t, []string{"me:featured_pinned", "peer:thumbnail"}, describe(items))
}

func TestAutoLayout_SingleRemoteShareIsFeatured(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)
	streams := []domain.Stream{remoteCamera("a"), remoteCamera("b"), remoteShare("s"), localCamera("me")}

	items := l.Items(streams, false)

	assert.Equal(t, []string{"s:featured_pinned", "a:thumbnail", "b:thumbnail", "me:thumbnail"}, describe(items))
}

func TestAutoLayout_MosaicWithoutScreenShares(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)
	streams := []domain.Stream{localCamera("me"), remoteCamera("a"), remoteCamera("b")}

	items := l.Items(streams, false)

	assert.Equal(t, []string{"a:standard", "b:standard", "me:standard"}, describe(items))
	assert.Empty(t, l.FeaturedID())
}

func TestAutoLayout_SeveralSharesWaitForFirstFrame(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)
	streams := []domain.Stream{remoteShare("s1"), remoteShare("s2"), remoteCamera("a")}

	cold := l.Items(streams, false)
	assert.Equal(t, []string{"s1:standard", "s2:standard", "a:standard"}, describe(cold))

	warm := l.Items(streams, false)
	assert.Equal(t, []string{"s1:featured_pinned", "s2:thumbnail", "a:thumbnail"}, describe(warm))
}

func TestAutoLayout_FeaturedShareStaysFeatured(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)

	l.Items([]domain.Stream{remoteCamera("a"), remoteShare("s2")}, false)
	require.Equal(t, domain.StreamID("s2"), l.FeaturedID())

	// A second share arriving earlier in the snapshot does not steal focus.
	items := l.Items([]domain.Stream{remoteShare("s1"), remoteCamera("a"), remoteShare("s2")}, false)
	assert.Equal(t, "s2:featured_pinned", describe(items)[0])
}

func TestAutoLayout_SortByPriority(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), true)
	streams := []domain.Stream{
		localShare("ms"), remoteCamera("rc"), localCamera("me"), remoteShare("rs"),
	}

	ordered := l.SortByPriority(streams)

	var got []domain.StreamID
	for _, s := range ordered {
		got = append(got, s.ID)
	}
	assert.Equal(t, streamIDs("rs", "me", "rc", "ms"), got)
	assert.Equal(t, domain.StreamID("ms"), streams[0].ID, "input is not reordered")
}

func TestAutoLayout_EmptySnapshot(t *testing.T) {
	l := NewAutoLayout(DefaultConstraints(), false)

	items := l.Items(nil, true)

	assert.NotNil(t, items)
	assert.Empty(t, items)
}
