package services

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/layout"
	"streamlayout/internal/core/ports"
)

type MockLayoutMetrics struct {
	mock.Mock
}

func (m *MockLayoutMetrics) RecordReconcile(sessionID domain.SessionID, snapshot domain.LayoutSnapshot) {
	m.Called(sessionID, snapshot)
}

func (m *MockLayoutMetrics) RecordPinSuggestion(sessionID domain.SessionID) {
	m.Called(sessionID)
}

func (m *MockLayoutMetrics) RecordModeSwitch(sessionID domain.SessionID, mode domain.LayoutMode) {
	m.Called(sessionID, mode)
}

func (m *MockLayoutMetrics) RecordFullscreen(sessionID domain.SessionID, enabled bool) {
	m.Called(sessionID, enabled)
}

func (m *MockLayoutMetrics) RecordSessionOpened(sessionID domain.SessionID) {
	m.Called(sessionID)
}

func (m *MockLayoutMetrics) RecordSessionClosed(sessionID domain.SessionID) {
	m.Called(sessionID)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishLayout(ctx context.Context, snapshot domain.LayoutSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishMessage(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error {
	args := m.Called(ctx, sessionID, msg)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

func camera(id string, mine bool) domain.Stream {
	return domain.Stream{ID: domain.StreamID(id), HasVideo: true, IsEnabled: true, IsMine: mine, DisplayName: id}
}

func share(id string, mine bool) domain.Stream {
	s := camera(id, mine)
	s.IsScreenShare = true
	return s
}

func connected(streams ...domain.Stream) domain.CallSnapshot {
	return domain.CallSnapshot{
		State:            domain.CallStateConnected,
		ParticipantCount: 3,
		Streams:          streams,
	}
}

func tileIDs(items []domain.StreamItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ItemID())
	}
	return out
}

func drainMessages(sub ports.Subscription) []domain.Message {
	var out []domain.Message
	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func newTestSession(t *testing.T, clk clock.Clock, metrics ports.LayoutMetrics, publisher ports.LayoutEventPublisher) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		ID:                 "session-1",
		LocalParticipantID: "me",
		Constraints:        layout.DefaultConstraints(),
	}, clk, metrics, publisher, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewSession_InvalidConstraints(t *testing.T) {
	_, err := NewSession(SessionConfig{
		ID:          "bad",
		Constraints: layout.Constraints{MaxPinnedStreams: -1},
	}, clock.NewMock(), nil, nil, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidConstraints)
}

func TestSession_DebouncesUpdates(t *testing.T) {
	clk := clock.NewMock()
	s := newTestSession(t, clk, nil, nil)

	s.Update(connected(camera("a", false), camera("b", false)))
	clk.Add(50 * time.Millisecond)
	s.Update(connected(camera("a", false), camera("c", false), camera("me", true)))
	clk.Add(60 * time.Millisecond)

	assert.Equal(t, uint64(0), s.Layout().Version)

	clk.Add(50 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Layout().Version == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "c", "me"}, tileIDs(s.Layout().Items))
}

func TestSession_UpgradeWindow(t *testing.T) {
	clk := clock.NewMock()
	s := newTestSession(t, clk, nil, nil)

	s.Update(domain.CallSnapshot{
		State:            domain.CallStateConnected,
		ParticipantCount: 1,
		Streams:          []domain.Stream{camera("me", true)},
	})
	clk.Add(time.Second)
	assert.Equal(t, uint64(0), s.Layout().Version)

	clk.Add(4 * time.Second)
	require.Eventually(t, func() bool { return s.Layout().Version == 1 }, time.Second, time.Millisecond)
}

func TestSession_FlushAppliesPendingSnapshot(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)

	s.Update(connected(camera("a", false)))
	s.Flush()

	snap := s.Layout()
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, domain.ModeAuto, snap.Mode)
	assert.Equal(t, []string{"a"}, tileIDs(snap.Items))
}

func TestSession_LocalScreenShareIsPinnedFirst(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	s.Update(connected(camera("a", false), camera("b", false)))
	s.Flush()
	require.True(t, s.PinStream("a", false, false))
	require.True(t, s.PinStream("b", false, false))

	s.Update(connected(camera("a", false), camera("b", false), share("mine", true)))
	s.Flush()

	snap := s.Layout()
	assert.Equal(t, []domain.StreamID{"mine", "b"}, snap.PinnedIDs)
	assert.Equal(t, domain.ModeManual, snap.Mode)
}

func TestSession_FirstRemoteShareIsPinnedInManualMode(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	sub := s.Subscribe()
	s.SwitchToManualMode()
	s.Update(connected(camera("a", false)))
	s.Flush()

	s.Update(connected(camera("a", false), share("s1", false)))
	s.Flush()
	assert.Equal(t, []domain.StreamID{"s1"}, s.Layout().PinnedIDs)
	assert.Equal(t, []domain.Message{
		domain.PinScreenshareMessage{StreamID: "s1", DisplayName: "s1"},
	}, drainMessages(sub))

	s.Update(connected(camera("a", false), share("s1", false), share("s2", false)))
	s.Flush()
	assert.Equal(t, []domain.StreamID{"s1"}, s.Layout().PinnedIDs)
	assert.Equal(t, []domain.Message{
		domain.PinScreenshareMessage{StreamID: "s2", DisplayName: "s2"},
	}, drainMessages(sub))
}

func TestSession_LoneRemoteShareInAutoMode(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	sub := s.Subscribe()

	s.Update(connected(camera("a", false), share("s1", false)))
	s.Flush()

	snap := s.Layout()
	assert.True(t, s.IsInAutoMode())
	assert.Empty(t, snap.PinnedIDs)
	require.NotEmpty(t, snap.Items)
	assert.Equal(t, domain.StateFeaturedPinned, snap.Items[0].(domain.StreamTile).State)
	assert.Empty(t, drainMessages(sub))
}

func TestSession_ReconnectClearsFullscreen(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	sub := s.Subscribe()
	s.Update(connected(camera("a", false), camera("b", false)))
	s.Flush()

	require.True(t, s.SetFullscreenStream("a"))
	assert.Equal(t, domain.StreamID("a"), s.Layout().FullscreenID)
	assert.False(t, s.IsInAutoMode())

	reconnecting := connected(camera("a", false), camera("b", false))
	reconnecting.State = domain.CallStateReconnecting
	s.Update(reconnecting)

	assert.Empty(t, s.Layout().FullscreenID)
	assert.True(t, s.IsInAutoMode())
	assert.Equal(t, []domain.Message{domain.FullScreenEnabled, domain.FullScreenDisabled}, drainMessages(sub))

	// Staying in reconnecting does not notify again.
	s.Update(reconnecting)
	s.Flush()
	assert.Empty(t, drainMessages(sub))
}

func TestSession_FullscreenStreamVanishes(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	sub := s.Subscribe()
	s.Update(connected(camera("a", false), camera("b", false)))
	s.Flush()
	require.True(t, s.SetFullscreenStream("b"))

	s.Update(connected(camera("a", false)))
	s.Flush()
	s.Update(connected(camera("a", false)))
	s.Flush()

	assert.Empty(t, s.Layout().FullscreenID)
	messages := drainMessages(sub)
	disabled := 0
	for _, msg := range messages {
		if msg == domain.FullScreenDisabled {
			disabled++
		}
	}
	assert.Equal(t, 1, disabled)
}

func TestSession_SubscriptionKeepsLatestLayout(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	sub := s.Subscribe()

	initial := <-sub.Layouts()
	assert.Equal(t, uint64(0), initial.Version)

	s.Update(connected(camera("a", false), camera("b", false)))
	s.Flush()
	s.PinStream("a", false, false)
	s.PinStream("b", false, false)

	latest := <-sub.Layouts()
	assert.Equal(t, s.Layout().Version, latest.Version)
	assert.Equal(t, []domain.StreamID{"a", "b"}, latest.PinnedIDs)

	select {
	case extra := <-sub.Layouts():
		t.Fatalf("unexpected extra layout version %d", extra.Version)
	default:
	}
}

func TestSession_NoOpOperationsDoNotEmit(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	s.Update(connected(camera("a", false)))
	s.Flush()
	version := s.Layout().Version

	assert.False(t, s.PinStream("unknown", false, false))
	s.UnpinStream("a")
	s.ClearFullscreenStream()

	assert.Equal(t, version, s.Layout().Version)
}

func TestSession_CloseDropsPendingWork(t *testing.T) {
	clk := clock.NewMock()
	s := newTestSession(t, clk, nil, nil)
	sub := s.Subscribe()
	<-sub.Layouts()

	s.Update(connected(camera("a", false)))
	s.Close()
	clk.Add(time.Second)
	s.Flush()

	assert.Equal(t, uint64(0), s.Layout().Version)
	_, open := <-sub.Layouts()
	assert.False(t, open)

	closed := s.Subscribe()
	_, open = <-closed.Layouts()
	assert.False(t, open)
}

func TestSession_RecordsMetricsAndPublishes(t *testing.T) {
	metrics := &MockLayoutMetrics{}
	metrics.On("RecordReconcile", domain.SessionID("session-1"), mock.Anything).Return()
	metrics.On("RecordModeSwitch", domain.SessionID("session-1"), domain.ModeManual).Return()
	metrics.On("RecordFullscreen", domain.SessionID("session-1"), true).Return()

	publisher := &MockEventPublisher{}
	publisher.On("PublishLayout", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishMessage", mock.Anything, domain.SessionID("session-1"), domain.FullScreenEnabled).Return(nil)

	s := newTestSession(t, clock.NewMock(), metrics, publisher)
	s.Update(connected(camera("a", false), camera("b", false)))
	s.Flush()
	require.True(t, s.SetFullscreenStream("a"))

	metrics.AssertNumberOfCalls(t, "RecordReconcile", 2)
	metrics.AssertCalled(t, "RecordModeSwitch", domain.SessionID("session-1"), domain.ModeManual)
	metrics.AssertCalled(t, "RecordFullscreen", domain.SessionID("session-1"), true)
	publisher.AssertNumberOfCalls(t, "PublishLayout", 2)
	publisher.AssertCalled(t, "PublishMessage", mock.Anything, domain.SessionID("session-1"), domain.FullScreenEnabled)
}

func TestSession_PinDuringFullscreenSurvivesClear(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	s.Update(connected(camera("a", false), camera("b", false), camera("c", false)))
	s.Flush()
	require.True(t, s.IsInAutoMode())

	require.True(t, s.SetFullscreenStream("a"))
	require.True(t, s.PinStream("b", false, false))
	s.ClearFullscreenStream()

	snap := s.Layout()
	assert.Equal(t, domain.ModeManual, snap.Mode)
	assert.Empty(t, snap.FullscreenID)
	assert.Equal(t, []domain.StreamID{"b"}, snap.PinnedIDs)
	require.NotEmpty(t, snap.Items)
	first := snap.Items[0].(domain.StreamTile)
	assert.Equal(t, domain.StreamID("b"), first.ID)
	assert.Equal(t, domain.StateFeaturedPinned, first.State)
}

func TestSession_AutoAfterManualDoesNotFlap(t *testing.T) {
	s := newTestSession(t, clock.NewMock(), nil, nil)
	s.SwitchToManualMode()
	snapshot := connected(share("s1", false), share("s2", false), camera("a", false))
	s.Update(snapshot)
	s.Flush()
	s.UnpinStream("s1")
	require.Empty(t, s.Layout().PinnedIDs)

	s.SwitchToAutoMode()
	first := s.Layout()

	s.Update(snapshot)
	s.Flush()
	s.UnpinStream("ghost")
	second := s.Layout()

	assert.Equal(t, tileIDs(first.Items), tileIDs(second.Items))
	assert.Equal(t, domain.StateFeaturedPinned, first.Items[0].(domain.StreamTile).State)
	assert.Equal(t, first.Version, second.Version)
}
