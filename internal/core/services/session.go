package services

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/layout"
	"streamlayout/internal/core/ports"
	"streamlayout/pkg/debounce"
	"streamlayout/pkg/tracing"
)

const (
	DefaultDebounce        = 100 * time.Millisecond
	DefaultUpgradeDebounce = 5 * time.Second

	layoutBuffer   = 1
	messageBuffer  = 16
	publishTimeout = 2 * time.Second
)

// SessionConfig configures one call's layout session.
type SessionConfig struct {
	ID                 domain.SessionID
	LocalParticipantID domain.ParticipantID
	Constraints        layout.Constraints
	DefaultCameraRear  bool
	// Debounce is the quiet window applied to stream updates.
	Debounce time.Duration
	// UpgradeDebounce replaces Debounce while a call looks like it is being
	// upgraded from audio to video.
	UpgradeDebounce time.Duration
}

// Session reconciles live call snapshots into layouts. Snapshot updates are
// debounced and coalesced; user operations apply immediately. All output is
// delivered to subscribers and the event publisher.
type Session struct {
	cfg       SessionConfig
	logger    *zap.SugaredLogger
	metrics   ports.LayoutMetrics
	publisher ports.LayoutEventPublisher
	clock     clock.Clock
	debouncer *debounce.Debouncer

	mu         sync.Mutex
	controller *layout.Controller
	pending    domain.CallSnapshot
	callState  domain.CallState
	isOneToOne bool
	current    domain.LayoutSnapshot
	outbox     []domain.Message
	subs       map[*subscription]struct{}
	closed     bool
}

// NewSession builds a session. metrics and publisher may be nil.
func NewSession(
	cfg SessionConfig,
	clk clock.Clock,
	metrics ports.LayoutMetrics,
	publisher ports.LayoutEventPublisher,
	logger *zap.SugaredLogger,
) (*Session, error) {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.UpgradeDebounce <= 0 {
		cfg.UpgradeDebounce = DefaultUpgradeDebounce
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Session{
		cfg:       cfg,
		logger:    logger.With("session_id", cfg.ID),
		metrics:   metrics,
		publisher: publisher,
		clock:     clk,
		subs:      make(map[*subscription]struct{}),
		current: domain.LayoutSnapshot{
			SessionID: cfg.ID,
			Mode:      domain.ModeAuto,
			Items:     []domain.StreamItem{},
			PinnedIDs: []domain.StreamID{},
			UpdatedAt: clk.Now(),
		},
	}

	controller, err := layout.NewController(cfg.Constraints, cfg.DefaultCameraRear, ports.MessageSenderFunc(s.enqueue))
	if err != nil {
		return nil, err
	}
	s.controller = controller
	s.debouncer = debounce.NewDebouncer(clk, s.reconcile)
	return s, nil
}

func (s *Session) ID() domain.SessionID {
	return s.cfg.ID
}

func (s *Session) LocalParticipantID() domain.ParticipantID {
	return s.cfg.LocalParticipantID
}

// Update stores the latest call snapshot and schedules a recomputation.
// Entering the reconnecting state clears fullscreen immediately.
func (s *Session) Update(snapshot domain.CallSnapshot) {
	snapshot.Streams = append([]domain.Stream(nil), snapshot.Streams...)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	previous := s.callState
	s.pending = snapshot
	s.callState = snapshot.State

	var out emission
	if snapshot.State == domain.CallStateReconnecting && previous != domain.CallStateReconnecting {
		s.controller.ClearFullscreenStream()
		out = s.emitLocked()
	}
	window := s.debounceWindow(snapshot)
	s.mu.Unlock()

	s.publish(context.Background(), out)
	s.debouncer.Trigger(window)
}

// debounceWindow extends the quiet period for a lone participant with a
// single stream on a connected call, which is what an audio to video
// upgrade looks like halfway through.
func (s *Session) debounceWindow(snapshot domain.CallSnapshot) time.Duration {
	if snapshot.ParticipantCount == 1 && len(snapshot.Streams) == 1 && snapshot.State == domain.CallStateConnected {
		return s.cfg.UpgradeDebounce
	}
	return s.cfg.Debounce
}

// Flush runs a pending recomputation now.
func (s *Session) Flush() {
	s.debouncer.Flush()
}

func (s *Session) reconcile() {
	ctx, span := tracing.TraceReconcile(context.Background(), string(s.cfg.ID), "debounce")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	snapshot := s.pending
	s.isOneToOne = snapshot.IsOneToOne
	changes := s.controller.Observe(snapshot.Streams)

	for _, share := range changes.LocalScreenShares {
		if s.controller.PinLocalScreenShare(share.ID) {
			s.logger.Debugw("Pinned local screen share", "stream_id", share.ID)
		}
	}
	// In manual mode every new remote share is offered, including one that
	// is pinned right away because nothing else was pinned.
	s.controller.Suggest(changes.RemoteScreenShares)
	if len(changes.RemoteScreenShares) > 0 && !s.controller.IsInAutoMode() && len(s.controller.PinnedStreams()) == 0 {
		first := changes.RemoteScreenShares[0]
		if s.controller.PinStream(first.ID, false, false) {
			s.logger.Debugw("Pinned first remote screen share", "stream_id", first.ID)
		}
	}

	out := s.emitLocked()
	s.mu.Unlock()

	tracing.AddSpanAttributes(ctx,
		tracing.ItemCountKey.Int(len(out.snapshot.Items)),
		tracing.ModeKey.String(string(out.snapshot.Mode)),
		tracing.VersionKey.Int64(int64(out.snapshot.Version)),
	)
	s.publish(ctx, out)
}

// Layout returns the last emitted layout.
func (s *Session) Layout() domain.LayoutSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) IsInAutoMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.IsInAutoMode()
}

// PinStream pins id and recomputes at once.
func (s *Session) PinStream(id domain.StreamID, prepend, force bool) bool {
	var ok bool
	s.apply("pin", func(c *layout.Controller) {
		ok = c.PinStream(id, prepend, force)
	})
	return ok
}

func (s *Session) UnpinStream(id domain.StreamID) {
	s.apply("unpin", func(c *layout.Controller) {
		c.UnpinStream(id)
	})
}

func (s *Session) ClearPinnedStreams() {
	s.apply("clear_pins", func(c *layout.Controller) {
		c.ClearPinnedStreams()
	})
}

// SetFullscreenStream shows id alone and recomputes at once.
func (s *Session) SetFullscreenStream(id domain.StreamID) bool {
	var ok bool
	s.apply("fullscreen", func(c *layout.Controller) {
		ok = c.SetFullscreenStream(id)
	})
	return ok
}

// ClearFullscreenStream ends fullscreen and restores the previous layout.
func (s *Session) ClearFullscreenStream() {
	s.apply("clear_fullscreen", func(c *layout.Controller) {
		c.ClearFullscreenStream()
	})
}

// SwitchToAutoMode activates automatic arrangement.
func (s *Session) SwitchToAutoMode() {
	s.apply("mode_auto", func(c *layout.Controller) {
		c.SwitchToAutoMode()
	})
}

// SwitchToManualMode drops all pins and activates manual arrangement.
func (s *Session) SwitchToManualMode() {
	s.apply("mode_manual", func(c *layout.Controller) {
		c.SwitchToManualMode()
	})
}

func (s *Session) apply(op string, fn func(c *layout.Controller)) {
	ctx, span := tracing.TraceReconcile(context.Background(), string(s.cfg.ID), op)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fn(s.controller)
	out := s.emitLocked()
	s.mu.Unlock()

	s.publish(ctx, out)
}

// Subscribe returns a subscription that immediately holds the current layout.
func (s *Session) Subscribe() ports.Subscription {
	sub := &subscription{
		session:  s,
		layouts:  make(chan domain.LayoutSnapshot, layoutBuffer),
		messages: make(chan domain.Message, messageBuffer),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.layouts)
		close(sub.messages)
		sub.done = true
		return sub
	}
	s.subs[sub] = struct{}{}
	sub.offerLayout(s.current)
	return sub
}

// Close drops any pending recomputation and closes all subscriptions.
func (s *Session) Close() {
	s.debouncer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.closeLocked()
		delete(s.subs, sub)
	}
	s.logger.Infow("Layout session closed")
}

// enqueue is the controller's message sink. It runs with s.mu held.
func (s *Session) enqueue(msg domain.Message) {
	s.outbox = append(s.outbox, msg)
}

type emission struct {
	snapshot domain.LayoutSnapshot
	changed  bool
	messages []domain.Message
}

// emitLocked recomputes the layout, delivers it and queued messages to
// subscribers and returns what still has to be published.
func (s *Session) emitLocked() emission {
	items := s.controller.Items(s.isOneToOne)
	next := domain.LayoutSnapshot{
		SessionID:    s.cfg.ID,
		Version:      s.current.Version,
		Mode:         s.controller.Mode(),
		Items:        items,
		PinnedIDs:    s.controller.PinnedStreams(),
		FullscreenID: s.controller.FullscreenStream(),
		UpdatedAt:    s.current.UpdatedAt,
	}

	out := emission{messages: s.outbox}
	s.outbox = nil

	if !sameLayout(s.current, next) {
		if next.Mode != s.current.Mode && s.metrics != nil {
			s.metrics.RecordModeSwitch(s.cfg.ID, next.Mode)
		}
		next.Version++
		next.UpdatedAt = s.clock.Now()
		s.current = next
		out.changed = true

		for sub := range s.subs {
			sub.offerLayout(next)
		}
		if s.metrics != nil {
			s.metrics.RecordReconcile(s.cfg.ID, next)
		}
		s.logger.Debugw("Layout changed",
			"version", next.Version,
			"mode", next.Mode,
			"items", len(next.Items),
			"pinned", len(next.PinnedIDs),
			"fullscreen", next.FullscreenID,
		)
	}
	out.snapshot = s.current

	for _, msg := range out.messages {
		for sub := range s.subs {
			sub.offerMessage(msg)
		}
		if s.metrics == nil {
			continue
		}
		switch m := msg.(type) {
		case domain.PinScreenshareMessage:
			s.metrics.RecordPinSuggestion(s.cfg.ID)
		case domain.FullScreenMessage:
			s.metrics.RecordFullscreen(s.cfg.ID, m.Enabled)
		}
	}
	return out
}

func (s *Session) publish(ctx context.Context, out emission) {
	if s.publisher == nil || (!out.changed && len(out.messages) == 0) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if out.changed {
		if err := s.publisher.PublishLayout(ctx, out.snapshot); err != nil {
			s.logger.Warnw("Failed to publish layout", "version", out.snapshot.Version, "error", err)
		}
	}
	for _, msg := range out.messages {
		if err := s.publisher.PublishMessage(ctx, s.cfg.ID, msg); err != nil {
			s.logger.Warnw("Failed to publish message", "error", err)
		}
	}
}

func sameLayout(a, b domain.LayoutSnapshot) bool {
	return a.Mode == b.Mode &&
		a.FullscreenID == b.FullscreenID &&
		reflect.DeepEqual(a.PinnedIDs, b.PinnedIDs) &&
		reflect.DeepEqual(a.Items, b.Items)
}

type subscription struct {
	session  *Session
	layouts  chan domain.LayoutSnapshot
	messages chan domain.Message
	done     bool
}

func (sub *subscription) Layouts() <-chan domain.LayoutSnapshot {
	return sub.layouts
}

func (sub *subscription) Messages() <-chan domain.Message {
	return sub.messages
}

func (sub *subscription) Close() {
	s := sub.session
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
	sub.closeLocked()
}

func (sub *subscription) closeLocked() {
	if sub.done {
		return
	}
	sub.done = true
	close(sub.layouts)
	close(sub.messages)
}

// offerLayout keeps only the newest snapshot in the channel.
func (sub *subscription) offerLayout(snapshot domain.LayoutSnapshot) {
	select {
	case <-sub.layouts:
	default:
	}
	select {
	case sub.layouts <- snapshot:
	default:
	}
}

func (sub *subscription) offerMessage(msg domain.Message) {
	select {
	case sub.messages <- msg:
	default:
		sub.session.logger.Warnw("Dropping layout message for slow subscriber")
	}
}
