package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
	"streamlayout/pkg/circuitbreaker"
	"streamlayout/pkg/retry"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

// EventSink keeps a local copy of every event seen by the bus.
type EventSink interface {
	Record(event ports.EventRecord)
}

// envelope is the wire form published on the channel.
type envelope struct {
	InstanceID string            `json:"instance_id"`
	Event      ports.EventRecord `json:"event"`
}

type wireEnvelope struct {
	InstanceID string `json:"instance_id"`
	Event      struct {
		ports.EventRecord
		Payload json.RawMessage `json:"payload"`
	} `json:"event"`
}

// EventBus publishes layout events on a redis pub/sub channel so other
// instances and observers can follow a session.
type EventBus struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	sink       EventSink
	clock      clock.Clock
	logger     *zap.SugaredLogger
	breaker    *circuitbreaker.CircuitBreaker

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewEventBus creates an event bus on channel. Events are also recorded in
// sink, and those published by instanceID are not delivered back.
func NewEventBus(
	client redis.UniversalClient,
	channel string,
	instanceID string,
	sink EventSink,
	clk clock.Clock,
	logger *zap.SugaredLogger,
) *EventBus {
	if clk == nil {
		clk = clock.New()
	}
	eb := &EventBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		sink:       sink,
		clock:      clk,
		logger:     logger,
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig(), clk),
	}
	eb.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		eb.logger.Warnw("event bus publish circuit changed",
			"from", from.String(),
			"to", to.String(),
			"channel", channel,
		)
	})
	return eb
}

func (eb *EventBus) PublishLayout(ctx context.Context, snapshot domain.LayoutSnapshot) error {
	return eb.Publish(ctx, ports.LayoutEvent(snapshot))
}

func (eb *EventBus) PublishMessage(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error {
	event, ok := ports.MessageEvent(sessionID, msg)
	if !ok {
		return nil
	}
	return eb.Publish(ctx, event)
}

// Publish records the event locally, then sends it on the channel. While
// redis keeps failing the send is skipped and circuitbreaker.ErrOpen is
// returned so sessions are not held up by dial timeouts.
func (eb *EventBus) Publish(ctx context.Context, event ports.EventRecord) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = eb.clock.Now()
	}
	if eb.sink != nil {
		eb.sink.Record(event)
	}

	data, err := json.Marshal(envelope{InstanceID: eb.instanceID, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = eb.breaker.Execute(func() error {
		return eb.client.Publish(ctx, eb.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)

	return nil
}

// Subscribe follows the channel until ctx is done. Events from other
// instances are recorded locally and then handed to handler, which may be nil.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(ports.EventRecord) error) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return ErrAlreadySubscribed
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.mu.Unlock()

	defer func() {
		eb.mu.Lock()
		if eb.pubsub == pubsub {
			eb.pubsub = nil
		}
		eb.mu.Unlock()
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, remote, err := eb.decode([]byte(msg.Payload))
			if err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if !remote {
				continue
			}

			if eb.sink != nil {
				eb.sink.Record(event)
			}
			if handler == nil {
				continue
			}
			if err := handler(event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"session_id", event.SessionID,
					"error", err,
				)
			}
		}
	}
}

// Follow keeps a subscription alive until ctx is done, resubscribing with
// backoff whenever the connection drops.
func (eb *EventBus) Follow(ctx context.Context, handler func(ports.EventRecord) error, backoff retry.Config) {
	attempt := 0
	for {
		started := eb.clock.Now()
		err := eb.Subscribe(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrAlreadySubscribed) {
			eb.logger.Warnw("event bus already followed", "channel", eb.channel)
			return
		}
		if eb.clock.Since(started) > backoff.MaxDelay {
			attempt = 0
		}

		delay := retry.Backoff(backoff, attempt)
		attempt++
		eb.logger.Warnw("event bus subscription dropped, resubscribing",
			"channel", eb.channel,
			"error", err,
			"retry_in", delay,
		)

		timer := eb.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// decode parses a channel payload and reports whether it came from another
// instance. Payloads stay raw JSON.
func (eb *EventBus) decode(data []byte) (ports.EventRecord, bool, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return ports.EventRecord{}, false, err
	}
	if wire.Event.Type == "" {
		return ports.EventRecord{}, false, fmt.Errorf("event without type")
	}

	event := wire.Event.EventRecord
	event.Payload = wire.Event.Payload
	return event, wire.InstanceID != eb.instanceID, nil
}

// Close stops the subscription, if any.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.pubsub != nil {
		err := eb.pubsub.Close()
		eb.pubsub = nil
		return err
	}
	return nil
}
