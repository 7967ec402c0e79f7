package distributed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
	"streamlayout/pkg/circuitbreaker"
	"streamlayout/pkg/retry"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureSink struct {
	mu     sync.Mutex
	events []ports.EventRecord
}

func (s *captureSink) Record(event ports.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func unreachableClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEventBus_DecodeSkipsOwnInstance(t *testing.T) {
	bus := NewEventBus(unreachableClient(t), "streamlayout:events", "instance-a", nil, clock.NewMock(), zaptest.NewLogger(t).Sugar())

	event := ports.EventRecord{
		Type:      ports.EventFullscreen,
		SessionID: "s1",
		Timestamp: time.Unix(100, 0).UTC(),
		Payload:   domain.FullScreenEnabled,
	}

	own, err := json.Marshal(envelope{InstanceID: "instance-a", Event: event})
	require.NoError(t, err)
	_, remote, err := bus.decode(own)
	require.NoError(t, err)
	assert.False(t, remote)

	other, err := json.Marshal(envelope{InstanceID: "instance-b", Event: event})
	require.NoError(t, err)
	decoded, remote, err := bus.decode(other)
	require.NoError(t, err)
	assert.True(t, remote)
	assert.Equal(t, ports.EventFullscreen, decoded.Type)
	assert.Equal(t, domain.SessionID("s1"), decoded.SessionID)
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
	assert.JSONEq(t, `{"enabled":true}`, string(decoded.Payload.(json.RawMessage)))
}

func TestEventBus_DecodeRejectsGarbage(t *testing.T) {
	bus := NewEventBus(unreachableClient(t), "ch", "a", nil, clock.NewMock(), zaptest.NewLogger(t).Sugar())

	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"missing type", `{"instance_id":"b","event":{"session_id":"s1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := bus.decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEventBus_PublishRecordsLocallyWhenRedisFails(t *testing.T) {
	clk := clock.NewMock()
	sink := &captureSink{}
	bus := NewEventBus(unreachableClient(t), "ch", "a", sink, clk, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	err := bus.PublishLayout(ctx, domain.LayoutSnapshot{SessionID: "s1", Version: 1})
	assert.Error(t, err)

	err = bus.PublishMessage(ctx, "s1", domain.PinScreenshareMessage{StreamID: "share"})
	assert.Error(t, err)

	require.Len(t, sink.events, 2)
	assert.Equal(t, ports.EventLayoutChanged, sink.events[0].Type)
	assert.Equal(t, clk.Now(), sink.events[0].Timestamp)
	assert.Equal(t, ports.EventPinSuggested, sink.events[1].Type)
}

func TestEventBus_CloseWithoutSubscribe(t *testing.T) {
	bus := NewEventBus(unreachableClient(t), "ch", "a", nil, nil, zaptest.NewLogger(t).Sugar())
	assert.NoError(t, bus.Close())
}

func TestEventBus_PublishStopsCallingRedisWhileCircuitOpen(t *testing.T) {
	bus := NewEventBus(unreachableClient(t), "ch", "a", nil, clock.NewMock(), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	threshold := circuitbreaker.DefaultConfig().FailureThreshold

	for i := 0; i < threshold; i++ {
		err := bus.PublishLayout(ctx, domain.LayoutSnapshot{SessionID: "s1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}

	err := bus.PublishLayout(ctx, domain.LayoutSnapshot{SessionID: "s1"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestEventBus_FollowReturnsOnCancel(t *testing.T) {
	bus := NewEventBus(unreachableClient(t), "ch", "a", nil, nil, zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		bus.Follow(ctx, nil, retry.Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
