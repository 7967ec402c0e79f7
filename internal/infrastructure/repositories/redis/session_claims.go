package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	claimKeyPrefix  = "streamlayout:session:"
	DefaultClaimTTL = 30 * time.Second
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// sessionClaim is a renewed SET NX key marking a session id as owned by one
// instance.
type sessionClaim struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
	stop   chan struct{}
	done   chan struct{}
}

func claimKey(id domain.SessionID) string {
	return claimKeyPrefix + string(id)
}

func (c *sessionClaim) acquire(ctx context.Context) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key, c.owner, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", c.key, err)
	}
	if ok {
		go c.renew()
	}
	return ok, nil
}

// renew extends the claim at half its TTL until released or lost.
func (c *sessionClaim) renew() {
	defer close(c.done)

	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.ttl/2)
			held, err := c.client.Eval(ctx, renewScript, []string{c.key}, c.owner, c.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || held == 0 {
				return
			}
		}
	}
}

func (c *sessionClaim) release(ctx context.Context) error {
	close(c.stop)
	<-c.done

	if _, err := c.client.Eval(ctx, releaseScript, []string{c.key}, c.owner).Result(); err != nil {
		return fmt.Errorf("failed to release %s: %w", c.key, err)
	}
	return nil
}

// ClaimingSessionRepository keeps sessions in an inner repository and claims
// each id in redis first, so two instances behind a balancer never run the
// same session.
type ClaimingSessionRepository struct {
	inner      ports.SessionRepository
	client     redis.UniversalClient
	instanceID string
	ttl        time.Duration
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	claims map[domain.SessionID]*sessionClaim
}

// NewClaimingSessionRepository wraps inner with cluster-wide claims owned by
// instanceID. A non-positive ttl selects DefaultClaimTTL.
func NewClaimingSessionRepository(
	inner ports.SessionRepository,
	client redis.UniversalClient,
	instanceID string,
	ttl time.Duration,
	logger *zap.SugaredLogger,
) *ClaimingSessionRepository {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &ClaimingSessionRepository{
		inner:      inner,
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
		logger:     logger,
		claims:     make(map[domain.SessionID]*sessionClaim),
	}
}

// Add claims the session id and then stores the session in inner. It fails
// with domain.ErrSessionExists when another instance holds the claim.
func (r *ClaimingSessionRepository) Add(ctx context.Context, session ports.LayoutSession) error {
	id := session.ID()
	claim := &sessionClaim{
		client: r.client,
		key:    claimKey(id),
		owner:  r.instanceID,
		ttl:    r.ttl,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	ok, err := claim.acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s is owned by another instance: %w", id, domain.ErrSessionExists)
	}

	if err := r.inner.Add(ctx, session); err != nil {
		if relErr := claim.release(ctx); relErr != nil {
			r.logger.Warnw("failed to release session claim", "session_id", id, "error", relErr)
		}
		return err
	}

	r.mu.Lock()
	r.claims[id] = claim
	r.mu.Unlock()
	return nil
}

func (r *ClaimingSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (ports.LayoutSession, error) {
	return r.inner.GetByID(ctx, id)
}

// Remove deletes the session and releases its claim.
func (r *ClaimingSessionRepository) Remove(ctx context.Context, id domain.SessionID) (ports.LayoutSession, error) {
	session, err := r.inner.Remove(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	claim := r.claims[id]
	delete(r.claims, id)
	r.mu.Unlock()

	if claim != nil {
		if err := claim.release(ctx); err != nil {
			r.logger.Warnw("failed to release session claim", "session_id", id, "error", err)
		}
	}
	return session, nil
}

func (r *ClaimingSessionRepository) List(ctx context.Context) ([]ports.LayoutSession, error) {
	return r.inner.List(ctx)
}
