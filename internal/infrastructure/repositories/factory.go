package repositories

import (
	"context"

	"streamlayout/internal/core/ports"
	"streamlayout/internal/infrastructure/distributed"
	"streamlayout/internal/infrastructure/repositories/memory"
	redisrepo "streamlayout/internal/infrastructure/repositories/redis"
	"streamlayout/pkg/config"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory builds the storage and event plumbing, using redis when
// it is enabled and reachable and memory otherwise.
type RepositoryFactory struct {
	cfg         *config.Config
	redisClient *redis.Client
	instanceID  string
	recorder    *memory.EventRecorder
	bus         *distributed.EventBus
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory. A redis connection
// failure is logged and the factory falls back to memory.
func NewRepositoryFactory(cfg *config.Config, clk clock.Clock, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		recorder:   memory.NewEventRecorder(cfg.Events.HistorySize, clk),
		logger:     logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory event recorder",
				"error", err,
			)
		} else {
			factory.redisClient = client
			factory.bus = distributed.NewEventBus(client, cfg.Events.Channel, factory.instanceID, factory.recorder, clk, logger)
			logger.Infow("using Redis event bus",
				"channel", cfg.Events.Channel,
				"instance_id", factory.instanceID,
			)
		}
	}

	if factory.bus == nil {
		logger.Info("using memory event recorder")
	}

	return factory, nil
}

// CreateSessionRepository returns the session registry. Sessions hold live
// timers and subscribers, so they are always kept in process; with redis the
// ids are also claimed cluster-wide.
func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	repo := memory.NewMemorySessionRepository()
	if f.redisClient == nil {
		return repo
	}
	return redisrepo.NewClaimingSessionRepository(repo, f.redisClient, f.instanceID, redisrepo.DefaultClaimTTL, f.logger)
}

// InstanceID identifies this process on the event bus and in session claims.
func (f *RepositoryFactory) InstanceID() string {
	return f.instanceID
}

// CreateEventPublisher returns the redis bus when connected, else the
// in-memory recorder.
func (f *RepositoryFactory) CreateEventPublisher() ports.LayoutEventPublisher {
	if f.bus != nil {
		return f.bus
	}
	return f.recorder
}

// EventHistory returns the recorder that keeps recent events per session.
func (f *RepositoryFactory) EventHistory() ports.EventHistory {
	return f.recorder
}

// EventBus is nil when redis is not in use.
func (f *RepositoryFactory) EventBus() *distributed.EventBus {
	return f.bus
}

// RedisClient is nil when redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close stops the event bus and closes the redis client.
func (f *RepositoryFactory) Close() error {
	if f.bus != nil {
		if err := f.bus.Close(); err != nil {
			f.logger.Warnw("failed to close event bus", "error", err)
		}
	}
	return redisrepo.CloseRedisClient(f.redisClient)
}

// HealthCheck pings redis when it is in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
