package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/layout"
	"streamlayout/internal/core/ports"
)

// LayoutServiceConfig holds the defaults applied to every new session.
type LayoutServiceConfig struct {
	Constraints       layout.Constraints
	DefaultCameraRear bool
	Debounce          time.Duration
	UpgradeDebounce   time.Duration
}

// DefaultLayoutServiceConfig returns the default capacities and debounce
// windows.
func DefaultLayoutServiceConfig() LayoutServiceConfig {
	return LayoutServiceConfig{
		Constraints:     layout.DefaultConstraints(),
		Debounce:        DefaultDebounce,
		UpgradeDebounce: DefaultUpgradeDebounce,
	}
}

type layoutService struct {
	cfg       LayoutServiceConfig
	repo      ports.SessionRepository
	metrics   ports.LayoutMetrics
	publisher ports.LayoutEventPublisher
	clock     clock.Clock
	logger    *zap.SugaredLogger
}

// NewLayoutService creates a new layout service. metrics and publisher may
// be nil.
func NewLayoutService(
	cfg LayoutServiceConfig,
	repo ports.SessionRepository,
	metrics ports.LayoutMetrics,
	publisher ports.LayoutEventPublisher,
	clk clock.Clock,
	logger *zap.SugaredLogger,
) ports.LayoutService {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &layoutService{
		cfg:       cfg,
		repo:      repo,
		metrics:   metrics,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

// CreateSession starts a session. An empty id is replaced with a uuid.
func (s *layoutService) CreateSession(ctx context.Context, opts ports.SessionOptions) (ports.LayoutSession, error) {
	id := opts.ID
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}

	if _, err := s.repo.GetByID(ctx, id); err == nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, domain.ErrSessionExists)
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to look up session %s: %w", id, err)
	}

	cfg := SessionConfig{
		ID:                 id,
		LocalParticipantID: opts.LocalParticipantID,
		Constraints:        s.constraints(opts),
		DefaultCameraRear:  s.cfg.DefaultCameraRear,
		Debounce:           s.cfg.Debounce,
		UpgradeDebounce:    s.cfg.UpgradeDebounce,
	}
	if opts.DefaultCameraRear != nil {
		cfg.DefaultCameraRear = *opts.DefaultCameraRear
	}

	session, err := NewSession(cfg, s.clock, s.metrics, s.publisher, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}

	if err := s.repo.Add(ctx, session); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to store session %s: %w", id, err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionOpened(id)
	}
	s.logger.Infow("Layout session created",
		"session_id", id,
		"participant_id", opts.LocalParticipantID,
		"max_pinned", cfg.Constraints.MaxPinnedStreams,
		"max_mosaic", cfg.Constraints.MaxMosaicStreams,
		"max_thumbnails", cfg.Constraints.MaxThumbnailStreams,
	)
	return session, nil
}

func (s *layoutService) constraints(opts ports.SessionOptions) layout.Constraints {
	c := s.cfg.Constraints
	if opts.MaxPinnedStreams != nil {
		c.MaxPinnedStreams = *opts.MaxPinnedStreams
	}
	if opts.MaxMosaicStreams != nil {
		c.MaxMosaicStreams = *opts.MaxMosaicStreams
	}
	if opts.MaxThumbnailStreams != nil {
		c.MaxThumbnailStreams = *opts.MaxThumbnailStreams
	}
	return c
}

func (s *layoutService) GetSession(ctx context.Context, id domain.SessionID) (ports.LayoutSession, error) {
	return s.repo.GetByID(ctx, id)
}

// CloseSession removes the session and drops its pending work.
func (s *layoutService) CloseSession(ctx context.Context, id domain.SessionID) error {
	session, err := s.repo.Remove(ctx, id)
	if err != nil {
		return err
	}
	session.Close()

	if s.metrics != nil {
		s.metrics.RecordSessionClosed(id)
	}
	s.logger.Infow("Layout session removed", "session_id", id)
	return nil
}

func (s *layoutService) ListSessions(ctx context.Context) ([]domain.SessionID, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := make([]domain.SessionID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
