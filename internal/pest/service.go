package pest

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/observability"
)

// Source provides the newest published bulletin.
type Source interface {
	Latest(ctx context.Context) (Bulletin, error)
}

// Store keeps fetched bulletins.
type Store interface {
	SaveBulletin(b Bulletin)
	LatestBulletin() (Bulletin, error)
	BulletinRange(from, to time.Time) ([]Bulletin, error)
}

// Service serves crop advisories from stored bulletins, refreshing them
// when they are older than maxAge.
type Service struct {
	source  Source
	store   Store
	maxAge  time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewService(source Source, store Store, maxAge time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		source:  source,
		store:   store,
		maxAge:  maxAge,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Refresh fetches the newest bulletin and stores it.
func (s *Service) Refresh(ctx context.Context) (Bulletin, error) {
	b, err := s.source.Latest(ctx)
	if err != nil {
		s.metrics.PestRefreshes.WithLabelValues("error").Inc()
		return Bulletin{}, fmt.Errorf("%w: %w", ErrBulletinUnavailable, err)
	}
	b.FetchedAt = s.clock.Now()
	s.store.SaveBulletin(b)

	s.metrics.PestRefreshes.WithLabelValues("success").Inc()
	s.logger.Info("pest bulletin refreshed",
		zap.String("seq", b.Seq),
		zap.Int("forecasts", len(b.Forecasts)),
		zap.Int("watches", len(b.Watches)),
		zap.Int("warnings", len(b.Warnings)),
	)
	return b, nil
}

// ForCrop returns the advisories of the newest bulletin for crop. A stale
// bulletin is still served when refreshing fails.
func (s *Service) ForCrop(ctx context.Context, crop string) (CropAdvisories, error) {
	stored, err := s.store.LatestBulletin()
	hasStored := err == nil
	if hasStored && (s.maxAge <= 0 || s.clock.Since(stored.FetchedAt) <= s.maxAge) {
		return stored.ForCrop(crop), nil
	}

	fresh, err := s.Refresh(ctx)
	if err == nil {
		return fresh.ForCrop(crop), nil
	}
	if hasStored {
		s.logger.Warn("serving stale pest bulletin",
			zap.String("seq", stored.Seq),
			zap.Time("fetched_at", stored.FetchedAt),
			zap.Error(err),
		)
		return stored.ForCrop(crop), nil
	}
	return CropAdvisories{}, err
}

// History returns the bulletins fetched between from and to, inclusive.
func (s *Service) History(_ context.Context, from, to time.Time) ([]Bulletin, error) {
	return s.store.BulletinRange(from, to)
}
