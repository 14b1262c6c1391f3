package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/observability"
)

// BaseTimeAttempts is how many hourly base times are tried, newest first.
const BaseTimeAttempts = 3

// KST is the time zone the nowcast base times are expressed in.
var KST = time.FixedZone("KST", 9*60*60)

// Service resolves addresses and fetches decoded observations for them.
type Service struct {
	geocoder Geocoder
	source   ObservationSource
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(geocoder Geocoder, source ObservationSource, clock clockwork.Clock, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		geocoder: geocoder,
		source:   source,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// CurrentByAddress geocodes address and returns the current observation for it.
func (s *Service) CurrentByAddress(ctx context.Context, address string) (Observation, error) {
	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return Observation{}, err
	}

	obs, err := s.CurrentAt(ctx, loc.Coordinate)
	if err != nil {
		return Observation{}, err
	}
	obs.Address = loc.FormattedAddress
	if obs.Address == "" {
		obs.Address = address
	}
	return obs, nil
}

// CurrentAt returns the current observation for the grid cell containing coord.
// The newest hourly base time is tried first, then up to two earlier hours.
func (s *Service) CurrentAt(ctx context.Context, coord grid.GeoCoordinate) (Observation, error) {
	cell, err := grid.Project(coord, grid.KMA)
	if err != nil {
		return Observation{}, err
	}

	base := s.clock.Now().In(KST).Truncate(time.Hour)

	var lastErr error
	for i := 0; i < BaseTimeAttempts; i++ {
		bt := base.Add(-time.Duration(i) * time.Hour)

		raw, err := s.source.Observe(ctx, cell, bt)
		if err != nil {
			if ctx.Err() != nil {
				return Observation{}, ctx.Err()
			}
			s.logger.Debug("observation attempt failed",
				zap.Int("nx", cell.NX),
				zap.Int("ny", cell.NY),
				zap.Time("base_time", bt),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		obs, err := Decode(raw)
		if err != nil {
			return Observation{}, fmt.Errorf("%w: %v", ErrWeatherUnavailable, err)
		}
		obs.Cell = cell
		obs.BaseTime = bt

		s.metrics.WeatherFallbacks.Observe(float64(i + 1))
		s.metrics.WeatherOutcomes.WithLabelValues("success").Inc()
		return obs, nil
	}

	s.metrics.WeatherFallbacks.Observe(BaseTimeAttempts)
	s.metrics.WeatherOutcomes.WithLabelValues("unavailable").Inc()
	s.logger.Warn("no observation published for grid cell",
		zap.Int("nx", cell.NX),
		zap.Int("ny", cell.NY),
		zap.Error(lastErr),
	)
	if errors.Is(lastErr, ErrNotPublished) || lastErr == nil {
		return Observation{}, fmt.Errorf("%w: nx=%d ny=%d", ErrWeatherUnavailable, cell.NX, cell.NY)
	}
	return Observation{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, lastErr)
}
