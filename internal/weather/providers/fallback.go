package providers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/observability"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// FallbackGeocoder tries each geocoder in order until one resolves the address.
type FallbackGeocoder struct {
	geocoders []weather.Geocoder
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewFallbackGeocoder(metrics *observability.Metrics, logger *zap.Logger, geocoders ...weather.Geocoder) *FallbackGeocoder {
	return &FallbackGeocoder{
		geocoders: geocoders,
		metrics:   metrics,
		logger:    logger,
	}
}

func (f *FallbackGeocoder) Name() string {
	return "fallback"
}

// Geocode returns the first successful result. If every geocoder fails and at
// least one reported a miss, the miss wins over transport errors.
func (f *FallbackGeocoder) Geocode(ctx context.Context, address string) (weather.GeocodingResult, error) {
	if len(f.geocoders) == 0 {
		return weather.GeocodingResult{}, fmt.Errorf("no geocoders configured")
	}

	var notFound, lastErr error
	for _, g := range f.geocoders {
		result, err := g.Geocode(ctx, address)
		switch {
		case err == nil:
			f.metrics.GeocodeRequests.WithLabelValues(g.Name(), "success").Inc()
			return result, nil
		case errors.Is(err, weather.ErrGeocodeNotFound):
			f.metrics.GeocodeRequests.WithLabelValues(g.Name(), "not_found").Inc()
			notFound = err
		default:
			f.metrics.GeocodeRequests.WithLabelValues(g.Name(), "error").Inc()
			f.logger.Warn("geocoder failed", zap.String("provider", g.Name()), zap.Error(err))
			lastErr = err
		}
		if ctx.Err() != nil {
			return weather.GeocodingResult{}, ctx.Err()
		}
	}

	if notFound != nil {
		return weather.GeocodingResult{}, notFound
	}
	return weather.GeocodingResult{}, lastErr
}
