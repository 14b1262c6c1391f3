package providers

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API.
// The underlying library keeps its key in a package variable, so only one
// GoogleGeocoder should be constructed per process.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

func (g *GoogleGeocoder) Name() string {
	return "google"
}

// Geocode resolves address. The library call has no context, so cancellation
// abandons the lookup rather than aborting it.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (weather.GeocodingResult, error) {
	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{Street: address})
		done <- result{loc: loc, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return weather.GeocodingResult{}, ctx.Err()
	case r = <-done:
	}

	if r.err != nil {
		if common.HasAny(r.err.Error(), "zero_results", "empty", "no results") {
			return weather.GeocodingResult{}, fmt.Errorf("%w: %q", weather.ErrGeocodeNotFound, address)
		}
		return weather.GeocodingResult{}, fmt.Errorf("%w: google geocode: %v", common.ErrUpstreamUnreachable, r.err)
	}
	if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
		return weather.GeocodingResult{}, fmt.Errorf("%w: %q", weather.ErrGeocodeNotFound, address)
	}

	return weather.GeocodingResult{
		Coordinate:       grid.GeoCoordinate{Longitude: r.loc.Longitude, Latitude: r.loc.Latitude},
		FormattedAddress: address,
	}, nil
}
