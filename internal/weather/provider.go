package weather

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/farm-assistant/internal/grid"
)

var (
	// ErrGeocodeNotFound is returned when an address resolves to nothing.
	ErrGeocodeNotFound = errors.New("address not found")

	// ErrWeatherUnavailable is returned when every base-time fallback failed.
	ErrWeatherUnavailable = errors.New("weather observation unavailable")

	// ErrNotPublished is returned by an ObservationSource when the requested
	// base time has not been published yet.
	ErrNotPublished = errors.New("observation not published")
)

// Geocoder abstracts an address-to-coordinate service (e.g. Kakao Local, Google).
type Geocoder interface {
	Name() string
	// Geocode returns ErrGeocodeNotFound when the address has no match.
	Geocode(ctx context.Context, address string) (GeocodingResult, error)
}

// ObservationSource abstracts the nowcast API queried per grid cell.
type ObservationSource interface {
	// Observe returns the raw category/value map for cell at the given hourly base time.
	Observe(ctx context.Context, cell grid.GridCell, base time.Time) (map[string]string, error)
}
