package weather

import (
	"time"

	"github.com/i474232898/farm-assistant/internal/grid"
)

// SkyCondition is the sky state implied by a precipitation-type code.
type SkyCondition string

const (
	SkyUnknown          SkyCondition = "unknown"
	SkyClear            SkyCondition = "clear"
	SkyRain             SkyCondition = "rain"
	SkyRainSnow         SkyCondition = "rain/snow"
	SkySnow             SkyCondition = "snow"
	SkyRaindrop         SkyCondition = "raindrop"
	SkyRaindropFlurries SkyCondition = "raindrop/snow flurries"
	SkySnowFlurries     SkyCondition = "snow flurries"
)

// RainCondition summarizes whether anything is falling.
type RainCondition string

const (
	RainUnknown RainCondition = "unknown"
	RainNone    RainCondition = "none"
	RainFalling RainCondition = "raining"
	RainSnow    RainCondition = "rain/snow"
	SnowFalling RainCondition = "snowing"
)

// Category codes of the ultra-short nowcast.
const (
	CategoryTemperature   = "T1H"
	CategoryRainfall      = "RN1"
	CategoryHumidity      = "REH"
	CategoryPrecipitation = "PTY"
	CategoryWindBearing   = "VEC"
	CategoryWindSpeed     = "WSD"
)

// Observation is the decoded current-conditions view for one grid cell.
type Observation struct {
	Address       string        `json:"address,omitempty"`
	Cell          grid.GridCell `json:"grid"`
	BaseTime      time.Time     `json:"baseTime"`
	Temperature   float64       `json:"temp"`
	SkyCondition  SkyCondition  `json:"skyCondition"`
	RainCondition RainCondition `json:"rainCondition"`
	RainfallMM    float64       `json:"rainfallMm"`
	Humidity      float64       `json:"humidity"`
	WindSpeed     float64       `json:"windSpeed"`
	WindBearing   float64       `json:"windBearing"`
	WindDirection CompassPoint  `json:"windDirection"`
	WindLabel     string        `json:"windDirectionLabel"`

	// Raw category values as reported upstream.
	Raw map[string]string `json:"raw,omitempty"`
}

// GeocodingResult is a resolved address.
type GeocodingResult struct {
	Coordinate       grid.GeoCoordinate
	FormattedAddress string
}
