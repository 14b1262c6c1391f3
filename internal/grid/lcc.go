package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned when a coordinate is outside the geodetic range
// or cannot be projected onto the grid.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const deg2rad = math.Pi / 180.0

// GeoCoordinate is a geodetic position in decimal degrees.
type GeoCoordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// GridCell identifies a cell of the weather-observation grid.
type GridCell struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
}

// MapProjectionParameters defines a Lambert Conformal Conic grid.
// The values are derived together from one datum; use KMA rather than
// assembling a parameter set field by field.
type MapProjectionParameters struct {
	EarthRadiusKm     float64
	GridSpacingKm     float64
	StandardParallel1 float64 // degrees
	StandardParallel2 float64 // degrees
	OriginLongitude   float64 // degrees
	OriginLatitude    float64 // degrees
	OriginX           float64 // grid units
	OriginY           float64 // grid units
}

// KMA is the 5km nowcast grid of the Korean Meteorological Administration.
var KMA = MapProjectionParameters{
	EarthRadiusKm:     6371.00877,
	GridSpacingKm:     5.0,
	StandardParallel1: 30.0,
	StandardParallel2: 60.0,
	OriginLongitude:   126.0,
	OriginLatitude:    38.0,
	OriginX:           210 / 5.0,
	OriginY:           675 / 5.0,
}

// Project converts coord to the grid cell containing it.
//
// Projected values are rounded half to even. A cell is about 5km wide, so the
// rounding mode decides which neighbouring cell a boundary point lands in; half
// to even keeps the cell selection identical to the grid tables published with
// the observation API.
func Project(coord GeoCoordinate, params MapProjectionParameters) (GridCell, error) {
	if err := validate(coord); err != nil {
		return GridCell{}, err
	}

	re := params.EarthRadiusKm / params.GridSpacingKm
	slat1 := params.StandardParallel1 * deg2rad
	slat2 := params.StandardParallel2 * deg2rad
	olon := params.OriginLongitude * deg2rad
	olat := params.OriginLatitude * deg2rad

	sn := math.Log(math.Cos(slat1)/math.Cos(slat2)) /
		math.Log(math.Tan(math.Pi*0.25+slat2*0.5)/math.Tan(math.Pi*0.25+slat1*0.5))
	sf := math.Pow(math.Tan(math.Pi*0.25+slat1*0.5), sn) * math.Cos(slat1) / sn
	ro := re * sf / math.Pow(math.Tan(math.Pi*0.25+olat*0.5), sn)

	ra := re * sf / math.Pow(math.Tan(math.Pi*0.25+coord.Latitude*deg2rad*0.5), sn)

	theta := coord.Longitude*deg2rad - olon
	if theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	theta *= sn

	x := ra*math.Sin(theta) + params.OriginX
	y := ro - ra*math.Cos(theta) + params.OriginY
	if !finite(x) || !finite(y) {
		return GridCell{}, fmt.Errorf("%w: (%g, %g) has no grid projection", ErrInvalidCoordinate, coord.Longitude, coord.Latitude)
	}

	return GridCell{
		NX: int(math.RoundToEven(x)),
		NY: int(math.RoundToEven(y)),
	}, nil
}

func validate(coord GeoCoordinate) error {
	if math.IsNaN(coord.Latitude) || coord.Latitude < -90 || coord.Latitude > 90 {
		return fmt.Errorf("%w: latitude %g out of range [-90, 90]", ErrInvalidCoordinate, coord.Latitude)
	}
	if math.IsNaN(coord.Longitude) || coord.Longitude < -180 || coord.Longitude > 180 {
		return fmt.Errorf("%w: longitude %g out of range [-180, 180]", ErrInvalidCoordinate, coord.Longitude)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
