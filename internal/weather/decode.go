package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CompassPoint is one of the 16 points of the compass.
type CompassPoint string

// windRotation is indexed by (floor((bearing+22.5)/22.5) + 8) % 16.
var windRotation = [16]CompassPoint{
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
}

var koreanLabels = map[CompassPoint]string{
	"S": "남", "SSW": "남남서", "SW": "남서", "WSW": "서남서",
	"W": "서", "WNW": "서북서", "NW": "북서", "NNW": "북북서",
	"N": "북", "NNE": "북북동", "NE": "북동", "ENE": "동북동",
	"E": "동", "ESE": "동남동", "SE": "남동", "SSE": "남남동",
}

// Korean returns the label shown to users.
func (c CompassPoint) Korean() string {
	if l, ok := koreanLabels[c]; ok {
		return l
	}
	return "알 수 없음"
}

// WindDirection maps a wind bearing in degrees to a compass point.
// Bearings outside [0, 360) are wrapped first.
func WindDirection(bearing float64) CompassPoint {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	idx := (int(math.Floor((b+22.5)/22.5)) + 8) % 16
	return windRotation[idx]
}

// DecodePrecipitation maps a PTY code to sky and rain conditions.
func DecodePrecipitation(code int) (SkyCondition, RainCondition) {
	switch code {
	case 0:
		return SkyClear, RainNone
	case 1:
		return SkyRain, RainFalling
	case 2:
		return SkyRainSnow, RainSnow
	case 3:
		return SkySnow, SnowFalling
	case 5:
		return SkyRaindrop, RainFalling
	case 6:
		return SkyRaindropFlurries, RainFalling
	case 7:
		return SkySnowFlurries, SnowFalling
	default:
		return SkyUnknown, RainUnknown
	}
}

// Decode builds an Observation from the raw category/value map of a nowcast.
// Categories missing from raw are left at their zero value; a missing PTY
// decodes as unknown.
func Decode(raw map[string]string) (Observation, error) {
	var obs Observation
	var err error

	if obs.Temperature, err = floatValue(raw, CategoryTemperature); err != nil {
		return Observation{}, err
	}
	if obs.RainfallMM, err = floatValue(raw, CategoryRainfall); err != nil {
		return Observation{}, err
	}
	if obs.Humidity, err = floatValue(raw, CategoryHumidity); err != nil {
		return Observation{}, err
	}
	if obs.WindSpeed, err = floatValue(raw, CategoryWindSpeed); err != nil {
		return Observation{}, err
	}
	if obs.WindBearing, err = floatValue(raw, CategoryWindBearing); err != nil {
		return Observation{}, err
	}

	pty := -1
	if v, ok := raw[CategoryPrecipitation]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Observation{}, fmt.Errorf("decode %s %q: %w", CategoryPrecipitation, v, err)
		}
		pty = int(f)
	}
	obs.SkyCondition, obs.RainCondition = DecodePrecipitation(pty)

	obs.WindDirection = WindDirection(obs.WindBearing)
	obs.WindLabel = obs.WindDirection.Korean()
	obs.Raw = raw
	return obs, nil
}

func floatValue(raw map[string]string, category string) (float64, error) {
	v, ok := raw[category]
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s %q: %w", category, v, err)
	}
	return f, nil
}

var skyLabels = map[SkyCondition]string{
	SkyClear:            "맑음",
	SkyRain:             "비",
	SkyRainSnow:         "비/눈",
	SkySnow:             "눈",
	SkyRaindrop:         "빗방울",
	SkyRaindropFlurries: "빗방울눈날림",
	SkySnowFlurries:     "눈날림",
}

// Korean returns the label shown to users.
func (s SkyCondition) Korean() string {
	if l, ok := skyLabels[s]; ok {
		return l
	}
	return "알 수 없음"
}

var rainLabels = map[RainCondition]string{
	RainNone:    "비안옴",
	RainFalling: "비옴",
	RainSnow:    "비/눈",
	SnowFalling: "눈옴",
}

// Korean returns the label shown to users.
func (r RainCondition) Korean() string {
	if l, ok := rainLabels[r]; ok {
		return l
	}
	return "알 수 없음"
}
