package pest

import (
	"errors"
	"time"
)

// ErrBulletinUnavailable is returned when no bulletin can be fetched or found.
var ErrBulletinUnavailable = errors.New("pest bulletin unavailable")

// Advisory is one pest entry of a bulletin, e.g. "탄저병 (과수-사과)".
type Advisory struct {
	Name string `json:"name"`
	Crop string `json:"crop"`
}

// Bulletin is one issue of the national pest forecast.
type Bulletin struct {
	Seq       string     `json:"seq"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Forecasts []Advisory `json:"forecasts"`
	Watches   []Advisory `json:"watches"`
	Warnings  []Advisory `json:"warnings"`
}

// CropAdvisories lists the pest names a bulletin reports for one crop.
type CropAdvisories struct {
	Forecasts  []string `json:"forecasts"`
	Advisories []string `json:"advisories"`
	Warnings   []string `json:"warnings"`
}

// ForCrop keeps the entries whose crop matches exactly.
func (b Bulletin) ForCrop(crop string) CropAdvisories {
	return CropAdvisories{
		Forecasts:  namesFor(b.Forecasts, crop),
		Advisories: namesFor(b.Watches, crop),
		Warnings:   namesFor(b.Warnings, crop),
	}
}

func namesFor(entries []Advisory, crop string) []string {
	names := []string{}
	for _, e := range entries {
		if e.Crop == crop {
			names = append(names, e.Name)
		}
	}
	return names
}
