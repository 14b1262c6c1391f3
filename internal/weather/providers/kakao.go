package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// DefaultKakaoBaseURL is the Kakao Local address search endpoint.
const DefaultKakaoBaseURL = "https://dapi.kakao.com/v2/local/search/address.json"

// KakaoGeocoder implements weather.Geocoder with Kakao Local address search.
type KakaoGeocoder struct {
	apiKey    string
	baseURL   string
	requester *common.Requester
}

func NewKakaoGeocoder(client *http.Client, apiKey, baseURL string) *KakaoGeocoder {
	if baseURL == "" {
		baseURL = DefaultKakaoBaseURL
	}
	return &KakaoGeocoder{
		apiKey:    apiKey,
		baseURL:   baseURL,
		requester: common.NewRequester("kakao", client, common.DefaultBackoff),
	}
}

func (g *KakaoGeocoder) Name() string {
	return "kakao"
}

// Geocode resolves address to the first matching document.
func (g *KakaoGeocoder) Geocode(ctx context.Context, address string) (weather.GeocodingResult, error) {
	if g.apiKey == "" {
		return weather.GeocodingResult{}, fmt.Errorf("kakao api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("query", address)

		req, err := http.NewRequest(http.MethodGet, g.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "KakaoAK "+g.apiKey)
		return req, nil
	}

	resp, err := g.requester.Do(ctx, buildRequest)
	if err != nil {
		return weather.GeocodingResult{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Documents []struct {
			AddressName string `json:"address_name"`
			X           string `json:"x"` // longitude
			Y           string `json:"y"` // latitude
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.GeocodingResult{}, fmt.Errorf("decode kakao response: %w", err)
	}

	if len(payload.Documents) == 0 {
		return weather.GeocodingResult{}, fmt.Errorf("%w: %q", weather.ErrGeocodeNotFound, address)
	}

	doc := payload.Documents[0]
	lon, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return weather.GeocodingResult{}, fmt.Errorf("parse kakao longitude %q: %w", doc.X, err)
	}
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return weather.GeocodingResult{}, fmt.Errorf("parse kakao latitude %q: %w", doc.Y, err)
	}

	return weather.GeocodingResult{
		Coordinate:       grid.GeoCoordinate{Longitude: lon, Latitude: lat},
		FormattedAddress: doc.AddressName,
	}, nil
}
