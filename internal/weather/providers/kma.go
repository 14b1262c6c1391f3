package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// DefaultKMABaseURL is the ultra-short nowcast endpoint.
const DefaultKMABaseURL = "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtNcst"

// KMAProvider implements weather.ObservationSource for the KMA ultra-short nowcast.
type KMAProvider struct {
	serviceKey string
	baseURL    string
	requester  *common.Requester
}

func NewKMAProvider(client *http.Client, serviceKey, baseURL string) *KMAProvider {
	if baseURL == "" {
		baseURL = DefaultKMABaseURL
	}
	return &KMAProvider{
		serviceKey: serviceKey,
		baseURL:    baseURL,
		requester:  common.NewRequester("kma", client, common.DefaultBackoff),
	}
}

// Observe fetches the raw nowcast categories for cell at the given base hour.
func (p *KMAProvider) Observe(ctx context.Context, cell grid.GridCell, base time.Time) (map[string]string, error) {
	if p.serviceKey == "" {
		return nil, fmt.Errorf("kma service key is not configured")
	}

	base = base.In(weather.KST)
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("serviceKey", p.serviceKey)
		values.Set("pageNo", "1")
		values.Set("numOfRows", "8")
		values.Set("dataType", "JSON")
		values.Set("base_date", base.Format("20060102"))
		values.Set("base_time", base.Format("1504"))
		values.Set("nx", strconv.Itoa(cell.NX))
		values.Set("ny", strconv.Itoa(cell.NY))

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := p.requester.Do(ctx, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload nowcastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// The gateway answers errors in XML even when JSON was requested.
		return nil, fmt.Errorf("%w: decode nowcast: %v", weather.ErrNotPublished, err)
	}

	header := payload.Response.Header
	if header.ResultCode != "00" {
		return nil, fmt.Errorf("%w: result %s %s", weather.ErrNotPublished, header.ResultCode, header.ResultMsg)
	}

	values := make(map[string]string, len(payload.Response.Body.Items.Item))
	for _, item := range payload.Response.Body.Items.Item {
		values[item.Category] = item.ObsrValue.String()
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty item list", weather.ErrNotPublished)
	}
	return values, nil
}

type nowcastResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			DataType string `json:"dataType"`
			Items    struct {
				Item []struct {
					BaseDate  string    `json:"baseDate"`
					BaseTime  string    `json:"baseTime"`
					Category  string    `json:"category"`
					Nx        int       `json:"nx"`
					Ny        int       `json:"ny"`
					ObsrValue flexValue `json:"obsrValue"`
				} `json:"item"`
			} `json:"items"`
			TotalCount int `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// flexValue accepts both "1.5" and 1.5.
type flexValue string

func (v *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = flexValue(s)
		return nil
	}
	*v = flexValue(b)
	return nil
}

func (v flexValue) String() string {
	return string(v)
}
