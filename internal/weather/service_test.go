package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/observability"
)

type fakeGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (f *fakeGeocoder) Name() string { return "fake" }

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (GeocodingResult, error) {
	f.calls++
	return f.result, f.err
}

type observeCall struct {
	cell grid.GridCell
	base time.Time
}

type fakeSource struct {
	// responses are consumed in order; errs[i] != nil fails attempt i.
	raws  []map[string]string
	errs  []error
	calls []observeCall
}

func (f *fakeSource) Observe(_ context.Context, cell grid.GridCell, base time.Time) (map[string]string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, observeCall{cell: cell, base: base})
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.raws) {
		return f.raws[i], nil
	}
	return nil, ErrNotPublished
}

var seoul = GeocodingResult{
	Coordinate:       grid.GeoCoordinate{Longitude: 126.978, Latitude: 37.5665},
	FormattedAddress: "서울 중구 세종대로 110",
}

func newTestService(geo Geocoder, src ObservationSource, now time.Time) *Service {
	return NewService(geo, src, clockwork.NewFakeClockAt(now), observability.NewMetricsForTesting(), zap.NewNop())
}

func TestCurrentByAddress_FirstBaseTime(t *testing.T) {
	now := time.Date(2024, 12, 14, 14, 47, 0, 0, KST)
	src := &fakeSource{raws: []map[string]string{{"T1H": "3.1", "PTY": "0", "VEC": "10"}}}
	svc := newTestService(&fakeGeocoder{result: seoul}, src, now)

	obs, err := svc.CurrentByAddress(context.Background(), "서울시청")
	require.NoError(t, err)

	require.Len(t, src.calls, 1)
	assert.Equal(t, grid.GridCell{NX: 59, NY: 126}, src.calls[0].cell)
	assert.Equal(t, time.Date(2024, 12, 14, 14, 0, 0, 0, KST), src.calls[0].base)

	assert.Equal(t, 3.1, obs.Temperature)
	assert.Equal(t, SkyClear, obs.SkyCondition)
	assert.Equal(t, grid.GridCell{NX: 59, NY: 126}, obs.Cell)
	assert.Equal(t, seoul.FormattedAddress, obs.Address)
}

func TestCurrentByAddress_FallsBackOneHourPerAttempt(t *testing.T) {
	// 00:10 KST walks back across midnight.
	now := time.Date(2024, 12, 15, 0, 10, 0, 0, KST)
	src := &fakeSource{
		errs: []error{ErrNotPublished, common.ErrUpstreamUnreachable},
		raws: []map[string]string{nil, nil, {"T1H": "-2.0", "PTY": "3"}},
	}
	svc := newTestService(&fakeGeocoder{result: seoul}, src, now)

	obs, err := svc.CurrentByAddress(context.Background(), "서울시청")
	require.NoError(t, err)

	require.Len(t, src.calls, 3)
	assert.Equal(t, time.Date(2024, 12, 15, 0, 0, 0, 0, KST), src.calls[0].base)
	assert.Equal(t, time.Date(2024, 12, 14, 23, 0, 0, 0, KST), src.calls[1].base)
	assert.Equal(t, time.Date(2024, 12, 14, 22, 0, 0, 0, KST), src.calls[2].base)
	assert.Equal(t, src.calls[2].base, obs.BaseTime)
	assert.Equal(t, SkySnow, obs.SkyCondition)
}

func TestCurrentByAddress_Unavailable(t *testing.T) {
	now := time.Date(2024, 12, 14, 9, 5, 0, 0, time.UTC)
	src := &fakeSource{}
	svc := newTestService(&fakeGeocoder{result: seoul}, src, now)

	_, err := svc.CurrentByAddress(context.Background(), "서울시청")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrWeatherUnavailable)
	assert.Len(t, src.calls, BaseTimeAttempts)
	// 09:05 UTC is 18:05 KST.
	assert.Equal(t, 18, src.calls[0].base.Hour())
}

func TestCurrentByAddress_GeocodeNotFound(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(&fakeGeocoder{err: ErrGeocodeNotFound}, src, time.Now())

	_, err := svc.CurrentByAddress(context.Background(), "UNKNOWN_ADDRESS")
	assert.ErrorIs(t, err, ErrGeocodeNotFound)
	assert.Empty(t, src.calls)
}

func TestCurrentAt_InvalidCoordinate(t *testing.T) {
	svc := newTestService(&fakeGeocoder{}, &fakeSource{}, time.Now())

	_, err := svc.CurrentAt(context.Background(), grid.GeoCoordinate{Longitude: 200, Latitude: 37})
	assert.ErrorIs(t, err, grid.ErrInvalidCoordinate)
}

func TestCurrentAt_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{errs: []error{errors.New("dial tcp: operation was canceled")}}
	svc := newTestService(&fakeGeocoder{}, src, time.Now())

	_, err := svc.CurrentAt(ctx, seoul.Coordinate)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, src.calls, 1)
}
