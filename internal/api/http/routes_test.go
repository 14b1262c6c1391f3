package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/members"
	"github.com/i474232898/farm-assistant/internal/pest"
	"github.com/i474232898/farm-assistant/internal/store"
	"github.com/i474232898/farm-assistant/internal/weather"
)

type fakeChat struct {
	err      error
	profile  assistant.ThreadProfile
	memberID string
	threadID string
	text     string
	detail   assistant.ThreadDetail
	status   assistant.ThreadStatus
}

func (f *fakeChat) CreateThread(_ context.Context, memberID string, p assistant.ThreadProfile) (assistant.Thread, error) {
	f.memberID, f.profile = memberID, p
	if f.err != nil {
		return assistant.Thread{}, f.err
	}
	return assistant.Thread{ID: "thread_new"}, nil
}

func (f *fakeChat) ListThreads(_ context.Context, memberID string) ([]assistant.ThreadRecord, error) {
	f.memberID = memberID
	if f.err != nil {
		return nil, f.err
	}
	return []assistant.ThreadRecord{{ThreadID: "thread_1", CropName: "사과"}}, nil
}

func (f *fakeChat) GetThread(_ context.Context, threadID string) (assistant.ThreadDetail, error) {
	f.threadID = threadID
	return f.detail, f.err
}

func (f *fakeChat) SendMessage(_ context.Context, threadID, text string) (assistant.Reply, error) {
	f.threadID, f.text = threadID, text
	if f.err != nil {
		return assistant.Reply{}, f.err
	}
	return assistant.Reply{ThreadID: threadID, Text: "물을 주세요."}, nil
}

func (f *fakeChat) UpdateThread(_ context.Context, memberID, threadID string, p assistant.ThreadProfile) error {
	f.memberID, f.threadID, f.profile = memberID, threadID, p
	return f.err
}

func (f *fakeChat) DeleteThread(_ context.Context, memberID, threadID string) error {
	f.memberID, f.threadID = memberID, threadID
	return f.err
}

func (f *fakeChat) Status(_ context.Context, threadID string) (assistant.ThreadStatus, error) {
	f.threadID = threadID
	return f.status, f.err
}

type fakeWeather struct {
	obs     weather.Observation
	err     error
	address string
}

func (f *fakeWeather) CurrentByAddress(_ context.Context, address string) (weather.Observation, error) {
	f.address = address
	return f.obs, f.err
}

type fakePests struct {
	advisories pest.CropAdvisories
	bulletins  []pest.Bulletin
	err        error
	crop       string
	from, to   time.Time
}

func (f *fakePests) ForCrop(_ context.Context, crop string) (pest.CropAdvisories, error) {
	f.crop = crop
	return f.advisories, f.err
}

func (f *fakePests) History(_ context.Context, from, to time.Time) ([]pest.Bulletin, error) {
	f.from, f.to = from, to
	return f.bulletins, f.err
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

type harness struct {
	app     *fiber.App
	chat    *fakeChat
	weather *fakeWeather
	pests   *fakePests
}

func newHarness() *harness {
	h := &harness{chat: &fakeChat{}, weather: &fakeWeather{}, pests: &fakePests{}}
	h.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	RegisterRoutes(h.app, Services{Chat: h.chat, Weather: h.weather, Pests: h.pests})
	return h
}

func (h *harness) do(t *testing.T, method, target, body string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

const validThread = `{"cropId":1,"cropName":"사과","address":"경기도 성남시 분당구 판교역로 166","plantedAt":"2024-03-01"}`

func TestCreateThread(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodPost, "/members/7/threads", validThread)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "채팅방이 성공적으로 생성되었습니다.", env.Message)
	assert.JSONEq(t, `{"threadId":"thread_new"}`, string(env.Data))
	assert.Equal(t, "7", h.chat.memberID)
	assert.Equal(t, assistant.ThreadProfile{
		CropID:    1,
		CropName:  "사과",
		Address:   "경기도 성남시 분당구 판교역로 166",
		PlantedAt: "2024-03-01",
	}, h.chat.profile)
}

func TestCreateThread_Validation(t *testing.T) {
	tests := map[string]string{
		"missing crop id":   `{"cropName":"사과","address":"판교역로 166","plantedAt":"2024-03-01"}`,
		"blank crop name":   `{"cropId":1,"cropName":"   ","address":"판교역로 166","plantedAt":"2024-03-01"}`,
		"symbol crop name":  `{"cropId":1,"cropName":"사과!","address":"판교역로 166","plantedAt":"2024-03-01"}`,
		"address symbols":   `{"cropId":1,"cropName":"사과","address":"판교역로 <166>","plantedAt":"2024-03-01"}`,
		"bad planting date": `{"cropId":1,"cropName":"사과","address":"판교역로 166","plantedAt":"03/01/2024"}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness()

			resp, env := h.do(t, http.MethodPost, "/members/7/threads", body)

			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Empty(t, h.chat.memberID)
		})
	}
}

func TestCreateThread_MalformedBody(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodPost, "/members/7/threads", `{"cropId":`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestListThreads(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodGet, "/members/7/threads", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Threads []assistant.ThreadRecord `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Threads, 1)
	assert.Equal(t, "thread_1", data.Threads[0].ThreadID)
}

func TestGetThread_UppercasesRoles(t *testing.T) {
	h := newHarness()
	created := time.Date(2024, 12, 14, 5, 30, 0, 0, time.UTC)
	h.chat.detail = assistant.ThreadDetail{
		ThreadID: "thread_1",
		Messages: []assistant.Message{
			{ID: "m1", Role: assistant.RoleUser, Text: "언제 물을 줘야 하나요?", CreatedAt: created},
			{ID: "m2", Role: assistant.RoleAssistant, Text: "내일 아침에 주세요.", CreatedAt: created},
		},
	}

	resp, env := h.do(t, http.MethodGet, "/members/7/threads/thread_1", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		ThreadID string        `json:"threadId"`
		Messages []messageView `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "thread_1", data.ThreadID)
	require.Len(t, data.Messages, 2)
	assert.Equal(t, "USER", data.Messages[0].Role)
	assert.Equal(t, "ASSISTANT", data.Messages[1].Role)
	assert.True(t, created.Equal(data.Messages[1].CreatedAt))
}

func TestSendMessage(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodPost, "/members/7/threads/thread_1", `{"message":"  오늘 날씨 어때?  "}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"threadId":"thread_1","text":"물을 주세요."}`, string(env.Data))
	assert.Equal(t, "오늘 날씨 어때?", h.chat.text)
}

func TestSendMessage_BlankMessage(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodPost, "/members/7/threads/thread_1", `{"message":"   "}`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Empty(t, h.chat.threadID)
}

func TestSendMessage_RunOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"failed", fmt.Errorf("run run_1 failed: %w", assistant.ErrOperationFailed), http.StatusBadGateway, "RUN_FAILED"},
		{"cancelled", fmt.Errorf("await: %w", assistant.ErrOperationCancelled), http.StatusConflict, "RUN_CANCELLED"},
		{"expired", assistant.ErrOperationExpired, http.StatusRequestTimeout, "RUN_EXPIRED"},
		{"unprocessable", assistant.ErrUnprocessableResponse, http.StatusUnprocessableEntity, "UNPROCESSABLE_RESPONSE"},
		{"polling timeout", assistant.ErrPollingTimedOut, http.StatusGatewayTimeout, "RUN_TIMEOUT"},
		{"unknown thread", assistant.ErrThreadNotFound, http.StatusNotFound, "THREAD_NOT_FOUND"},
		{"upstream status", &common.StatusError{Upstream: "openai", Code: http.StatusInternalServerError}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.chat.err = tt.err

			resp, env := h.do(t, http.MethodPost, "/members/7/threads/thread_1", `{"message":"안녕"}`)

			require.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Message)
			require.NotNil(t, env.Error.Details)
		})
	}
}

func TestSendMessage_NoContent(t *testing.T) {
	h := newHarness()
	h.chat.err = assistant.ErrNoContent

	resp, env := h.do(t, http.MethodPost, "/members/7/threads/thread_1", `{"message":"안녕"}`)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, env.Error)
}

func TestUpdateThread(t *testing.T) {
	h := newHarness()

	resp, env := h.do(t, http.MethodPatch, "/members/7/threads/thread_1",
		`{"cropId":1,"address":"강원도 춘천시 중앙로 1","plantedAt":"2024-03-01"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"주소가 성공적으로 변경되었습니다."}`, string(env.Data))
	assert.Equal(t, "thread_1", h.chat.threadID)
	assert.Equal(t, "강원도 춘천시 중앙로 1", h.chat.profile.Address)
}

func TestUpdateThread_NotRegistered(t *testing.T) {
	h := newHarness()
	h.chat.err = fmt.Errorf("update member thread: %w", members.ErrNotFound)

	resp, env := h.do(t, http.MethodPatch, "/members/7/threads/thread_1", validThread)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestDeleteThread(t *testing.T) {
	h := newHarness()

	resp, _ := h.do(t, http.MethodDelete, "/members/7/threads/thread_1", "")

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "7", h.chat.memberID)
	assert.Equal(t, "thread_1", h.chat.threadID)
}

func TestThreadStatus(t *testing.T) {
	h := newHarness()
	h.chat.status = assistant.ThreadStatus{
		Address:            "판교역로 166",
		Weather:            assistant.WeatherSummary{Temp: 3.5, SkyCondition: "맑음"},
		RecommendedActions: map[string]string{"0": "물 주기"},
		CreatedAt:          assistant.Date{Year: 2024, Month: 12, Day: 14},
	}

	resp, env := h.do(t, http.MethodGet, "/members/7/threads/thread_1/status", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data assistant.ThreadStatus
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, h.chat.status, data)
}

func TestThreadStatus_NoAddress(t *testing.T) {
	h := newHarness()
	h.chat.err = assistant.ErrNoAddress

	resp, env := h.do(t, http.MethodGet, "/members/7/threads/thread_1/status", "")

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "NO_ADDRESS", env.Error.Code)
}

func TestWeatherByAddress(t *testing.T) {
	h := newHarness()
	h.weather.obs = weather.Observation{Temperature: 12.5, SkyCondition: weather.SkyClear}

	resp, env := h.do(t, http.MethodGet, "/weather?address=%ED%8C%90%EA%B5%90%EC%97%AD%EB%A1%9C%20166", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "판교역로 166", h.weather.address)
	var data weather.Observation
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 12.5, data.Temperature)
}

func TestWeatherByAddress_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		code   string
	}{
		{"missing address", "", nil, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unknown address", "?address=nowhere", weather.ErrGeocodeNotFound, http.StatusNotFound, "ADDRESS_NOT_FOUND"},
		{"no observation", "?address=seoul", fmt.Errorf("observe: %w", weather.ErrWeatherUnavailable), http.StatusServiceUnavailable, "WEATHER_UNAVAILABLE"},
		{"upstream down", "?address=seoul", fmt.Errorf("kakao: %w", common.ErrUpstreamUnreachable), http.StatusBadGateway, "UPSTREAM_UNREACHABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.weather.err = tt.err

			resp, env := h.do(t, http.MethodGet, "/weather"+tt.query, "")

			require.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestPestsForCrop(t *testing.T) {
	h := newHarness()
	h.pests.advisories = pest.CropAdvisories{
		Forecasts:  []string{"탄저병"},
		Advisories: []string{},
		Warnings:   []string{},
	}

	resp, env := h.do(t, http.MethodGet, "/pests?cropName=%EC%82%AC%EA%B3%BC", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "사과", h.pests.crop)
	assert.JSONEq(t, `{"forecasts":["탄저병"],"advisories":[],"warnings":[]}`, string(env.Data))
}

func TestPestsForCrop_Unavailable(t *testing.T) {
	h := newHarness()
	h.pests.err = fmt.Errorf("refresh: %w", pest.ErrBulletinUnavailable)

	resp, env := h.do(t, http.MethodGet, "/pests?cropName=apple", "")

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "PEST_UNAVAILABLE", env.Error.Code)
}

func TestBulletinHistory(t *testing.T) {
	h := newHarness()
	h.pests.bulletins = []pest.Bulletin{{Seq: "120"}}

	resp, env := h.do(t, http.MethodGet, "/pests/bulletins?from=2024-12-01T00:00:00Z&to=1733961600", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, h.pests.from.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, h.pests.to.Equal(time.Unix(1733961600, 0)))

	var data struct {
		Bulletins []pest.Bulletin `json:"bulletins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Bulletins, 1)
	assert.Equal(t, "120", data.Bulletins[0].Seq)
}

func TestBulletinHistory_BadRange(t *testing.T) {
	tests := map[string]string{
		"missing to":    "?from=2024-12-01T00:00:00Z",
		"bad format":    "?from=yesterday&to=today",
		"reverse range": "?from=2024-12-10T00:00:00Z&to=2024-12-01T00:00:00Z",
	}

	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness()

			resp, env := h.do(t, http.MethodGet, "/pests/bulletins"+query, "")

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "BAD_REQUEST", env.Error.Code)
		})
	}
}

func TestBulletinHistory_Empty(t *testing.T) {
	h := newHarness()
	h.pests.err = store.ErrNotFound

	resp, env := h.do(t, http.MethodGet, "/pests/bulletins?from=1733011200&to=1733961600", "")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
