package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/common"
	"github.com/i474232898/farm-assistant/internal/grid"
	"github.com/i474232898/farm-assistant/internal/members"
	"github.com/i474232898/farm-assistant/internal/pest"
	"github.com/i474232898/farm-assistant/internal/store"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// ErrorBody is the error part of a failure envelope.
type ErrorBody struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
}

type successEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Message string    `json:"message"`
	Error   ErrorBody `json:"error"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(successEnvelope{Message: message, Data: data})
}

// errorMapping translates a domain error into an HTTP failure.
type errorMapping struct {
	target  error
	status  int
	code    string
	title   string
	message string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{grid.ErrInvalidCoordinate, fiber.StatusUnprocessableEntity, "INVALID_COORDINATE", "입력값 검증 실패", "좌표가 유효 범위를 벗어났습니다."},
	{weather.ErrGeocodeNotFound, fiber.StatusNotFound, "ADDRESS_NOT_FOUND", "리소스를 찾을 수 없습니다.", "주소를 찾을 수 없습니다."},
	{weather.ErrWeatherUnavailable, fiber.StatusServiceUnavailable, "WEATHER_UNAVAILABLE", "날씨 정보 조회 실패", "기상청 관측 자료를 가져올 수 없습니다."},
	{assistant.ErrThreadNotFound, fiber.StatusNotFound, "THREAD_NOT_FOUND", "유효하지 않은 리소스 ID", "올바르지 않은 Thread ID입니다."},
	{assistant.ErrOperationFailed, fiber.StatusBadGateway, "RUN_FAILED", "AI 응답 생성 실패", "응답 생성에 실패했습니다."},
	{assistant.ErrOperationCancelled, fiber.StatusConflict, "RUN_CANCELLED", "AI 응답 생성 실패", "응답 생성이 취소되었습니다."},
	{assistant.ErrOperationExpired, fiber.StatusRequestTimeout, "RUN_EXPIRED", "AI 응답 생성 실패", "응답 생성이 시간 초과되었습니다."},
	{assistant.ErrUnprocessableResponse, fiber.StatusUnprocessableEntity, "UNPROCESSABLE_RESPONSE", "AI 응답 생성 실패", "AI 응답을 찾을 수 없습니다."},
	{assistant.ErrPollingTimedOut, fiber.StatusGatewayTimeout, "RUN_TIMEOUT", "AI 응답 생성 실패", "응답 대기 시간이 초과되었습니다."},
	{assistant.ErrNoAddress, fiber.StatusUnprocessableEntity, "NO_ADDRESS", "상태 정보 조회 실패", "채팅방에 등록된 주소가 없습니다."},
	{members.ErrConflict, fiber.StatusConflict, "CONFLICT", "요청을 처리할 수 없습니다.", "이미 등록된 채팅방입니다."},
	{members.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "리소스를 찾을 수 없습니다.", "등록된 채팅방을 찾을 수 없습니다."},
	{store.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "리소스를 찾을 수 없습니다.", "요청한 기간의 병해충 정보가 없습니다."},
	{pest.ErrBulletinUnavailable, fiber.StatusServiceUnavailable, "PEST_UNAVAILABLE", "병해충 정보 조회 실패", "병해충 정보를 가져올 수 없습니다."},
	{common.ErrUpstreamUnreachable, fiber.StatusBadGateway, "UPSTREAM_UNREACHABLE", "외부 서비스 연결 실패", "외부 서비스와 통신 중 오류가 발생했습니다."},
	{context.DeadlineExceeded, fiber.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "외부 서비스 응답 시간 초과", "외부 서비스가 응답하지 않습니다."},
}

var statusCodes = map[int]string{
	fiber.StatusBadRequest:          "BAD_REQUEST",
	fiber.StatusUnauthorized:        "UNAUTHORIZED",
	fiber.StatusForbidden:           "FORBIDDEN",
	fiber.StatusNotFound:            "NOT_FOUND",
	fiber.StatusMethodNotAllowed:    "METHOD_NOT_ALLOWED",
	fiber.StatusUnprocessableEntity: "VALIDATION_ERROR",
	fiber.StatusInternalServerError: "INTERNAL_SERVER_ERROR",
}

var statusMessages = map[int]string{
	fiber.StatusBadRequest:          "잘못된 요청입니다.",
	fiber.StatusUnauthorized:        "인증이 필요합니다.",
	fiber.StatusForbidden:           "권한이 없습니다.",
	fiber.StatusNotFound:            "리소스를 찾을 수 없습니다.",
	fiber.StatusUnprocessableEntity: "입력값 검증에 실패했습니다.",
	fiber.StatusInternalServerError: "서버 내부 오류가 발생했습니다.",
}

// ErrorHandler renders every error returned by a handler as a failure envelope.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if errors.Is(err, assistant.ErrNoContent) {
			return c.SendStatus(fiber.StatusNoContent)
		}

		status, body, title := classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(errorEnvelope{Message: title, Error: body})
	}
}

func classify(err error) (int, ErrorBody, string) {
	details := err.Error()

	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		return fiber.StatusUnprocessableEntity, ErrorBody{
			Code:    "VALIDATION_ERROR",
			Message: "입력값이 유효하지 않습니다.",
			Details: &details,
		}, "입력값 검증 실패"
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code, ok := statusCodes[ferr.Code]
		if !ok {
			code = "HTTP_ERROR"
		}
		title, ok := statusMessages[ferr.Code]
		if !ok {
			title = "요청을 처리할 수 없습니다."
		}
		return ferr.Code, ErrorBody{Code: code, Message: ferr.Message}, title
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, ErrorBody{Code: m.code, Message: m.message, Details: &details}, m.title
		}
	}

	var serr *common.StatusError
	if errors.As(err, &serr) {
		return fiber.StatusBadGateway, ErrorBody{
			Code:    "UPSTREAM_ERROR",
			Message: "외부 서비스가 오류를 반환했습니다.",
			Details: &details,
		}, "외부 서비스 오류"
	}

	return fiber.StatusInternalServerError, ErrorBody{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "예기치 않은 오류가 발생했습니다.",
		Details: &details,
	}, "서버 내부 오류"
}
