package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/pest"
	"github.com/i474232898/farm-assistant/internal/weather"
)

// ChatService is implemented by *assistant.Service.
type ChatService interface {
	CreateThread(ctx context.Context, memberID string, profile assistant.ThreadProfile) (assistant.Thread, error)
	ListThreads(ctx context.Context, memberID string) ([]assistant.ThreadRecord, error)
	GetThread(ctx context.Context, threadID string) (assistant.ThreadDetail, error)
	SendMessage(ctx context.Context, threadID, text string) (assistant.Reply, error)
	UpdateThread(ctx context.Context, memberID, threadID string, profile assistant.ThreadProfile) error
	DeleteThread(ctx context.Context, memberID, threadID string) error
	Status(ctx context.Context, threadID string) (assistant.ThreadStatus, error)
}

// WeatherService is implemented by *weather.Service.
type WeatherService interface {
	CurrentByAddress(ctx context.Context, address string) (weather.Observation, error)
}

// PestService is implemented by *pest.Service.
type PestService interface {
	ForCrop(ctx context.Context, crop string) (pest.CropAdvisories, error)
	History(ctx context.Context, from, to time.Time) ([]pest.Bulletin, error)
}

// Services bundles what the routes call into.
type Services struct {
	Chat    ChatService
	Weather WeatherService
	Pests   PestService
}

// messageView is a conversation message as shown to clients.
type messageView struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Services) {
	threads := app.Group("/members/:memberId/threads")

	threads.Post("", func(c *fiber.Ctx) error {
		var req createThreadRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		thread, err := svc.Chat.CreateThread(c.UserContext(), c.Params("memberId"), req.profile())
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusCreated, "채팅방이 성공적으로 생성되었습니다.", fiber.Map{"threadId": thread.ID})
	})

	threads.Get("", func(c *fiber.Ctx) error {
		records, err := svc.Chat.ListThreads(c.UserContext(), c.Params("memberId"))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "채팅방 정보를 올바르게 가져왔습니다.", fiber.Map{"threads": records})
	})

	threads.Get("/:threadId", func(c *fiber.Ctx) error {
		detail, err := svc.Chat.GetThread(c.UserContext(), c.Params("threadId"))
		if err != nil {
			return err
		}

		msgs := make([]messageView, 0, len(detail.Messages))
		for _, m := range detail.Messages {
			msgs = append(msgs, messageView{
				Role:      strings.ToUpper(string(m.Role)),
				Text:      m.Text,
				CreatedAt: m.CreatedAt,
			})
		}
		return respond(c, fiber.StatusOK, "채팅방 정보를 가져왔습니다.", fiber.Map{
			"threadId": detail.ThreadID,
			"messages": msgs,
		})
	})

	threads.Post("/:threadId", func(c *fiber.Ctx) error {
		var req messageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
		req.Message = strings.TrimSpace(req.Message)
		if err := validate.Struct(req); err != nil {
			return err
		}

		reply, err := svc.Chat.SendMessage(c.UserContext(), c.Params("threadId"), req.Message)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "메시지를 성공적으로 전송하였습니다.", reply)
	})

	threads.Patch("/:threadId", func(c *fiber.Ctx) error {
		var req updateThreadRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		if err := svc.Chat.UpdateThread(c.UserContext(), c.Params("memberId"), c.Params("threadId"), req.profile()); err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "채팅방 정보 수정 완료", fiber.Map{"message": "주소가 성공적으로 변경되었습니다."})
	})

	threads.Delete("/:threadId", func(c *fiber.Ctx) error {
		if err := svc.Chat.DeleteThread(c.UserContext(), c.Params("memberId"), c.Params("threadId")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	threads.Get("/:threadId/status", func(c *fiber.Ctx) error {
		status, err := svc.Chat.Status(c.UserContext(), c.Params("threadId"))
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "상태 정보가 올바르게 반환되었습니다.", status)
	})

	app.Get("/weather", func(c *fiber.Ctx) error {
		q := weatherQuery{Address: strings.TrimSpace(c.Query("address"))}
		if err := validate.Struct(q); err != nil {
			return err
		}

		obs, err := svc.Weather.CurrentByAddress(c.UserContext(), q.Address)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "날씨 정보가 성공적으로 조회되었습니다.", obs)
	})

	app.Get("/pests", func(c *fiber.Ctx) error {
		q := pestQuery{CropName: strings.TrimSpace(c.Query("cropName"))}
		if err := validate.Struct(q); err != nil {
			return err
		}

		advisories, err := svc.Pests.ForCrop(c.UserContext(), q.CropName)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, "병해충 정보가 성공적으로 조회되었습니다.", advisories)
	})

	app.Get("/pests/bulletins", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		bulletins, err := svc.Pests.History(c.UserContext(), req.From, req.To)
		if err != nil {
			return err
		}

		return respond(c, fiber.StatusOK, "병해충 정보 이력이 성공적으로 조회되었습니다.", fiber.Map{
			"from":      req.From,
			"to":        req.To,
			"bulletins": bulletins,
		})
	})
}
