package httpapi

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-assistant/internal/assistant"
)

var (
	cropNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_\s]+$`)
	addressPattern  = regexp.MustCompile(`^[가-힣a-zA-Z0-9\s()\-_,.]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cropname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.TrimSpace(s) != "" && cropNamePattern.MatchString(s)
	})
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.TrimSpace(s) != "" && addressPattern.MatchString(s)
	})
	return v
}

// createThreadRequest is the body of POST /members/:memberId/threads.
type createThreadRequest struct {
	CropID    int    `json:"cropId" validate:"gte=1"`
	CropName  string `json:"cropName" validate:"required,cropname"`
	Address   string `json:"address" validate:"required,address"`
	PlantedAt string `json:"plantedAt" validate:"required,datetime=2006-01-02"`
}

func (r createThreadRequest) profile() assistant.ThreadProfile {
	return assistant.ThreadProfile{
		CropID:    r.CropID,
		CropName:  strings.TrimSpace(r.CropName),
		Address:   strings.TrimSpace(r.Address),
		PlantedAt: r.PlantedAt,
	}
}

// updateThreadRequest is the body of PATCH /members/:memberId/threads/:threadId.
type updateThreadRequest struct {
	CropID    int    `json:"cropId" validate:"gte=1"`
	CropName  string `json:"cropName" validate:"omitempty,cropname"`
	Address   string `json:"address" validate:"required,address"`
	PlantedAt string `json:"plantedAt" validate:"required,datetime=2006-01-02"`
}

func (r updateThreadRequest) profile() assistant.ThreadProfile {
	return assistant.ThreadProfile{
		CropID:    r.CropID,
		CropName:  strings.TrimSpace(r.CropName),
		Address:   strings.TrimSpace(r.Address),
		PlantedAt: r.PlantedAt,
	}
}

// messageRequest is the body of POST /members/:memberId/threads/:threadId.
type messageRequest struct {
	Message string `json:"message" validate:"required"`
}

type weatherQuery struct {
	Address string `validate:"required,address"`
}

type pestQuery struct {
	CropName string `validate:"required,cropname"`
}

// bindBody parses and validates a JSON body.
func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return validate.Struct(out)
}

// historyQuery holds query parameters for the bulletin history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
