package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/farm-assistant/internal/assistant"
)

const weatherTool = "get_weather"

var weatherToolSchema = map[string]any{
	"type": "function",
	"function": map[string]any{
		"name":        weatherTool,
		"description": "Converts an address to geographic coordinates and retrieves weather information for those coordinates",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{
					"type":        "string",
					"description": "The address to be converted to coordinates",
				},
			},
			"required":             []string{"address"},
			"additionalProperties": false,
		},
	},
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessage    `json:"messages"`
	Temperature float64          `json:"temperature"`
	TopP        float64          `json:"top_p"`
	MaxTokens   int              `json:"max_tokens"`
	Tools       []map[string]any `json:"tools"`
	ToolChoice  string           `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractAddress asks the chat model to call get_weather for the farm described
// in notes and returns the address argument of that call. The newest note wins
// because notes are passed in thread order.
func (c *Client) ExtractAddress(ctx context.Context, notes []string) (string, error) {
	if len(notes) == 0 {
		return "", assistant.ErrNoAddress
	}

	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		TopP:        0,
		MaxTokens:   2048,
		Tools:       []map[string]any{weatherToolSchema},
		ToolChoice:  "required",
	}
	for _, n := range notes {
		req.Messages = append(req.Messages, chatMessage{Role: string(assistant.RoleAssistant), Content: n})
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/completions", nil, req, &resp); err != nil {
		return "", err
	}

	for _, choice := range resp.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name != weatherTool {
				continue
			}
			var args struct {
				Address string `json:"address"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return "", fmt.Errorf("openai: decode %s arguments: %w", weatherTool, err)
			}
			if address := strings.TrimSpace(args.Address); address != "" {
				return address, nil
			}
		}
	}
	return "", assistant.ErrNoAddress
}
