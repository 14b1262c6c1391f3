// Package openai talks to the OpenAI Assistants (v2) and Chat Completions REST APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/common"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	pageSize = 100
)

// Config holds the credentials and endpoints of the client.
type Config struct {
	APIKey      string
	AssistantID string
	BaseURL     string
	// Model is used for address extraction.
	Model string
}

// Client implements assistant.Conversation and assistant.AddressExtractor.
type Client struct {
	cfg       Config
	requester *common.Requester
}

var (
	_ assistant.Conversation     = (*Client)(nil)
	_ assistant.AddressExtractor = (*Client)(nil)
)

func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{
		cfg:       cfg,
		requester: common.NewRequester("openai", httpClient, common.DefaultBackoff),
	}
}

func (c *Client) CreateThread(ctx context.Context) (assistant.Thread, error) {
	var t threadObject
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &t); err != nil {
		return assistant.Thread{}, err
	}
	return t.toThread(), nil
}

func (c *Client) GetThread(ctx context.Context, threadID string) (assistant.Thread, error) {
	var t threadObject
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, nil, &t); err != nil {
		return assistant.Thread{}, threadErr(err, threadID)
	}
	return t.toThread(), nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/threads/"+url.PathEscape(threadID), nil, nil, &resp); err != nil {
		return threadErr(err, threadID)
	}
	if !resp.Deleted {
		return fmt.Errorf("openai: thread %s was not deleted", threadID)
	}
	return nil
}

func (c *Client) PostMessage(ctx context.Context, threadID string, role assistant.Role, text string) (assistant.Message, error) {
	body := map[string]string{
		"role":    string(role),
		"content": text,
	}
	var m messageObject
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", nil, body, &m); err != nil {
		return assistant.Message{}, threadErr(err, threadID)
	}
	return m.toMessage(), nil
}

// ListMessages returns messages of a thread. A zero Limit pages through the
// whole thread.
func (c *Client) ListMessages(ctx context.Context, threadID string, opts assistant.ListOptions) ([]assistant.Message, error) {
	order := opts.Order
	if order == "" {
		order = assistant.OrderAsc
	}

	var out []assistant.Message
	after := ""
	for {
		limit := pageSize
		if opts.Limit > 0 && opts.Limit-len(out) < limit {
			limit = opts.Limit - len(out)
		}

		q := url.Values{}
		q.Set("order", string(order))
		q.Set("limit", strconv.Itoa(limit))
		if after != "" {
			q.Set("after", after)
		}

		var page messageList
		if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID)+"/messages", q, nil, &page); err != nil {
			return nil, threadErr(err, threadID)
		}
		for _, m := range page.Data {
			out = append(out, m.toMessage())
		}

		if !page.HasMore || page.LastID == "" || (opts.Limit > 0 && len(out) >= opts.Limit) {
			return out, nil
		}
		after = page.LastID
	}
}

func (c *Client) StartRun(ctx context.Context, threadID string) (assistant.Run, error) {
	if c.cfg.AssistantID == "" {
		return assistant.Run{}, errors.New("openai: assistant id is not configured")
	}
	body := map[string]string{"assistant_id": c.cfg.AssistantID}

	var r runObject
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", nil, body, &r); err != nil {
		return assistant.Run{}, threadErr(err, threadID)
	}
	return r.toRun(), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (assistant.Run, error) {
	var r runObject
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &r); err != nil {
		return assistant.Run{}, threadErr(err, threadID)
	}
	return r.toRun(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.cfg.APIKey == "" {
		return errors.New("openai: api key is not configured")
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("openai: encode request: %w", err)
		}
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	buildRequest := func() (*http.Request, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequest(method, target, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("OpenAI-Beta", "assistants=v2")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	resp, err := c.requester.Do(ctx, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai: decode %s %s: %w", method, path, err)
	}
	return nil
}

func threadErr(err error, threadID string) error {
	if common.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %s", assistant.ErrThreadNotFound, threadID)
	}
	return err
}

type threadObject struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

func (t threadObject) toThread() assistant.Thread {
	return assistant.Thread{ID: t.ID, CreatedAt: time.Unix(t.CreatedAt, 0).UTC()}
}

type messageObject struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

// toMessage keeps the first text part; image parts are skipped.
func (m messageObject) toMessage() assistant.Message {
	msg := assistant.Message{
		ID:        m.ID,
		Role:      assistant.Role(m.Role),
		CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
	}
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			msg.Text = part.Text.Value
			break
		}
	}
	return msg
}

type messageList struct {
	Data    []messageObject `json:"data"`
	HasMore bool            `json:"has_more"`
	LastID  string          `json:"last_id"`
}

type runObject struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

func (r runObject) toRun() assistant.Run {
	run := assistant.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   assistant.RunStatus(r.Status),
	}
	switch {
	case r.LastError != nil:
		run.LastError = &assistant.RunFailure{Code: r.LastError.Code, Message: r.LastError.Message}
	case r.IncompleteDetails != nil:
		run.LastError = &assistant.RunFailure{Code: "incomplete", Message: r.IncompleteDetails.Reason}
	}
	return run
}
