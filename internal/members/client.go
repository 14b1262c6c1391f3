// Package members keeps the member to thread mapping, either in the remote
// members backend or in memory when no backend is configured.
package members

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/common"
)

var (
	// ErrConflict is returned when the thread is already registered.
	ErrConflict = errors.New("thread already registered for member")

	// ErrNotFound is returned when the member or thread is unknown.
	ErrNotFound = errors.New("member thread not found")
)

// Client is the members backend REST client.
type Client struct {
	baseURL   string
	requester *common.Requester
}

var _ assistant.MemberRegistry = (*Client)(nil)

func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: common.NewRequester("members", httpClient, common.DefaultBackoff),
	}
}

func (c *Client) Register(ctx context.Context, memberID string, record assistant.ThreadRecord) error {
	return c.do(ctx, http.MethodPost, threadsPath(memberID), record, nil)
}

func (c *Client) List(ctx context.Context, memberID string) ([]assistant.ThreadRecord, error) {
	var records []assistant.ThreadRecord
	if err := c.do(ctx, http.MethodGet, threadsPath(memberID), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) Update(ctx context.Context, memberID string, record assistant.ThreadRecord) error {
	return c.do(ctx, http.MethodPatch, threadsPath(memberID)+"/"+url.PathEscape(record.ThreadID), record, nil)
}

func (c *Client) Delete(ctx context.Context, memberID, threadID string) error {
	return c.do(ctx, http.MethodDelete, threadsPath(memberID)+"/"+url.PathEscape(threadID), nil, nil)
}

func threadsPath(memberID string) string {
	return "/members/" + url.PathEscape(memberID) + "/threads"
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("members: encode request: %w", err)
		}
	}

	buildRequest := func() (*http.Request, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequest(method, c.baseURL+path, r)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := c.requester.Do(ctx, buildRequest)
	if err != nil {
		switch common.StatusCode(err) {
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("members: decode %s %s: %w", method, path, err)
	}
	return nil
}
