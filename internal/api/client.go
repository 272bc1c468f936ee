package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

// Client talks to a running daemon's admin API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for addr, which may be host:port or a URL.
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ListWatches returns the daemon's active watches.
func (c *Client) ListWatches(ctx context.Context) ([]Watch, error) {
	var out []Watch
	err := c.do(ctx, http.MethodGet, "/api/watches", nil, &out)
	return out, err
}

// StartWatch asks the daemon to watch configPath.
func (c *Client) StartWatch(ctx context.Context, configPath string) (StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, http.MethodPost, "/api/watches", StartRequest{Config: configPath}, &out)
	return out, err
}

// StopWatch asks the daemon to stop watching configPath.
func (c *Client) StopWatch(ctx context.Context, configPath string) (bool, error) {
	var out StopResponse
	err := c.do(ctx, http.MethodDelete, "/api/watches?config="+url.QueryEscape(configPath), nil, &out)
	return out.Stopped, err
}

// History returns up to limit recent compile records.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, http.MethodGet, "/api/history?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.NetworkError("daemon is not reachable").
			WithCause(err).
			WithContext("url", c.BaseURL).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.NetworkError("invalid response from daemon").
			WithCause(err).
			WithContext("status", resp.StatusCode).
			Build()
	}
	if !env.Success {
		return errorForStatus(resp.StatusCode, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func errorForStatus(code int, msg string) error {
	switch code {
	case http.StatusBadRequest:
		return errors.ValidationError(msg).Build()
	case http.StatusNotFound:
		return errors.NotFoundError(msg).Build()
	default:
		return errors.DaemonError(msg).WithContext("status", code).Build()
	}
}
