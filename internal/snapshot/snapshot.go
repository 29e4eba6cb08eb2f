package snapshot

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
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/dynagents"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

var ErrNotFound = errors.New("execution not found")

// Fetcher retrieves the persisted state of an execution once, to catch up
// on events missed before the live channel opened.
type Fetcher interface {
	FetchExecution(ctx context.Context, id string) (*protocol.Execution, error)
	FetchDynamicAgents(ctx context.Context, id string) ([]dynagents.Agent, error)
}

// Client fetches snapshots from the backend's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Fetcher = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) FetchExecution(ctx context.Context, id string) (*protocol.Execution, error) {
	var exec protocol.Execution
	if err := c.get(ctx, "/api/executions/"+url.PathEscape(id), &exec); err != nil {
		return nil, fmt.Errorf("fetch execution %s: %w", id, err)
	}
	if exec.ID == "" {
		exec.ID = id
	}
	return &exec, nil
}

// FetchDynamicAgents accepts either a bare array or an {"agents": [...]}
// envelope.
func (c *Client) FetchDynamicAgents(ctx context.Context, id string) ([]dynagents.Agent, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/executions/"+url.PathEscape(id)+"/agents", &raw); err != nil {
		return nil, fmt.Errorf("fetch agents %s: %w", id, err)
	}

	var agents []dynagents.Agent
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &agents); err != nil {
			return nil, fmt.Errorf("decode agents: %w", err)
		}
		return agents, nil
	}

	var envelope struct {
		Agents []dynagents.Agent `json:"agents"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return envelope.Agents, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
