package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrisdreid/autoflow/internal/convert"
	"github.com/chrisdreid/autoflow/internal/schema"
)

// Client is a handle to one server. The client ID is generated once per
// Client and sent with every submission, so websocket events can be
// correlated back to this process.
type Client struct {
	baseURL  string
	httpc    *http.Client
	clientID string
}

// New builds a client for a server base URL like "http://127.0.0.1:8188".
// A zero timeout uses schema.DefaultHTTPTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing server URL: pass one explicitly or set %s", schema.EnvServerURL)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = schema.DefaultHTTPTimeout
	}
	return &Client{
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: timeout},
		clientID: "autoflow-" + uuid.NewString(),
	}, nil
}

// ClientID returns the generated client identifier.
func (c *Client) ClientID() string { return c.clientID }

// SetClientID replaces the generated identifier, e.g. when a fixed ID is
// configured so events can be correlated across runs. Blank input is ignored.
func (c *Client) SetClientID(id string) {
	if id = strings.TrimSpace(id); id != "" {
		c.clientID = id
	}
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SubmitResult is the server's answer to a prompt submission.
type SubmitResult struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors,omitempty"`
}

// SubmitPrompt queues a compiled payload for execution.
func (c *Client) SubmitPrompt(ctx context.Context, prompt *convert.Prompt) (*SubmitResult, error) {
	body := map[string]any{
		"prompt":    prompt,
		"client_id": c.clientID,
	}
	var result SubmitResult
	if err := c.postJSON(ctx, "/prompt", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ObjectInfo fetches the server's node schema.
func (c *Client) ObjectInfo(ctx context.Context) (schema.Library, error) {
	data, err := c.get(ctx, "/object_info")
	if err != nil {
		return nil, err
	}
	lib, err := schema.ParseLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("invalid object_info response: %w", err)
	}
	return lib, nil
}

// History fetches the execution record for a prompt ID. The result maps the
// prompt ID to its outputs and status.
func (c *Client) History(ctx context.Context, promptID string) (map[string]any, error) {
	data, err := c.get(ctx, "/history/"+url.PathEscape(promptID))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid history response: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, path)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return nil
}

// do executes a request and captures error response bodies, since the server
// reports validation problems (e.g. /prompt 400s) in the body.
func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, readErr)
	}
	return body, nil
}
