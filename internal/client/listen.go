package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/chrisdreid/autoflow/internal/ctxlog"
)

// ListenOptions control a progress listening session.
type ListenOptions struct {
	// PromptID filters termination to one prompt. When empty, the first
	// end-of-prompt marker stops the session.
	PromptID string
	// Tracker enriches events; nil uses a fresh tracker with no node list.
	Tracker *ProgressTracker
}

// ProgressFunc receives each event together with the tracker's view of it.
type ProgressFunc func(Event, Progress)

// ListenProgress connects to the server's websocket and streams execution
// events until the prompt finishes, the context is canceled, or the
// connection drops. Binary frames (preview images) are ignored.
func (c *Client) ListenProgress(ctx context.Context, opts ListenOptions, fn ProgressFunc) error {
	logger := ctxlog.FromContext(ctx)

	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewProgressTracker(nil, nil)
	}

	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	logger.Debug("Listening for execution progress.", "url", wsURL, "prompt_id", opts.PromptID)

	// Unblock ReadMessage on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading websocket message: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Debug("Skipping non-JSON websocket frame.", "error", err)
			continue
		}
		if ev.Type == "" {
			continue
		}

		progress := tracker.Update(ev)
		if fn != nil {
			fn(ev, progress)
		}

		if progress.Finished && (opts.PromptID == "" || ev.PromptID() == opts.PromptID) {
			return nil
		}
	}
}

// websocketURL derives ws(s)://host/ws?clientId=... from the base URL.
func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"clientId": {c.clientID}}.Encode()
	return u.String(), nil
}
