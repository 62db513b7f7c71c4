package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	TransportWebSockets  = "WebSockets"
	TransportLongPolling = "LongPolling"
)

var errConnectionGone = errors.New("connection no longer exists on the server")

// transport carries envelopes for one negotiated connection.
type transport interface {
	name() string
	// send writes an invocation. Transports that answer in-band return the
	// reply; the others return nil and the reply arrives through receive.
	send(ctx context.Context, evt Event) (*Event, error)
	// receive blocks until at least one event arrives or the transport fails.
	receive() ([]Event, error)
	close() error
}

type negotiateResponse struct {
	ConnectionID        string   `json:"connectionId"`
	AvailableTransports []string `json:"availableTransports"`
}

func (c *Client) negotiate(ctx context.Context) (*negotiateResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/chathub/negotiate", "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("negotiate: unexpected status %d", resp.StatusCode)
	}

	var out negotiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding negotiate response: %w", err)
	}
	return &out, nil
}

// dial negotiates a connection and opens the preferred transport, falling
// back to long polling when the websocket cannot be opened. ctx bounds the
// handshake; life bounds the transport.
func (c *Client) dial(ctx, life context.Context) (transport, error) {
	neg, err := c.negotiate(ctx)
	if err != nil {
		return nil, err
	}

	offered := func(name string) bool {
		for _, t := range neg.AvailableTransports {
			if t == name {
				return true
			}
		}
		return false
	}

	if c.opts.Transport != TransportLongPolling && offered(TransportWebSockets) {
		t, err := c.dialWebSocket(ctx, life, neg.ConnectionID)
		if err == nil {
			return t, nil
		}
		if c.opts.Transport == TransportWebSockets || !offered(TransportLongPolling) {
			return nil, err
		}
		log.Warningf("websocket unavailable, falling back to long polling: %v", err)
		// The failed upgrade may have consumed the connection id.
		if neg, err = c.negotiate(ctx); err != nil {
			return nil, err
		}
	}
	if !offered(TransportLongPolling) {
		return nil, fmt.Errorf("server offers none of the usable transports %v", neg.AvailableTransports)
	}
	return c.newLongPolling(life, neg.ConnectionID), nil
}

func (c *Client) newRequest(ctx context.Context, method, path, connectionID string, body any) (*http.Request, error) {
	u := strings.TrimRight(c.opts.BaseURL, "/") + path
	if connectionID != "" {
		u += "?id=" + url.QueryEscape(connectionID)
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	return req, nil
}

// --- websocket ---

type wsTransport struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *Client) dialWebSocket(ctx, life context.Context, connectionID string) (*wsTransport, error) {
	u, err := url.Parse(strings.TrimRight(c.opts.BaseURL, "/") + "/chathub")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("id", connectionID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	tctx, cancel := context.WithCancel(life)
	return &wsTransport{conn: conn, ctx: tctx, cancel: cancel}, nil
}

func (t *wsTransport) name() string { return TransportWebSockets }

func (t *wsTransport) send(ctx context.Context, evt Event) (*Event, error) {
	return nil, wsjson.Write(ctx, t.conn, evt)
}

func (t *wsTransport) receive() ([]Event, error) {
	var evt Event
	if err := wsjson.Read(t.ctx, t.conn, &evt); err != nil {
		return nil, err
	}
	return []Event{evt}, nil
}

func (t *wsTransport) close() error {
	t.cancel()
	return t.conn.Close(websocket.StatusNormalClosure, "")
}

// --- long polling ---

type pollTransport struct {
	client       *Client
	connectionID string
	ctx          context.Context
	cancel       context.CancelFunc
}

func (c *Client) newLongPolling(life context.Context, connectionID string) *pollTransport {
	ctx, cancel := context.WithCancel(life)
	return &pollTransport{client: c, connectionID: connectionID, ctx: ctx, cancel: cancel}
}

func (t *pollTransport) name() string { return TransportLongPolling }

func (t *pollTransport) send(ctx context.Context, evt Event) (*Event, error) {
	req, err := t.client.newRequest(ctx, http.MethodPost, "/chathub/send", t.connectionID, evt)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	var reply Event
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return &reply, nil
}

func (t *pollTransport) receive() ([]Event, error) {
	for {
		req, err := t.client.newRequest(t.ctx, http.MethodGet, "/chathub/poll", t.connectionID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := t.client.http.Do(req)
		if err != nil {
			return nil, err
		}
		var events []Event
		err = statusError(resp)
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&events)
		}
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			return events, nil
		}
	}
}

func (t *pollTransport) close() error {
	t.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	req, err := t.client.newRequest(ctx, http.MethodDelete, "/chathub", t.connectionID, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errConnectionGone
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
