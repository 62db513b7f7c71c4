// Package chatclient is a Go client for the messenger realtime hub. It keeps
// one logical connection open across transport failures and restores its
// conversation groups after every reconnect.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("chatclient")

const (
	closeTimeout = 5 * time.Second

	waitAttempts = 10
	waitInterval = 200 * time.Millisecond
)

var (
	ErrNotConnected   = errors.New("chatclient: not connected")
	ErrConnectionLost = errors.New("chatclient: connection lost before the reply arrived")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Disconnected"
	}
}

// Event is the wire envelope shared with the server.
type Event struct {
	Type           string          `json:"type"`
	InvocationID   string          `json:"invocationId,omitempty"`
	ConversationID *uuid.UUID      `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      int64           `json:"ts,omitempty"`
}

// InvocationError is a failure the server reported for one invocation.
type InvocationError struct {
	Method  string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

type Options struct {
	// BaseURL is the server root, e.g. http://localhost:5001.
	BaseURL string
	Token   string
	// Transport forces WebSockets or LongPolling. Empty prefers websockets.
	Transport  string
	HTTPClient *http.Client
	// ReconnectDelays is waited before each reconnect attempt. Nil uses
	// DefaultReconnectDelays.
	ReconnectDelays []time.Duration
}

type result struct {
	evt Event
	err error
}

type Client struct {
	opts Options
	http *http.Client
	seq  atomic.Uint64

	mu            sync.Mutex
	state         State
	conn          transport
	groups        map[uuid.UUID]struct{}
	pending       map[string]chan result
	handlers      map[string][]func(Event)
	stateHandlers []func(State)
	cancel        context.CancelFunc
	done          chan struct{}
	err           error
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.ReconnectDelays == nil {
		opts.ReconnectDelays = DefaultReconnectDelays
	}
	return &Client{
		opts:     opts,
		http:     httpClient,
		groups:   make(map[uuid.UUID]struct{}),
		pending:  make(map[string]chan result),
		handlers: make(map[string][]func(Event)),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transport names the transport in use, or "" when disconnected.
func (c *Client) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.name()
}

// Err reports why the client stopped reconnecting, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the client is Disconnected for good, either through
// Close or because reconnecting gave up.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// OnStateChange registers fn for every state transition.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// On registers fn for server events of the given type. Handlers run on the
// receive goroutine and must not wait for an Invoke.
func (c *Client) On(eventType string, fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], fn)
}

// Start connects and keeps the connection alive in the background until
// Close. ctx only bounds the initial connect.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return errors.New("chatclient: already started")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)
	runCtx, cancel := context.WithCancel(context.Background())
	t, err := c.dial(ctx, runCtx)
	if err != nil {
		cancel()
		c.setState(Disconnected, nil)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.err = nil
	c.mu.Unlock()
	c.setState(Connected, t)
	log.Infof("connected over %s", t.name())

	go c.run(runCtx, t, done)
	return nil
}

// Close stops the client and its connection.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done, t := c.cancel, c.done, c.conn
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	var err error
	if t != nil {
		err = t.close()
	}
	<-done
	return err
}

func (c *Client) run(ctx context.Context, t transport, done chan struct{}) {
	defer close(done)

	for {
		err := c.receiveLoop(t)
		t.close()
		c.failPending()

		if ctx.Err() != nil {
			c.setState(Disconnected, nil)
			return
		}
		log.Warningf("connection lost: %v", err)
		c.setState(Reconnecting, nil)

		t, err = c.reconnect(ctx)
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.setState(Disconnected, nil)
			return
		}
		c.setState(Connected, t)
		log.Infof("reconnected over %s", t.name())
		// Completions arrive through receiveLoop, so rejoin must not block it.
		go c.rejoin(ctx)
	}
}

func (c *Client) receiveLoop(t transport) error {
	for {
		events, err := t.receive()
		if err != nil {
			return err
		}
		for _, evt := range events {
			c.dispatch(evt)
		}
	}
}

func (c *Client) reconnect(ctx context.Context) (transport, error) {
	policy := backoff.WithContext(NewSchedule(c.opts.ReconnectDelays...), ctx)
	attempt := 0
	for {
		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("chatclient: gave up after %d reconnect attempts", attempt)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
		t, err := c.dial(ctx, ctx)
		if err == nil {
			return t, nil
		}
		log.Debugf("reconnect attempt %d failed: %v", attempt, err)
	}
}

// rejoin restores group memberships, which the server does not keep across
// connections.
func (c *Client) rejoin(ctx context.Context) {
	c.mu.Lock()
	groups := make([]uuid.UUID, 0, len(c.groups))
	for id := range c.groups {
		groups = append(groups, id)
	}
	c.mu.Unlock()

	for _, id := range groups {
		conversationID := id
		if _, err := c.Invoke(ctx, "JoinConversation", &conversationID, nil); err != nil {
			log.Warningf("rejoining %s: %v", id, err)
		}
	}
}

func (c *Client) setState(s State, t transport) {
	c.mu.Lock()
	c.state = s
	c.conn = t
	handlers := append([]func(State){}, c.stateHandlers...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(s)
	}
}

func (c *Client) dispatch(evt Event) {
	c.mu.Lock()
	if evt.InvocationID != "" {
		if ch, ok := c.pending[evt.InvocationID]; ok {
			delete(c.pending, evt.InvocationID)
			c.mu.Unlock()
			ch <- result{evt: evt}
			return
		}
	}
	handlers := append([]func(Event){}, c.handlers[evt.Type]...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ErrConnectionLost}
	}
}

// WaitConnected polls the state a few times so callers can join right after
// Start or during a reconnect.
func (c *Client) WaitConnected(ctx context.Context) error {
	for i := 0; i < waitAttempts; i++ {
		if c.State() == Connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitInterval):
		}
	}
	if c.State() == Connected {
		return nil
	}
	return ErrNotConnected
}

// Invoke calls a hub method and waits for its completion. The returned
// payload is the method's result, if any.
func (c *Client) Invoke(ctx context.Context, method string, conversationID *uuid.UUID, payload any) (json.RawMessage, error) {
	evt := Event{
		Type:           method,
		InvocationID:   strconv.FormatUint(c.seq.Add(1), 10),
		ConversationID: conversationID,
		Timestamp:      time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	t := c.conn
	if c.state != Connected || t == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[evt.InvocationID] = ch
	c.mu.Unlock()

	reply, err := t.send(ctx, evt)
	if err != nil {
		c.forget(evt.InvocationID)
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if reply != nil {
		c.dispatch(*reply)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.evt.Error != "" {
			return nil, &InvocationError{Method: method, Message: res.evt.Error}
		}
		return res.evt.Payload, nil
	case <-ctx.Done():
		c.forget(evt.InvocationID)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(invocationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, invocationID)
}
