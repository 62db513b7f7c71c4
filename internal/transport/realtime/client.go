package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	sendBufSize = 256

	typingRate  = 500 * time.Millisecond
	typingBurst = 5
)

// Client is one logical realtime connection. It outlives a single HTTP
// request when the long-polling transport is used, so it holds no socket;
// transports drain Send and call the hub for everything else.
type Client struct {
	id     string
	userID uuid.UUID

	send chan []byte
	// done is closed by the hub once the client is removed.
	done      chan struct{}
	closeOnce sync.Once

	typing *rate.Limiter

	mu        sync.Mutex
	transport string
	lastSeen  time.Time
}

func NewClient(userID uuid.UUID) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
		typing:   rate.NewLimiter(rate.Every(typingRate), typingBurst),
		lastSeen: time.Now(),
	}
}

func (c *Client) ID() string { return c.id }

// UserID is the authenticated user, or uuid.Nil for anonymous connections.
func (c *Client) UserID() uuid.UUID { return c.userID }

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue queues evt for delivery without blocking. It reports false when the
// buffer is full or the client is gone.
func (c *Client) enqueue(evt *Event) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Errorf("marshal %s for %s: %v", evt.Type, c.id, err)
		return false
	}
	if c.closed() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) touch(transport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if transport != "" {
		c.transport = transport
	}
	c.lastSeen = time.Now()
}

func (c *Client) idle() (string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport, time.Since(c.lastSeen)
}

// actsAs reports whether the connection may act for userID. Anonymous
// connections may act for anyone.
func (c *Client) actsAs(userID uuid.UUID) bool {
	return c.userID == uuid.Nil || c.userID == userID
}

// claim binds the connection to a transport. A websocket takes the
// connection exclusively; long polling may reuse it across requests.
func (c *Client) claim(transport string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != "" && (c.transport != transport || transport != TransportLongPolling) {
		return false
	}
	c.transport = transport
	c.lastSeen = time.Now()
	return true
}
