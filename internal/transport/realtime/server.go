package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/transport/http/middleware"
)

const (
	TransportWebSockets  = "WebSockets"
	TransportLongPolling = "LongPolling"

	defaultPollTimeout = 25 * time.Second
)

type Options struct {
	// PollTimeout bounds a single long-poll request. Idle long-polling
	// connections are dropped after twice this long.
	PollTimeout time.Duration
	// InsecureSkipVerify accepts websocket upgrades from any origin.
	InsecureSkipVerify bool
	// OriginPatterns are host patterns (see OriginPatterns) allowed to open
	// a websocket from a browser in addition to the server's own host.
	OriginPatterns []string
}

// OriginPatterns turns CORS origins such as "https://app.example.com" or "*"
// into the host patterns the websocket handshake matches against.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// Server exposes the hub over HTTP: negotiation, a websocket transport and a
// long-polling fallback.
type Server struct {
	hub      *Hub
	messages Messages
	opts     Options

	mu    sync.Mutex
	conns map[string]*Client
}

func NewServer(hub *Hub, messages Messages, opts Options) *Server {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Server{
		hub:      hub,
		messages: messages,
		opts:     opts,
		conns:    make(map[string]*Client),
	}
}

// Routes registers the realtime endpoints. protect resolves the caller's
// identity the same way the REST API does.
func (s *Server) Routes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /chathub/negotiate", protect(http.HandlerFunc(s.Negotiate)))
	mux.Handle("GET /chathub", protect(http.HandlerFunc(s.ServeWebSocket)))
	mux.Handle("DELETE /chathub", protect(http.HandlerFunc(s.Close)))
	mux.Handle("GET /chathub/poll", protect(http.HandlerFunc(s.Poll)))
	mux.Handle("POST /chathub/send", protect(http.HandlerFunc(s.Send)))
}

// Run drops long-polling connections that stopped polling. It returns when
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reap(2 * s.opts.PollTimeout)
		}
	}
}

func (s *Server) reap(maxIdle time.Duration) {
	var stale []*Client
	s.mu.Lock()
	for _, c := range s.conns {
		transport, idle := c.idle()
		if c.closed() || (transport != TransportWebSockets && idle > maxIdle) {
			stale = append(stale, c)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		log.Debugf("reaping idle connection %s", c.id)
		s.disconnect(c)
	}
}

type negotiateResponse struct {
	ConnectionID        string   `json:"connectionId"`
	AvailableTransports []string `json:"availableTransports"`
}

func (s *Server) Negotiate(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	c := s.connect(userID)

	writeJSON(w, http.StatusOK, negotiateResponse{
		ConnectionID:        c.id,
		AvailableTransports: []string{TransportWebSockets, TransportLongPolling},
	})
}

// Close ends a connection on the client's request.
func (s *Server) Close(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.disconnect(c)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) connect(userID uuid.UUID) *Client {
	c := NewClient(userID)
	s.hub.Register(c)

	s.mu.Lock()
	s.conns[c.id] = c
	n := len(s.conns)
	s.mu.Unlock()

	log.Infof("connection %s opened for user %s (%d open)", c.id, userID, n)
	return c
}

// disconnect closes c before unregistering it, so a join racing in from a
// concurrent send is refused by the hub.
func (s *Server) disconnect(c *Client) {
	c.close()
	s.hub.Unregister(c)

	s.mu.Lock()
	_, ok := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()

	if ok {
		log.Infof("connection %s closed", c.id)
	}
}

// lookup resolves ?id= to a live connection owned by the caller.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Client, bool) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	c := s.conns[id]
	s.mu.Unlock()

	if c == nil || c.closed() {
		writeError(w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "Unknown or closed connection")
		return nil, false
	}
	if c.userID != uuid.Nil {
		if userID, _ := middleware.UserID(r.Context()); userID != c.userID {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Connection belongs to another user")
			return nil, false
		}
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
