package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/n0P7xJ/MyReactNative/internal/transport/http/middleware"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 << 10
)

// ServeWebSocket upgrades to a websocket for the negotiated connection in
// ?id=. Without an id a fresh connection is created, skipping negotiation.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	var c *Client
	if r.URL.Query().Get("id") == "" {
		userID, _ := middleware.UserID(r.Context())
		c = s.connect(userID)
	} else {
		var ok bool
		if c, ok = s.lookup(w, r); !ok {
			return
		}
	}
	if !c.claim(TransportWebSockets) {
		writeError(w, http.StatusConflict, "CONNECTION_IN_USE", "Connection already uses another transport")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.opts.InsecureSkipVerify,
		OriginPatterns:     s.opts.OriginPatterns,
	})
	if err != nil {
		log.Warningf("websocket accept for %s: %v", c.id, err)
		s.disconnect(c)
		return
	}
	defer s.disconnect(c)
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.writePump(ctx, conn, c)
	s.readPump(ctx, conn, c)
}

// readPump reads invocations and queues their completions. It returns when
// the socket fails or closes.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, c *Client) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var evt Event
		err := wsjson.Read(ctx, conn, &evt)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debugf("connection %s closed by peer", c.id)
			} else if ctx.Err() == nil && !c.closed() {
				log.Infof("read error on %s: %v", c.id, err)
			}
			return
		}

		reply := s.invoke(ctx, c, &evt)
		if !c.enqueue(reply) {
			log.Warningf("dropping %s reply for %s", evt.Type, c.id)
		}
	}
}

// writePump writes queued events and keeps the socket alive with pings.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Debugf("write error to %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debugf("ping error to %s: %v", c.id, err)
				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			return
		}
	}
}
