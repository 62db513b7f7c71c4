package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

var log = logging.MustGetLogger("realtime")

// Hub owns the conversation groups. Only the Run loop touches the maps;
// everything else talks to it through channels.
type Hub struct {
	clients map[*Client]map[uuid.UUID]struct{}
	groups  map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	broadcast  chan Envelope
	sizes      chan sizeQuery

	backplane Backplane
	stopped   chan struct{}
}

type membership struct {
	client         *Client
	conversationID uuid.UUID
	ack            chan struct{}
}

type sizeQuery struct {
	conversationID uuid.UUID
	reply          chan int
}

// NewHub creates a hub. backplane may be nil for a single instance.
func NewHub(backplane Backplane) *Hub {
	return &Hub{
		clients:    make(map[*Client]map[uuid.UUID]struct{}),
		groups:     make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan Envelope, 256),
		sizes:      make(chan sizeQuery),
		backplane:  backplane,
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's event loop and, when configured, the backplane
// subscriber. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if h.backplane != nil {
		g.Go(func() error {
			return h.backplane.Subscribe(ctx, h.deliver)
		})
	}
	g.Go(func() error {
		h.loop(ctx)
		return nil
	})
	return g.Wait()
}

func (h *Hub) loop(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			client.close()
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.add(client)
			log.Debugf("connection %s registered (%d total)", client.id, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				log.Debugf("connection %s unregistered (%d total)", client.id, len(h.clients))
			}

		case m := <-h.join:
			if !h.add(m.client) {
				close(m.ack)
				continue
			}
			group, ok := h.groups[m.conversationID]
			if !ok {
				group = make(map[*Client]struct{})
				h.groups[m.conversationID] = group
			}
			group[m.client] = struct{}{}
			h.clients[m.client][m.conversationID] = struct{}{}
			close(m.ack)

		case m := <-h.leave:
			h.removeFromGroup(m.client, m.conversationID)
			close(m.ack)

		case env := <-h.broadcast:
			for client := range h.groups[env.ConversationID] {
				if env.ExcludeConnID != "" && client.id == env.ExcludeConnID {
					continue
				}
				select {
				case client.send <- env.Data:
				default:
					// Client buffer full - disconnect
					log.Warningf("connection %s is not keeping up, dropping it", client.id)
					h.remove(client)
				}
			}

		case q := <-h.sizes:
			q.reply <- len(h.groups[q.conversationID])
		}
	}
}

func (h *Hub) add(client *Client) bool {
	if client.closed() {
		return false
	}
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[uuid.UUID]struct{})
	}
	return true
}

func (h *Hub) remove(client *Client) {
	for conversationID := range h.clients[client] {
		h.removeFromGroup(client, conversationID)
	}
	delete(h.clients, client)
	client.close()
}

func (h *Hub) removeFromGroup(client *Client, conversationID uuid.UUID) {
	group := h.groups[conversationID]
	delete(group, client)
	if len(group) == 0 {
		delete(h.groups, conversationID)
	}
	if groups, ok := h.clients[client]; ok {
		delete(groups, conversationID)
	}
}

// Register adds a connection that is not yet in any group.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.close()
	}
}

// Unregister drops a connection and all of its group memberships.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Join adds the client to a conversation group. It returns once the
// membership is in effect, so broadcasts issued afterwards reach the client.
func (h *Hub) Join(client *Client, conversationID uuid.UUID) {
	h.membershipOp(h.join, client, conversationID)
}

func (h *Hub) Leave(client *Client, conversationID uuid.UUID) {
	h.membershipOp(h.leave, client, conversationID)
}

func (h *Hub) membershipOp(ch chan membership, client *Client, conversationID uuid.UUID) {
	m := membership{client: client, conversationID: conversationID, ack: make(chan struct{})}
	select {
	case ch <- m:
	case <-h.stopped:
		return
	}
	select {
	case <-m.ack:
	case <-h.stopped:
	}
}

// GroupSize reports how many local connections are in a conversation group.
func (h *Hub) GroupSize(conversationID uuid.UUID) int {
	q := sizeQuery{conversationID: conversationID, reply: make(chan int, 1)}
	select {
	case h.sizes <- q:
	case <-h.stopped:
		return 0
	}
	select {
	case n := <-q.reply:
		return n
	case <-h.stopped:
		return 0
	}
}

// Broadcast sends evt to every connection in the conversation group except
// the one whose id is excludeConnID. With a backplane the event goes through
// it so connections on other instances receive it too.
func (h *Hub) Broadcast(ctx context.Context, conversationID uuid.UUID, evt *Event, excludeConnID string) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Errorf("marshal %s: %v", evt.Type, err)
		return
	}
	env := Envelope{ConversationID: conversationID, ExcludeConnID: excludeConnID, Data: data}

	if h.backplane != nil {
		err := h.backplane.Publish(ctx, env)
		if err == nil {
			return
		}
		log.Errorf("backplane publish for %s, delivering locally: %v", conversationID, err)
	}
	h.deliver(env)
}

func (h *Hub) deliver(env Envelope) {
	select {
	case h.broadcast <- env:
	case <-h.stopped:
	}
}
