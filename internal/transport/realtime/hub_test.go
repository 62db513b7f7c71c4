package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func expectQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("expected no event, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_JoinLeaveBroadcast(t *testing.T) {
	hub := startHub(t, NewHub(nil))
	ctx := context.Background()
	conv := uuid.New()

	a, b := NewClient(uuid.Nil), NewClient(uuid.Nil)
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, conv)
	hub.Join(b, conv)
	hub.Join(b, conv)
	if n := hub.GroupSize(conv); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}

	evt, _ := NewEvent(EventUserTyping, &conv, nil)
	hub.Broadcast(ctx, conv, evt, a.ID())
	if got := receive(t, b); got.Type != EventUserTyping {
		t.Errorf("expected typing event, got %s", got.Type)
	}
	expectQuiet(t, a)

	hub.Leave(b, conv)
	hub.Broadcast(ctx, conv, evt, "")
	receive(t, a)
	expectQuiet(t, b)

	hub.Unregister(a)
	if n := hub.GroupSize(conv); n != 0 {
		t.Errorf("expected empty group after unregister, got %d", n)
	}
	select {
	case <-a.Done():
	default:
		t.Error("expected unregistered client to be closed")
	}
}

func TestHub_JoinRefusesClosedClient(t *testing.T) {
	hub := startHub(t, NewHub(nil))
	conv, later := uuid.New(), uuid.New()

	c := NewClient(uuid.Nil)
	hub.Register(c)
	hub.Join(c, conv)
	c.close()
	hub.Join(c, later)

	if n := hub.GroupSize(later); n != 0 {
		t.Errorf("expected a closed client not to join, got %d members", n)
	}
	hub.Unregister(c)
	if n := hub.GroupSize(conv); n != 0 {
		t.Errorf("expected unregister to clear earlier groups, got %d members", n)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t, NewHub(nil))
	conv := uuid.New()
	slow := NewClient(uuid.Nil)
	hub.Join(slow, conv)

	evt, _ := NewEvent(EventUserTyping, &conv, nil)
	for i := 0; i <= sendBufSize; i++ {
		hub.Broadcast(context.Background(), conv, evt, "")
	}

	select {
	case <-slow.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected slow client to be dropped")
	}
	if n := hub.GroupSize(conv); n != 0 {
		t.Errorf("expected dropped client to leave its groups, got %d", n)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	c := NewClient(uuid.Nil)
	hub.Join(c, uuid.New())
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Error("expected client to be closed on stop")
	}
	// Calls after stop return instead of blocking.
	hub.Join(NewClient(uuid.Nil), uuid.New())
	if n := hub.GroupSize(uuid.New()); n != 0 {
		t.Errorf("expected 0 after stop, got %d", n)
	}
}

// memBus is an in-process Backplane shared by several hubs.
type memBus struct {
	mu   sync.Mutex
	subs []chan Envelope
}

func (b *memBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		ch <- env
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	ch := make(chan Envelope, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			deliver(env)
		}
	}
}

func (b *memBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func TestHub_BackplaneReachesOtherInstances(t *testing.T) {
	bus := &memBus{}
	first := startHub(t, NewHub(bus))
	second := startHub(t, NewHub(bus))
	for deadline := time.Now().Add(2 * time.Second); bus.subscribers() < 2; {
		if time.Now().After(deadline) {
			t.Fatal("hubs never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conv := uuid.New()
	local, remote, caller := NewClient(uuid.Nil), NewClient(uuid.Nil), NewClient(uuid.Nil)
	first.Join(local, conv)
	first.Join(caller, conv)
	second.Join(remote, conv)

	evt, _ := NewEvent(EventUserTyping, &conv, TypingPayload{ConversationID: conv})
	first.Broadcast(context.Background(), conv, evt, caller.ID())

	receive(t, local)
	receive(t, remote)
	expectQuiet(t, caller)
}
