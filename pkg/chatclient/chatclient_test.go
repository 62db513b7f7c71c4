package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/repository/memory"
	"github.com/n0P7xJ/MyReactNative/internal/service"
	"github.com/n0P7xJ/MyReactNative/internal/transport/http/middleware"
	"github.com/n0P7xJ/MyReactNative/internal/transport/realtime"
)

type testServer struct {
	*httptest.Server
	auth  *service.AuthService
	convs *service.ConversationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	auth := service.NewAuthService(store.Users(), "test-secret")
	convs := service.NewConversationService(store.Users(), store.Conversations(), store.Participants(),
		store.Messages(), store.ReadStatuses())
	messages := service.NewMessageService(store.Users(), store.Conversations(), store.Participants(),
		store.Messages(), store.ReadStatuses())

	hub := realtime.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	messages.SetNotifier(realtime.NewHubNotifier(hub))

	mux := http.NewServeMux()
	realtime.NewServer(hub, messages, realtime.Options{PollTimeout: 300 * time.Millisecond}).
		Routes(mux, middleware.Auth(auth, false))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-stopped
	})
	return &testServer{Server: srv, auth: auth, convs: convs}
}

var userSeq int

func (s *testServer) user(t *testing.T, first string) *service.AuthResponse {
	t.Helper()
	userSeq++
	reg, err := s.auth.Register(context.Background(), service.RegisterInput{
		FirstName: first,
		LastName:  "Tester",
		Email:     fmt.Sprintf("%s%d@example.com", first, userSeq),
		Phone:     "+380971234567",
		Password:  "Test@123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func (s *testServer) private(t *testing.T, a, b uuid.UUID) uuid.UUID {
	t.Helper()
	conv, err := s.convs.Create(context.Background(), service.CreateConversationInput{
		CreatedByID:    a,
		ParticipantIDs: []uuid.UUID{b},
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv.ID
}

func (s *testServer) client(t *testing.T, token, transport string) *Client {
	t.Helper()
	c := New(Options{
		BaseURL:         s.URL,
		Token:           token,
		Transport:       transport,
		ReconnectDelays: []time.Duration{0, 10 * time.Millisecond, 50 * time.Millisecond},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// inbox collects messages delivered to a client.
type inbox struct {
	mu   sync.Mutex
	msgs []Message
	got  chan struct{}
}

func newInbox(c *Client) *inbox {
	in := &inbox{got: make(chan struct{}, 64)}
	c.OnMessage(func(m Message) {
		in.mu.Lock()
		in.msgs = append(in.msgs, m)
		in.mu.Unlock()
		in.got <- struct{}{}
	})
	return in
}

func (in *inbox) wait(t *testing.T) Message {
	t.Helper()
	select {
	case <-in.got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.msgs[len(in.msgs)-1]
}

func TestSchedule(t *testing.T) {
	s := NewSchedule(DefaultReconnectDelays...)
	for i, want := range DefaultReconnectDelays {
		if got := s.NextBackOff(); got != want {
			t.Errorf("attempt %d: expected %s, got %s", i, want, got)
		}
	}
	if got := s.NextBackOff(); got != backoff.Stop {
		t.Errorf("expected the schedule to stop, got %s", got)
	}
	s.Reset()
	if got := s.NextBackOff(); got != 0 {
		t.Errorf("expected reset to restart the schedule, got %s", got)
	}
}

func TestClient_MessagesAcrossTransports(t *testing.T) {
	srv := newTestServer(t)
	ann, bob := srv.user(t, "Ann"), srv.user(t, "Bob")
	conv := srv.private(t, ann.ID, bob.ID)

	a := srv.client(t, ann.Token, "")
	b := srv.client(t, bob.Token, TransportLongPolling)
	if a.Transport() != TransportWebSockets || b.Transport() != TransportLongPolling {
		t.Fatalf("unexpected transports %q and %q", a.Transport(), b.Transport())
	}
	aInbox, bInbox := newInbox(a), newInbox(b)

	typing := make(chan Typing, 1)
	b.OnUserTyping(func(p Typing) { typing <- p })

	ctx := context.Background()
	if err := a.JoinConversation(ctx, conv); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := b.JoinConversation(ctx, conv); err != nil {
		t.Fatalf("join b: %v", err)
	}

	text := "hello from the socket"
	sent, err := a.SendMessage(ctx, SendMessageRequest{ConversationID: conv, SenderID: ann.ID, Content: &text})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := bInbox.wait(t); got.ID != sent.ID || got.SenderName != "Ann Tester" {
		t.Errorf("recipient got %+v", got)
	}
	if got := aInbox.wait(t); got.ID != sent.ID {
		t.Errorf("sender should see its own message, got %+v", got)
	}

	if err := a.UserTyping(ctx, conv, ann.ID, "Ann"); err != nil {
		t.Fatalf("typing: %v", err)
	}
	select {
	case p := <-typing:
		if p.UserID != ann.ID || p.UserName != "Ann" {
			t.Errorf("unexpected typing %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("typing never arrived")
	}

	if err := a.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestClient_InvocationError(t *testing.T) {
	srv := newTestServer(t)
	ann, bob, eve := srv.user(t, "Ann"), srv.user(t, "Bob"), srv.user(t, "Eve")
	conv := srv.private(t, ann.ID, bob.ID)

	e := srv.client(t, eve.Token, "")
	text := "not mine"
	_, err := e.SendMessage(context.Background(), SendMessageRequest{ConversationID: conv, SenderID: eve.ID, Content: &text})

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected an InvocationError, got %v", err)
	}
	if invErr.Message != service.ErrNotParticipant.Error() {
		t.Errorf("unexpected message %q", invErr.Message)
	}
	if e.State() != Connected {
		t.Errorf("expected the connection to survive, got %s", e.State())
	}
}

func TestClient_ReconnectRejoinsGroups(t *testing.T) {
	for _, transport := range []string{TransportWebSockets, TransportLongPolling} {
		t.Run(transport, func(t *testing.T) {
			srv := newTestServer(t)
			ann, bob := srv.user(t, "Ann"), srv.user(t, "Bob")
			conv := srv.private(t, ann.ID, bob.ID)

			a := srv.client(t, ann.Token, transport)
			b := srv.client(t, bob.Token, "")
			aInbox := newInbox(a)

			states := make(chan State, 16)
			a.OnStateChange(func(s State) { states <- s })

			ctx := context.Background()
			if err := a.JoinConversation(ctx, conv); err != nil {
				t.Fatalf("join: %v", err)
			}

			dropTransport(a)

			waitState(t, states, Reconnecting)
			waitState(t, states, Connected)

			// Rejoin runs in the background; retry until the broadcast lands.
			text := "are you back?"
			deadline := time.Now().Add(3 * time.Second)
			for {
				if _, err := b.SendMessage(ctx, SendMessageRequest{ConversationID: conv, SenderID: bob.ID, Content: &text}); err != nil {
					t.Fatalf("send: %v", err)
				}
				select {
				case <-aInbox.got:
					return
				case <-time.After(200 * time.Millisecond):
				}
				if time.Now().After(deadline) {
					t.Fatal("reconnected client never received the broadcast")
				}
			}
		})
	}
}

func TestClient_GivesUpWhenServerIsGone(t *testing.T) {
	srv := newTestServer(t)
	ann := srv.user(t, "Ann")
	a := srv.client(t, ann.Token, TransportLongPolling)

	srv.Close()
	dropTransport(a)

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected the client to give up")
	}
	if a.State() != Disconnected || a.Err() == nil {
		t.Errorf("expected Disconnected with an error, got %s / %v", a.State(), a.Err())
	}
	if err := a.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestWaitConnected_NotStarted(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:0"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.WaitConnected(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the context to end the wait, got %v", err)
	}
	if err := c.JoinConversation(context.Background(), uuid.New()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

// dropTransport closes the transport underneath the client, as a network
// failure would.
func dropTransport(c *Client) {
	c.mu.Lock()
	t := c.conn
	c.mu.Unlock()
	if t != nil {
		t.close()
	}
}

func waitState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached %s", want)
		}
	}
}
