package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestWebSocket_InvokeAndReceive(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)
	ann, bob := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, ann.ID, bob.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(env.URL, "http") + "/chathub?access_token=" + bob.Token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() Event {
		t.Helper()
		var evt Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			t.Fatalf("read: %v", err)
		}
		return evt
	}

	if err := wsjson.Write(ctx, conn, Event{Type: InvokePing, InvocationID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if evt := read(); evt.Type != EventPong || evt.InvocationID != "p1" {
		t.Errorf("expected Pong for p1, got %+v", evt)
	}

	if err := wsjson.Write(ctx, conn, Event{Type: InvokeJoinConversation, InvocationID: "j1", ConversationID: &conv.ID}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if evt := read(); evt.Type != EventCompletion || evt.InvocationID != "j1" || evt.Error != "" {
		t.Fatalf("expected clean join completion, got %+v", evt)
	}

	a := env.negotiate(t, ann.Token)
	text := "over the socket"
	a.invoke(t, InvokeSendMessage, nil, service.SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       ann.ID,
		Content:        &text,
	})

	evt := read()
	if evt.Type != EventReceiveMessage {
		t.Fatalf("expected ReceiveMessage, got %s", evt.Type)
	}
	var msg domain.MessageView
	if err := json.Unmarshal(evt.Payload, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if *msg.Content != text {
		t.Errorf("unexpected content %q", *msg.Content)
	}
}

func TestWebSocket_RejectsPollingConnection(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)
	c := env.negotiate(t, "")
	c.poll(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(env.URL, "http") + "/chathub?id=" + c.id
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for a long-polling connection")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %v", resp)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"https://app.example.com", " http://localhost:8081 ", "*", "", "http://*.example.org"})
	want := []string{"app.example.com", "localhost:8081", "*", "*.example.org"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestWebSocket_AllowsConfiguredOrigins(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)
	env.srv.opts.InsecureSkipVerify = false
	env.srv.opts.OriginPatterns = OriginPatterns([]string{"http://app.example.com"})

	url := "ws" + strings.TrimPrefix(env.URL, "http") + "/chathub"
	dial := func(origin string) (*http.Response, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{origin}},
		})
		if err == nil {
			conn.Close(websocket.StatusNormalClosure, "")
		}
		return resp, err
	}

	if _, err := dial("http://app.example.com"); err != nil {
		t.Errorf("expected the configured origin to connect, got %v", err)
	}
	resp, err := dial("http://evil.example.com")
	if err == nil {
		t.Fatal("expected a foreign origin to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for a foreign origin, got %v", resp)
	}
}
