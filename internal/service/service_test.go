package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/repository/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []domain.MessageView
	reads   []domain.ReadStatus
	edits   []uuid.UUID
	deletes []uuid.UUID
}

func (n *recordingNotifier) NotifyNewMessage(msg domain.MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) NotifyMessageRead(_ uuid.UUID, status domain.ReadStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, status)
}

func (n *recordingNotifier) NotifyEditedMessage(_, messageID uuid.UUID, _ string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits = append(n.edits, messageID)
}

func (n *recordingNotifier) NotifyDeletedMessage(_, messageID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deletes = append(n.deletes, messageID)
}

type testEnv struct {
	store    *memory.Store
	auth     *AuthService
	convs    *ConversationService
	messages *MessageService
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		store: store,
		auth:  NewAuthService(store.Users(), "test-secret"),
		convs: NewConversationService(store.Users(), store.Conversations(), store.Participants(),
			store.Messages(), store.ReadStatuses()),
		messages: NewMessageService(store.Users(), store.Conversations(), store.Participants(),
			store.Messages(), store.ReadStatuses()),
		notifier: &recordingNotifier{},
	}
	env.messages.SetNotifier(env.notifier)
	return env
}

// user inserts a user directly, skipping password hashing.
func (e *testEnv) user(t *testing.T, first string) uuid.UUID {
	t.Helper()
	u := domain.User{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  "Tester",
		Email:     first + "-" + uuid.NewString()[:8] + "@example.com",
		Phone:     "+380971234567",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := e.store.Users().Create(context.Background(), &u); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u.ID
}

func (e *testEnv) private(t *testing.T, a, b uuid.UUID) *domain.ConversationView {
	t.Helper()
	v, err := e.convs.Create(context.Background(), CreateConversationInput{
		CreatedByID:    a,
		ParticipantIDs: []uuid.UUID{b},
	})
	if err != nil {
		t.Fatalf("creating private conversation: %v", err)
	}
	return v
}

func (e *testEnv) group(t *testing.T, creator uuid.UUID, name string, members ...uuid.UUID) *domain.ConversationView {
	t.Helper()
	v, err := e.convs.Create(context.Background(), CreateConversationInput{
		CreatedByID:    creator,
		ParticipantIDs: members,
		IsGroup:        true,
		GroupName:      &name,
	})
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}
	return v
}

func (e *testEnv) send(t *testing.T, conv, sender uuid.UUID, text string) *domain.MessageView {
	t.Helper()
	msg, err := e.messages.Send(context.Background(), SendMessageInput{
		ConversationID: conv,
		SenderID:       sender,
		Content:        &text,
	})
	if err != nil {
		t.Fatalf("sending message: %v", err)
	}
	return msg
}
