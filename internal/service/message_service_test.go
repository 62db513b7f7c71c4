package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

func TestSend_PersistsThenNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)

	msg := env.send(t, conv.ID, a, "  hello  ")

	if *msg.Content != "hello" {
		t.Errorf("expected trimmed content, got %q", *msg.Content)
	}
	if msg.SenderName != "Ann Tester" || msg.MessageType != domain.MessageTypeText {
		t.Errorf("unexpected message %+v", msg)
	}
	if len(env.notifier.sent) != 1 || env.notifier.sent[0].ID != msg.ID {
		t.Fatalf("expected one broadcast of the new message, got %d", len(env.notifier.sent))
	}

	stored, _ := env.store.Messages().GetByID(ctx, msg.ID)
	if stored == nil {
		t.Fatal("expected message to be persisted")
	}
	c, _ := env.store.Conversations().GetByID(ctx, conv.ID)
	if c.LastMessageAt == nil || !c.LastMessageAt.Equal(msg.CreatedAt) {
		t.Errorf("expected lastMessageAt to follow the new message")
	}
}

func TestSend_KeepsTextVerbatim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)

	for _, text := range []string{
		"a<b && c>d",
		"&lt;script&gt;",
		"if a<b && c>d use <div> tags",
		"x <y",
	} {
		msg := env.send(t, conv.ID, a, text)
		stored, _ := env.store.Messages().GetByID(ctx, msg.ID)
		if stored == nil || stored.Content == nil || *stored.Content != text {
			t.Errorf("%q: expected the stored text to match what was sent, got %v", text, stored)
		}
		if *msg.Content != text {
			t.Errorf("%q: expected the broadcast text to match, got %q", text, *msg.Content)
		}

		edited, err := env.messages.Edit(ctx, EditMessageInput{MessageID: msg.ID, Content: text + "!"})
		if err != nil {
			t.Fatalf("edit: %v", err)
		}
		if *edited.Content != text+"!" {
			t.Errorf("%q: expected edit to keep the text, got %q", text, *edited.Content)
		}
	}
}

func TestSend_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, outsider := env.user(t, "Ann"), env.user(t, "Bob"), env.user(t, "Eve")
	conv := env.private(t, a, b)
	other := env.private(t, a, outsider)
	elsewhere := env.send(t, other.ID, a, "elsewhere")
	sentBefore := len(env.notifier.sent)

	text := "hi"
	empty := "   "
	tests := []struct {
		name  string
		input SendMessageInput
		want  error
	}{
		{"unknown sender", SendMessageInput{ConversationID: conv.ID, SenderID: uuid.New(), Content: &text}, ErrUserNotFound},
		{"unknown conversation", SendMessageInput{ConversationID: uuid.New(), SenderID: a, Content: &text}, ErrConversationNotFound},
		{"non participant", SendMessageInput{ConversationID: conv.ID, SenderID: outsider, Content: &text}, ErrNotParticipant},
		{"empty text", SendMessageInput{ConversationID: conv.ID, SenderID: a, Content: &empty}, ErrContentRequired},
		{"reply across conversations", SendMessageInput{ConversationID: conv.ID, SenderID: a, Content: &text, ReplyToMessageID: &elsewhere.ID}, ErrReplyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.messages.Send(ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if len(env.notifier.sent) != sentBefore {
		t.Errorf("expected no broadcasts for rejected sends")
	}
	msgs, _ := env.store.Messages().ListByConversation(ctx, conv.ID, 0, 10)
	if len(msgs) != 0 {
		t.Errorf("expected no messages written, got %d", len(msgs))
	}
}

func TestSend_InactiveParticipantWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	g := env.group(t, a, "Team", b)

	if err := env.convs.Leave(ctx, g.ID, b); err != nil {
		t.Fatalf("leave: %v", err)
	}
	text := "still here?"
	_, err := env.messages.Send(ctx, SendMessageInput{ConversationID: g.ID, SenderID: b, Content: &text})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	msgs, _ := env.store.Messages().ListByConversation(ctx, g.ID, 0, 10)
	if len(msgs) != 0 {
		t.Errorf("expected no message rows, got %d", len(msgs))
	}
}

func TestSend_FileMessageWithoutContent(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)

	path, name, size := "/uploads/cat.png", "cat.png", int64(2048)
	msg, err := env.messages.Send(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       a,
		MessageType:    "image",
		FilePath:       &path,
		FileName:       &name,
		FileSize:       &size,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != nil || msg.MessageType != "image" || *msg.FileSize != size {
		t.Errorf("unexpected file message %+v", msg)
	}
}

func TestMarkRead_OnceOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)
	msg := env.send(t, conv.ID, a, "read me")

	created, err := env.messages.MarkRead(ctx, msg.ID, b)
	if err != nil || !created {
		t.Fatalf("expected first read to create, got (%v, %v)", created, err)
	}
	created, err = env.messages.MarkRead(ctx, msg.ID, b)
	if err != nil || created {
		t.Fatalf("expected second read to be a no-op, got (%v, %v)", created, err)
	}

	if len(env.notifier.reads) != 1 {
		t.Errorf("expected exactly one read broadcast, got %d", len(env.notifier.reads))
	}
	statuses, _ := env.store.ReadStatuses().ListByMessages(ctx, []uuid.UUID{msg.ID})
	if len(statuses[msg.ID]) != 1 {
		t.Errorf("expected exactly one status row, got %d", len(statuses[msg.ID]))
	}

	if _, err := env.messages.MarkRead(ctx, uuid.New(), b); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestUnreadCount_DropsToZeroAfterReadingAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, env.send(t, conv.ID, a, "ping").ID)
	}
	env.send(t, conv.ID, b, "pong")

	v, _ := env.convs.Get(ctx, conv.ID, b)
	if v.UnreadCount != 4 {
		t.Fatalf("expected 4 unread, got %d", v.UnreadCount)
	}
	for _, id := range ids {
		if _, err := env.messages.MarkRead(ctx, id, b); err != nil {
			t.Fatalf("mark read: %v", err)
		}
	}
	v, _ = env.convs.Get(ctx, conv.ID, b)
	if v.UnreadCount != 0 {
		t.Errorf("expected 0 unread, got %d", v.UnreadCount)
	}
}

func TestEditAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "Ann"), env.user(t, "Bob")
	conv := env.private(t, a, b)
	msg := env.send(t, conv.ID, a, "first draft")

	edited, err := env.messages.Edit(ctx, EditMessageInput{MessageID: msg.ID, Content: "final"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.IsEdited || edited.EditedAt == nil || *edited.Content != "final" {
		t.Errorf("unexpected edited message %+v", edited)
	}
	if !edited.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("expected createdAt to be unchanged by edit")
	}

	if err := env.messages.Delete(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.messages.Delete(ctx, msg.ID); err != nil {
		t.Errorf("expected repeated delete to be a no-op, got %v", err)
	}
	if len(env.notifier.edits) != 1 || len(env.notifier.deletes) != 1 {
		t.Errorf("expected one edit and one delete broadcast, got %d and %d",
			len(env.notifier.edits), len(env.notifier.deletes))
	}

	stored, _ := env.store.Messages().GetByID(ctx, msg.ID)
	if stored == nil || !stored.IsDeleted() || stored.Content != nil {
		t.Errorf("expected soft-deleted row without content")
	}
	if _, err := env.messages.Edit(ctx, EditMessageInput{MessageID: msg.ID, Content: "again"}); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected editing a deleted message to fail, got %v", err)
	}
}
