package chatclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID               uuid.UUID  `json:"id"`
	ConversationID   uuid.UUID  `json:"conversationId"`
	SenderID         uuid.UUID  `json:"senderId"`
	SenderName       string     `json:"senderName"`
	SenderPhoto      *string    `json:"senderPhoto,omitempty"`
	Content          *string    `json:"content,omitempty"`
	MessageType      string     `json:"messageType"`
	FilePath         *string    `json:"filePath,omitempty"`
	FileName         *string    `json:"fileName,omitempty"`
	FileSize         *int64     `json:"fileSize,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"replyToMessageId,omitempty"`
	IsEdited         bool       `json:"isEdited"`
	IsDeleted        bool       `json:"isDeleted"`
	CreatedAt        time.Time  `json:"createdAt"`
	EditedAt         *time.Time `json:"editedAt,omitempty"`
}

type SendMessageRequest struct {
	ConversationID   uuid.UUID  `json:"conversationId"`
	SenderID         uuid.UUID  `json:"senderId"`
	Content          *string    `json:"content,omitempty"`
	MessageType      string     `json:"messageType,omitempty"`
	FilePath         *string    `json:"filePath,omitempty"`
	FileName         *string    `json:"fileName,omitempty"`
	FileSize         *int64     `json:"fileSize,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"replyToMessageId,omitempty"`
}

type Typing struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	UserName       string    `json:"userName,omitempty"`
}

type ReadReceipt struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type MessageEdit struct {
	MessageID uuid.UUID `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

// JoinConversation subscribes to a conversation's events. The membership is
// remembered and restored after reconnects.
func (c *Client) JoinConversation(ctx context.Context, conversationID uuid.UUID) error {
	if err := c.WaitConnected(ctx); err != nil {
		return err
	}
	if _, err := c.Invoke(ctx, "JoinConversation", &conversationID, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups[conversationID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// LeaveConversation forgets the membership; it tells the server only when
// connected.
func (c *Client) LeaveConversation(ctx context.Context, conversationID uuid.UUID) error {
	c.mu.Lock()
	delete(c.groups, conversationID)
	c.mu.Unlock()

	if c.State() != Connected {
		return nil
	}
	_, err := c.Invoke(ctx, "LeaveConversation", &conversationID, nil)
	return err
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if req.MessageType == "" {
		req.MessageType = "text"
	}
	data, err := c.Invoke(ctx, "SendMessage", &req.ConversationID, req)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) UserTyping(ctx context.Context, conversationID, userID uuid.UUID, userName string) error {
	_, err := c.Invoke(ctx, "UserTyping", &conversationID, Typing{ConversationID: conversationID, UserID: userID, UserName: userName})
	return err
}

func (c *Client) UserStoppedTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := c.Invoke(ctx, "UserStoppedTyping", &conversationID, Typing{ConversationID: conversationID, UserID: userID})
	return err
}

func (c *Client) MarkMessageAsRead(ctx context.Context, messageID, userID uuid.UUID) error {
	_, err := c.Invoke(ctx, "MarkMessageAsRead", nil, map[string]uuid.UUID{"messageId": messageID, "userId": userID})
	return err
}

func (c *Client) EditMessage(ctx context.Context, messageID uuid.UUID, content string) (*Message, error) {
	data, err := c.Invoke(ctx, "EditMessage", nil, map[string]any{"messageId": messageID, "content": content})
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	_, err := c.Invoke(ctx, "DeleteMessage", nil, map[string]uuid.UUID{"messageId": messageID})
	return err
}

// Ping round-trips through the hub.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Invoke(ctx, "Ping", nil, nil)
	return err
}

func (c *Client) OnMessage(fn func(Message)) { on(c, "ReceiveMessage", fn) }
func (c *Client) OnUserTyping(fn func(Typing)) { on(c, "UserTyping", fn) }
func (c *Client) OnUserStoppedTyping(fn func(Typing)) { on(c, "UserStoppedTyping", fn) }
func (c *Client) OnMessageRead(fn func(ReadReceipt)) { on(c, "MessageRead", fn) }
func (c *Client) OnMessageEdited(fn func(MessageEdit)) { on(c, "MessageEdited", fn) }
func (c *Client) OnMessageDeleted(fn func(uuid.UUID)) {
	on(c, "MessageDeleted", func(p struct {
		MessageID uuid.UUID `json:"messageId"`
	}) {
		fn(p.MessageID)
	})
}

func on[T any](c *Client, eventType string, fn func(T)) {
	c.On(eventType, func(evt Event) {
		var v T
		if err := json.Unmarshal(evt.Payload, &v); err != nil {
			log.Warningf("dropping malformed %s: %v", eventType, err)
			return
		}
		fn(v)
	})
}
