package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Invocations - Client → Server
const (
	InvokeJoinConversation  = "JoinConversation"
	InvokeLeaveConversation = "LeaveConversation"
	InvokeSendMessage       = "SendMessage"
	InvokeUserTyping        = "UserTyping"
	InvokeUserStoppedTyping = "UserStoppedTyping"
	InvokeMarkMessageAsRead = "MarkMessageAsRead"
	InvokeEditMessage       = "EditMessage"
	InvokeDeleteMessage     = "DeleteMessage"
	InvokePing              = "Ping"
)

// Events - Server → Client
const (
	EventReceiveMessage    = "ReceiveMessage"
	EventUserTyping        = "UserTyping"
	EventUserStoppedTyping = "UserStoppedTyping"
	EventMessageRead       = "MessageRead"
	EventMessageEdited     = "MessageEdited"
	EventMessageDeleted    = "MessageDeleted"
	EventCompletion        = "Completion"
	EventPong              = "Pong"
)

// Event is the envelope for everything sent over a realtime connection, in
// both directions. Invocations carry an InvocationID that the server echoes
// on the matching Completion.
type Event struct {
	Type           string          `json:"type"`
	InvocationID   string          `json:"invocationId,omitempty"`
	ConversationID *uuid.UUID      `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	UserName       string    `json:"userName,omitempty"`
}

type MarkReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
}

type DeleteMessagePayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

// --- Server → Client payloads ---

type MessageReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type MessageEditedPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

type MessageDeletedPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, conversationID *uuid.UUID, payload any) (*Event, error) {
	evt := &Event{
		Type:           eventType,
		ConversationID: conversationID,
		Timestamp:      time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return evt, nil
}

func completion(invocationID string, result any, errText string) *Event {
	evt, err := NewEvent(EventCompletion, nil, result)
	if err != nil {
		evt = &Event{Type: EventCompletion, Timestamp: time.Now().UnixMilli()}
	}
	evt.InvocationID = invocationID
	evt.Error = errText
	return evt
}
