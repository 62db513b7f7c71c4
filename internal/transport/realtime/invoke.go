package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/service"
)

var (
	errInvalidPayload = errors.New("invalid payload")
	errActorMismatch  = errors.New("user does not match the connection")
)

// Messages is the part of the message service that realtime invocations
// drive.
type Messages interface {
	Send(ctx context.Context, input service.SendMessageInput) (*domain.MessageView, error)
	MarkRead(ctx context.Context, messageID, userID uuid.UUID) (bool, error)
	Edit(ctx context.Context, input service.EditMessageInput) (*domain.MessageView, error)
	Delete(ctx context.Context, messageID uuid.UUID) error
}

// invoke runs one client invocation and returns the event to send back on
// the caller's connection. Application errors never close the connection.
func (s *Server) invoke(ctx context.Context, c *Client, evt *Event) *Event {
	c.touch("")
	id := evt.InvocationID

	switch evt.Type {
	case InvokePing:
		pong, _ := NewEvent(EventPong, nil, nil)
		pong.InvocationID = id
		return pong

	case InvokeJoinConversation, InvokeLeaveConversation:
		conversationID, err := targetConversation(evt)
		if err != nil {
			return completion(id, nil, err.Error())
		}
		if evt.Type == InvokeJoinConversation {
			s.hub.Join(c, conversationID)
			log.Debugf("connection %s joined %s", c.id, conversationID)
		} else {
			s.hub.Leave(c, conversationID)
			log.Debugf("connection %s left %s", c.id, conversationID)
		}
		return completion(id, nil, "")

	case InvokeSendMessage:
		var in service.SendMessageInput
		if err := decodePayload(evt, &in); err != nil {
			return completion(id, nil, err.Error())
		}
		if !c.actsAs(in.SenderID) {
			return completion(id, nil, errActorMismatch.Error())
		}
		msg, err := s.messages.Send(ctx, in)
		if err != nil {
			return failure(id, "send message", err, "failed to send message")
		}
		return completion(id, msg, "")

	case InvokeUserTyping, InvokeUserStoppedTyping:
		var p TypingPayload
		if err := decodePayload(evt, &p); err != nil {
			return completion(id, nil, err.Error())
		}
		if p.ConversationID == uuid.Nil && evt.ConversationID != nil {
			p.ConversationID = *evt.ConversationID
		}
		if p.ConversationID == uuid.Nil {
			return completion(id, nil, "conversationId is required")
		}
		if !c.actsAs(p.UserID) {
			return completion(id, nil, errActorMismatch.Error())
		}
		// Typing is best-effort; bursts over the limit are dropped.
		if evt.Type == InvokeUserTyping && !c.typing.Allow() {
			return completion(id, nil, "")
		}
		out, err := NewEvent(evt.Type, &p.ConversationID, p)
		if err != nil {
			return failure(id, "typing", err, "")
		}
		s.hub.Broadcast(ctx, p.ConversationID, out, c.id)
		return completion(id, nil, "")

	case InvokeMarkMessageAsRead:
		var p MarkReadPayload
		if err := decodePayload(evt, &p); err != nil {
			return completion(id, nil, err.Error())
		}
		if !c.actsAs(p.UserID) {
			return completion(id, nil, errActorMismatch.Error())
		}
		if _, err := s.messages.MarkRead(ctx, p.MessageID, p.UserID); err != nil {
			return failure(id, "mark message read", err, "")
		}
		return completion(id, nil, "")

	case InvokeEditMessage:
		var in service.EditMessageInput
		if err := decodePayload(evt, &in); err != nil {
			return completion(id, nil, err.Error())
		}
		msg, err := s.messages.Edit(ctx, in)
		if err != nil {
			return failure(id, "edit message", err, "")
		}
		return completion(id, msg, "")

	case InvokeDeleteMessage:
		var p DeleteMessagePayload
		if err := decodePayload(evt, &p); err != nil {
			return completion(id, nil, err.Error())
		}
		if err := s.messages.Delete(ctx, p.MessageID); err != nil {
			return failure(id, "delete message", err, "")
		}
		return completion(id, nil, "")

	default:
		return completion(id, nil, "unknown invocation: "+evt.Type)
	}
}

// failure reports caller-visible errors as they are. Internal errors are
// logged and replaced by internalText, which may be empty.
func failure(invocationID, op string, err error, internalText string) *Event {
	if service.KindOf(err) == service.KindInternal {
		log.Errorf("%s: %v", op, err)
		return completion(invocationID, nil, internalText)
	}
	return completion(invocationID, nil, err.Error())
}

func decodePayload(evt *Event, v any) error {
	if len(evt.Payload) == 0 {
		return errInvalidPayload
	}
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

// targetConversation reads the conversation from the envelope, falling back
// to a {"conversationId": ...} payload.
func targetConversation(evt *Event) (uuid.UUID, error) {
	if evt.ConversationID != nil && *evt.ConversationID != uuid.Nil {
		return *evt.ConversationID, nil
	}
	var p struct {
		ConversationID uuid.UUID `json:"conversationId"`
	}
	if err := decodePayload(evt, &p); err != nil || p.ConversationID == uuid.Nil {
		return uuid.Nil, errors.New("conversationId is required")
	}
	return p.ConversationID, nil
}
