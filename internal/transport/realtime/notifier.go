package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

const notifyTimeout = 5 * time.Second

// HubNotifier implements service.Notifier using the Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewMessage(msg domain.MessageView) {
	n.broadcast(msg.ConversationID, EventReceiveMessage, msg)
}

func (n *HubNotifier) NotifyMessageRead(conversationID uuid.UUID, status domain.ReadStatus) {
	n.broadcast(conversationID, EventMessageRead, MessageReadPayload{
		MessageID: status.MessageID,
		UserID:    status.UserID,
		ReadAt:    status.ReadAt,
	})
}

func (n *HubNotifier) NotifyEditedMessage(conversationID, messageID uuid.UUID, content string, editedAt time.Time) {
	n.broadcast(conversationID, EventMessageEdited, MessageEditedPayload{
		MessageID: messageID,
		Content:   content,
		EditedAt:  editedAt,
	})
}

func (n *HubNotifier) NotifyDeletedMessage(conversationID, messageID uuid.UUID) {
	n.broadcast(conversationID, EventMessageDeleted, MessageDeletedPayload{MessageID: messageID})
}

func (n *HubNotifier) broadcast(conversationID uuid.UUID, eventType string, payload any) {
	evt, err := NewEvent(eventType, &conversationID, payload)
	if err != nil {
		log.Errorf("notifier: marshal %s: %v", eventType, err)
		return
	}
	// The event already happened; a cancelled request must not stop the fan-out.
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	n.hub.Broadcast(ctx, conversationID, evt, "")
}
