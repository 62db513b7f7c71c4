package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageState replaces the nullable-content convention: a deleted message
// keeps its row, ordering and id, but has no content.
type MessageState string

const (
	MessageActive  MessageState = "active"
	MessageEdited  MessageState = "edited"
	MessageDeleted MessageState = "deleted"
)

const MessageTypeText = "text"

type Message struct {
	ID               uuid.UUID
	ConversationID   uuid.UUID
	SenderID         uuid.UUID
	Content          *string
	Type             string
	FilePath         *string
	FileName         *string
	FileSize         *int64
	ReplyToMessageID *uuid.UUID
	State            MessageState
	CreatedAt        time.Time
	EditedAt         *time.Time
	// Joined fields
	SenderFirstName string
	SenderLastName  string
	SenderPhoto     *string
}

func (m *Message) IsEdited() bool  { return m.State == MessageEdited }
func (m *Message) IsDeleted() bool { return m.State == MessageDeleted }

func (m *Message) SenderName() string {
	u := User{FirstName: m.SenderFirstName, LastName: m.SenderLastName}
	return u.FullName()
}

// ReadStatus records that UserID has received and read MessageID. Exactly one
// row exists per pair and it is never updated.
type ReadStatus struct {
	MessageID   uuid.UUID `json:"messageId"`
	UserID      uuid.UUID `json:"userId"`
	ReadAt      time.Time `json:"readAt"`
	IsDelivered bool      `json:"isDelivered"`
}

type MessageView struct {
	ID               uuid.UUID        `json:"id"`
	ConversationID   uuid.UUID        `json:"conversationId"`
	SenderID         uuid.UUID        `json:"senderId"`
	SenderName       string           `json:"senderName"`
	SenderPhoto      *string          `json:"senderPhoto,omitempty"`
	Content          *string          `json:"content,omitempty"`
	MessageType      string           `json:"messageType"`
	FilePath         *string          `json:"filePath,omitempty"`
	FileName         *string          `json:"fileName,omitempty"`
	FileSize         *int64           `json:"fileSize,omitempty"`
	ReplyToMessageID *uuid.UUID       `json:"replyToMessageId,omitempty"`
	IsEdited         bool             `json:"isEdited"`
	IsDeleted        bool             `json:"isDeleted"`
	CreatedAt        time.Time        `json:"createdAt"`
	EditedAt         *time.Time       `json:"editedAt,omitempty"`
	ReadStatuses     []ReadStatusView `json:"readStatuses"`
}

type ReadStatusView struct {
	UserID      uuid.UUID `json:"userId"`
	ReadAt      time.Time `json:"readAt"`
	IsDelivered bool      `json:"isDelivered"`
}

// View flattens a message for the wire. statuses may be nil.
func (m *Message) View(statuses []ReadStatus) MessageView {
	v := MessageView{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		SenderName:       m.SenderName(),
		SenderPhoto:      m.SenderPhoto,
		Content:          m.Content,
		MessageType:      m.Type,
		FilePath:         m.FilePath,
		FileName:         m.FileName,
		FileSize:         m.FileSize,
		ReplyToMessageID: m.ReplyToMessageID,
		IsEdited:         m.IsEdited(),
		IsDeleted:        m.IsDeleted(),
		CreatedAt:        m.CreatedAt,
		EditedAt:         m.EditedAt,
		ReadStatuses:     make([]ReadStatusView, 0, len(statuses)),
	}
	if m.IsDeleted() {
		v.Content = nil
	}
	for _, s := range statuses {
		v.ReadStatuses = append(v.ReadStatuses, ReadStatusView{
			UserID:      s.UserID,
			ReadAt:      s.ReadAt,
			IsDelivered: s.IsDelivered,
		})
	}
	return v
}
