package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
	"github.com/n0P7xJ/MyReactNative/pkg/validator"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("service")

// Notifier broadcasts real-time events to the connections subscribed to a
// conversation.
type Notifier interface {
	NotifyNewMessage(msg domain.MessageView)
	NotifyMessageRead(conversationID uuid.UUID, status domain.ReadStatus)
	NotifyEditedMessage(conversationID, messageID uuid.UUID, content string, editedAt time.Time)
	NotifyDeletedMessage(conversationID, messageID uuid.UUID)
}

type MessageService struct {
	userRepo         repository.UserRepository
	conversationRepo repository.ConversationRepository
	participantRepo  repository.ParticipantRepository
	messageRepo      repository.MessageRepository
	readStatusRepo   repository.ReadStatusRepository
	notifier         Notifier
}

func NewMessageService(
	userRepo repository.UserRepository,
	conversationRepo repository.ConversationRepository,
	participantRepo repository.ParticipantRepository,
	messageRepo repository.MessageRepository,
	readStatusRepo repository.ReadStatusRepository,
) *MessageService {
	return &MessageService{
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		participantRepo:  participantRepo,
		messageRepo:      messageRepo,
		readStatusRepo:   readStatusRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	ConversationID   uuid.UUID  `json:"conversationId" validate:"required"`
	SenderID         uuid.UUID  `json:"senderId" validate:"required"`
	Content          *string    `json:"content,omitempty" validate:"omitempty,max=5000"`
	MessageType      string     `json:"messageType" validate:"max=20"`
	FilePath         *string    `json:"filePath,omitempty" validate:"omitempty,max=500"`
	FileName         *string    `json:"fileName,omitempty" validate:"omitempty,max=255"`
	FileSize         *int64     `json:"fileSize,omitempty" validate:"omitempty,min=0"`
	ReplyToMessageID *uuid.UUID `json:"replyToMessageId,omitempty"`
}

type EditMessageInput struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
	Content   string    `json:"content" validate:"required,max=5000"`
}

// Send persists a message and then broadcasts it. Persistence always happens
// before the broadcast.
func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (*domain.MessageView, error) {
	if errs := validator.Struct(input); errs.HasErrors() {
		return nil, errs
	}
	if input.MessageType == "" {
		input.MessageType = domain.MessageTypeText
	}
	content := plainText(input.Content)
	if input.MessageType == domain.MessageTypeText && content == nil {
		return nil, ErrContentRequired
	}

	sender, err := s.userRepo.GetByID(ctx, input.SenderID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	p, err := s.participantRepo.Get(ctx, conv.ID, sender.ID)
	if err != nil {
		return nil, fmt.Errorf("loading participant: %w", err)
	}
	if p == nil || !p.IsActive {
		return nil, ErrNotParticipant
	}

	if input.ReplyToMessageID != nil {
		target, err := s.messageRepo.GetByID(ctx, *input.ReplyToMessageID)
		if err != nil {
			return nil, fmt.Errorf("loading reply target: %w", err)
		}
		if target == nil {
			return nil, ErrMessageNotFound
		}
		if target.ConversationID != conv.ID {
			return nil, ErrReplyMismatch
		}
	}

	msg := &domain.Message{
		ID:               uuid.New(),
		ConversationID:   conv.ID,
		SenderID:         sender.ID,
		Content:          content,
		Type:             input.MessageType,
		FilePath:         input.FilePath,
		FileName:         input.FileName,
		FileSize:         input.FileSize,
		ReplyToMessageID: input.ReplyToMessageID,
		State:            domain.MessageActive,
		CreatedAt:        time.Now().UTC(),
		SenderFirstName:  sender.FirstName,
		SenderLastName:   sender.LastName,
		SenderPhoto:      sender.ProfilePhotoPath,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	view := msg.View(nil)
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(view)
	}

	log.Debugf("message %s sent to conversation %s", msg.ID, conv.ID)
	return &view, nil
}

// MarkRead records that userID read messageID. Only the first call for a
// (message, user) pair creates a status and notifies the conversation.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("loading message: %w", err)
	}
	if msg == nil {
		return false, ErrMessageNotFound
	}

	status := domain.ReadStatus{
		MessageID:   messageID,
		UserID:      userID,
		ReadAt:      time.Now().UTC(),
		IsDelivered: true,
	}
	created, err := s.readStatusRepo.Insert(ctx, &status)
	if err != nil {
		return false, fmt.Errorf("inserting read status: %w", err)
	}
	if created && s.notifier != nil {
		s.notifier.NotifyMessageRead(msg.ConversationID, status)
	}
	return created, nil
}

// Edit replaces the content of a message. Ownership is not enforced here.
func (s *MessageService) Edit(ctx context.Context, input EditMessageInput) (*domain.MessageView, error) {
	if errs := validator.Struct(input); errs.HasErrors() {
		return nil, errs
	}
	content := plainText(&input.Content)
	if content == nil {
		return nil, ErrContentRequired
	}

	msg, err := s.messageRepo.GetByID(ctx, input.MessageID)
	if err != nil {
		return nil, fmt.Errorf("loading message: %w", err)
	}
	if msg == nil || msg.IsDeleted() {
		return nil, ErrMessageNotFound
	}

	editedAt := time.Now().UTC()
	if err := s.messageRepo.Edit(ctx, msg.ID, *content, editedAt); err != nil {
		return nil, fmt.Errorf("editing message: %w", err)
	}
	msg.Content = content
	msg.State = domain.MessageEdited
	msg.EditedAt = &editedAt

	if s.notifier != nil {
		s.notifier.NotifyEditedMessage(msg.ConversationID, msg.ID, *content, editedAt)
	}

	view := msg.View(nil)
	return &view, nil
}

// Delete soft-deletes a message, keeping its row and position.
func (s *MessageService) Delete(ctx context.Context, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("loading message: %w", err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.IsDeleted() {
		return nil
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyDeletedMessage(msg.ConversationID, messageID)
	}
	return nil
}
