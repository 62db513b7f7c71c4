package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}

type ConversationRepository interface {
	// Create inserts the conversation together with its initial participants
	// in one transaction. A second private conversation for the same pair of
	// users fails with ErrDuplicate.
	Create(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByInviteToken(ctx context.Context, token string) (*domain.Conversation, error)
	// FindPrivate returns the non-group conversation that has both users as
	// participants.
	FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	// ListByUser returns conversations where the user is an active participant,
	// most recent activity first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	UpdateInvite(ctx context.Context, id uuid.UUID, token *string, active bool) error
	UpdateGroup(ctx context.Context, id uuid.UUID, name, photoPath *string) error
}

type ParticipantRepository interface {
	// Add returns ErrDuplicate when a row for the pair already exists.
	Add(ctx context.Context, p *domain.Participant) error
	Get(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error)
	Reactivate(ctx context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error
	Deactivate(ctx context.Context, conversationID, userID uuid.UUID, leftAt time.Time) error
	SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Participant, error)
	CountActive(ctx context.Context, conversationID uuid.UUID) (int, error)
}

type MessageRepository interface {
	// Create appends the message and advances the conversation's
	// last_message_at in one transaction.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByConversation returns non-deleted messages newest first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error)
	// Latest returns the newest non-deleted message.
	Latest(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error)
	Edit(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type ReadStatusRepository interface {
	// Insert is an atomic check-and-insert; created is false when a status for
	// the (message, user) pair already exists.
	Insert(ctx context.Context, status *domain.ReadStatus) (created bool, err error)
	// MarkConversationRead inserts statuses for every message not authored by
	// userID that it has not read yet, returning how many were added.
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error)
	ListByMessages(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.ReadStatus, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
}
