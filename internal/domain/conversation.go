package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Conversation struct {
	ID                 uuid.UUID
	Name               *string
	IsGroup            bool
	GroupPhotoPath     *string
	CreatedByID        uuid.UUID
	CreatedAt          time.Time
	LastMessageAt      *time.Time
	InviteToken        *string
	IsInviteLinkActive bool
}

// PrivatePair is the canonical key of a 1:1 conversation. The ids are
// ordered so both users map to the same key.
func PrivatePair(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

// PrivatePairOf returns the key for a non-group conversation created with
// exactly two participants.
func PrivatePairOf(conv *Conversation, participants []Participant) (string, bool) {
	if conv.IsGroup || len(participants) != 2 {
		return "", false
	}
	return PrivatePair(participants[0].UserID, participants[1].UserID), true
}

// ActivityAt is the sort key for a user's conversation list.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// Participant is a user's membership row in a conversation. Rows are never
// duplicated per (conversation, user); leaving flips IsActive.
type Participant struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Role           string
	JoinedAt       time.Time
	LeftAt         *time.Time
	IsActive       bool
	IsMuted        bool
	// Joined fields
	FirstName        string
	LastName         string
	ProfilePhotoPath *string
}

func (p *Participant) IsAdmin() bool {
	return p.IsActive && p.Role == RoleAdmin
}

// ConversationView is the hydrated conversation returned to a specific viewer.
type ConversationView struct {
	ID                 uuid.UUID         `json:"id"`
	Name               *string           `json:"name,omitempty"`
	IsGroup            bool              `json:"isGroup"`
	GroupPhotoPath     *string           `json:"groupPhotoPath,omitempty"`
	InviteToken        *string           `json:"inviteToken,omitempty"`
	IsInviteLinkActive bool              `json:"isInviteLinkActive"`
	CreatedAt          time.Time         `json:"createdAt"`
	LastMessageAt      *time.Time        `json:"lastMessageAt,omitempty"`
	Participants       []ParticipantView `json:"participants"`
	LastMessage        *MessageView      `json:"lastMessage,omitempty"`
	UnreadCount        int               `json:"unreadCount"`
}

type ParticipantView struct {
	UserID           uuid.UUID `json:"userId"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	ProfilePhotoPath *string   `json:"profilePhotoPath,omitempty"`
	Role             string    `json:"role"`
	IsActive         bool      `json:"isActive"`
	IsMuted          bool      `json:"isMuted"`
}

// InviteSummary is what a non-member may see about a group behind an invite
// link. It carries no member identities.
type InviteSummary struct {
	ID                 uuid.UUID `json:"id"`
	Name               *string   `json:"name,omitempty"`
	GroupPhotoPath     *string   `json:"groupPhotoPath,omitempty"`
	ParticipantCount   int       `json:"participantCount"`
	IsInviteLinkActive bool      `json:"isActive"`
}
