// Package memory keeps every table in process memory. It backs the
// --storage=memory mode and the service and transport tests, and honours the
// same uniqueness rules as the PostgreSQL schema.
package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

type participantKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type statusKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
}

type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]domain.User
	conversations map[uuid.UUID]domain.Conversation
	participants  map[participantKey]domain.Participant
	messages      map[uuid.UUID]domain.Message
	statuses      map[statusKey]domain.ReadStatus
	privatePairs  map[string]uuid.UUID

	// seq breaks ties between messages created at the same instant.
	seq        int64
	messageSeq map[uuid.UUID]int64
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		conversations: make(map[uuid.UUID]domain.Conversation),
		participants:  make(map[participantKey]domain.Participant),
		messages:      make(map[uuid.UUID]domain.Message),
		statuses:      make(map[statusKey]domain.ReadStatus),
		privatePairs:  make(map[string]uuid.UUID),
		messageSeq:    make(map[uuid.UUID]int64),
	}
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }
func (s *Store) Participants() *ParticipantRepo   { return &ParticipantRepo{s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s} }
func (s *Store) ReadStatuses() *ReadStatusRepo    { return &ReadStatusRepo{s} }

// withSender fills the joined sender fields. Callers hold s.mu.
func (s *Store) withSender(m domain.Message) domain.Message {
	if u, ok := s.users[m.SenderID]; ok {
		m.SenderFirstName = u.FirstName
		m.SenderLastName = u.LastName
		m.SenderPhoto = u.ProfilePhotoPath
	}
	return m
}

func (s *Store) withUser(p domain.Participant) domain.Participant {
	if u, ok := s.users[p.UserID]; ok {
		p.FirstName = u.FirstName
		p.LastName = u.LastName
		p.ProfilePhotoPath = u.ProfilePhotoPath
	}
	return p
}

// conversationMessages returns the messages of a conversation oldest first.
// Callers hold s.mu.
func (s *Store) conversationMessages(conversationID uuid.UUID) []domain.Message {
	var out []domain.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.messageSeq[out[i].ID] < s.messageSeq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func ptr[T any](v T) *T { return &v }
