package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
)

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if _, ok := r.s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[conv.ID]; ok {
		return repository.ErrDuplicate
	}
	if conv.InviteToken != nil {
		for _, c := range r.s.conversations {
			if c.InviteToken != nil && *c.InviteToken == *conv.InviteToken {
				return repository.ErrDuplicate
			}
		}
	}
	seen := make(map[uuid.UUID]bool, len(participants))
	for _, p := range participants {
		if seen[p.UserID] {
			return repository.ErrDuplicate
		}
		seen[p.UserID] = true
	}
	pair, private := domain.PrivatePairOf(conv, participants)
	if _, taken := r.s.privatePairs[pair]; private && taken {
		return repository.ErrDuplicate
	}

	if private {
		r.s.privatePairs[pair] = conv.ID
	}
	r.s.conversations[conv.ID] = *conv
	for _, p := range participants {
		p.ConversationID = conv.ID
		r.s.participants[participantKey{conv.ID, p.UserID}] = p
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *ConversationRepo) GetByInviteToken(ctx context.Context, token string) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.conversations {
		if c.InviteToken != nil && *c.InviteToken == token {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ConversationRepo) FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.privatePairs[domain.PrivatePair(userA, userB)]
	if !ok {
		return nil, nil
	}
	c := r.s.conversations[id]
	return &c, nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var convs []domain.Conversation
	for key, p := range r.s.participants {
		if key.userID != userID || !p.IsActive {
			continue
		}
		if c, ok := r.s.conversations[key.conversationID]; ok {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].ActivityAt().After(convs[j].ActivityAt())
	})
	return convs, nil
}

func (r *ConversationRepo) UpdateInvite(ctx context.Context, id uuid.UUID, token *string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	if token != nil {
		for otherID, other := range r.s.conversations {
			if otherID != id && other.InviteToken != nil && *other.InviteToken == *token {
				return repository.ErrDuplicate
			}
		}
	}
	c.InviteToken = token
	c.IsInviteLinkActive = active
	r.s.conversations[id] = c
	return nil
}

func (r *ConversationRepo) UpdateGroup(ctx context.Context, id uuid.UUID, name, photoPath *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	if name != nil {
		c.Name = name
	}
	if photoPath != nil {
		c.GroupPhotoPath = photoPath
	}
	r.s.conversations[id] = c
	return nil
}

type ParticipantRepo struct{ s *Store }

func (r *ParticipantRepo) Add(ctx context.Context, p *domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := participantKey{p.ConversationID, p.UserID}
	if _, ok := r.s.participants[key]; ok {
		return repository.ErrDuplicate
	}
	r.s.participants[key] = *p
	return nil
}

func (r *ParticipantRepo) Get(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.participants[participantKey{conversationID, userID}]
	if !ok {
		return nil, nil
	}
	p = r.s.withUser(p)
	return &p, nil
}

func (r *ParticipantRepo) Reactivate(ctx context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error {
	return r.update(conversationID, userID, func(p *domain.Participant) {
		p.IsActive = true
		p.JoinedAt = joinedAt
		p.LeftAt = nil
	})
}

func (r *ParticipantRepo) Deactivate(ctx context.Context, conversationID, userID uuid.UUID, leftAt time.Time) error {
	return r.update(conversationID, userID, func(p *domain.Participant) {
		p.IsActive = false
		p.LeftAt = &leftAt
	})
}

func (r *ParticipantRepo) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	return r.update(conversationID, userID, func(p *domain.Participant) {
		p.IsMuted = muted
	})
}

func (r *ParticipantRepo) update(conversationID, userID uuid.UUID, fn func(p *domain.Participant)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := participantKey{conversationID, userID}
	p, ok := r.s.participants[key]
	if !ok {
		return nil
	}
	fn(&p)
	r.s.participants[key] = p
	return nil
}

func (r *ParticipantRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Participant
	for key, p := range r.s.participants {
		if key.conversationID != conversationID {
			continue
		}
		out = append(out, r.s.withUser(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *ParticipantRepo) CountActive(ctx context.Context, conversationID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for key, p := range r.s.participants {
		if key.conversationID == conversationID && p.IsActive {
			n++
		}
	}
	return n, nil
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[msg.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.messages[msg.ID] = *msg
	r.s.seq++
	r.s.messageSeq[msg.ID] = r.s.seq

	if c, ok := r.s.conversations[msg.ConversationID]; ok && (c.LastMessageAt == nil || msg.CreatedAt.After(*c.LastMessageAt)) {
		c.LastMessageAt = ptr(msg.CreatedAt)
		r.s.conversations[c.ID] = c
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	m = r.s.withSender(m)
	return &m, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.conversationMessages(conversationID)
	var newestFirst []domain.Message
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].IsDeleted() {
			continue
		}
		newestFirst = append(newestFirst, r.s.withSender(all[i]))
	}

	if offset >= len(newestFirst) {
		return nil, nil
	}
	end := offset + limit
	if end > len(newestFirst) {
		end = len(newestFirst)
	}
	return newestFirst[offset:end], nil
}

func (r *MessageRepo) Latest(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error) {
	msgs, err := r.ListByConversation(ctx, conversationID, 0, 1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

func (r *MessageRepo) Edit(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.IsDeleted() {
		return nil
	}
	m.Content = &content
	m.State = domain.MessageEdited
	m.EditedAt = &editedAt
	r.s.messages[id] = m
	return nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil
	}
	m.Content = nil
	m.State = domain.MessageDeleted
	r.s.messages[id] = m
	return nil
}

type ReadStatusRepo struct{ s *Store }

func (r *ReadStatusRepo) Insert(ctx context.Context, status *domain.ReadStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := statusKey{status.MessageID, status.UserID}
	if _, ok := r.s.statuses[key]; ok {
		return false, nil
	}
	r.s.statuses[key] = *status
	return true, nil
}

func (r *ReadStatusRepo) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, m := range r.s.conversationMessages(conversationID) {
		if m.SenderID == userID {
			continue
		}
		key := statusKey{m.ID, userID}
		if _, ok := r.s.statuses[key]; ok {
			continue
		}
		r.s.statuses[key] = domain.ReadStatus{MessageID: m.ID, UserID: userID, ReadAt: at, IsDelivered: true}
		n++
	}
	return n, nil
}

func (r *ReadStatusRepo) ListByMessages(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.ReadStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	out := make(map[uuid.UUID][]domain.ReadStatus)
	for key, st := range r.s.statuses {
		if wanted[key.messageID] {
			out[key.messageID] = append(out[key.messageID], st)
		}
	}
	for id := range out {
		list := out[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ReadAt.Before(list[j].ReadAt) })
	}
	return out, nil
}

func (r *ReadStatusRepo) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID || m.SenderID == userID {
			continue
		}
		if _, ok := r.s.statuses[statusKey{m.ID, userID}]; !ok {
			n++
		}
	}
	return n, nil
}
