package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
	"github.com/n0P7xJ/MyReactNative/pkg/validator"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type ConversationService struct {
	userRepo         repository.UserRepository
	conversationRepo repository.ConversationRepository
	participantRepo  repository.ParticipantRepository
	messageRepo      repository.MessageRepository
	readStatusRepo   repository.ReadStatusRepository
}

func NewConversationService(
	userRepo repository.UserRepository,
	conversationRepo repository.ConversationRepository,
	participantRepo repository.ParticipantRepository,
	messageRepo repository.MessageRepository,
	readStatusRepo repository.ReadStatusRepository,
) *ConversationService {
	return &ConversationService{
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		participantRepo:  participantRepo,
		messageRepo:      messageRepo,
		readStatusRepo:   readStatusRepo,
	}
}

type CreateConversationInput struct {
	CreatedByID    uuid.UUID   `json:"createdById" validate:"required"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	IsGroup        bool        `json:"isGroup"`
	GroupName      *string     `json:"groupName,omitempty" validate:"omitempty,max=200"`
}

type JoinInput struct {
	UserID      uuid.UUID `json:"userId" validate:"required"`
	InviteToken string    `json:"inviteToken" validate:"required,max=50"`
}

type InviteActionInput struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
	UserID         uuid.UUID `json:"userId" validate:"required"`
	IsActive       bool      `json:"isActive"`
}

type UpdateGroupInput struct {
	UserID         uuid.UUID `json:"userId" validate:"required"`
	Name           *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	GroupPhotoPath *string   `json:"groupPhotoPath,omitempty" validate:"omitempty,max=500"`
}

// Create starts a conversation. A private conversation between a pair that
// already has one returns the existing conversation instead.
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*domain.ConversationView, error) {
	if errs := validator.Struct(input); errs.HasErrors() {
		return nil, errs
	}

	others := make([]uuid.UUID, 0, len(input.ParticipantIDs))
	seen := map[uuid.UUID]bool{input.CreatedByID: true}
	for _, id := range input.ParticipantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		others = append(others, id)
	}
	if !input.IsGroup && len(others) != 1 {
		return nil, ErrPrivateNeedsPair
	}

	for id := range seen {
		if err := s.requireUser(ctx, id); err != nil {
			return nil, err
		}
	}

	if !input.IsGroup {
		existing, err := s.conversationRepo.FindPrivate(ctx, input.CreatedByID, others[0])
		if err != nil {
			return nil, fmt.Errorf("finding private conversation: %w", err)
		}
		if existing != nil {
			return s.view(ctx, existing, input.CreatedByID)
		}
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:          uuid.New(),
		IsGroup:     input.IsGroup,
		CreatedByID: input.CreatedByID,
		CreatedAt:   now,
	}

	creatorRole := domain.RoleMember
	if input.IsGroup {
		token, err := newInviteToken()
		if err != nil {
			return nil, fmt.Errorf("generating invite token: %w", err)
		}
		name, err := cleanOptionalName(input.GroupName)
		if err != nil {
			return nil, err
		}
		conv.Name = name
		conv.InviteToken = &token
		conv.IsInviteLinkActive = true
		creatorRole = domain.RoleAdmin
	}

	participants := []domain.Participant{{
		UserID:   input.CreatedByID,
		Role:     creatorRole,
		JoinedAt: now,
		IsActive: true,
	}}
	for _, id := range others {
		participants = append(participants, domain.Participant{
			UserID:   id,
			Role:     domain.RoleMember,
			JoinedAt: now,
			IsActive: true,
		})
	}

	if err := s.conversationRepo.Create(ctx, conv, participants); err != nil {
		if !input.IsGroup && errors.Is(err, repository.ErrDuplicate) {
			// Lost the race to a concurrent create for the same pair.
			existing, ferr := s.conversationRepo.FindPrivate(ctx, input.CreatedByID, others[0])
			if ferr != nil {
				return nil, fmt.Errorf("finding private conversation: %w", ferr)
			}
			if existing != nil {
				return s.view(ctx, existing, input.CreatedByID)
			}
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	log.Infof("conversation %s created by %s (group=%v, participants=%d)",
		conv.ID, conv.CreatedByID, conv.IsGroup, len(participants))

	return s.view(ctx, conv, input.CreatedByID)
}

// List returns the user's active conversations, most recent activity first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.ConversationView, error) {
	convs, err := s.conversationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	views := make([]domain.ConversationView, 0, len(convs))
	for i := range convs {
		v, err := s.view(ctx, &convs[i], userID)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationView, error) {
	conv, err := s.requireConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.view(ctx, conv, userID)
}

// Messages returns one page of history in ascending time order. Page 1 holds
// the newest messages.
func (s *ConversationService) Messages(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]domain.MessageView, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	msgs, err := s.messageRepo.ListByConversation(ctx, conversationID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	ids := make([]uuid.UUID, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	statuses, err := s.readStatusRepo.ListByMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("listing read statuses: %w", err)
	}

	views := make([]domain.MessageView, len(msgs))
	for i := range msgs {
		// Repository order is newest first.
		views[len(msgs)-1-i] = msgs[i].View(statuses[msgs[i].ID])
	}
	return views, nil
}

// MarkAsRead records a read status for every message in the conversation the
// user has not authored or read yet.
func (s *ConversationService) MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	n, err := s.readStatusRepo.MarkConversationRead(ctx, conversationID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	if n > 0 {
		log.Debugf("user %s read %d messages in %s", userID, n, conversationID)
	}
	return n, nil
}

func (s *ConversationService) JoinByInvite(ctx context.Context, input JoinInput) (*domain.ConversationView, error) {
	if errs := validator.Struct(input); errs.HasErrors() {
		return nil, errs
	}

	conv, err := s.conversationRepo.GetByInviteToken(ctx, input.InviteToken)
	if err != nil {
		return nil, fmt.Errorf("finding invite: %w", err)
	}
	if conv == nil {
		return nil, ErrInviteNotFound
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	if !conv.IsInviteLinkActive {
		return nil, ErrInviteInactive
	}
	if err := s.requireUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	existing, err := s.participantRepo.Get(ctx, conv.ID, input.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch {
	case existing != nil && existing.IsActive:
		return nil, ErrAlreadyMember
	case existing != nil:
		if err := s.participantRepo.Reactivate(ctx, conv.ID, input.UserID, now); err != nil {
			return nil, fmt.Errorf("reactivating participant: %w", err)
		}
	default:
		err := s.participantRepo.Add(ctx, &domain.Participant{
			ConversationID: conv.ID,
			UserID:         input.UserID,
			Role:           domain.RoleMember,
			JoinedAt:       now,
			IsActive:       true,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent join for the same user.
			return nil, ErrAlreadyMember
		}
		if err != nil {
			return nil, fmt.Errorf("adding participant: %w", err)
		}
	}

	log.Infof("user %s joined conversation %s by invite", input.UserID, conv.ID)
	return s.view(ctx, conv, input.UserID)
}

// RegenerateInvite replaces the invite token and activates the link.
func (s *ConversationService) RegenerateInvite(ctx context.Context, input InviteActionInput) (*domain.ConversationView, error) {
	conv, err := s.requireGroupAdmin(ctx, input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generating invite token: %w", err)
	}
	if err := s.conversationRepo.UpdateInvite(ctx, conv.ID, &token, true); err != nil {
		return nil, fmt.Errorf("updating invite: %w", err)
	}
	conv.InviteToken = &token
	conv.IsInviteLinkActive = true

	return s.view(ctx, conv, input.UserID)
}

// ToggleInvite flips the link's active flag and keeps the token.
func (s *ConversationService) ToggleInvite(ctx context.Context, input InviteActionInput) (*domain.ConversationView, error) {
	conv, err := s.requireGroupAdmin(ctx, input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.conversationRepo.UpdateInvite(ctx, conv.ID, conv.InviteToken, input.IsActive); err != nil {
		return nil, fmt.Errorf("updating invite: %w", err)
	}
	conv.IsInviteLinkActive = input.IsActive

	return s.view(ctx, conv, input.UserID)
}

// GetByInvite is the public preview of a group behind an invite token.
func (s *ConversationService) GetByInvite(ctx context.Context, token string) (*domain.InviteSummary, error) {
	conv, err := s.conversationRepo.GetByInviteToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("finding invite: %w", err)
	}
	if conv == nil || !conv.IsGroup {
		return nil, ErrInviteNotFound
	}
	if !conv.IsInviteLinkActive {
		return nil, ErrInviteInactive
	}

	count, err := s.participantRepo.CountActive(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	return &domain.InviteSummary{
		ID:                 conv.ID,
		Name:               conv.Name,
		GroupPhotoPath:     conv.GroupPhotoPath,
		ParticipantCount:   count,
		IsInviteLinkActive: conv.IsInviteLinkActive,
	}, nil
}

func (s *ConversationService) Leave(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.requireConversation(ctx, conversationID); err != nil {
		return err
	}
	if _, err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.participantRepo.Deactivate(ctx, conversationID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivating participant: %w", err)
	}
	log.Infof("user %s left conversation %s", userID, conversationID)
	return nil
}

func (s *ConversationService) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	if _, err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.participantRepo.SetMuted(ctx, conversationID, userID, muted); err != nil {
		return fmt.Errorf("updating mute: %w", err)
	}
	return nil
}

func (s *ConversationService) UpdateGroup(ctx context.Context, conversationID uuid.UUID, input UpdateGroupInput) (*domain.ConversationView, error) {
	if errs := validator.Struct(input); errs.HasErrors() {
		return nil, errs
	}
	conv, err := s.requireGroupAdmin(ctx, conversationID, input.UserID)
	if err != nil {
		return nil, err
	}

	name, err := cleanOptionalName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := s.conversationRepo.UpdateGroup(ctx, conv.ID, name, input.GroupPhotoPath); err != nil {
		return nil, fmt.Errorf("updating group: %w", err)
	}
	if name != nil {
		conv.Name = name
	}
	if input.GroupPhotoPath != nil {
		conv.GroupPhotoPath = input.GroupPhotoPath
	}
	return s.view(ctx, conv, input.UserID)
}

// view hydrates conv for viewerID. Private conversations take the other
// participant's name and photo.
func (s *ConversationService) view(ctx context.Context, conv *domain.Conversation, viewerID uuid.UUID) (*domain.ConversationView, error) {
	participants, err := s.participantRepo.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	unread, err := s.readStatusRepo.CountUnread(ctx, conv.ID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("counting unread: %w", err)
	}
	latest, err := s.messageRepo.Latest(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading last message: %w", err)
	}

	v := &domain.ConversationView{
		ID:                 conv.ID,
		Name:               conv.Name,
		IsGroup:            conv.IsGroup,
		GroupPhotoPath:     conv.GroupPhotoPath,
		InviteToken:        conv.InviteToken,
		IsInviteLinkActive: conv.IsInviteLinkActive,
		CreatedAt:          conv.CreatedAt,
		LastMessageAt:      conv.LastMessageAt,
		Participants:       make([]domain.ParticipantView, 0, len(participants)),
		UnreadCount:        unread,
	}
	for _, p := range participants {
		v.Participants = append(v.Participants, domain.ParticipantView{
			UserID:           p.UserID,
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			ProfilePhotoPath: p.ProfilePhotoPath,
			Role:             p.Role,
			IsActive:         p.IsActive,
			IsMuted:          p.IsMuted,
		})
		if !conv.IsGroup && p.UserID != viewerID {
			other := domain.User{FirstName: p.FirstName, LastName: p.LastName}
			name := other.FullName()
			v.Name = &name
			v.GroupPhotoPath = p.ProfilePhotoPath
		}
	}
	if latest != nil {
		lv := latest.View(nil)
		v.LastMessage = &lv
	}
	return v, nil
}

func (s *ConversationService) requireUser(ctx context.Context, id uuid.UUID) error {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return ErrUserNotFound
	}
	return nil
}

func (s *ConversationService) requireConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) requireActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error) {
	p, err := s.participantRepo.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading participant: %w", err)
	}
	if p == nil || !p.IsActive {
		return nil, ErrNotParticipant
	}
	return p, nil
}

func (s *ConversationService) requireGroupAdmin(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.requireConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	p, err := s.participantRepo.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading participant: %w", err)
	}
	if p == nil || !p.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return conv, nil
}
