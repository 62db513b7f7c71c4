package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

const conversationColumns = `c.id, c.name, c.is_group, c.group_photo_path, c.created_by_id,
	c.created_at, c.last_message_at, c.invite_token, c.is_invite_link_active`

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Create returns repository.ErrDuplicate when a private conversation for the
// same pair already exists.
func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	var pair *string
	if key, ok := domain.PrivatePairOf(conv, participants); ok {
		pair = &key
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, name, is_group, group_photo_path, created_by_id,
				created_at, last_message_at, invite_token, is_invite_link_active, private_pair)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			conv.ID, conv.Name, conv.IsGroup, conv.GroupPhotoPath, conv.CreatedByID,
			conv.CreatedAt, conv.LastMessageAt, conv.InviteToken, conv.IsInviteLinkActive, pair,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, p := range participants {
			batch.Queue(`
				INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at, is_active, is_muted)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				conv.ID, p.UserID, p.Role, p.JoinedAt, p.IsActive, p.IsMuted,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return mapErr(err)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.scanOne(ctx, "SELECT "+conversationColumns+" FROM conversations c WHERE c.id = $1", id)
}

func (r *ConversationRepo) GetByInviteToken(ctx context.Context, token string) (*domain.Conversation, error) {
	return r.scanOne(ctx, "SELECT "+conversationColumns+" FROM conversations c WHERE c.invite_token = $1", token)
}

func (r *ConversationRepo) FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	return r.scanOne(ctx, "SELECT "+conversationColumns+" FROM conversations c WHERE c.private_pair = $1",
		domain.PrivatePair(userA, userB))
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.is_active
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := scanConversation(rows, &conv); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) UpdateInvite(ctx context.Context, id uuid.UUID, token *string, active bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET invite_token = $1, is_invite_link_active = $2 WHERE id = $3`,
		token, active, id,
	)
	return mapErr(err)
}

func (r *ConversationRepo) UpdateGroup(ctx context.Context, id uuid.UUID, name, photoPath *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET name = COALESCE($1, name), group_photo_path = COALESCE($2, group_photo_path)
		WHERE id = $3`,
		name, photoPath, id,
	)
	return err
}

func (r *ConversationRepo) scanOne(ctx context.Context, query string, arg any) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := scanConversation(r.pool.QueryRow(ctx, query, arg), &conv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func scanConversation(row pgx.Row, c *domain.Conversation) error {
	return row.Scan(
		&c.ID, &c.Name, &c.IsGroup, &c.GroupPhotoPath, &c.CreatedByID,
		&c.CreatedAt, &c.LastMessageAt, &c.InviteToken, &c.IsInviteLinkActive,
	)
}
