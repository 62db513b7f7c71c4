package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) Add(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at, left_at, is_active, is_muted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		p.ConversationID, p.UserID, p.Role, p.JoinedAt, p.LeftAt, p.IsActive, p.IsMuted,
	)
	return mapErr(err)
}

func (r *ParticipantRepo) Get(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT p.conversation_id, p.user_id, p.role, p.joined_at, p.left_at, p.is_active, p.is_muted,
			u.first_name, u.last_name, u.profile_photo_path
		FROM conversation_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.conversation_id = $1 AND p.user_id = $2`
	var p domain.Participant
	err := scanParticipant(r.pool.QueryRow(ctx, query, conversationID, userID), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *ParticipantRepo) Reactivate(ctx context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET is_active = TRUE, joined_at = $1, left_at = NULL
		WHERE conversation_id = $2 AND user_id = $3`,
		joinedAt, conversationID, userID,
	)
	return err
}

func (r *ParticipantRepo) Deactivate(ctx context.Context, conversationID, userID uuid.UUID, leftAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET is_active = FALSE, left_at = $1
		WHERE conversation_id = $2 AND user_id = $3`,
		leftAt, conversationID, userID,
	)
	return err
}

func (r *ParticipantRepo) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_participants SET is_muted = $1 WHERE conversation_id = $2 AND user_id = $3`,
		muted, conversationID, userID,
	)
	return err
}

func (r *ParticipantRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Participant, error) {
	query := `
		SELECT p.conversation_id, p.user_id, p.role, p.joined_at, p.left_at, p.is_active, p.is_muted,
			u.first_name, u.last_name, u.profile_photo_path
		FROM conversation_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := scanParticipant(rows, &p); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *ParticipantRepo) CountActive(ctx context.Context, conversationID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = $1 AND is_active`,
		conversationID,
	).Scan(&n)
	return n, err
}

func scanParticipant(row pgx.Row, p *domain.Participant) error {
	return row.Scan(
		&p.ConversationID, &p.UserID, &p.Role, &p.JoinedAt, &p.LeftAt, &p.IsActive, &p.IsMuted,
		&p.FirstName, &p.LastName, &p.ProfilePhotoPath,
	)
}
