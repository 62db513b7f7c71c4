package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/n0P7xJ/MyReactNative/internal/domain"
)

type ReadStatusRepo struct {
	pool *pgxpool.Pool
}

func NewReadStatusRepo(pool *pgxpool.Pool) *ReadStatusRepo {
	return &ReadStatusRepo{pool: pool}
}

func (r *ReadStatusRepo) Insert(ctx context.Context, status *domain.ReadStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_read_statuses (message_id, user_id, read_at, is_delivered)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		status.MessageID, status.UserID, status.ReadAt, status.IsDelivered,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReadStatusRepo) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_read_statuses (message_id, user_id, read_at, is_delivered)
		SELECT m.id, $2, $3, TRUE
		FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, userID, at,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *ReadStatusRepo) ListByMessages(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.ReadStatus, error) {
	out := make(map[uuid.UUID][]domain.ReadStatus)
	if len(messageIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(ctx, `
		SELECT message_id, user_id, read_at, is_delivered
		FROM message_read_statuses
		WHERE message_id = ANY($1::uuid[])
		ORDER BY read_at`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.ReadStatus
		if err := rows.Scan(&st.MessageID, &st.UserID, &st.ReadAt, &st.IsDelivered); err != nil {
			return nil, err
		}
		out[st.MessageID] = append(out[st.MessageID], st)
	}
	return out, rows.Err()
}

func (r *ReadStatusRepo) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
			AND NOT EXISTS (
				SELECT 1 FROM message_read_statuses s
				WHERE s.message_id = m.id AND s.user_id = $2
			)`,
		conversationID, userID,
	).Scan(&n)
	return n, err
}
