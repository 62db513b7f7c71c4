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

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.content, m.message_type,
	m.file_path, m.file_name, m.file_size, m.reply_to_message_id, m.state,
	m.created_at, m.edited_at, u.first_name, u.last_name, u.profile_photo_path`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, message_type,
				file_path, file_name, file_size, reply_to_message_id, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type,
			msg.FilePath, msg.FileName, msg.FileSize, msg.ReplyToMessageID, string(msg.State), msg.CreatedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE conversations
			 SET last_message_at = GREATEST(COALESCE(last_message_at, $1), $1)
			 WHERE id = $2`,
			msg.CreatedAt, msg.ConversationID,
		)
		return err
	})
	return mapErr(err)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	var msg domain.Message
	err := scanMessage(r.pool.QueryRow(ctx, query, id), &msg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &msg, err
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1 AND m.state <> 'deleted'
		ORDER BY m.created_at DESC, m.id DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) Latest(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error) {
	msgs, err := r.ListByConversation(ctx, conversationID, 0, 1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

func (r *MessageRepo) Edit(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET content = $1, state = 'edited', edited_at = $2
		WHERE id = $3 AND state <> 'deleted'`,
		content, editedAt, id,
	)
	return err
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET content = NULL, state = 'deleted' WHERE id = $1`, id)
	return err
}

func scanMessage(row pgx.Row, m *domain.Message) error {
	var state string
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type,
		&m.FilePath, &m.FileName, &m.FileSize, &m.ReplyToMessageID, &state,
		&m.CreatedAt, &m.EditedAt, &m.SenderFirstName, &m.SenderLastName, &m.SenderPhoto,
	)
	m.State = domain.MessageState(state)
	return err
}
