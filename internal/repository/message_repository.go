package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// MessageRepository encapsulates message persistence. Messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
	LatestByThread(ctx context.Context, threadID string) (*domain.Message, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, thread_id, direction, sender_email, sender_name, subject,
        body_text, body_html, received_at, created_at, fingerprint`

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	const query = `
        INSERT INTO messages (thread_id, direction, sender_email, sender_name, subject, body_text, body_html, received_at, fingerprint)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		message.ThreadID,
		message.Direction,
		message.SenderEmail,
		message.SenderName,
		message.Subject,
		message.BodyText,
		message.BodyHTML,
		message.ReceivedAt,
		message.Fingerprint,
	).Scan(&message.ID, &message.CreatedAt)
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE thread_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.ThreadID, &m.Direction, &m.SenderEmail, &m.SenderName,
			&m.Subject, &m.BodyText, &m.BodyHTML, &m.ReceivedAt, &m.CreatedAt, &m.Fingerprint,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepository) LatestByThread(ctx context.Context, threadID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE thread_id=$1 ORDER BY created_at DESC LIMIT 1`
	var m domain.Message
	if err := r.pool.QueryRow(ctx, query, threadID).Scan(
		&m.ID, &m.ThreadID, &m.Direction, &m.SenderEmail, &m.SenderName,
		&m.Subject, &m.BodyText, &m.BodyHTML, &m.ReceivedAt, &m.CreatedAt, &m.Fingerprint,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE fingerprint=$1 LIMIT 1`
	var m domain.Message
	if err := r.pool.QueryRow(ctx, query, fingerprint).Scan(
		&m.ID, &m.ThreadID, &m.Direction, &m.SenderEmail, &m.SenderName,
		&m.Subject, &m.BodyText, &m.BodyHTML, &m.ReceivedAt, &m.CreatedAt, &m.Fingerprint,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
