package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// UnmatchedEmailRepository encapsulates the unmatched bucket.
type UnmatchedEmailRepository interface {
	Create(ctx context.Context, email *domain.UnmatchedEmail) error
	GetByID(ctx context.Context, id string) (*domain.UnmatchedEmail, error)
	UpdateStatus(ctx context.Context, id string, status domain.UnmatchedEmailStatus) error
	ListPending(ctx context.Context, limit, offset int) ([]domain.UnmatchedEmail, error)
}

type unmatchedEmailRepository struct {
	pool *pgxpool.Pool
}

// NewUnmatchedEmailRepository instantiates repository.
func NewUnmatchedEmailRepository(pool *pgxpool.Pool) UnmatchedEmailRepository {
	return &unmatchedEmailRepository{pool: pool}
}

func (r *unmatchedEmailRepository) Create(ctx context.Context, email *domain.UnmatchedEmail) error {
	candidates, err := json.Marshal(email.Candidates)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO unmatched_emails (sender_email, sender_name, subject, body_text, status, candidates, received_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		email.SenderEmail,
		email.SenderName,
		email.Subject,
		email.BodyText,
		email.Status,
		candidates,
		email.ReceivedAt,
	).Scan(&email.ID, &email.CreatedAt, &email.UpdatedAt)
}

func (r *unmatchedEmailRepository) GetByID(ctx context.Context, id string) (*domain.UnmatchedEmail, error) {
	const query = `
        SELECT id, sender_email, sender_name, subject, body_text, status, candidates,
               received_at, created_at, updated_at
        FROM unmatched_emails WHERE id=$1`
	var email domain.UnmatchedEmail
	var candidates []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&email.ID, &email.SenderEmail, &email.SenderName, &email.Subject, &email.BodyText,
		&email.Status, &candidates, &email.ReceivedAt, &email.CreatedAt, &email.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &email.Candidates); err != nil {
			return nil, err
		}
	}
	return &email, nil
}

func (r *unmatchedEmailRepository) UpdateStatus(ctx context.Context, id string, status domain.UnmatchedEmailStatus) error {
	const query = `UPDATE unmatched_emails SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *unmatchedEmailRepository) ListPending(ctx context.Context, limit, offset int) ([]domain.UnmatchedEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, sender_email, sender_name, subject, body_text, status, candidates,
               received_at, created_at, updated_at
        FROM unmatched_emails
        WHERE status=$1
        ORDER BY received_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, domain.UnmatchedEmailStatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []domain.UnmatchedEmail{}
	for rows.Next() {
		var email domain.UnmatchedEmail
		var candidates []byte
		if err := rows.Scan(
			&email.ID, &email.SenderEmail, &email.SenderName, &email.Subject, &email.BodyText,
			&email.Status, &candidates, &email.ReceivedAt, &email.CreatedAt, &email.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			if err := json.Unmarshal(candidates, &email.Candidates); err != nil {
				return nil, err
			}
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
