package repository

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_id, content)
        VALUES ($1::uuid,$2,$3)
        RETURNING id::text, created_at`
	return r.db.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id::text, ticket_id::text, author_id, content, created_at
        FROM ticket_messages WHERE ticket_id=$1::uuid ORDER BY created_at ASC, id`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
