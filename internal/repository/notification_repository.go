package repository

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
)

// NotificationRepository persists per-recipient inbox rows.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []domain.Notification) error
	ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkTicketRead(ctx context.Context, recipientID, ticketID string) (int64, error)
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateBatch writes every row with a single statement.
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	recipients := make([]string, len(notifications))
	tickets := make([]string, len(notifications))
	messages := make([]*string, len(notifications))
	types := make([]string, len(notifications))
	for i, n := range notifications {
		recipients[i] = n.RecipientID
		tickets[i] = n.TicketID
		messages[i] = n.MessageID
		types[i] = string(n.Type)
	}
	const query = `
        INSERT INTO notifications (recipient_id, ticket_id, message_id, type)
        SELECT * FROM unnest($1::text[], $2::uuid[], $3::uuid[], $4::text[])`
	_, err := r.db.Exec(ctx, query, recipients, tickets, messages, types)
	return err
}

func (r *notificationRepository) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id::text, recipient_id, ticket_id::text, message_id::text, type, read_at, created_at
        FROM notifications WHERE recipient_id=$1 AND read_at IS NULL
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.TicketID,
			&n.MessageID,
			&n.Type,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND read_at IS NULL`, recipientID).Scan(&n)
	return n, err
}

// MarkTicketRead stamps every unread row of the recipient for the ticket.
func (r *notificationRepository) MarkTicketRead(ctx context.Context, recipientID, ticketID string) (int64, error) {
	const query = `
        UPDATE notifications SET read_at=NOW()
        WHERE recipient_id=$1 AND ticket_id=$2::uuid AND read_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, recipientID, ticketID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
