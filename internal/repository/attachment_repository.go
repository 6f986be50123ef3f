package repository

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (message_id, filename, mime_type, size_bytes, storage_path)
        VALUES ($1::uuid,$2,$3,$4,$5)
        RETURNING id::text, created_at`
	return r.db.QueryRow(ctx, query,
		attachment.MessageID,
		attachment.Filename,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.StoragePath,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

// ListByTicket returns the attachments of every message in the thread.
func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT a.id::text, a.message_id::text, a.filename, a.mime_type, a.size_bytes, a.storage_path, a.created_at
        FROM attachments a JOIN ticket_messages m ON m.id = a.message_id
        WHERE m.ticket_id=$1::uuid ORDER BY a.created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.MessageID,
			&attachment.Filename,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.StoragePath,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
