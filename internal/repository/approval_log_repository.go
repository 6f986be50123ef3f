package repository

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
)

// ApprovalLogRepository stores the append-only decision trail of a ticket.
type ApprovalLogRepository interface {
	Append(ctx context.Context, entry *domain.ApprovalLogEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalLogEntry, error)
	HasApproved(ctx context.Context, ticketID, actorID string, step domain.WorkflowStep) (bool, error)
	CountApprovers(ctx context.Context, ticketID string, step domain.WorkflowStep) (int, error)
}

type approvalLogRepository struct {
	db DBTX
}

// NewApprovalLogRepository builds repository.
func NewApprovalLogRepository(db DBTX) ApprovalLogRepository {
	return &approvalLogRepository{db: db}
}

func (r *approvalLogRepository) Append(ctx context.Context, entry *domain.ApprovalLogEntry) error {
	const query = `
        INSERT INTO approval_log (ticket_id, actor_id, decision, step, comment)
        VALUES ($1::uuid,$2,$3,NULLIF($4,''),$5)
        RETURNING id::text, created_at`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Decision,
		string(entry.Step),
		entry.Comment,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *approvalLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalLogEntry, error) {
	const query = `
        SELECT id::text, ticket_id::text, actor_id, decision, COALESCE(step, ''), comment, created_at
        FROM approval_log WHERE ticket_id=$1::uuid ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalLogEntry
	for rows.Next() {
		var (
			entry domain.ApprovalLogEntry
			step  string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Decision,
			&step,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Step = domain.WorkflowStep(step)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *approvalLogRepository) HasApproved(ctx context.Context, ticketID, actorID string, step domain.WorkflowStep) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM approval_log
            WHERE ticket_id=$1::uuid AND actor_id=$2 AND decision='approved' AND COALESCE(step, '')=$3
        )`
	var exists bool
	err := r.db.QueryRow(ctx, query, ticketID, actorID, string(step)).Scan(&exists)
	return exists, err
}

// CountApprovers counts distinct actors that approved the ticket at the step.
func (r *approvalLogRepository) CountApprovers(ctx context.Context, ticketID string, step domain.WorkflowStep) (int, error) {
	const query = `
        SELECT COUNT(DISTINCT actor_id) FROM approval_log
        WHERE ticket_id=$1::uuid AND decision='approved' AND COALESCE(step, '')=$2`
	var n int
	err := r.db.QueryRow(ctx, query, ticketID, string(step)).Scan(&n)
	return n, err
}
