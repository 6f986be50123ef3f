package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
)

// TicketFilter narrows ticket listings inside one tenant database.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	AreaGroupIDs  []string
	AreaSectorIDs []string
	CreatedBy     *string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and row-locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ReplaceAuxiliaries(ctx context.Context, ticketID string, userIDs []string) error
	CountByArea(ctx context.Context, statuses []domain.TicketStatus) ([]domain.AreaCount, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `
        t.id::text, t.protocol, t.client_id, t.subject, t.status,
        t.assignee_type, t.assignee_user_id, t.assignee_group_id, t.assignee_sector_id,
        t.area_group_id, t.area_sector_id,
        COALESCE((SELECT array_agg(a.user_id ORDER BY a.user_id) FROM ticket_auxiliary_assignees a WHERE a.ticket_id = t.id), '{}'),
        t.created_by, t.request_type_id::text, t.amount::float8, t.priority, t.sla_hours, t.scheduled_at,
        COALESCE(t.workflow_step, ''), t.created_at, t.updated_at, t.closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	userID, groupID, sectorID := ticket.Assignee.Columns()
	const query = `
        INSERT INTO tickets (protocol, client_id, subject, status, assignee_type, assignee_user_id, assignee_group_id,
            assignee_sector_id, area_group_id, area_sector_id, created_by, request_type_id, amount, priority, sla_hours,
            scheduled_at, workflow_step)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::uuid,$13,$14,$15,$16,NULLIF($17,''))
        RETURNING id::text, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Protocol,
		ticket.ClientID,
		ticket.Subject,
		ticket.Status,
		ticket.Assignee.Type(),
		userID,
		groupID,
		sectorID,
		ticket.AreaGroupID,
		ticket.AreaSectorID,
		ticket.CreatedBy,
		ticket.RequestTypeID,
		ticket.Amount,
		ticket.Priority,
		ticket.SLAHours,
		ticket.ScheduledAt,
		string(ticket.WorkflowStep),
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	userID, groupID, sectorID := ticket.Assignee.Columns()
	const query = `
        UPDATE tickets SET subject=$1, status=$2, assignee_type=$3, assignee_user_id=$4, assignee_group_id=$5,
            assignee_sector_id=$6, area_group_id=$7, area_sector_id=$8, amount=$9, priority=$10, sla_hours=$11,
            scheduled_at=$12, workflow_step=NULLIF($13,''), closed_at=$14, updated_at=NOW()
        WHERE id=$15::uuid
        RETURNING updated_at`
	if err := checkID(ticket.ID); err != nil {
		return err
	}
	err := r.db.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Status,
		ticket.Assignee.Type(),
		userID,
		groupID,
		sectorID,
		ticket.AreaGroupID,
		ticket.AreaSectorID,
		ticket.Amount,
		ticket.Priority,
		ticket.SLAHours,
		ticket.ScheduledAt,
		string(ticket.WorkflowStep),
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1::uuid`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1::uuid FOR UPDATE OF t`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("t.status = ANY($%d)", len(args)))
	}
	if len(filter.AreaGroupIDs) > 0 || len(filter.AreaSectorIDs) > 0 {
		args = append(args, filter.AreaGroupIDs, filter.AreaSectorIDs)
		clauses = append(clauses, fmt.Sprintf("(t.area_group_id = ANY($%d) OR t.area_sector_id = ANY($%d))", len(args)-1, len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s ORDER BY t.updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ReplaceAuxiliaries(ctx context.Context, ticketID string, userIDs []string) error {
	if err := checkID(ticketID); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM ticket_auxiliary_assignees WHERE ticket_id=$1::uuid`, ticketID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO ticket_auxiliary_assignees (ticket_id, user_id)
        SELECT $1::uuid, u FROM unnest($2::text[]) AS u
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, ticketID, userIDs)
	return err
}

func (r *ticketRepository) CountByArea(ctx context.Context, statuses []domain.TicketStatus) ([]domain.AreaCount, error) {
	query := `SELECT area_group_id, area_sector_id, status, COUNT(*) FROM tickets`
	args := []any{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, statusStrings(statuses))
	}
	query += ` GROUP BY area_group_id, area_sector_id, status`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AreaCount
	for rows.Next() {
		var c domain.AreaCount
		if err := rows.Scan(&c.GroupID, &c.SectorID, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t                         domain.Ticket
		assigneeType              domain.AssigneeType
		userID, groupID, sectorID *string
		workflowStep              string
		scheduledAt, closedAt     *time.Time
	)
	if err := row.Scan(
		&t.ID,
		&t.Protocol,
		&t.ClientID,
		&t.Subject,
		&t.Status,
		&assigneeType,
		&userID,
		&groupID,
		&sectorID,
		&t.AreaGroupID,
		&t.AreaSectorID,
		&t.AuxiliaryIDs,
		&t.CreatedBy,
		&t.RequestTypeID,
		&t.Amount,
		&t.Priority,
		&t.SLAHours,
		&scheduledAt,
		&workflowStep,
		&t.CreatedAt,
		&t.UpdatedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}
	assignee, err := domain.AssigneeFromColumns(assigneeType, userID, groupID, sectorID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	t.Assignee = assignee
	t.WorkflowStep = domain.WorkflowStep(workflowStep)
	t.ScheduledAt = scheduledAt
	t.ClosedAt = closedAt
	return &t, nil
}
