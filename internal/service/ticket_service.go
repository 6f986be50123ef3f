package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/escalation"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// listScanLimit bounds how many rows a listing reads before visibility filtering.
const listScanLimit = 1000

// TicketService coordinates ticket workflows.
type TicketService struct {
	stores     tenancy.StoreResolver
	access     *access.Loader
	users      repository.UserRepository
	org        repository.OrgRepository
	rules      *escalation.Rules
	dispatcher events.Dispatcher
	sanitizer  *bluemonday.Policy
	plain      *bluemonday.Policy
	protocol   func() string
	now        func() time.Time
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Stores     tenancy.StoreResolver
	Access     *access.Loader
	Users      repository.UserRepository
	Org        repository.OrgRepository
	Rules      *escalation.Rules
	Dispatcher events.Dispatcher
	Sanitizer  *bluemonday.Policy
	Protocol   func() string
	Clock      func() time.Time
	Logger     *zap.Logger
}

// AttachmentInput is metadata of a file already stored elsewhere.
type AttachmentInput struct {
	Filename    string
	MimeType    string
	SizeBytes   int64
	StoragePath string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ClientID      string
	Subject       string
	Content       string
	AssigneeType  domain.AssigneeType
	AssigneeID    string
	RequestTypeID *string
	Amount        *float64
	Priority      domain.TicketPriority
	SLAHours      *int
	Attachments   []AttachmentInput
}

// TicketDetail is a ticket with its thread and approval trail.
type TicketDetail struct {
	Ticket    *domain.Ticket
	Messages  []domain.TicketMessage
	Approvals []domain.ApprovalLogEntry
}

// TicketSummary counts the tickets visible to an actor.
type TicketSummary struct {
	Total       int
	SLABreached int
	ByStatus    map[domain.TicketStatus]int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		stores:     deps.Stores,
		access:     deps.Access,
		users:      deps.Users,
		org:        deps.Org,
		rules:      deps.Rules,
		dispatcher: deps.Dispatcher,
		sanitizer:  deps.Sanitizer,
		plain:      bluemonday.StrictPolicy(),
		protocol:   deps.Protocol,
		now:        deps.Clock,
		logger:     deps.Logger,
	}
	if s.rules == nil {
		s.rules = escalation.Default()
	}
	if s.sanitizer == nil {
		s.sanitizer = bluemonday.UGCPolicy()
	}
	if s.protocol == nil {
		s.protocol = NewProtocol
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ticketScope is what every ticket operation loads first.
type ticketScope struct {
	store  tenancy.Store
	scope  *access.Scope
	ticket *domain.Ticket
}

func (s *TicketService) load(ctx context.Context, actorID, clientID, ticketID string) (*ticketScope, error) {
	if clientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	scope, err := s.access.Load(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if err != nil {
		return nil, err
	}
	ticket, err := store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticketScope{store: store, scope: scope, ticket: ticket}, nil
}

func (s *TicketService) sanitize(content string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(content))
}

// CreateTicket opens a ticket against a user, group or sector of the client.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input TicketCreateInput) (*TicketDetail, error) {
	if input.ClientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	content := s.sanitize(input.Content)
	if content == "" {
		return nil, errorutil.NewValidationError("content is required", nil)
	}
	assignee, err := domain.NewAssignee(input.AssigneeType, input.AssigneeID)
	if err != nil {
		return nil, errorutil.NewValidationError(err.Error(), nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	if input.Amount != nil && *input.Amount < 0 {
		return nil, errorutil.NewValidationError("amount must not be negative", nil)
	}
	if input.SLAHours != nil && *input.SLAHours <= 0 {
		return nil, errorutil.NewValidationError("slaHours must be positive", nil)
	}
	subject := strings.TrimSpace(s.plain.Sanitize(input.Subject))
	if subject == "" {
		subject = preview(s.plain.Sanitize(content))
	}

	scope, err := s.access.Load(ctx, actorID, input.ClientID)
	if err != nil {
		return nil, err
	}
	target, err := s.access.ResolveTarget(ctx, assignee)
	if err != nil {
		return nil, err
	}
	if err := scope.CanCreateTicketFor(input.ClientID, target); err != nil {
		return nil, err
	}

	store, err := s.stores.StoreFor(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if input.RequestTypeID != nil {
		rt, err := store.RequestTypes().GetByID(ctx, *input.RequestTypeID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewValidationError("unknown request type", map[string]any{"request_type_id": *input.RequestTypeID})
		}
		if err != nil {
			return nil, err
		}
		if !rt.Active {
			return nil, errorutil.NewValidationError("request type is inactive", nil)
		}
		if s.rules.Applies(rt.Code) && input.Amount == nil {
			return nil, errorutil.NewValidationError("amount is required for this request type", nil)
		}
	}

	ticket := &domain.Ticket{
		Protocol:      s.protocol(),
		ClientID:      input.ClientID,
		Subject:       subject,
		Status:        domain.TicketStatusOpen,
		Assignee:      assignee,
		AreaGroupID:   target.Area.GroupID,
		AreaSectorID:  target.Area.SectorID,
		CreatedBy:     actorID,
		RequestTypeID: input.RequestTypeID,
		Amount:        input.Amount,
		Priority:      priority,
		SLAHours:      input.SLAHours,
	}

	n := notice{kind: domain.NotificationTicketCreated}
	if cfg := scope.ConfigFor(assignee, input.RequestTypeID); cfg != nil && cfg.RequiresApproval {
		ticket.Status = domain.TicketStatusPendingApproval
		n = notice{kind: domain.NotificationApprovalRequested, recipients: cfg.ApproverIDs()}
	} else {
		if n.recipients, err = s.destinationMembers(ctx, input.ClientID, assignee); err != nil {
			return nil, err
		}
	}

	ob := &outbox{}
	var msg domain.TicketMessage
	err = store.InTx(ctx, func(tx tenancy.Store) error {
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		msg = domain.TicketMessage{TicketID: ticket.ID, AuthorID: actorID, Content: content}
		if err := s.writeMessage(ctx, tx, &msg, input.Attachments); err != nil {
			return err
		}
		ob.add(events.Event{
			Type:     events.EventTicketCreated,
			ClientID: ticket.ClientID,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.TicketCreatedPayload{
				Protocol: ticket.Protocol,
				Subject:  ticket.Subject,
				Status:   ticket.Status,
				Assignee: ticket.Assignee.String(),
			},
		})
		n.messageID = &msg.ID
		_, err := fanout(ctx, tx, ticket, actorID, n, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)

	s.logger.Info("ticket created",
		zap.String("client_id", ticket.ClientID),
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
	)
	return &TicketDetail{Ticket: ticket, Messages: []domain.TicketMessage{msg}}, nil
}

func (s *TicketService) writeMessage(ctx context.Context, tx tenancy.Store, msg *domain.TicketMessage, attachments []AttachmentInput) error {
	if err := tx.Messages().Create(ctx, msg); err != nil {
		return err
	}
	for _, in := range attachments {
		a := domain.Attachment{
			MessageID:   msg.ID,
			Filename:    in.Filename,
			MimeType:    in.MimeType,
			SizeBytes:   in.SizeBytes,
			StoragePath: in.StoragePath,
		}
		if err := tx.Attachments().Create(ctx, &a); err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, a)
	}
	return nil
}

// ListTickets returns the client's tickets the actor may see.
func (s *TicketService) ListTickets(ctx context.Context, actorID, clientID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	if clientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, errorutil.NewValidationError("invalid status", map[string]any{"status": st})
		}
	}
	scope, err := s.access.Load(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	if !scope.HasClient(clientID) && !scope.IsProprietor() {
		return nil, errorutil.NewForbidden("you do not have access to this client")
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if err != nil {
		return nil, err
	}
	tickets, err := store.Tickets().List(ctx, repository.TicketFilter{Statuses: statuses, Limit: listScanLimit})
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if scope.CanAccessTicket(&tickets[i]) {
			visible = append(visible, tickets[i])
		}
	}
	return visible, nil
}

// Summary counts visible tickets per status.
func (s *TicketService) Summary(ctx context.Context, actorID, clientID string) (*TicketSummary, error) {
	tickets, err := s.ListTickets(ctx, actorID, clientID, nil)
	if err != nil {
		return nil, err
	}
	now := s.now()
	summary := &TicketSummary{ByStatus: make(map[domain.TicketStatus]int, len(domain.AllTicketStatuses))}
	for _, st := range domain.AllTicketStatuses {
		summary.ByStatus[st] = 0
	}
	for i := range tickets {
		summary.Total++
		summary.ByStatus[tickets[i].Status]++
		if tickets[i].SLABreached(now) {
			summary.SLABreached++
		}
	}
	return summary, nil
}

// GetTicket returns a ticket with its messages and approval log.
func (s *TicketService) GetTicket(ctx context.Context, actorID, clientID, ticketID string) (*TicketDetail, error) {
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	if !ts.scope.CanAccessTicket(ts.ticket) {
		return nil, errorutil.NewForbidden("you do not have access to this ticket")
	}
	messages, err := ts.store.Messages().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	attachments, err := ts.store.Attachments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[string][]domain.Attachment, len(attachments))
	for _, a := range attachments {
		byMessage[a.MessageID] = append(byMessage[a.MessageID], a)
	}
	for i := range messages {
		messages[i].Attachments = byMessage[messages[i].ID]
	}
	approvals, err := ts.store.ApprovalLog().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: ts.ticket, Messages: messages, Approvals: approvals}, nil
}

// destinationMembers are the users behind an assignee: the user itself, or
// the receiving members of the group or sector.
func (s *TicketService) destinationMembers(ctx context.Context, clientID string, a domain.Assignee) ([]string, error) {
	var area domain.AreaRef
	id := a.ID()
	switch a.Type() {
	case domain.AssigneeUser:
		return []string{id}, nil
	case domain.AssigneeGroup:
		area.GroupID = &id
	case domain.AssigneeSector:
		area.SectorID = &id
	default:
		return nil, nil
	}
	members, err := s.users.ListAreaMembers(ctx, clientID, area)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// assigneeSet is the current assignee's members plus the auxiliary operators.
func (s *TicketService) assigneeSet(ctx context.Context, t *domain.Ticket) ([]string, error) {
	ids, err := s.destinationMembers(ctx, t.ClientID, t.Assignee)
	if err != nil {
		return nil, err
	}
	return append(ids, t.AuxiliaryIDs...), nil
}

func statusChanged(t *domain.Ticket, actorID string, old domain.TicketStatus, comment string) events.Event {
	return events.Event{
		Type:     events.EventTicketStatusChanged,
		ClientID: t.ClientID,
		TicketID: t.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:    old,
			NewStatus:    t.Status,
			WorkflowStep: t.WorkflowStep,
			Comment:      comment,
		},
	}
}
