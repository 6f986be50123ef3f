package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// ReplyInput is a new message on a ticket thread.
type ReplyInput struct {
	Content     string
	Attachments []AttachmentInput
}

// ForwardInput hands a ticket to another operator.
type ForwardInput struct {
	NewAssigneeID string
	AuxiliaryIDs  []string
	ScheduledAt   *time.Time
	Comment       string
}

// Reply appends a message. Outside the approval family a reply from the
// requester puts the ticket back in progress and any other reply waits on the
// requester.
func (s *TicketService) Reply(ctx context.Context, actorID, clientID, ticketID string, input ReplyInput) (*domain.TicketMessage, *domain.Ticket, error) {
	content := s.sanitize(input.Content)
	if content == "" {
		return nil, nil, errorutil.NewValidationError("content is required", nil)
	}
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, nil, err
	}
	t := ts.ticket
	if !ts.scope.CanAccessTicket(t) {
		return nil, nil, errorutil.NewForbidden("you do not have access to this ticket")
	}
	if t.Status.Terminal() {
		return nil, nil, errorutil.NewInvalidState("ticket is already closed")
	}

	old := t.Status
	if !t.Status.AwaitingApproval() && t.Status != domain.TicketStatusRejected {
		next := domain.TicketStatusAwaitingUserFeedback
		if t.CreatedBy == actorID {
			next = domain.TicketStatusInProgress
		}
		t.TransitionTo(next, domain.WorkflowStepNone, s.now())
	}

	recipients, err := s.assigneeSet(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	recipients = append(recipients, t.CreatedBy)

	ob := &outbox{}
	msg := domain.TicketMessage{TicketID: t.ID, AuthorID: actorID, Content: content}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := s.writeMessage(ctx, tx, &msg, input.Attachments); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(events.Event{
			Type:     events.EventTicketMessageAdded,
			ClientID: t.ClientID,
			TicketID: t.ID,
			ActorID:  actorID,
			Payload:  events.TicketMessageAddedPayload{MessageID: msg.ID, BodyPreview: preview(content)},
		})
		if old != t.Status {
			ob.add(statusChanged(t, actorID, old, ""))
		}
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationNewReply,
			recipients: recipients,
			messageID:  &msg.ID,
		}, ob)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	ob.flush(ctx, s.dispatcher)
	return &msg, t, nil
}

// Claim takes a queued ticket for the acting operator.
func (s *TicketService) Claim(ctx context.Context, actorID, clientID, ticketID string) (*domain.Ticket, error) {
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if !ts.scope.User.CanReceiveTickets {
		return nil, errorutil.NewForbidden("your profile cannot receive tickets")
	}
	if !ts.scope.InQueueScope(t) {
		return nil, errorutil.NewForbidden("ticket is not in your queue")
	}
	if !t.Status.AwaitingAttendance() {
		return nil, errorutil.NewInvalidState("ticket is not awaiting attendance")
	}

	old := t.Status
	t.Assignee = domain.UserAssignee(actorID)
	t.TransitionTo(domain.TicketStatusInAttendance, domain.WorkflowStepNone, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(events.Event{
			Type:     events.EventTicketAssigned,
			ClientID: t.ClientID,
			TicketID: t.ID,
			ActorID:  actorID,
			Payload:  events.TicketAssignedPayload{Assignee: t.Assignee.String(), AuxiliaryIDs: t.AuxiliaryIDs},
		})
		ob.add(statusChanged(t, actorID, old, ""))
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketClaimed,
			recipients: []string{t.CreatedBy},
		}, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)
	return t, nil
}

// Forward hands the ticket to another operator, optionally with auxiliary
// operators and a scheduled appointment.
func (s *TicketService) Forward(ctx context.Context, actorID, clientID, ticketID string, input ForwardInput) (*domain.Ticket, error) {
	newID := strings.TrimSpace(input.NewAssigneeID)
	if newID == "" {
		return nil, errorutil.NewValidationError("novoResponsavelUserId is required", nil)
	}
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if !ts.scope.User.CanForwardTickets && !ts.scope.IsAdmin() {
		return nil, errorutil.NewForbidden("your profile cannot forward tickets")
	}
	if !ts.scope.CanAccessTicket(t) {
		return nil, errorutil.NewForbidden("you do not have access to this ticket")
	}
	if !t.Status.InProgressFamily() {
		return nil, errorutil.NewInvalidState("ticket cannot be forwarded in its current status")
	}

	target, err := s.access.ResolveTarget(ctx, domain.UserAssignee(newID))
	if errorutil.IsCode(err, "NOT_FOUND") {
		return nil, errorutil.NewValidationError("the selected user does not exist", map[string]any{"user_id": newID})
	}
	if err != nil {
		return nil, err
	}
	if !target.User.Active || !target.User.CanReceiveTickets {
		return nil, errorutil.NewValidationError("the selected user cannot receive tickets", nil)
	}
	if !contains(target.ClientIDs, clientID) {
		return nil, errorutil.NewValidationError("the selected user has no access to this client", nil)
	}

	auxiliaries := dedupe(input.AuxiliaryIDs, newID)
	if len(auxiliaries) > 0 {
		found, err := s.users.ListByIDs(ctx, auxiliaries)
		if err != nil {
			return nil, err
		}
		if len(found) != len(auxiliaries) {
			return nil, errorutil.NewValidationError("unknown auxiliary operator", nil)
		}
	}
	comment := s.sanitize(input.Comment)

	old := t.Status
	t.Assignee = domain.UserAssignee(newID)
	t.AreaGroupID = target.User.PrimaryGroupID
	t.AreaSectorID = target.User.PrimarySectorID
	t.AuxiliaryIDs = auxiliaries
	next := domain.TicketStatusForwardedToOperator
	t.ScheduledAt = nil
	if input.ScheduledAt != nil {
		next = domain.TicketStatusScheduledWithUser
		at := input.ScheduledAt.UTC()
		t.ScheduledAt = &at
	}
	t.TransitionTo(next, domain.WorkflowStepNone, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		if err := tx.Tickets().ReplaceAuxiliaries(ctx, t.ID, auxiliaries); err != nil {
			return err
		}
		var messageID *string
		if comment != "" {
			msg := domain.TicketMessage{TicketID: t.ID, AuthorID: actorID, Content: comment}
			if err := tx.Messages().Create(ctx, &msg); err != nil {
				return err
			}
			messageID = &msg.ID
		}
		ob.add(events.Event{
			Type:     events.EventTicketAssigned,
			ClientID: t.ClientID,
			TicketID: t.ID,
			ActorID:  actorID,
			Payload:  events.TicketAssignedPayload{Assignee: t.Assignee.String(), AuxiliaryIDs: auxiliaries},
		})
		ob.add(statusChanged(t, actorID, old, comment))
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketForwarded,
			recipients: append([]string{newID}, auxiliaries...),
			messageID:  messageID,
		}, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)

	s.logger.Info("ticket forwarded",
		zap.String("ticket_id", t.ID),
		zap.String("assignee", newID),
		zap.Int("auxiliaries", len(auxiliaries)),
	)
	return t, nil
}

// Finalize concludes or closes a ticket that is being worked on.
func (s *TicketService) Finalize(ctx context.Context, actorID, clientID, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Terminal() {
		return nil, errorutil.NewValidationError("status must be concluido or closed", map[string]any{"status": status})
	}
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if !ts.scope.CanAccessTicket(t) {
		return nil, errorutil.NewForbidden("you do not have access to this ticket")
	}
	if !t.Status.InProgressFamily() {
		return nil, errorutil.NewInvalidState("ticket cannot be finalized from status " + string(t.Status))
	}

	recipients, err := s.assigneeSet(ctx, t)
	if err != nil {
		return nil, err
	}
	recipients = append([]string{t.CreatedBy}, recipients...)

	old := t.Status
	t.TransitionTo(status, domain.WorkflowStepNone, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(statusChanged(t, actorID, old, ""))
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketConcluded,
			recipients: recipients,
		}, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)
	return t, nil
}

// MarkRead clears the actor's unread notifications of one ticket.
func (s *TicketService) MarkRead(ctx context.Context, actorID, clientID, ticketID string) (int64, error) {
	if clientID == "" {
		return 0, errorutil.NewValidationError("clientId is required", nil)
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if _, err := store.Tickets().GetByID(ctx, ticketID); err != nil {
		return 0, notFound(err, "ticket")
	}
	return store.Notifications().MarkTicketRead(ctx, actorID, ticketID)
}

// Unread lists the actor's unread notifications for a client.
func (s *TicketService) Unread(ctx context.Context, actorID, clientID string, limit int) ([]domain.Notification, int, error) {
	if clientID == "" {
		return nil, 0, errorutil.NewValidationError("clientId is required", nil)
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if err != nil {
		return nil, 0, err
	}
	items, err := store.Notifications().ListUnread(ctx, actorID, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := store.Notifications().CountUnread(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// dedupe keeps the first occurrence of each non-empty id, skipping exclude.
func dedupe(ids []string, exclude string) []string {
	seen := map[string]bool{exclude: true, "": true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
