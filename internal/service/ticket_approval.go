package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/escalation"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// proprietorQuorum is how many distinct proprietors conclude a ticket.
const proprietorQuorum = 2

// Approve records the actor's approval. In the proprietor tier the ticket
// concludes once the quorum is reached. In the standard tier a rule-bound
// request type escalates by amount before the ticket opens.
func (s *TicketService) Approve(ctx context.Context, actorID, clientID, ticketID, comment string) (*domain.Ticket, error) {
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if !t.Status.AwaitingApproval() {
		return nil, errorutil.NewInvalidState("ticket is not awaiting approval")
	}
	if !ts.scope.CanApproveTicket(t) {
		return nil, errorutil.NewForbidden("you are not an approver of this ticket")
	}
	var note *string
	if c := s.sanitize(comment); c != "" {
		note = &c
	}
	if t.Status == domain.TicketStatusAwaitingProprietors {
		return s.approveProprietor(ctx, ts, actorID, note)
	}
	return s.approveStandard(ctx, ts, actorID, note)
}

func (s *TicketService) approveProprietor(ctx context.Context, ts *ticketScope, actorID string, note *string) (*domain.Ticket, error) {
	t := ts.ticket
	proprietors, err := s.org.ListProprietors(ctx, t.ClientID)
	if err != nil {
		return nil, err
	}
	step := t.WorkflowStep
	old := t.Status

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := lockAwaiting(ctx, tx, t.ID, old, step); err != nil {
			return err
		}
		done, err := tx.ApprovalLog().HasApproved(ctx, t.ID, actorID, step)
		if err != nil {
			return err
		}
		if done {
			return errorutil.NewConflict("you already approved this ticket", nil)
		}
		entry := domain.ApprovalLogEntry{TicketID: t.ID, ActorID: actorID, Decision: domain.DecisionApproved, Step: step, Comment: note}
		if err := tx.ApprovalLog().Append(ctx, &entry); err != nil {
			return err
		}
		approvers, err := tx.ApprovalLog().CountApprovers(ctx, t.ID, step)
		if err != nil {
			return err
		}
		if approvers < proprietorQuorum {
			return nil
		}
		t.TransitionTo(domain.TicketStatusConcluded, domain.WorkflowStepNone, s.now())
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(statusChanged(t, actorID, old, deref(note)))
		_, err = fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketConcluded,
			recipients: append([]string{t.CreatedBy}, proprietors...),
		}, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)
	return t, nil
}

// lockAwaiting row-locks the ticket for the rest of the transaction and
// fails when a concurrent writer already moved it off status and step.
func lockAwaiting(ctx context.Context, tx tenancy.Store, id string, status domain.TicketStatus, step domain.WorkflowStep) error {
	current, err := tx.Tickets().GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != status || current.WorkflowStep != step {
		return errorutil.NewInvalidState("ticket is no longer awaiting this approval")
	}
	return nil
}

// escalationPlan is what a standard-tier approval moves the ticket to.
type escalationPlan struct {
	status    domain.TicketStatus
	step      domain.WorkflowStep
	assignee  *domain.Assignee
	area      domain.AreaRef
	approvers []string
}

func (s *TicketService) approveStandard(ctx context.Context, ts *ticketScope, actorID string, note *string) (*domain.Ticket, error) {
	t := ts.ticket
	plan, err := s.planApproval(ctx, ts)
	if err != nil {
		return nil, err
	}
	var members []string
	if plan.status == domain.TicketStatusOpen {
		if members, err = s.destinationMembers(ctx, t.ClientID, t.Assignee); err != nil {
			return nil, err
		}
	}

	step := t.WorkflowStep
	old := t.Status
	if plan.assignee != nil {
		t.Assignee = *plan.assignee
		t.AreaGroupID = plan.area.GroupID
		t.AreaSectorID = plan.area.SectorID
	}
	t.TransitionTo(plan.status, plan.step, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := lockAwaiting(ctx, tx, t.ID, old, step); err != nil {
			return err
		}
		entry := domain.ApprovalLogEntry{TicketID: t.ID, ActorID: actorID, Decision: domain.DecisionApproved, Step: step, Comment: note}
		if err := tx.ApprovalLog().Append(ctx, &entry); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(statusChanged(t, actorID, old, deref(note)))

		if plan.status == domain.TicketStatusOpen {
			_, err := fanout(ctx, tx, t, actorID, notice{
				kind:       domain.NotificationTicketApproved,
				recipients: append([]string{t.CreatedBy}, members...),
			}, ob)
			return err
		}
		notified, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationApprovalRequested,
			recipients: plan.approvers,
		}, ob)
		if err != nil {
			return err
		}
		if contains(notified, t.CreatedBy) {
			return nil
		}
		_, err = fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketApproved,
			recipients: []string{t.CreatedBy},
		}, ob)
		return err
	})
	if err != nil {
		return nil, err
	}
	ob.flush(ctx, s.dispatcher)

	s.logger.Info("ticket approved",
		zap.String("ticket_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.String("step", string(t.WorkflowStep)),
	)
	return t, nil
}

// planApproval decides where a standard-tier approval leads. Escalation only
// happens on the first tier of a rule-bound request type.
func (s *TicketService) planApproval(ctx context.Context, ts *ticketScope) (*escalationPlan, error) {
	t := ts.ticket
	open := &escalationPlan{status: domain.TicketStatusOpen}
	if t.WorkflowStep != domain.WorkflowStepNone || t.RequestTypeID == nil {
		return open, nil
	}
	rt, err := ts.store.RequestTypes().GetByID(ctx, *t.RequestTypeID)
	if isNoRows(err) {
		return open, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.rules.Applies(rt.Code) {
		return open, nil
	}

	switch s.rules.Decide(t.Amount) {
	case escalation.OutcomeManagement:
		sector, err := s.org.GetSectorByCode(ctx, t.ClientID, s.rules.ManagementSectorCode)
		if isNoRows(err) {
			return nil, errorutil.NewInvalidState("management sector " + s.rules.ManagementSectorCode + " is not configured for this client")
		}
		if err != nil {
			return nil, err
		}
		assignee := domain.SectorAssignee(sector.ID)
		plan := &escalationPlan{
			status:   domain.TicketStatusPendingApproval,
			step:     domain.WorkflowStepManagement,
			assignee: &assignee,
			area:     domain.AreaRef{GroupID: &sector.GroupID, SectorID: &sector.ID},
		}
		if cfg := ts.scope.ConfigFor(assignee, t.RequestTypeID); cfg != nil && len(cfg.Approvers) > 0 {
			plan.approvers = cfg.ApproverIDs()
			return plan, nil
		}
		if plan.approvers, err = s.destinationMembers(ctx, t.ClientID, assignee); err != nil {
			return nil, err
		}
		return plan, nil
	case escalation.OutcomeProprietors:
		proprietors, err := s.org.ListProprietors(ctx, t.ClientID)
		if err != nil {
			return nil, err
		}
		return &escalationPlan{
			status:    domain.TicketStatusAwaitingProprietors,
			step:      domain.WorkflowStepProprietors,
			approvers: proprietors,
		}, nil
	}
	return open, nil
}

// Reject sends a pending ticket back to its requester with a reason.
func (s *TicketService) Reject(ctx context.Context, actorID, clientID, ticketID, comment string) (*domain.Ticket, error) {
	reason := s.sanitize(comment)
	if reason == "" {
		return nil, errorutil.NewValidationError("comment is required", nil)
	}
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if t.Status != domain.TicketStatusPendingApproval {
		return nil, errorutil.NewInvalidState("only tickets pending approval can be rejected")
	}
	if !ts.scope.CanApproveTicket(t) {
		return nil, errorutil.NewForbidden("you are not an approver of this ticket")
	}

	step := t.WorkflowStep
	old := t.Status
	t.TransitionTo(domain.TicketStatusRejected, domain.WorkflowStepNone, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		entry := domain.ApprovalLogEntry{TicketID: t.ID, ActorID: actorID, Decision: domain.DecisionRejected, Step: step, Comment: &reason}
		if err := tx.ApprovalLog().Append(ctx, &entry); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(statusChanged(t, actorID, old, reason))
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketRejected,
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

// Resubmit lets the requester send a rejected ticket through its destination
// again.
func (s *TicketService) Resubmit(ctx context.Context, actorID, clientID, ticketID string) (*domain.Ticket, error) {
	ts, err := s.load(ctx, actorID, clientID, ticketID)
	if err != nil {
		return nil, err
	}
	t := ts.ticket
	if t.CreatedBy != actorID {
		return nil, errorutil.NewForbidden("only the requester can resubmit this ticket")
	}
	if t.Status != domain.TicketStatusRejected {
		return nil, errorutil.NewInvalidState("only rejected tickets can be resubmitted")
	}

	next := domain.TicketStatusOpen
	var recipients []string
	if cfg := ts.scope.ConfigFor(t.Assignee, t.RequestTypeID); cfg != nil && cfg.RequiresApproval {
		next = domain.TicketStatusPendingApproval
		recipients = cfg.ApproverIDs()
	} else if recipients, err = s.destinationMembers(ctx, t.ClientID, t.Assignee); err != nil {
		return nil, err
	}

	old := t.Status
	t.TransitionTo(next, domain.WorkflowStepNone, s.now())

	ob := &outbox{}
	err = ts.store.InTx(ctx, func(tx tenancy.Store) error {
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		ob.add(statusChanged(t, actorID, old, ""))
		_, err := fanout(ctx, tx, t, actorID, notice{
			kind:       domain.NotificationTicketResubmitted,
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
