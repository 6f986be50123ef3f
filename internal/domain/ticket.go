package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen                 TicketStatus = "open"
	TicketStatusInProgress           TicketStatus = "in_progress"
	TicketStatusPendingApproval      TicketStatus = "pending_approval"
	TicketStatusAwaitingProprietors  TicketStatus = "aguardando_aprovacao_proprietarios"
	TicketStatusRejected             TicketStatus = "rejected"
	TicketStatusConcluded            TicketStatus = "concluido"
	TicketStatusClosed               TicketStatus = "closed"
	TicketStatusAwaitingAttendance   TicketStatus = "aguardando_atendimento"
	TicketStatusInAttendance         TicketStatus = "em_atendimento"
	TicketStatusAwaitingUserFeedback TicketStatus = "aguardando_feedback_usuario"
	TicketStatusForwardedToOperator  TicketStatus = "encaminhado_operador"
	TicketStatusScheduledWithUser    TicketStatus = "agendado_com_usuario"
)

// AllTicketStatuses lists every state in display order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPendingApproval,
	TicketStatusAwaitingProprietors,
	TicketStatusRejected,
	TicketStatusAwaitingAttendance,
	TicketStatusInAttendance,
	TicketStatusAwaitingUserFeedback,
	TicketStatusForwardedToOperator,
	TicketStatusScheduledWithUser,
	TicketStatusConcluded,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range AllTicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal states have no exits.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusConcluded || s == TicketStatusClosed
}

// AwaitingApproval covers both approval tiers.
func (s TicketStatus) AwaitingApproval() bool {
	return s == TicketStatusPendingApproval || s == TicketStatusAwaitingProprietors
}

// AwaitingAttendance marks tickets an operator can claim from a queue.
func (s TicketStatus) AwaitingAttendance() bool {
	return s == TicketStatusOpen || s == TicketStatusAwaitingAttendance
}

// InProgressFamily are the operational states a ticket can be finalized from.
func (s TicketStatus) InProgressFamily() bool {
	switch s {
	case TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusAwaitingAttendance,
		TicketStatusInAttendance,
		TicketStatusAwaitingUserFeedback,
		TicketStatusForwardedToOperator,
		TicketStatusScheduledWithUser:
		return true
	}
	return false
}

// AwaitingAttendanceStatuses is the queue status set.
var AwaitingAttendanceStatuses = []TicketStatus{TicketStatusOpen, TicketStatusAwaitingAttendance}

// WorkflowStep records the approval tier of a ticket in the awaiting family.
type WorkflowStep string

const (
	WorkflowStepNone        WorkflowStep = ""
	WorkflowStepManagement  WorkflowStep = "gerencia"
	WorkflowStepProprietors WorkflowStep = "proprietarios"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for helpdesk requests. AreaGroupID and
// AreaSectorID keep the queue the ticket is routed to when the assignee is a
// specific user.
type Ticket struct {
	ID            string
	Protocol      string
	ClientID      string
	Subject       string
	Status        TicketStatus
	Assignee      Assignee
	AreaGroupID   *string
	AreaSectorID  *string
	AuxiliaryIDs  []string
	CreatedBy     string
	RequestTypeID *string
	Amount        *float64
	Priority      TicketPriority
	SLAHours      *int
	ScheduledAt   *time.Time
	WorkflowStep  WorkflowStep
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// SLABreached is derived at read time.
func (t *Ticket) SLABreached(now time.Time) bool {
	if t.SLAHours == nil || *t.SLAHours <= 0 || t.Status.Terminal() {
		return false
	}
	return now.After(t.CreatedAt.Add(time.Duration(*t.SLAHours) * time.Hour))
}

// IsAuxiliary reports whether userID is in the auxiliary operator set.
func (t *Ticket) IsAuxiliary(userID string) bool {
	for _, id := range t.AuxiliaryIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// InArea reports whether the ticket's routing area is one of the given groups or sectors.
func (t *Ticket) InArea(groupIDs, sectorIDs map[string]struct{}) bool {
	if t.AreaGroupID != nil {
		if _, ok := groupIDs[*t.AreaGroupID]; ok {
			return true
		}
	}
	if t.AreaSectorID != nil {
		if _, ok := sectorIDs[*t.AreaSectorID]; ok {
			return true
		}
	}
	return false
}

// TransitionTo moves the ticket and keeps WorkflowStep and ClosedAt consistent
// with the new status.
func (t *Ticket) TransitionTo(status TicketStatus, step WorkflowStep, now time.Time) {
	t.Status = status
	if status.AwaitingApproval() {
		t.WorkflowStep = step
	} else {
		t.WorkflowStep = WorkflowStepNone
	}
	if status.Terminal() {
		closed := now
		t.ClosedAt = &closed
	}
	t.UpdatedAt = now
}
