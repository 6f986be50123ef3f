package events

import (
	"time"

	"github.com/hubportal/hub/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketAssigned       EventType = "ticket_assigned"
	EventTicketMessageAdded   EventType = "ticket_message_added"
	EventNotificationsWritten EventType = "notifications_written"
)

// Event represents a domain event emitted after a ticket transaction commits.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ClientID  string    `json:"client_id"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Protocol string              `json:"protocol"`
	Subject  string              `json:"subject"`
	Status   domain.TicketStatus `json:"status"`
	Assignee string              `json:"assignee"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	WorkflowStep domain.WorkflowStep `json:"workflow_step,omitempty"`
	Comment      string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Assignee     string   `json:"assignee"`
	AuxiliaryIDs []string `json:"auxiliary_ids,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string `json:"message_id"`
	BodyPreview string `json:"body_preview"`
}

// NotificationsWrittenPayload lists the inbox rows a transition produced.
type NotificationsWrittenPayload struct {
	Type         domain.NotificationType `json:"type"`
	RecipientIDs []string                `json:"recipient_ids"`
	Protocol     string                  `json:"protocol"`
	Subject      string                  `json:"subject"`
}
