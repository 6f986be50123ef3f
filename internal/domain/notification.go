package domain

import "time"

// NotificationType tells the polling client why a row was written.
type NotificationType string

const (
	NotificationTicketCreated     NotificationType = "ticket_created"
	NotificationApprovalRequested NotificationType = "approval_requested"
	NotificationTicketApproved    NotificationType = "ticket_approved"
	NotificationTicketRejected    NotificationType = "ticket_rejected"
	NotificationTicketResubmitted NotificationType = "ticket_resubmitted"
	NotificationNewReply          NotificationType = "new_reply"
	NotificationTicketClaimed     NotificationType = "ticket_claimed"
	NotificationTicketForwarded   NotificationType = "ticket_forwarded"
	NotificationTicketConcluded   NotificationType = "ticket_concluded"
)

// Notification is a per-recipient inbox row.
type Notification struct {
	ID          string
	RecipientID string
	TicketID    string
	MessageID   *string
	Type        NotificationType
	ReadAt      *time.Time
	CreatedAt   time.Time
}
