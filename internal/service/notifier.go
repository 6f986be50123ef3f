package service

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/tenancy"
)

// notice is one fan-out request of a transition.
type notice struct {
	kind       domain.NotificationType
	recipients []string
	messageID  *string
}

// fanout drops the actor, dedupes the recipients and writes one row per
// recipient in a single batch. Nothing is written for an empty set.
func fanout(ctx context.Context, store tenancy.Store, ticket *domain.Ticket, actorID string, n notice, ob *outbox) ([]string, error) {
	seen := map[string]bool{actorID: true}
	var (
		rows       []domain.Notification
		recipients []string
	)
	for _, id := range n.recipients {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		recipients = append(recipients, id)
		rows = append(rows, domain.Notification{
			RecipientID: id,
			TicketID:    ticket.ID,
			MessageID:   n.messageID,
			Type:        n.kind,
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := store.Notifications().CreateBatch(ctx, rows); err != nil {
		return nil, err
	}
	if ob != nil {
		ob.add(events.Event{
			Type:     events.EventNotificationsWritten,
			ClientID: ticket.ClientID,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.NotificationsWrittenPayload{
				Type:         n.kind,
				RecipientIDs: recipients,
				Protocol:     ticket.Protocol,
				Subject:      ticket.Subject,
			},
		})
	}
	return recipients, nil
}

var noticeTitles = map[domain.NotificationType]string{
	domain.NotificationTicketCreated:     "New ticket in your queue",
	domain.NotificationApprovalRequested: "A ticket is waiting for your approval",
	domain.NotificationTicketApproved:    "Your ticket was approved",
	domain.NotificationTicketRejected:    "Your ticket was rejected",
	domain.NotificationTicketResubmitted: "A rejected ticket was resubmitted",
	domain.NotificationNewReply:          "New reply on a ticket",
	domain.NotificationTicketClaimed:     "Your ticket is being handled",
	domain.NotificationTicketForwarded:   "A ticket was forwarded to you",
	domain.NotificationTicketConcluded:   "A ticket was concluded",
}

func describe(kind domain.NotificationType) string {
	if title, ok := noticeTitles[kind]; ok {
		return title
	}
	return string(kind)
}
