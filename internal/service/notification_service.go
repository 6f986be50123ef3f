package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/observability"
	"github.com/hubportal/hub/internal/repository"
)

// Email is one outgoing notification mail.
type Email struct {
	To        string
	Subject   string
	HTMLBody  string
	PlainBody string
}

// EmailQueue accepts mails for asynchronous delivery. Enqueue must not block.
type EmailQueue interface {
	Enqueue(Email) bool
}

// NotificationService reacts to committed ticket events: it counts
// transitions and fan-out rows and mirrors inbox notifications by e-mail.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	metrics    *observability.Metrics
	mail       EmailQueue
	baseURL    string
	logger     *zap.Logger
}

// NewNotificationService creates the service. mail may be nil when no relay is configured.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, metrics *observability.Metrics, mail EmailQueue, cfg config.SMTPConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		metrics:    metrics,
		mail:       mail,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventNotificationsWritten, n.handleNotificationsWritten)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Debug("ticket created",
		zap.String("client_id", event.ClientID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.metrics.RecordTransition(string(payload.OldStatus), string(payload.NewStatus))
	n.logger.Info("ticket status changed",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)),
		zap.String("step", string(payload.WorkflowStep)))
	return nil
}

func (n *NotificationService) handleTicketAssigned(_ context.Context, event events.Event) error {
	n.logger.Debug("ticket assigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(_ context.Context, event events.Event) error {
	n.logger.Debug("ticket message added", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleNotificationsWritten(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationsWrittenPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.metrics.RecordNotifications(len(payload.RecipientIDs))
	if n.mail == nil || n.users == nil {
		return nil
	}

	users, err := n.users.ListByIDs(ctx, payload.RecipientIDs)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	link := fmt.Sprintf("%s/helpdesk/%s/tickets/%s", n.baseURL, event.ClientID, event.TicketID)
	subject := fmt.Sprintf("[%s] %s", payload.Protocol, describe(payload.Type))
	for _, u := range users {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		body := fmt.Sprintf(`<p>%s</p><p><strong>%s</strong></p><p><a href="%s">Open ticket</a></p>`,
			html.EscapeString(describe(payload.Type)), html.EscapeString(payload.Subject), link)
		mail := Email{
			To:        u.Email,
			Subject:   subject,
			HTMLBody:  body,
			PlainBody: fmt.Sprintf("%s\n\n%s\n\n%s\n", describe(payload.Type), payload.Subject, link),
		}
		if !n.mail.Enqueue(mail) {
			n.logger.Warn("email queue full, dropping notification mail",
				zap.String("ticket_id", event.TicketID),
				zap.String("recipient_id", u.ID))
		}
	}
	return nil
}
