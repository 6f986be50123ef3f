package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/service"
)

// EmailWorker drains a bounded mail queue on a single goroutine so SMTP
// latency never reaches a request.
type EmailWorker struct {
	queue  chan service.Email
	sender Sender
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewEmailWorker creates a worker with a queue of size entries.
func NewEmailWorker(sender Sender, size int, logger *zap.Logger) *EmailWorker {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailWorker{
		queue:  make(chan service.Email, size),
		sender: sender,
		logger: logger,
	}
}

// Enqueue hands a mail to the worker. It returns false when the queue is full.
func (w *EmailWorker) Enqueue(mail service.Email) bool {
	select {
	case w.queue <- mail:
		return true
	default:
		return false
	}
}

// Start runs the delivery loop until ctx is done.
func (w *EmailWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case mail := <-w.queue:
				if err := w.sender.Send(mail); err != nil {
					w.logger.Warn("send notification mail", zap.String("to", mail.To), zap.Error(err))
				}
			}
		}
	}()
}

// Wait blocks until the delivery loop has stopped.
func (w *EmailWorker) Wait() {
	w.wg.Wait()
}

// StartNotificationWorker registers notification handlers and, when a mail
// worker is given, starts its delivery loop.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, mail *EmailWorker) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if mail != nil {
		mail.Start(ctx)
	}
}
