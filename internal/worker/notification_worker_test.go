package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/service"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []service.Email
	fail bool
}

func (r *recordingSender) Send(mail service.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, mail)
	if r.fail {
		return errors.New("relay down")
	}
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestEmailWorkerDeliversQueuedMail(t *testing.T) {
	sender := &recordingSender{}
	w := NewEmailWorker(sender, 4, nil)

	require.True(t, w.Enqueue(service.Email{To: "a@example.com", Subject: "one"}))
	require.True(t, w.Enqueue(service.Email{To: "b@example.com", Subject: "two"}))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	require.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	w.Wait()

	assert.Equal(t, "a@example.com", sender.sent[0].To)
	assert.Equal(t, "two", sender.sent[1].Subject)
}

func TestEmailWorkerRejectsWhenFull(t *testing.T) {
	w := NewEmailWorker(&recordingSender{}, 1, nil)

	assert.True(t, w.Enqueue(service.Email{To: "a@example.com"}))
	assert.False(t, w.Enqueue(service.Email{To: "b@example.com"}))
}

func TestEmailWorkerSurvivesSendErrors(t *testing.T) {
	sender := &recordingSender{fail: true}
	w := NewEmailWorker(sender, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Enqueue(service.Email{To: "a@example.com"})
	w.Enqueue(service.Email{To: "b@example.com"})
	require.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 5*time.Millisecond)
}
