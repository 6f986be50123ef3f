package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/pkg/errorutil"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewProtocol returns a sortable, human-quotable ticket number.
func NewProtocol() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return "HD-" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// notFound maps a missing row to a NotFound error for resource.
func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, nil)
	}
	return err
}

func preview(content string) string {
	const limit = 140
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}

// outbox collects events during a transaction; they are published only after commit.
type outbox struct {
	events []events.Event
}

func (o *outbox) add(e events.Event) {
	o.events = append(o.events, e)
}

func (o *outbox) flush(ctx context.Context, dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, e := range o.events {
		_ = dispatcher.Publish(ctx, e)
	}
	o.events = nil
}
