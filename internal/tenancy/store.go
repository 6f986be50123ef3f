package tenancy

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubportal/hub/internal/repository"
)

// Store exposes the repositories of one tenant database.
type Store interface {
	Tickets() repository.TicketRepository
	Messages() repository.TicketMessageRepository
	Attachments() repository.AttachmentRepository
	Notifications() repository.NotificationRepository
	ApprovalLog() repository.ApprovalLogRepository
	RequestTypes() repository.RequestTypeRepository
	// InTx runs fn against a store bound to a single transaction. Nested
	// calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

// StoreResolver hands out the store of a provisioned client.
type StoreResolver interface {
	StoreFor(ctx context.Context, clientID string) (Store, error)
}

type pgStore struct {
	pool *pgxpool.Pool
	db   repository.DBTX
	inTx bool
}

// NewStore binds the repositories to a tenant pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() repository.TicketRepository {
	return repository.NewTicketRepository(s.db)
}

func (s *pgStore) Messages() repository.TicketMessageRepository {
	return repository.NewTicketMessageRepository(s.db)
}

func (s *pgStore) Attachments() repository.AttachmentRepository {
	return repository.NewAttachmentRepository(s.db)
}

func (s *pgStore) Notifications() repository.NotificationRepository {
	return repository.NewNotificationRepository(s.db)
}

func (s *pgStore) ApprovalLog() repository.ApprovalLogRepository {
	return repository.NewApprovalLogRepository(s.db)
}

func (s *pgStore) RequestTypes() repository.RequestTypeRepository {
	return repository.NewRequestTypeRepository(s.db)
}

func (s *pgStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{pool: s.pool, db: tx, inTx: true})
	})
}
