package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/pkg/errorutil"
)

// Directory maps client ids to tenant database credentials.
type Directory struct {
	tenants repository.TenantRepository
	sealer  *Sealer
}

// NewDirectory wires the tenant table and the password sealer.
func NewDirectory(tenants repository.TenantRepository, sealer *Sealer) *Directory {
	return &Directory{tenants: tenants, sealer: sealer}
}

// Get returns the record of a provisioned client or a not-provisioned error.
func (d *Directory) Get(ctx context.Context, clientID string) (*domain.TenantRecord, error) {
	row, err := d.tenants.Get(ctx, clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.NewNotProvisioned(clientID)
	}
	if err != nil {
		return nil, err
	}
	return d.open(*row)
}

// Put stores a new record. ErrDuplicate surfaces when the client already has one.
func (d *Directory) Put(ctx context.Context, rec *domain.TenantRecord) error {
	sealed, err := d.sealer.Seal(rec.Password)
	if err != nil {
		return err
	}
	row := repository.TenantRow{
		ClientID:       rec.ClientID,
		Host:           rec.Host,
		Port:           rec.Port,
		Database:       rec.Database,
		User:           rec.User,
		SealedPassword: sealed,
		SSLMode:        rec.SSLMode,
	}
	if err := d.tenants.Create(ctx, &row); err != nil {
		return err
	}
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (d *Directory) List(ctx context.Context) ([]domain.TenantRecord, error) {
	rows, err := d.tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.TenantRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := d.open(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, nil
}

func (d *Directory) open(row repository.TenantRow) (*domain.TenantRecord, error) {
	password, err := d.sealer.Open(row.SealedPassword)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", row.ClientID, err)
	}
	return &domain.TenantRecord{
		ClientID:  row.ClientID,
		Host:      row.Host,
		Port:      row.Port,
		Database:  row.Database,
		User:      row.User,
		Password:  password,
		SSLMode:   row.SSLMode,
		CreatedAt: row.CreatedAt,
	}, nil
}
