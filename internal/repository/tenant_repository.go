package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantRow is a tenants table row with the password still sealed.
type TenantRow struct {
	ClientID       string
	Host           string
	Port           int
	Database       string
	User           string
	SealedPassword []byte
	SSLMode        string
	CreatedAt      time.Time
}

// TenantRepository persists the tenant directory in the central database.
type TenantRepository interface {
	Get(ctx context.Context, clientID string) (*TenantRow, error)
	Create(ctx context.Context, row *TenantRow) error
	List(ctx context.Context) ([]TenantRow, error)
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository builds the repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

const tenantColumns = `client_id, host, port, db_name, db_user, db_password_sealed, ssl_mode, created_at`

func (r *tenantRepository) Get(ctx context.Context, clientID string) (*TenantRow, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE client_id=$1`, clientID))
}

func (r *tenantRepository) Create(ctx context.Context, row *TenantRow) error {
	const query = `
        INSERT INTO tenants (client_id, host, port, db_name, db_user, db_password_sealed, ssl_mode)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		row.ClientID,
		row.Host,
		row.Port,
		row.Database,
		row.User,
		row.SealedPassword,
		row.SSLMode,
	).Scan(&row.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *tenantRepository) List(ctx context.Context) ([]TenantRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TenantRow
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func scanTenant(row pgx.Row) (*TenantRow, error) {
	var t TenantRow
	if err := row.Scan(
		&t.ClientID,
		&t.Host,
		&t.Port,
		&t.Database,
		&t.User,
		&t.SealedPassword,
		&t.SSLMode,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
