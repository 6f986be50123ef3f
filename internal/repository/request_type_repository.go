package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
)

// RequestTypeRepository persists a tenant's request taxonomy.
type RequestTypeRepository interface {
	Create(ctx context.Context, rt *domain.RequestType) error
	Update(ctx context.Context, rt *domain.RequestType) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.RequestType, error)
	GetByCode(ctx context.Context, code string) (*domain.RequestType, error)
	List(ctx context.Context, activeOnly bool) ([]domain.RequestType, error)
	CountActiveChildren(ctx context.Context, id string) (int, error)
	Count(ctx context.Context) (int, error)
}

type requestTypeRepository struct {
	db DBTX
}

// NewRequestTypeRepository builds repository.
func NewRequestTypeRepository(db DBTX) RequestTypeRepository {
	return &requestTypeRepository{db: db}
}

const requestTypeColumns = `id::text, parent_id::text, name, code, weight, active, created_at, updated_at`

func (r *requestTypeRepository) Create(ctx context.Context, rt *domain.RequestType) error {
	const query = `
        INSERT INTO request_types (parent_id, name, code, weight, active)
        VALUES ($1::uuid,$2,$3,$4,$5)
        RETURNING id::text, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		rt.ParentID,
		rt.Name,
		rt.Code,
		rt.Weight,
		rt.Active,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *requestTypeRepository) Update(ctx context.Context, rt *domain.RequestType) error {
	const query = `
        UPDATE request_types SET parent_id=$1::uuid, name=$2, code=$3, weight=$4, active=$5, updated_at=NOW()
        WHERE id=$6::uuid
        RETURNING updated_at`
	if err := checkID(rt.ID); err != nil {
		return err
	}
	err := r.db.QueryRow(ctx, query,
		rt.ParentID,
		rt.Name,
		rt.Code,
		rt.Weight,
		rt.Active,
		rt.ID,
	).Scan(&rt.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *requestTypeRepository) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM request_types WHERE id=$1::uuid`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestTypeRepository) GetByID(ctx context.Context, id string) (*domain.RequestType, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return scanRequestType(r.db.QueryRow(ctx, `SELECT `+requestTypeColumns+` FROM request_types WHERE id=$1::uuid`, id))
}

func (r *requestTypeRepository) GetByCode(ctx context.Context, code string) (*domain.RequestType, error) {
	return scanRequestType(r.db.QueryRow(ctx, `SELECT `+requestTypeColumns+` FROM request_types WHERE code=$1`, code))
}

func (r *requestTypeRepository) List(ctx context.Context, activeOnly bool) ([]domain.RequestType, error) {
	query := `SELECT ` + requestTypeColumns + ` FROM request_types`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY weight, name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RequestType
	for rows.Next() {
		rt, err := scanRequestType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rt)
	}
	return result, rows.Err()
}

func (r *requestTypeRepository) CountActiveChildren(ctx context.Context, id string) (int, error) {
	if checkID(id) != nil {
		return 0, nil
	}
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM request_types WHERE parent_id=$1::uuid AND active`, id).Scan(&n)
	return n, err
}

func (r *requestTypeRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM request_types`).Scan(&n)
	return n, err
}

func scanRequestType(row pgx.Row) (*domain.RequestType, error) {
	var rt domain.RequestType
	if err := row.Scan(
		&rt.ID,
		&rt.ParentID,
		&rt.Name,
		&rt.Code,
		&rt.Weight,
		&rt.Active,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rt, nil
}
