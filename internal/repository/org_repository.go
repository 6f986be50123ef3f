package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubportal/hub/internal/domain"
)

// OrgRepository reads clients, groups, sectors and proprietors from the
// central database. Those tables are maintained by the portal admin screens.
type OrgRepository interface {
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	GetSector(ctx context.Context, id string) (*domain.Sector, error)
	GetSectorByCode(ctx context.Context, clientID, code string) (*domain.Sector, error)
	ListGroups(ctx context.Context, clientID string) ([]domain.Group, error)
	ListSectors(ctx context.Context, clientID string) ([]domain.Sector, error)
	ListProprietors(ctx context.Context, clientID string) ([]string, error)
	ListClientIDs(ctx context.Context) ([]string, error)
}

type orgRepository struct {
	pool *pgxpool.Pool
}

// NewOrgRepository builds the repository.
func NewOrgRepository(pool *pgxpool.Pool) OrgRepository {
	return &orgRepository{pool: pool}
}

func (r *orgRepository) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	const query = `SELECT id, name, active FROM clients WHERE id=$1`
	var c domain.Client
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Active); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *orgRepository) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	const query = `SELECT id::text, client_id, name FROM groups WHERE id=$1::uuid`
	var g domain.Group
	if err := r.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.ClientID, &g.Name); err != nil {
		return nil, err
	}
	return &g, nil
}

const sectorSelect = `
        SELECT s.id::text, s.group_id::text, g.client_id, s.name, s.code
        FROM sectors s JOIN groups g ON g.id = s.group_id`

func (r *orgRepository) GetSector(ctx context.Context, id string) (*domain.Sector, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return scanSector(r.pool.QueryRow(ctx, sectorSelect+` WHERE s.id=$1::uuid`, id))
}

func (r *orgRepository) GetSectorByCode(ctx context.Context, clientID, code string) (*domain.Sector, error) {
	return scanSector(r.pool.QueryRow(ctx, sectorSelect+` WHERE g.client_id=$1 AND s.code=$2 LIMIT 1`, clientID, code))
}

func (r *orgRepository) ListGroups(ctx context.Context, clientID string) ([]domain.Group, error) {
	const query = `SELECT id::text, client_id, name FROM groups WHERE client_id=$1 ORDER BY name`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.ClientID, &g.Name); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *orgRepository) ListSectors(ctx context.Context, clientID string) ([]domain.Sector, error) {
	rows, err := r.pool.Query(ctx, sectorSelect+` WHERE g.client_id=$1 ORDER BY s.name`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Sector
	for rows.Next() {
		s, err := scanSector(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *orgRepository) ListProprietors(ctx context.Context, clientID string) ([]string, error) {
	const query = `SELECT user_id::text FROM proprietors WHERE client_id=$1 ORDER BY user_id`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *orgRepository) ListClientIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM clients WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanSector(row pgx.Row) (*domain.Sector, error) {
	var s domain.Sector
	if err := row.Scan(&s.ID, &s.GroupID, &s.ClientID, &s.Name, &s.Code); err != nil {
		return nil, err
	}
	return &s, nil
}
