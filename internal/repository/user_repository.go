package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubportal/hub/internal/domain"
)

// UserRepository reads portal accounts and their grants from the central database.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListPermissions(ctx context.Context, userID string) ([]domain.Permission, error)
	ListAreaMembers(ctx context.Context, clientID string, area domain.AreaRef) ([]domain.User, error)
	ListManagedAreas(ctx context.Context, userID string) ([]domain.AreaRef, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `u.id::text, u.name, u.email, u.is_admin, u.can_receive_tickets, u.can_forward_tickets,
        u.primary_group_id::text, u.primary_sector_id::text, u.active, u.created_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id=$1::uuid`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if checkID(id) == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ANY($1::text[]::uuid[]) ORDER BY u.name`
	rows, err := r.pool.Query(ctx, query, valid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	if checkID(userID) != nil {
		return nil, nil
	}
	const query = `
        SELECT user_id::text, client_id, group_id::text, sector_id::text
        FROM user_permissions WHERE user_id=$1::uuid`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.UserID, &p.ClientID, &p.GroupID, &p.SectorID); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListAreaMembers returns active users able to receive tickets in the area,
// either through their primary placement or a grant on the client.
func (r *userRepository) ListAreaMembers(ctx context.Context, clientID string, area domain.AreaRef) ([]domain.User, error) {
	query := `
        SELECT DISTINCT ` + userColumns + `
        FROM users u
        LEFT JOIN user_permissions p ON p.user_id = u.id AND p.client_id = $1
        WHERE u.active AND u.can_receive_tickets AND (
            ($2::text IS NOT NULL AND (u.primary_group_id = $2::text::uuid OR p.group_id = $2::text::uuid))
            OR ($3::text IS NOT NULL AND (u.primary_sector_id = $3::text::uuid OR p.sector_id = $3::text::uuid))
        )`
	rows, err := r.pool.Query(ctx, query, clientID, area.GroupID, area.SectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListManagedAreas(ctx context.Context, userID string) ([]domain.AreaRef, error) {
	if checkID(userID) != nil {
		return nil, nil
	}
	const query = `SELECT group_id::text, sector_id::text FROM area_managers WHERE user_id=$1::uuid`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AreaRef
	for rows.Next() {
		var a domain.AreaRef
		if err := rows.Scan(&a.GroupID, &a.SectorID); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.IsAdmin,
		&u.CanReceiveTickets,
		&u.CanForwardTickets,
		&u.PrimaryGroupID,
		&u.PrimarySectorID,
		&u.Active,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}
