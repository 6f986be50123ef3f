package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubportal/hub/internal/domain"
)

// ApprovalConfigRepository persists approval configurations and their approvers.
type ApprovalConfigRepository interface {
	Create(ctx context.Context, cfg *domain.ApprovalConfig) error
	Update(ctx context.Context, cfg *domain.ApprovalConfig) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalConfig, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.ApprovalConfig, error)
	FindByDestination(ctx context.Context, clientID string, dest domain.Destination) (*domain.ApprovalConfig, error)
}

type approvalConfigRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalConfigRepository builds the repository.
func NewApprovalConfigRepository(pool *pgxpool.Pool) ApprovalConfigRepository {
	return &approvalConfigRepository{pool: pool}
}

func (r *approvalConfigRepository) Create(ctx context.Context, cfg *domain.ApprovalConfig) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		groupID, sectorID, requestTypeID := cfg.Destination.Columns()
		const query = `
            INSERT INTO approval_configs (client_id, group_id, sector_id, request_type_id, requires_approval, workflow_style)
            VALUES ($1, $2::uuid, $3::uuid, $4, $5, $6)
            RETURNING id::text, created_at, updated_at`
		err := tx.QueryRow(ctx, query,
			cfg.ClientID,
			groupID,
			sectorID,
			requestTypeID,
			cfg.RequiresApproval,
			cfg.WorkflowStyle,
		).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
		return insertApprovers(ctx, tx, cfg.ID, cfg.Approvers)
	})
}

// Update rewrites the flags and replaces the approver list wholesale.
func (r *approvalConfigRepository) Update(ctx context.Context, cfg *domain.ApprovalConfig) error {
	if err := checkID(cfg.ID); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            UPDATE approval_configs SET requires_approval=$1, workflow_style=$2, updated_at=NOW()
            WHERE id=$3::uuid
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, query, cfg.RequiresApproval, cfg.WorkflowStyle, cfg.ID).Scan(&cfg.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM approval_config_approvers WHERE config_id=$1::uuid`, cfg.ID); err != nil {
			return err
		}
		return insertApprovers(ctx, tx, cfg.ID, cfg.Approvers)
	})
}

func (r *approvalConfigRepository) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM approval_configs WHERE id=$1::uuid`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const approvalConfigSelect = `
        SELECT id::text, client_id, group_id::text, sector_id::text, request_type_id,
               requires_approval, workflow_style, created_at, updated_at
        FROM approval_configs`

func (r *approvalConfigRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalConfig, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	configs, err := r.list(ctx, approvalConfigSelect+` WHERE id=$1::uuid`, id)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &configs[0], nil
}

func (r *approvalConfigRepository) ListByClient(ctx context.Context, clientID string) ([]domain.ApprovalConfig, error) {
	return r.list(ctx, approvalConfigSelect+` WHERE client_id=$1 ORDER BY created_at`, clientID)
}

func (r *approvalConfigRepository) FindByDestination(ctx context.Context, clientID string, dest domain.Destination) (*domain.ApprovalConfig, error) {
	var (
		configs []domain.ApprovalConfig
		err     error
	)
	if dest.IsGroup() {
		if err := checkID(dest.GroupID()); err != nil {
			return nil, err
		}
		configs, err = r.list(ctx, approvalConfigSelect+` WHERE client_id=$1 AND group_id=$2::uuid`, clientID, dest.GroupID())
	} else {
		if err := checkID(dest.SectorID()); err != nil {
			return nil, err
		}
		configs, err = r.list(ctx, approvalConfigSelect+` WHERE client_id=$1 AND sector_id=$2::uuid AND request_type_id=$3`,
			clientID, dest.SectorID(), dest.RequestTypeID())
	}
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &configs[0], nil
}

func (r *approvalConfigRepository) list(ctx context.Context, query string, args ...any) ([]domain.ApprovalConfig, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalConfig
	index := map[string]int{}
	var ids []string
	for rows.Next() {
		var (
			cfg                              domain.ApprovalConfig
			groupID, sectorID, requestTypeID *string
		)
		if err := rows.Scan(
			&cfg.ID,
			&cfg.ClientID,
			&groupID,
			&sectorID,
			&requestTypeID,
			&cfg.RequiresApproval,
			&cfg.WorkflowStyle,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		dest, err := domain.DestinationFromColumns(groupID, sectorID, requestTypeID)
		if err != nil {
			return nil, fmt.Errorf("approval config %s: %w", cfg.ID, err)
		}
		cfg.Destination = dest
		index[cfg.ID] = len(result)
		ids = append(ids, cfg.ID)
		result = append(result, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	approverRows, err := r.pool.Query(ctx, `
        SELECT config_id::text, user_id::text, ordem, nivel
        FROM approval_config_approvers WHERE config_id = ANY($1::text[]::uuid[])
        ORDER BY ordem NULLS LAST, nivel NULLS LAST, user_id`, ids)
	if err != nil {
		return nil, err
	}
	defer approverRows.Close()
	for approverRows.Next() {
		var (
			configID string
			a        domain.Approver
		)
		if err := approverRows.Scan(&configID, &a.UserID, &a.Ordem, &a.Nivel); err != nil {
			return nil, err
		}
		if i, ok := index[configID]; ok {
			result[i].Approvers = append(result[i].Approvers, a)
		}
	}
	return result, approverRows.Err()
}

func insertApprovers(ctx context.Context, tx pgx.Tx, configID string, approvers []domain.Approver) error {
	for _, a := range approvers {
		_, err := tx.Exec(ctx, `
            INSERT INTO approval_config_approvers (config_id, user_id, ordem, nivel)
            VALUES ($1::uuid, $2::uuid, $3, $4)`,
			configID, a.UserID, a.Ordem, a.Nivel)
		if err != nil {
			return err
		}
	}
	return nil
}
