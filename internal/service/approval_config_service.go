package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// ApprovalConfigService manages per-client approval rules. Only admins call it.
type ApprovalConfigService struct {
	configs repository.ApprovalConfigRepository
	org     repository.OrgRepository
	users   repository.UserRepository
	access  *access.Loader
	stores  tenancy.StoreResolver
	logger  *zap.Logger
}

// ApprovalConfigInput is the create payload.
type ApprovalConfigInput struct {
	GroupID          *string
	SectorID         *string
	RequestTypeID    *string
	RequiresApproval bool
	WorkflowStyle    domain.WorkflowStyle
	Approvers        []domain.Approver
}

// ApprovalConfigPatch changes the mutable parts of a configuration. A non-nil
// Approvers replaces the whole list.
type ApprovalConfigPatch struct {
	RequiresApproval *bool
	WorkflowStyle    *domain.WorkflowStyle
	Approvers        *[]domain.Approver
}

func NewApprovalConfigService(configs repository.ApprovalConfigRepository, org repository.OrgRepository, users repository.UserRepository, loader *access.Loader, stores tenancy.StoreResolver, logger *zap.Logger) *ApprovalConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalConfigService{
		configs: configs,
		org:     org,
		users:   users,
		access:  loader,
		stores:  stores,
		logger:  logger,
	}
}

func (s *ApprovalConfigService) requireAdmin(ctx context.Context, actorID string) error {
	scope, err := s.access.Load(ctx, actorID, "")
	if err != nil {
		return err
	}
	if !scope.IsAdmin() {
		return errorutil.NewForbidden("only administrators can manage approval configurations")
	}
	return nil
}

// List returns the client's configurations.
func (s *ApprovalConfigService) List(ctx context.Context, actorID, clientID string) ([]domain.ApprovalConfig, error) {
	if clientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.configs.ListByClient(ctx, clientID)
}

// Create validates the destination and approvers and stores a configuration.
func (s *ApprovalConfigService) Create(ctx context.Context, actorID, clientID string, input ApprovalConfigInput) (*domain.ApprovalConfig, error) {
	if clientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	dest, err := domain.ParseDestination(input.GroupID, input.SectorID, input.RequestTypeID)
	if err != nil {
		return nil, errorutil.NewValidationError(err.Error(), nil)
	}
	style := input.WorkflowStyle
	if style == "" {
		style = domain.WorkflowHierarchical
	}
	if !style.Valid() {
		return nil, errorutil.NewValidationError("invalid workflow style", map[string]any{"workflow_style": style})
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.checkDestination(ctx, clientID, dest); err != nil {
		return nil, err
	}
	if err := s.checkApprovers(ctx, input.Approvers); err != nil {
		return nil, err
	}

	cfg := &domain.ApprovalConfig{
		ClientID:         clientID,
		Destination:      dest,
		RequiresApproval: input.RequiresApproval,
		WorkflowStyle:    style,
		Approvers:        input.Approvers,
	}
	if err := s.configs.Create(ctx, cfg); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("an approval configuration already exists for this destination", nil)
		}
		return nil, err
	}
	s.logger.Info("approval config created",
		zap.String("client_id", clientID),
		zap.String("config_id", cfg.ID),
		zap.Int("approvers", len(cfg.Approvers)),
	)
	return cfg, nil
}

// Update applies a patch.
func (s *ApprovalConfigService) Update(ctx context.Context, actorID, id string, patch ApprovalConfigPatch) (*domain.ApprovalConfig, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "approval config")
	}
	if patch.RequiresApproval != nil {
		cfg.RequiresApproval = *patch.RequiresApproval
	}
	if patch.WorkflowStyle != nil {
		if !patch.WorkflowStyle.Valid() {
			return nil, errorutil.NewValidationError("invalid workflow style", nil)
		}
		cfg.WorkflowStyle = *patch.WorkflowStyle
	}
	if patch.Approvers != nil {
		if err := s.checkApprovers(ctx, *patch.Approvers); err != nil {
			return nil, err
		}
		cfg.Approvers = *patch.Approvers
	}
	if err := s.configs.Update(ctx, cfg); err != nil {
		return nil, notFound(err, "approval config")
	}
	return cfg, nil
}

func (s *ApprovalConfigService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return notFound(s.configs.Delete(ctx, id), "approval config")
}

func (s *ApprovalConfigService) checkDestination(ctx context.Context, clientID string, dest domain.Destination) error {
	if dest.IsGroup() {
		g, err := s.org.GetGroup(ctx, dest.GroupID())
		if err != nil {
			return notFound(err, "group")
		}
		if g.ClientID != clientID {
			return errorutil.NewValidationError("group does not belong to this client", nil)
		}
		return nil
	}

	sector, err := s.org.GetSector(ctx, dest.SectorID())
	if err != nil {
		return notFound(err, "sector")
	}
	if sector.ClientID != clientID {
		return errorutil.NewValidationError("sector does not belong to this client", nil)
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if errorutil.IsCode(err, errorutil.CodeNotProvisioned) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := store.RequestTypes().GetByID(ctx, dest.RequestTypeID()); err != nil {
		if isNoRows(err) {
			return errorutil.NewValidationError("unknown request type", map[string]any{"request_type_id": dest.RequestTypeID()})
		}
		return err
	}
	return nil
}

func (s *ApprovalConfigService) checkApprovers(ctx context.Context, approvers []domain.Approver) error {
	ids := make([]string, 0, len(approvers))
	seen := map[string]bool{}
	for _, a := range approvers {
		if a.UserID == "" {
			return errorutil.NewValidationError("approver userId is required", nil)
		}
		if seen[a.UserID] {
			return errorutil.NewValidationError("duplicate approver", map[string]any{"user_id": a.UserID})
		}
		seen[a.UserID] = true
		ids = append(ids, a.UserID)
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return errorutil.NewValidationError("unknown approver", nil)
	}
	return nil
}
