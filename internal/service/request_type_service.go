package service

import (
	"context"
	"errors"
	"strings"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// RequestTypeService maintains a client's request taxonomy.
type RequestTypeService struct {
	stores tenancy.StoreResolver
	access *access.Loader
}

// RequestTypeInput is the create and replace payload.
type RequestTypeInput struct {
	Name     string
	ParentID *string
	Code     *string
	Weight   int
	Active   *bool
}

func NewRequestTypeService(stores tenancy.StoreResolver, loader *access.Loader) *RequestTypeService {
	return &RequestTypeService{stores: stores, access: loader}
}

func (s *RequestTypeService) open(ctx context.Context, actorID, clientID string, mutate bool) (tenancy.Store, error) {
	if clientID == "" {
		return nil, errorutil.NewValidationError("clientId is required", nil)
	}
	scope, err := s.access.Load(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	if mutate && !scope.IsAdmin() {
		return nil, errorutil.NewForbidden("only administrators can change request types")
	}
	if !scope.HasClient(clientID) && !scope.IsProprietor() {
		return nil, errorutil.NewForbidden("you do not have access to this client")
	}
	return s.stores.StoreFor(ctx, clientID)
}

// List returns the taxonomy ordered by weight, optionally with inactive nodes.
func (s *RequestTypeService) List(ctx context.Context, actorID, clientID string, includeInactive bool) ([]domain.RequestType, error) {
	store, err := s.open(ctx, actorID, clientID, false)
	if err != nil {
		return nil, err
	}
	return store.RequestTypes().List(ctx, !includeInactive)
}

func (s *RequestTypeService) Create(ctx context.Context, actorID, clientID string, input RequestTypeInput) (*domain.RequestType, error) {
	rt, err := normalizeRequestType(input)
	if err != nil {
		return nil, err
	}
	store, err := s.open(ctx, actorID, clientID, true)
	if err != nil {
		return nil, err
	}
	if rt.ParentID != nil {
		if _, err := store.RequestTypes().GetByID(ctx, *rt.ParentID); err != nil {
			if isNoRows(err) {
				return nil, errorutil.NewValidationError("parent request type not found", nil)
			}
			return nil, err
		}
	}
	if err := store.RequestTypes().Create(ctx, rt); err != nil {
		return nil, duplicateCode(err)
	}
	return rt, nil
}

// Update replaces name, parent and weight. Code and the active flag are kept
// when omitted. Reparenting under one of the node's own descendants is refused.
func (s *RequestTypeService) Update(ctx context.Context, actorID, clientID, id string, input RequestTypeInput) (*domain.RequestType, error) {
	next, err := normalizeRequestType(input)
	if err != nil {
		return nil, err
	}
	store, err := s.open(ctx, actorID, clientID, true)
	if err != nil {
		return nil, err
	}
	var rt *domain.RequestType
	err = store.InTx(ctx, func(tx tenancy.Store) error {
		current, err := tx.RequestTypes().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "request type")
		}
		if next.ParentID != nil {
			all, err := tx.RequestTypes().List(ctx, false)
			if err != nil {
				return err
			}
			if !hasRequestType(all, *next.ParentID) {
				return errorutil.NewValidationError("parent request type not found", nil)
			}
			if domain.WouldCycle(all, id, *next.ParentID) {
				return errorutil.NewValidationError("a request type cannot be moved under itself or its descendants", nil)
			}
		}
		next.ID = id
		if input.Active == nil {
			next.Active = current.Active
		}
		// Escalation keys on the code; only an explicit empty code clears it.
		if input.Code == nil {
			next.Code = current.Code
		}
		if err := tx.RequestTypes().Update(ctx, next); err != nil {
			return duplicateCode(err)
		}
		rt = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// SetActive activates or deactivates a node.
func (s *RequestTypeService) SetActive(ctx context.Context, actorID, clientID, id string, active bool) (*domain.RequestType, error) {
	store, err := s.open(ctx, actorID, clientID, true)
	if err != nil {
		return nil, err
	}
	rt, err := store.RequestTypes().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "request type")
	}
	rt.Active = active
	if err := store.RequestTypes().Update(ctx, rt); err != nil {
		return nil, notFound(err, "request type")
	}
	return rt, nil
}

// Delete removes a node that has no active children.
func (s *RequestTypeService) Delete(ctx context.Context, actorID, clientID, id string) error {
	store, err := s.open(ctx, actorID, clientID, true)
	if err != nil {
		return err
	}
	return store.InTx(ctx, func(tx tenancy.Store) error {
		if _, err := tx.RequestTypes().GetByID(ctx, id); err != nil {
			return notFound(err, "request type")
		}
		children, err := tx.RequestTypes().CountActiveChildren(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return errorutil.NewConflict("request type has active children; deactivate it instead",
				map[string]any{"active_children": children})
		}
		return notFound(tx.RequestTypes().Delete(ctx, id), "request type")
	})
}

func normalizeRequestType(input RequestTypeInput) (*domain.RequestType, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errorutil.NewValidationError("name is required", nil)
	}
	rt := &domain.RequestType{Name: name, Weight: input.Weight, Active: true}
	if input.Active != nil {
		rt.Active = *input.Active
	}
	if input.ParentID != nil && strings.TrimSpace(*input.ParentID) != "" {
		parent := strings.TrimSpace(*input.ParentID)
		rt.ParentID = &parent
	}
	if input.Code != nil && strings.TrimSpace(*input.Code) != "" {
		code := strings.ToLower(strings.TrimSpace(*input.Code))
		rt.Code = &code
	}
	return rt, nil
}

func hasRequestType(types []domain.RequestType, id string) bool {
	for i := range types {
		if types[i].ID == id {
			return true
		}
	}
	return false
}

func duplicateCode(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return errorutil.NewConflict("request type code already in use", nil)
	}
	return err
}
