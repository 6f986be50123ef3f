package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/pkg/errorutil"
)

// Loader reads the central tables behind a Scope.
type Loader struct {
	users   repository.UserRepository
	org     repository.OrgRepository
	configs repository.ApprovalConfigRepository
}

func NewLoader(users repository.UserRepository, org repository.OrgRepository, configs repository.ApprovalConfigRepository) *Loader {
	return &Loader{users: users, org: org, configs: configs}
}

// Load builds the scope of userID for clientID. An empty clientID loads
// only the user and grants.
func (l *Loader) Load(ctx context.Context, userID, clientID string) (*Scope, error) {
	user, err := l.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errorutil.NewUnauthorized("unknown user")
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, errorutil.NewForbidden("user is inactive")
	}
	perms, err := l.users.ListPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		proprietors []string
		configs     []domain.ApprovalConfig
	)
	if clientID != "" {
		if proprietors, err = l.org.ListProprietors(ctx, clientID); err != nil {
			return nil, err
		}
		if configs, err = l.configs.ListByClient(ctx, clientID); err != nil {
			return nil, err
		}
	}
	return NewScope(*user, perms, clientID, proprietors, configs), nil
}

// ResolveTarget loads the destination named by a ticket assignee.
func (l *Loader) ResolveTarget(ctx context.Context, a domain.Assignee) (*Target, error) {
	switch a.Type() {
	case domain.AssigneeGroup:
		g, err := l.org.GetGroup(ctx, a.ID())
		if err != nil {
			return nil, notFound(err, "group")
		}
		return &Target{Assignee: a, ClientIDs: []string{g.ClientID}, Area: domain.AreaRef{GroupID: &g.ID}}, nil
	case domain.AssigneeSector:
		s, err := l.org.GetSector(ctx, a.ID())
		if err != nil {
			return nil, notFound(err, "sector")
		}
		return &Target{Assignee: a, ClientIDs: []string{s.ClientID}, Area: domain.AreaRef{GroupID: &s.GroupID, SectorID: &s.ID}}, nil
	case domain.AssigneeUser:
		u, err := l.users.GetByID(ctx, a.ID())
		if err != nil {
			return nil, notFound(err, "user")
		}
		perms, err := l.users.ListPermissions(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return &Target{
			Assignee:  a,
			ClientIDs: ClientIDsFor(perms),
			Area:      domain.AreaRef{GroupID: u.PrimaryGroupID, SectorID: u.PrimarySectorID},
			User:      u,
		}, nil
	}
	return nil, errorutil.NewValidationError("invalid assignee", nil)
}

func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, nil)
	}
	return err
}
