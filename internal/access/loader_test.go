package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository/repositorytest"
	"github.com/hubportal/hub/pkg/errorutil"
)

func strPtr(s string) *string { return &s }

func newCentral(t *testing.T) *repositorytest.Central {
	t.Helper()
	c := repositorytest.NewCentral()
	c.AddClient("acme", "Acme")
	c.AddGroup("g1", "acme", "Operations")
	c.AddSector("s1", "g1", "Purchasing", "")
	c.AddUser(domain.User{ID: "ana", PrimaryGroupID: strPtr("g1")})
	c.AddUser(domain.User{ID: "bia"})
	c.Grant(domain.Permission{UserID: "ana", ClientID: "acme"})
	c.AddProprietor("acme", "ana")
	return c
}

func TestLoadScope(t *testing.T) {
	c := newCentral(t)
	ctx := context.Background()
	cfg := &domain.ApprovalConfig{
		ClientID:         "acme",
		Destination:      domain.GroupDestination("g1"),
		RequiresApproval: true,
		Approvers:        []domain.Approver{{UserID: "bia"}},
	}
	require.NoError(t, c.ApprovalConfigs().Create(ctx, cfg))
	loader := access.NewLoader(c.Users(), c.Org(), c.ApprovalConfigs())

	scope, err := loader.Load(ctx, "ana", "acme")
	require.NoError(t, err)
	assert.True(t, scope.IsProprietor())
	assert.True(t, scope.HasClient("acme"))
	assert.Equal(t, []string{"g1"}, scope.GroupIDs())
	assert.NotNil(t, scope.ConfigFor(domain.GroupAssignee("g1"), nil))

	bare, err := loader.Load(ctx, "ana", "")
	require.NoError(t, err)
	assert.False(t, bare.IsProprietor())
	assert.Nil(t, bare.ConfigFor(domain.GroupAssignee("g1"), nil))

	_, err = loader.Load(ctx, "ghost", "acme")
	assert.True(t, errorutil.IsCode(err, "UNAUTHORIZED"))
}

func TestResolveTarget(t *testing.T) {
	c := newCentral(t)
	ctx := context.Background()
	loader := access.NewLoader(c.Users(), c.Org(), c.ApprovalConfigs())

	group, err := loader.ResolveTarget(ctx, domain.GroupAssignee("g1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, group.ClientIDs)
	assert.Equal(t, "g1", *group.Area.GroupID)

	sector, err := loader.ResolveTarget(ctx, domain.SectorAssignee("s1"))
	require.NoError(t, err)
	assert.Equal(t, "g1", *sector.Area.GroupID)
	assert.Equal(t, "s1", *sector.Area.SectorID)

	user, err := loader.ResolveTarget(ctx, domain.UserAssignee("ana"))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, user.ClientIDs)
	require.NotNil(t, user.User)
	assert.Equal(t, "ana", user.User.ID)

	loose, err := loader.ResolveTarget(ctx, domain.UserAssignee("bia"))
	require.NoError(t, err)
	assert.Empty(t, loose.ClientIDs)

	_, err = loader.ResolveTarget(ctx, domain.SectorAssignee("missing"))
	assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))

	_, err = loader.ResolveTarget(ctx, domain.Assignee{})
	assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
}
