package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/service"
)

func newConfigService(f *fixture) *service.ApprovalConfigService {
	return service.NewApprovalConfigService(f.central.ApprovalConfigs(), f.central.Org(), f.central.Users(), f.loader, f.stores, nil)
}

func TestApprovalConfigRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	svc := newConfigService(f)

	_, err := svc.List(f.ctx, approver, acme)
	requireCode(t, err, "FORBIDDEN")

	_, err = svc.Create(f.ctx, owner1, acme, service.ApprovalConfigInput{GroupID: ptr(groupIT)})
	requireCode(t, err, "FORBIDDEN")

	configs, err := svc.List(f.ctx, admin, acme)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, f.configsID["discount"], configs[0].ID)
}

func TestApprovalConfigCreate(t *testing.T) {
	f := newFixture(t)
	svc := newConfigService(f)

	cfg, err := svc.Create(f.ctx, admin, acme, service.ApprovalConfigInput{
		GroupID:          ptr(groupIT),
		RequiresApproval: true,
		Approvers:        []domain.Approver{{UserID: operator, Ordem: ptr(1)}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, domain.WorkflowHierarchical, cfg.WorkflowStyle)
	assert.True(t, cfg.Destination.IsGroup())

	_, err = svc.Create(f.ctx, admin, acme, service.ApprovalConfigInput{GroupID: ptr(groupIT)})
	requireCode(t, err, "CONFLICT")

	detail, err := f.tickets.CreateTicket(f.ctx, requester, service.TicketCreateInput{
		ClientID:     acme,
		Content:      "Printer jam",
		AssigneeType: domain.AssigneeGroup,
		AssigneeID:   groupIT,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingApproval, detail.Ticket.Status)
}

func TestApprovalConfigCreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := newConfigService(f)

	cases := []struct {
		name  string
		input service.ApprovalConfigInput
	}{
		{name: "no destination", input: service.ApprovalConfigInput{}},
		{name: "both destinations", input: service.ApprovalConfigInput{GroupID: ptr(groupIT), SectorID: ptr(sectorSup), RequestTypeID: &f.generic.ID}},
		{name: "sector without type", input: service.ApprovalConfigInput{SectorID: ptr(sectorSup)}},
		{name: "group with type", input: service.ApprovalConfigInput{GroupID: ptr(groupIT), RequestTypeID: &f.generic.ID}},
		{name: "bad style", input: service.ApprovalConfigInput{GroupID: ptr(groupIT), WorkflowStyle: "random"}},
		{name: "foreign group", input: service.ApprovalConfigInput{GroupID: ptr(groupX)}},
		{name: "unknown request type", input: service.ApprovalConfigInput{SectorID: ptr(sectorSup), RequestTypeID: ptr("rt-missing")}},
		{name: "duplicate approver", input: service.ApprovalConfigInput{GroupID: ptr(groupIT), Approvers: []domain.Approver{{UserID: operator}, {UserID: operator}}}},
		{name: "unknown approver", input: service.ApprovalConfigInput{GroupID: ptr(groupIT), Approvers: []domain.Approver{{UserID: "ghost"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(f.ctx, admin, acme, tc.input)
			requireCode(t, err, "VALIDATION_FAILED")
		})
	}

	_, err := svc.Create(f.ctx, admin, acme, service.ApprovalConfigInput{GroupID: ptr("g-missing")})
	requireCode(t, err, "NOT_FOUND")
}

func TestApprovalConfigSkipsTypeCheckWhenNotProvisioned(t *testing.T) {
	f := newFixture(t)
	f.central.AddSector("s-x", groupX, "Globex Desk", "")
	svc := newConfigService(f)

	cfg, err := svc.Create(f.ctx, admin, globex, service.ApprovalConfigInput{
		SectorID:      ptr("s-x"),
		RequestTypeID: ptr("rt-later"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rt-later", cfg.Destination.RequestTypeID())
}

func TestApprovalConfigUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	svc := newConfigService(f)
	id := f.configsID["discount"]

	byLevel := domain.WorkflowByLevel
	updated, err := svc.Update(f.ctx, admin, id, service.ApprovalConfigPatch{
		WorkflowStyle: &byLevel,
		Approvers:     &[]domain.Approver{{UserID: manager, Nivel: ptr(1)}},
	})
	require.NoError(t, err)
	assert.True(t, updated.RequiresApproval)
	assert.Equal(t, domain.WorkflowByLevel, updated.WorkflowStyle)
	assert.Equal(t, []string{manager}, updated.ApproverIDs())

	ticket := f.discountTicket(t, 0.15)
	_, err = f.tickets.Approve(f.ctx, approver, acme, ticket.ID, "")
	requireCode(t, err, "FORBIDDEN")

	_, err = svc.Update(f.ctx, admin, "cfg-missing", service.ApprovalConfigPatch{})
	requireCode(t, err, "NOT_FOUND")

	require.NoError(t, svc.Delete(f.ctx, admin, id))
	requireCode(t, svc.Delete(f.ctx, admin, id), "NOT_FOUND")

	configs, err := svc.List(f.ctx, admin, acme)
	require.NoError(t, err)
	assert.Empty(t, configs)
}
