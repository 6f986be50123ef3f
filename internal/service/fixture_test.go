package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/repository/repositorytest"
	"github.com/hubportal/hub/internal/service"
	"github.com/hubportal/hub/internal/tenancy/tenancytest"
	"github.com/hubportal/hub/pkg/errorutil"
)

const (
	acme   = "acme"
	globex = "globex"

	requester  = "u-req"
	approver   = "u-appr"
	manager    = "u-mgr"
	operator   = "u-op"
	operator2  = "u-op2"
	admin      = "u-admin"
	outsider   = "u-out"
	owner1     = "u-p1"
	owner2     = "u-p2"
	owner3     = "u-p3"
	groupComm  = "g-comm"
	groupIT    = "g-it"
	groupX     = "g-x"
	sectorDisc = "s-disc"
	sectorMgmt = "s-mgmt"
	sectorSup  = "s-support"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Subscribe(events.EventType, events.EventHandler) {}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx       context.Context
	central   *repositorytest.Central
	store     *tenancytest.Store
	stores    tenancytest.Resolver
	loader    *access.Loader
	events    *recorder
	tickets   *service.TicketService
	discount  domain.RequestType
	generic   domain.RequestType
	configsID map[string]string
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	central := repositorytest.NewCentral()
	central.AddClient(acme, "Acme")
	central.AddClient(globex, "Globex")
	central.AddGroup(groupComm, acme, "Comercial")
	central.AddGroup(groupIT, acme, "TI")
	central.AddGroup(groupX, globex, "Globex Ops")
	central.AddSector(sectorDisc, groupComm, "Descontos", "")
	central.AddSector(sectorMgmt, groupComm, "Gerencia Comercial", "commercial_management")
	central.AddSector(sectorSup, groupIT, "Suporte", "")

	central.AddUser(domain.User{ID: requester, Name: "Requester", Email: "req@acme.test"})
	central.AddUser(domain.User{ID: approver, Name: "Approver", Email: "appr@acme.test"})
	central.AddUser(domain.User{ID: manager, Name: "Manager", CanReceiveTickets: true,
		PrimaryGroupID: ptr(groupComm), PrimarySectorID: ptr(sectorMgmt)})
	central.AddUser(domain.User{ID: operator, Name: "Operator", CanReceiveTickets: true, CanForwardTickets: true,
		PrimaryGroupID: ptr(groupIT), PrimarySectorID: ptr(sectorSup)})
	central.AddUser(domain.User{ID: operator2, Name: "Operator Two", CanReceiveTickets: true,
		PrimaryGroupID: ptr(groupIT), PrimarySectorID: ptr(sectorSup)})
	central.AddUser(domain.User{ID: admin, Name: "Admin", IsAdmin: true})
	central.AddUser(domain.User{ID: outsider, Name: "Outsider", CanReceiveTickets: true})
	for _, id := range []string{owner1, owner2, owner3} {
		central.AddUser(domain.User{ID: id, Name: id})
		central.AddProprietor(acme, id)
	}
	for _, id := range []string{requester, approver, manager, operator, operator2, owner1, owner2, owner3} {
		central.Grant(domain.Permission{UserID: id, ClientID: acme})
	}
	central.Grant(domain.Permission{UserID: outsider, ClientID: globex})

	store := tenancytest.NewStore()
	discount := domain.RequestType{Name: "Registro de desconto", Code: ptr("commercial_discount_registration"), Active: true}
	require.NoError(t, store.RequestTypes().Create(ctx, &discount))
	generic := domain.RequestType{Name: "Acesso", Code: ptr("it_access"), Active: true}
	require.NoError(t, store.RequestTypes().Create(ctx, &generic))

	cfg := domain.ApprovalConfig{
		ClientID:         acme,
		Destination:      domain.SectorDestination(sectorDisc, discount.ID),
		RequiresApproval: true,
		WorkflowStyle:    domain.WorkflowHierarchical,
		Approvers:        []domain.Approver{{UserID: approver}},
	}
	require.NoError(t, central.ApprovalConfigs().Create(ctx, &cfg))

	stores := tenancytest.Resolver{acme: store}
	loader := access.NewLoader(central.Users(), central.Org(), central.ApprovalConfigs())
	rec := &recorder{}
	tickets := service.NewTicketService(service.TicketDependencies{
		Stores:     stores,
		Access:     loader,
		Users:      central.Users(),
		Org:        central.Org(),
		Dispatcher: rec,
		Protocol:   func() string { return "HD-TEST" },
		Clock:      func() time.Time { return time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC) },
	})

	return &fixture{
		ctx:       ctx,
		central:   central,
		store:     store,
		stores:    stores,
		loader:    loader,
		events:    rec,
		tickets:   tickets,
		discount:  discount,
		generic:   generic,
		configsID: map[string]string{"discount": cfg.ID},
	}
}

// discountTicket opens a discount ticket against the discount sector.
func (f *fixture) discountTicket(t *testing.T, amount float64) *domain.Ticket {
	t.Helper()
	detail, err := f.tickets.CreateTicket(f.ctx, requester, service.TicketCreateInput{
		ClientID:      acme,
		Subject:       "Desconto cliente X",
		Content:       "Please approve",
		AssigneeType:  domain.AssigneeSector,
		AssigneeID:    sectorDisc,
		RequestTypeID: &f.discount.ID,
		Amount:        &amount,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusPendingApproval, detail.Ticket.Status)
	return detail.Ticket
}

// itTicket opens a ticket against the IT group, which has no approval rule.
func (f *fixture) itTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	detail, err := f.tickets.CreateTicket(f.ctx, requester, service.TicketCreateInput{
		ClientID:     acme,
		Subject:      "Laptop broken",
		Content:      "Screen is dark",
		AssigneeType: domain.AssigneeGroup,
		AssigneeID:   groupIT,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, detail.Ticket.Status)
	return detail.Ticket
}

func (f *fixture) reload(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(f.ctx, id)
	require.NoError(t, err)
	return ticket
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, code), "expected %s, got %v", code, err)
}
