package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/service"
	"github.com/hubportal/hub/pkg/errorutil"
)

func TestCreateTicketWithApprovalNotifiesApprovers(t *testing.T) {
	f := newFixture(t)

	ticket := f.discountTicket(t, 0.05)

	assert.Equal(t, "HD-TEST", ticket.Protocol)
	assert.Equal(t, domain.SectorAssignee(sectorDisc), ticket.Assignee)
	assert.Equal(t, sectorDisc, *ticket.AreaSectorID)
	assert.Equal(t, groupComm, *ticket.AreaGroupID)
	assert.Equal(t, []string{approver}, f.store.Recipients(ticket.ID, domain.NotificationApprovalRequested))
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventNotificationsWritten}, f.events.types())

	messages, err := f.store.Messages().ListByTicket(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Please approve", messages[0].Content)
}

func TestCreateTicketWithoutApprovalNotifiesDestinationMembers(t *testing.T) {
	f := newFixture(t)

	ticket := f.itTicket(t)

	assert.Equal(t, []string{operator, operator2}, f.store.Recipients(ticket.ID, domain.NotificationTicketCreated))
}

func TestCreateTicketStoresAttachmentsAndSanitizes(t *testing.T) {
	f := newFixture(t)

	detail, err := f.tickets.CreateTicket(f.ctx, requester, service.TicketCreateInput{
		ClientID:     acme,
		Content:      `<p>hello</p><script>alert(1)</script>`,
		AssigneeType: domain.AssigneeUser,
		AssigneeID:   operator,
		Attachments:  []service.AttachmentInput{{Filename: "a.png", MimeType: "image/png", SizeBytes: 10, StoragePath: "s3://a"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "<p>hello</p>", detail.Messages[0].Content)
	assert.Equal(t, "hello", detail.Ticket.Subject)
	require.Len(t, detail.Messages[0].Attachments, 1)
	assert.Equal(t, groupIT, *detail.Ticket.AreaGroupID)
	assert.Equal(t, []string{operator}, f.store.Recipients(detail.Ticket.ID, domain.NotificationTicketCreated))
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	negative := -1.0

	cases := []struct {
		name  string
		actor string
		input service.TicketCreateInput
		code  string
	}{
		{
			name:  "empty content",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "  <script></script> ", AssigneeType: domain.AssigneeGroup, AssigneeID: groupIT},
			code:  "VALIDATION_FAILED",
		},
		{
			name:  "unknown assignee type",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: "team", AssigneeID: groupIT},
			code:  "VALIDATION_FAILED",
		},
		{
			name:  "negative amount",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: domain.AssigneeGroup, AssigneeID: groupIT, Amount: &negative},
			code:  "VALIDATION_FAILED",
		},
		{
			name:  "destination of another client",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: domain.AssigneeGroup, AssigneeID: groupX},
			code:  "FORBIDDEN",
		},
		{
			name:  "destination user without access",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: domain.AssigneeUser, AssigneeID: outsider},
			code:  "FORBIDDEN",
		},
		{
			name:  "actor without client",
			actor: outsider,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: domain.AssigneeGroup, AssigneeID: groupIT},
			code:  "FORBIDDEN",
		},
		{
			name:  "unknown group",
			actor: requester,
			input: service.TicketCreateInput{ClientID: acme, Content: "x", AssigneeType: domain.AssigneeGroup, AssigneeID: "g-missing"},
			code:  "NOT_FOUND",
		},
		{
			name:  "not provisioned",
			actor: admin,
			input: service.TicketCreateInput{ClientID: globex, Content: "x", AssigneeType: domain.AssigneeGroup, AssigneeID: groupX},
			code:  errorutil.CodeNotProvisioned,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(f.ctx, tc.actor, tc.input)
			requireCode(t, err, tc.code)
		})
	}
	assert.Empty(t, f.store.AllNotifications())
	assert.Zero(t, f.events.count())
}

func TestCreateDiscountTicketRequiresAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.CreateTicket(f.ctx, requester, service.TicketCreateInput{
		ClientID:      acme,
		Content:       "x",
		AssigneeType:  domain.AssigneeSector,
		AssigneeID:    sectorDisc,
		RequestTypeID: &f.discount.ID,
	})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestListTicketsFiltersByVisibility(t *testing.T) {
	f := newFixture(t)
	itTicket := f.itTicket(t)
	discount := f.discountTicket(t, 0.15)

	mine, err := f.tickets.ListTickets(f.ctx, requester, acme, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	queue, err := f.tickets.ListTickets(f.ctx, operator, acme, nil)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, itTicket.ID, queue[0].ID)

	approvals, err := f.tickets.ListTickets(f.ctx, approver, acme, []domain.TicketStatus{domain.TicketStatusPendingApproval})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, discount.ID, approvals[0].ID)

	_, err = f.tickets.ListTickets(f.ctx, outsider, acme, nil)
	requireCode(t, err, "FORBIDDEN")

	_, err = f.tickets.ListTickets(f.ctx, requester, acme, []domain.TicketStatus{"bogus"})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestSummaryCountsVisibleTickets(t *testing.T) {
	f := newFixture(t)
	f.itTicket(t)
	f.discountTicket(t, 0.15)

	summary, err := f.tickets.Summary(f.ctx, requester, acme)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[domain.TicketStatusOpen])
	assert.Equal(t, 1, summary.ByStatus[domain.TicketStatusPendingApproval])
	assert.Zero(t, summary.ByStatus[domain.TicketStatusClosed])
}

func TestGetTicketIncludesThreadAndApprovals(t *testing.T) {
	f := newFixture(t)
	ticket := f.discountTicket(t, 0.15)
	_, err := f.tickets.Approve(f.ctx, approver, acme, ticket.ID, "ok")
	require.NoError(t, err)

	detail, err := f.tickets.GetTicket(f.ctx, requester, acme, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
	require.Len(t, detail.Approvals, 1)
	assert.Equal(t, domain.DecisionApproved, detail.Approvals[0].Decision)
	assert.Equal(t, "ok", *detail.Approvals[0].Comment)

	_, err = f.tickets.GetTicket(f.ctx, operator, acme, ticket.ID)
	requireCode(t, err, "FORBIDDEN")

	_, err = f.tickets.GetTicket(f.ctx, requester, acme, "ticket-404")
	requireCode(t, err, "NOT_FOUND")
}

func TestReplyMovesStatusByAuthor(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)

	_, updated, err := f.tickets.Reply(f.ctx, operator, acme, ticket.ID, service.ReplyInput{Content: "Which model?"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAwaitingUserFeedback, updated.Status)
	assert.Equal(t, []string{operator2, requester}, f.store.Recipients(ticket.ID, domain.NotificationNewReply))

	msg, updated, err := f.tickets.Reply(f.ctx, requester, acme, ticket.ID, service.ReplyInput{Content: "T14"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, "T14", msg.Content)

	for _, n := range f.store.AllNotifications() {
		if n.Type == domain.NotificationNewReply && n.MessageID != nil && *n.MessageID == msg.ID {
			assert.NotEqual(t, requester, n.RecipientID)
		}
	}
}

func TestReplyKeepsApprovalStatusAndRefusesClosedTickets(t *testing.T) {
	f := newFixture(t)
	ticket := f.discountTicket(t, 0.15)

	_, updated, err := f.tickets.Reply(f.ctx, approver, acme, ticket.ID, service.ReplyInput{Content: "Need the contract"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingApproval, updated.Status)

	_, _, err = f.tickets.Reply(f.ctx, requester, acme, ticket.ID, service.ReplyInput{Content: ""})
	requireCode(t, err, "VALIDATION_FAILED")

	closed := f.itTicket(t)
	_, err = f.tickets.Finalize(f.ctx, operator, acme, closed.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	_, _, err = f.tickets.Reply(f.ctx, requester, acme, closed.ID, service.ReplyInput{Content: "again"})
	requireCode(t, err, "INVALID_STATE")
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)

	_, err := f.tickets.Claim(f.ctx, requester, acme, ticket.ID)
	requireCode(t, err, "FORBIDDEN")

	_, err = f.tickets.Claim(f.ctx, manager, acme, ticket.ID)
	requireCode(t, err, "FORBIDDEN")

	claimed, err := f.tickets.Claim(f.ctx, operator, acme, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInAttendance, claimed.Status)
	assert.True(t, claimed.Assignee.IsUser(operator))
	assert.Equal(t, groupIT, *claimed.AreaGroupID)
	assert.Equal(t, []string{requester}, f.store.Recipients(ticket.ID, domain.NotificationTicketClaimed))

	_, err = f.tickets.Claim(f.ctx, operator2, acme, ticket.ID)
	requireCode(t, err, "INVALID_STATE")
}

func TestForward(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)
	_, err := f.tickets.Claim(f.ctx, operator, acme, ticket.ID)
	require.NoError(t, err)

	forwarded, err := f.tickets.Forward(f.ctx, operator, acme, ticket.ID, service.ForwardInput{
		NewAssigneeID: manager,
		AuxiliaryIDs:  []string{operator2, manager, operator2},
		Comment:       "Needs commercial sign-off",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusForwardedToOperator, forwarded.Status)
	assert.True(t, forwarded.Assignee.IsUser(manager))
	assert.Equal(t, groupComm, *forwarded.AreaGroupID)
	assert.Equal(t, sectorMgmt, *forwarded.AreaSectorID)
	assert.Equal(t, []string{operator2}, f.reload(t, ticket.ID).AuxiliaryIDs)
	assert.Equal(t, []string{manager, operator2}, f.store.Recipients(ticket.ID, domain.NotificationTicketForwarded))

	messages, err := f.store.Messages().ListByTicket(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestForwardWithScheduleAndChecks(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)
	at := time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC)

	_, err := f.tickets.Forward(f.ctx, operator2, acme, ticket.ID, service.ForwardInput{NewAssigneeID: operator})
	requireCode(t, err, "FORBIDDEN")

	_, err = f.tickets.Forward(f.ctx, operator, acme, ticket.ID, service.ForwardInput{NewAssigneeID: requester})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.tickets.Forward(f.ctx, operator, acme, ticket.ID, service.ForwardInput{NewAssigneeID: outsider})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.tickets.Forward(f.ctx, operator, acme, ticket.ID, service.ForwardInput{NewAssigneeID: "u-ghost"})
	requireCode(t, err, "VALIDATION_FAILED")

	scheduled, err := f.tickets.Forward(f.ctx, operator, acme, ticket.ID, service.ForwardInput{NewAssigneeID: operator2, ScheduledAt: &at})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusScheduledWithUser, scheduled.Status)
	assert.Equal(t, at, *scheduled.ScheduledAt)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)

	_, err := f.tickets.Finalize(f.ctx, operator, acme, ticket.ID, domain.TicketStatusOpen)
	requireCode(t, err, "VALIDATION_FAILED")

	done, err := f.tickets.Finalize(f.ctx, operator, acme, ticket.ID, domain.TicketStatusConcluded)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusConcluded, done.Status)
	assert.NotNil(t, done.ClosedAt)
	assert.Equal(t, []string{operator2, requester}, f.store.Recipients(ticket.ID, domain.NotificationTicketConcluded))

	_, err = f.tickets.Finalize(f.ctx, operator, acme, ticket.ID, domain.TicketStatusClosed)
	requireCode(t, err, "INVALID_STATE")

	pending := f.discountTicket(t, 0.15)
	_, err = f.tickets.Finalize(f.ctx, requester, acme, pending.ID, domain.TicketStatusClosed)
	requireCode(t, err, "INVALID_STATE")
}

func TestMarkReadAndUnread(t *testing.T) {
	f := newFixture(t)
	ticket := f.itTicket(t)

	items, total, err := f.tickets.Unread(f.ctx, operator, acme, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, ticket.ID, items[0].TicketID)

	n, err := f.tickets.MarkRead(f.ctx, operator, acme, ticket.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, total, err = f.tickets.Unread(f.ctx, operator, acme, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = f.tickets.MarkRead(f.ctx, operator, globex, ticket.ID)
	requireCode(t, err, errorutil.CodeNotProvisioned)
}
