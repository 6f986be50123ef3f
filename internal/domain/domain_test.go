package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAssigneeColumnsRoundTrip(t *testing.T) {
	for _, a := range []Assignee{UserAssignee("u1"), GroupAssignee("g1"), SectorAssignee("s1")} {
		u, g, s := a.Columns()
		set := 0
		for _, col := range []*string{u, g, s} {
			if col != nil {
				set++
				assert.Equal(t, a.ID(), *col)
			}
		}
		assert.Equal(t, 1, set, a.String())

		back, err := AssigneeFromColumns(a.Type(), u, g, s)
		require.NoError(t, err)
		assert.Equal(t, a, back)
	}
}

func TestAssigneeFromColumnsRejectsMismatch(t *testing.T) {
	_, err := AssigneeFromColumns(AssigneeUser, nil, strPtr("g1"), nil)
	assert.Error(t, err)

	_, err = AssigneeFromColumns(AssigneeGroup, nil, strPtr("g1"), strPtr("s1"))
	assert.Error(t, err)

	_, err = AssigneeFromColumns(AssigneeSector, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewAssigneeValidates(t *testing.T) {
	_, err := NewAssignee("team", "x")
	assert.Error(t, err)
	_, err = NewAssignee(AssigneeUser, "")
	assert.Error(t, err)

	a, err := NewAssignee(AssigneeSector, "s9")
	require.NoError(t, err)
	assert.True(t, a.Type() == AssigneeSector)
	assert.False(t, a.IsZero())
	assert.True(t, Assignee{}.IsZero())
}

func TestParseDestination(t *testing.T) {
	cases := []struct {
		name    string
		group   *string
		sector  *string
		rt      *string
		wantErr error
	}{
		{name: "neither", wantErr: ErrDestinationAmbiguous},
		{name: "both", group: strPtr("g"), sector: strPtr("s"), rt: strPtr("t"), wantErr: ErrDestinationAmbiguous},
		{name: "sector without type", sector: strPtr("s"), wantErr: ErrRequestTypeRequired},
		{name: "group with type", group: strPtr("g"), rt: strPtr("t"), wantErr: ErrRequestTypeNotAllowed},
		{name: "group", group: strPtr("g")},
		{name: "sector", sector: strPtr("s"), rt: strPtr("t")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDestination(tc.group, tc.sector, tc.rt)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			g, s, rt := d.Columns()
			assert.Equal(t, tc.group, g)
			assert.Equal(t, tc.sector, s)
			assert.Equal(t, tc.rt, rt)
		})
	}
}

func TestDestinationMatching(t *testing.T) {
	sectorCfg := SectorDestination("s1", "rt1")

	assert.True(t, sectorCfg.MatchesAssignee(SectorAssignee("s1"), strPtr("rt1")))
	assert.False(t, sectorCfg.MatchesAssignee(SectorAssignee("s1"), strPtr("rt2")))
	assert.False(t, sectorCfg.MatchesAssignee(SectorAssignee("s1"), nil))
	assert.False(t, sectorCfg.MatchesAssignee(GroupAssignee("g1"), strPtr("rt1")))

	groupCfg := GroupDestination("g1")
	assert.True(t, groupCfg.MatchesAssignee(GroupAssignee("g1"), nil))
	assert.False(t, groupCfg.MatchesAssignee(SectorAssignee("s1"), nil))

	ticket := &Ticket{AreaGroupID: strPtr("g1"), AreaSectorID: strPtr("s1"), RequestTypeID: strPtr("rt1")}
	assert.True(t, groupCfg.MatchesArea(ticket))
	assert.True(t, sectorCfg.MatchesArea(ticket))
	ticket.RequestTypeID = strPtr("rt2")
	assert.False(t, sectorCfg.MatchesArea(ticket))
}

func TestWouldCycle(t *testing.T) {
	forest := []RequestType{
		{ID: "a"},
		{ID: "b", ParentID: strPtr("a")},
		{ID: "c", ParentID: strPtr("b")},
		{ID: "d"},
	}
	assert.True(t, WouldCycle(forest, "a", "c"))
	assert.True(t, WouldCycle(forest, "a", "a"))
	assert.False(t, WouldCycle(forest, "d", "c"))
	assert.False(t, WouldCycle(forest, "c", "d"))
}

func TestTicketTransitionKeepsStepConsistent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ticket := &Ticket{Status: TicketStatusPendingApproval}

	ticket.TransitionTo(TicketStatusAwaitingProprietors, WorkflowStepProprietors, now)
	assert.Equal(t, WorkflowStepProprietors, ticket.WorkflowStep)
	assert.Nil(t, ticket.ClosedAt)

	ticket.TransitionTo(TicketStatusOpen, WorkflowStepProprietors, now)
	assert.Equal(t, WorkflowStepNone, ticket.WorkflowStep)

	ticket.TransitionTo(TicketStatusConcluded, WorkflowStepNone, now)
	require.NotNil(t, ticket.ClosedAt)
	assert.Equal(t, now, *ticket.ClosedAt)
}

func TestSLABreached(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	hours := 4
	ticket := &Ticket{Status: TicketStatusOpen, CreatedAt: created, SLAHours: &hours}

	assert.False(t, ticket.SLABreached(created.Add(3*time.Hour)))
	assert.True(t, ticket.SLABreached(created.Add(5*time.Hour)))

	ticket.Status = TicketStatusClosed
	assert.False(t, ticket.SLABreached(created.Add(5*time.Hour)))

	ticket.SLAHours = nil
	ticket.Status = TicketStatusOpen
	assert.False(t, ticket.SLABreached(created.Add(100*time.Hour)))
}

func TestStatusFamilies(t *testing.T) {
	for _, s := range AllTicketStatuses {
		assert.True(t, s.Valid())
		if s.Terminal() {
			assert.False(t, s.InProgressFamily(), s)
			assert.False(t, s.AwaitingApproval(), s)
		}
	}
	assert.False(t, TicketStatus("bogus").Valid())
	assert.True(t, TicketStatusAwaitingAttendance.AwaitingAttendance())
	assert.False(t, TicketStatusInAttendance.AwaitingAttendance())
}
