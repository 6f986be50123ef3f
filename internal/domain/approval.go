package domain

import (
	"errors"
	"time"
)

// WorkflowStyle is stored with an approval configuration and returned to
// clients; transitions do not depend on it.
type WorkflowStyle string

const (
	WorkflowHierarchical WorkflowStyle = "hierarchical"
	WorkflowByLevel      WorkflowStyle = "by_level"
)

func (w WorkflowStyle) Valid() bool {
	return w == WorkflowHierarchical || w == WorkflowByLevel
}

// Destination is where an approval configuration applies: a whole group, or a
// sector for one request type.
type Destination struct {
	groupID       string
	sectorID      string
	requestTypeID string
}

var (
	ErrDestinationAmbiguous  = errors.New("exactly one of groupId or sectorId is required")
	ErrRequestTypeRequired   = errors.New("requestTypeId is required for sector destinations")
	ErrRequestTypeNotAllowed = errors.New("requestTypeId is not allowed for group destinations")
	ErrDestinationIncomplete = errors.New("destination columns do not form a valid destination")
)

func GroupDestination(groupID string) Destination {
	return Destination{groupID: groupID}
}

func SectorDestination(sectorID, requestTypeID string) Destination {
	return Destination{sectorID: sectorID, requestTypeID: requestTypeID}
}

// ParseDestination validates the API shape of a destination.
func ParseDestination(groupID, sectorID, requestTypeID *string) (Destination, error) {
	hasGroup := groupID != nil && *groupID != ""
	hasSector := sectorID != nil && *sectorID != ""
	hasType := requestTypeID != nil && *requestTypeID != ""
	switch {
	case hasGroup == hasSector:
		return Destination{}, ErrDestinationAmbiguous
	case hasGroup && hasType:
		return Destination{}, ErrRequestTypeNotAllowed
	case hasSector && !hasType:
		return Destination{}, ErrRequestTypeRequired
	case hasGroup:
		return GroupDestination(*groupID), nil
	default:
		return SectorDestination(*sectorID, *requestTypeID), nil
	}
}

// DestinationFromColumns rebuilds a destination from persisted nullable columns.
func DestinationFromColumns(groupID, sectorID, requestTypeID *string) (Destination, error) {
	d, err := ParseDestination(groupID, sectorID, requestTypeID)
	if err != nil {
		return Destination{}, ErrDestinationIncomplete
	}
	return d, nil
}

func (d Destination) IsGroup() bool  { return d.groupID != "" }
func (d Destination) IsSector() bool { return d.sectorID != "" }

func (d Destination) GroupID() string       { return d.groupID }
func (d Destination) SectorID() string      { return d.sectorID }
func (d Destination) RequestTypeID() string { return d.requestTypeID }

// Columns splits the destination into nullable persistence columns.
func (d Destination) Columns() (groupID, sectorID, requestTypeID *string) {
	if d.IsGroup() {
		g := d.groupID
		return &g, nil, nil
	}
	s, rt := d.sectorID, d.requestTypeID
	return nil, &s, &rt
}

// MatchesAssignee reports whether a ticket routed to assignee with the given
// request type falls under this exact destination.
func (d Destination) MatchesAssignee(a Assignee, requestTypeID *string) bool {
	switch {
	case d.IsGroup():
		return a.Type() == AssigneeGroup && a.ID() == d.groupID
	case d.IsSector():
		return a.Type() == AssigneeSector && a.ID() == d.sectorID &&
			requestTypeID != nil && *requestTypeID == d.requestTypeID
	}
	return false
}

// MatchesArea reports whether the ticket's routing area falls under this destination.
func (d Destination) MatchesArea(t *Ticket) bool {
	switch {
	case d.IsGroup():
		return t.AreaGroupID != nil && *t.AreaGroupID == d.groupID
	case d.IsSector():
		return t.AreaSectorID != nil && *t.AreaSectorID == d.sectorID &&
			t.RequestTypeID != nil && *t.RequestTypeID == d.requestTypeID
	}
	return false
}

// Approver is one member of an approval configuration.
type Approver struct {
	UserID string
	Ordem  *int
	Nivel  *int
}

// ApprovalConfig declares who approves tickets sent to a destination.
type ApprovalConfig struct {
	ID               string
	ClientID         string
	Destination      Destination
	RequiresApproval bool
	WorkflowStyle    WorkflowStyle
	Approvers        []Approver
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasApprover reports whether userID is listed.
func (c *ApprovalConfig) HasApprover(userID string) bool {
	for _, a := range c.Approvers {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// ApproverIDs returns the approver user ids in configuration order.
func (c *ApprovalConfig) ApproverIDs() []string {
	ids := make([]string, 0, len(c.Approvers))
	for _, a := range c.Approvers {
		ids = append(ids, a.UserID)
	}
	return ids
}

// ApprovalDecision is what an approver decided.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// ApprovalLogEntry is an append-only record of a decision.
type ApprovalLogEntry struct {
	ID        string
	TicketID  string
	ActorID   string
	Decision  ApprovalDecision
	Step      WorkflowStep
	Comment   *string
	CreatedAt time.Time
}
