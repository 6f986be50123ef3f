package domain

import "fmt"

// AssigneeType tags which kind of party holds a ticket.
type AssigneeType string

const (
	AssigneeUser   AssigneeType = "user"
	AssigneeGroup  AssigneeType = "group"
	AssigneeSector AssigneeType = "sector"
)

// Valid reports whether the tag is known.
func (t AssigneeType) Valid() bool {
	switch t {
	case AssigneeUser, AssigneeGroup, AssigneeSector:
		return true
	}
	return false
}

// Assignee is the party responsible for a ticket: exactly one of a user, a
// group or a sector. The zero value is not a valid assignee.
type Assignee struct {
	kind AssigneeType
	id   string
}

func UserAssignee(id string) Assignee   { return Assignee{kind: AssigneeUser, id: id} }
func GroupAssignee(id string) Assignee  { return Assignee{kind: AssigneeGroup, id: id} }
func SectorAssignee(id string) Assignee { return Assignee{kind: AssigneeSector, id: id} }

// NewAssignee builds an assignee from an API tag and id.
func NewAssignee(kind AssigneeType, id string) (Assignee, error) {
	if !kind.Valid() {
		return Assignee{}, fmt.Errorf("unknown assignee type %q", kind)
	}
	if id == "" {
		return Assignee{}, fmt.Errorf("assignee id required")
	}
	return Assignee{kind: kind, id: id}, nil
}

func (a Assignee) Type() AssigneeType { return a.kind }
func (a Assignee) ID() string         { return a.id }
func (a Assignee) IsZero() bool       { return a.kind == "" }

func (a Assignee) IsUser(id string) bool {
	return a.kind == AssigneeUser && a.id == id
}

// Columns splits the assignee into its nullable persistence columns.
func (a Assignee) Columns() (userID, groupID, sectorID *string) {
	id := a.id
	switch a.kind {
	case AssigneeUser:
		return &id, nil, nil
	case AssigneeGroup:
		return nil, &id, nil
	case AssigneeSector:
		return nil, nil, &id
	}
	return nil, nil, nil
}

// AssigneeFromColumns rebuilds an assignee, rejecting rows where the non-null
// column does not match the tag.
func AssigneeFromColumns(kind AssigneeType, userID, groupID, sectorID *string) (Assignee, error) {
	set := 0
	for _, col := range []*string{userID, groupID, sectorID} {
		if col != nil {
			set++
		}
	}
	if set != 1 {
		return Assignee{}, fmt.Errorf("assignee: expected exactly one id column, got %d", set)
	}
	switch {
	case kind == AssigneeUser && userID != nil:
		return UserAssignee(*userID), nil
	case kind == AssigneeGroup && groupID != nil:
		return GroupAssignee(*groupID), nil
	case kind == AssigneeSector && sectorID != nil:
		return SectorAssignee(*sectorID), nil
	}
	return Assignee{}, fmt.Errorf("assignee: column does not match type %q", kind)
}

func (a Assignee) String() string {
	return string(a.kind) + ":" + a.id
}
