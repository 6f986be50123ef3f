package access

import (
	"sort"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/pkg/errorutil"
)

type set map[string]struct{}

func newSet(values []string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func sortedKeys(s set) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ClientIDsFor is the union of the clients granted to the user.
func ClientIDsFor(perms []domain.Permission) []string {
	s := set{}
	for _, p := range perms {
		s[p.ClientID] = struct{}{}
	}
	return sortedKeys(s)
}

// GroupIDsFor is the union of granted groups and the user's primary group.
func GroupIDsFor(user domain.User, perms []domain.Permission) []string {
	s := set{}
	for _, p := range perms {
		if p.GroupID != nil {
			s[*p.GroupID] = struct{}{}
		}
	}
	if user.PrimaryGroupID != nil {
		s[*user.PrimaryGroupID] = struct{}{}
	}
	return sortedKeys(s)
}

// SectorIDsFor is the union of granted sectors and the user's primary sector.
func SectorIDsFor(user domain.User, perms []domain.Permission) []string {
	s := set{}
	for _, p := range perms {
		if p.SectorID != nil {
			s[*p.SectorID] = struct{}{}
		}
	}
	if user.PrimarySectorID != nil {
		s[*user.PrimarySectorID] = struct{}{}
	}
	return sortedKeys(s)
}

// Scope is everything the resolver needs about one actor and one client,
// loaded once per request. Its methods have no side effects.
type Scope struct {
	User       domain.User
	ClientID   string
	clients    set
	groups     set
	sectors    set
	proprietor bool
	configs    []domain.ApprovalConfig
}

// NewScope derives the actor's scope for clientID.
func NewScope(user domain.User, perms []domain.Permission, clientID string, proprietors []string, configs []domain.ApprovalConfig) *Scope {
	return &Scope{
		User:       user,
		ClientID:   clientID,
		clients:    newSet(ClientIDsFor(perms)),
		groups:     newSet(GroupIDsFor(user, perms)),
		sectors:    newSet(SectorIDsFor(user, perms)),
		proprietor: newSet(proprietors).has(user.ID),
		configs:    configs,
	}
}

func (s *Scope) IsAdmin() bool      { return s.User.IsAdmin }
func (s *Scope) IsProprietor() bool { return s.proprietor }

// HasClient reports whether the actor may work on clientID. Admins may work on every client.
func (s *Scope) HasClient(clientID string) bool {
	return s.User.IsAdmin || s.clients.has(clientID)
}

func (s *Scope) GroupIDs() []string  { return sortedKeys(s.groups) }
func (s *Scope) SectorIDs() []string { return sortedKeys(s.sectors) }

// InQueueScope reports whether the ticket is routed to one of the actor's groups or sectors.
func (s *Scope) InQueueScope(t *domain.Ticket) bool {
	return t.InArea(s.groups, s.sectors)
}

// ConfigFor returns the configuration of the exact destination, if any.
func (s *Scope) ConfigFor(a domain.Assignee, requestTypeID *string) *domain.ApprovalConfig {
	for i := range s.configs {
		if s.configs[i].Destination.MatchesAssignee(a, requestTypeID) {
			return &s.configs[i]
		}
	}
	return nil
}

// CanAccessTicket decides read and reply access.
func (s *Scope) CanAccessTicket(t *domain.Ticket) bool {
	switch {
	case s.User.IsAdmin:
		return true
	case t.CreatedBy == s.User.ID:
		return true
	case t.Assignee.IsUser(s.User.ID):
		return true
	case t.IsAuxiliary(s.User.ID):
		return true
	case s.InQueueScope(t):
		return true
	case s.proprietor && t.ClientID == s.ClientID && t.Status == domain.TicketStatusAwaitingProprietors:
		return true
	}
	for i := range s.configs {
		cfg := &s.configs[i]
		if cfg.ClientID == t.ClientID && cfg.HasApprover(s.User.ID) && cfg.Destination.MatchesArea(t) {
			return true
		}
	}
	return false
}

// CanApproveTicket decides approve and reject. In the management step with no
// configuration for the management sector, that sector's members decide.
func (s *Scope) CanApproveTicket(t *domain.Ticket) bool {
	switch t.Status {
	case domain.TicketStatusAwaitingProprietors:
		return s.proprietor && t.ClientID == s.ClientID
	case domain.TicketStatusPendingApproval:
		if cfg := s.ConfigFor(t.Assignee, t.RequestTypeID); cfg != nil {
			return cfg.ClientID == t.ClientID && cfg.HasApprover(s.User.ID)
		}
		return t.WorkflowStep == domain.WorkflowStepManagement &&
			t.Assignee.Type() == domain.AssigneeSector &&
			s.sectors.has(t.Assignee.ID())
	}
	return false
}

// Target is a resolved ticket destination.
type Target struct {
	Assignee domain.Assignee
	// ClientIDs are the clients the destination belongs to, or for a user
	// destination the clients that user can reach.
	ClientIDs []string
	Area      domain.AreaRef
	User      *domain.User
}

// CanCreateTicketFor checks the actor and the destination against clientID.
func (s *Scope) CanCreateTicketFor(clientID string, target *Target) error {
	if !s.HasClient(clientID) {
		return errorutil.NewForbidden("you do not have access to this client")
	}
	if newSet(target.ClientIDs).has(clientID) {
		return nil
	}
	if target.Assignee.Type() == domain.AssigneeUser {
		return errorutil.NewForbidden("the destination user has no access to this client")
	}
	return errorutil.NewForbidden("the destination does not belong to this client")
}
