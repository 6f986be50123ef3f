package service

import (
	"context"
	"sort"

	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// AggregationService computes queue and area rollups per request.
type AggregationService struct {
	stores tenancy.StoreResolver
	access *access.Loader
	users  repository.UserRepository
	org    repository.OrgRepository
}

func NewAggregationService(stores tenancy.StoreResolver, loader *access.Loader, users repository.UserRepository, org repository.OrgRepository) *AggregationService {
	return &AggregationService{stores: stores, access: loader, users: users, org: org}
}

// areaFilter decides which areas an actor sees in rollups.
type areaFilter struct {
	all     bool
	groups  map[string]struct{}
	sectors map[string]struct{}
}

func (f areaFilter) allows(groupID, sectorID *string) bool {
	if f.all {
		return true
	}
	if groupID != nil {
		if _, ok := f.groups[*groupID]; ok {
			return true
		}
	}
	if sectorID != nil {
		if _, ok := f.sectors[*sectorID]; ok {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

type orgNames struct {
	groups  map[string]string
	sectors map[string]domain.Sector
	ordered []domain.Group
}

func (s *AggregationService) names(ctx context.Context, clientID string) (*orgNames, error) {
	groups, err := s.org.ListGroups(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sectors, err := s.org.ListSectors(ctx, clientID)
	if err != nil {
		return nil, err
	}
	n := &orgNames{groups: map[string]string{}, sectors: map[string]domain.Sector{}, ordered: groups}
	for _, g := range groups {
		n.groups[g.ID] = g.Name
	}
	for _, sec := range sectors {
		n.sectors[sec.ID] = sec
	}
	return n, nil
}

func (n *orgNames) group(id *string) string {
	if id == nil {
		return ""
	}
	return n.groups[*id]
}

func (n *orgNames) sector(id *string) string {
	if id == nil {
		return ""
	}
	return n.sectors[*id].Name
}

type areaKey struct{ group, sector string }

func keyOf(groupID, sectorID *string) areaKey {
	var k areaKey
	if groupID != nil {
		k.group = *groupID
	}
	if sectorID != nil {
		k.sector = *sectorID
	}
	return k
}

func (s *AggregationService) open(ctx context.Context, actorID, clientID string) (*access.Scope, tenancy.Store, error) {
	if clientID == "" {
		return nil, nil, errorutil.NewValidationError("clientId is required", nil)
	}
	scope, err := s.access.Load(ctx, actorID, clientID)
	if err != nil {
		return nil, nil, err
	}
	if !scope.HasClient(clientID) {
		return nil, nil, errorutil.NewForbidden("you do not have access to this client")
	}
	store, err := s.stores.StoreFor(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	return scope, store, nil
}

// Queues lists awaiting-attendance tickets in the actor's queue scope, one
// entry per area.
func (s *AggregationService) Queues(ctx context.Context, actorID, clientID string) ([]domain.Queue, error) {
	scope, store, err := s.open(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{Statuses: domain.AwaitingAttendanceStatuses, Limit: listScanLimit}
	if !scope.IsAdmin() {
		filter.AreaGroupIDs = scope.GroupIDs()
		filter.AreaSectorIDs = scope.SectorIDs()
		if len(filter.AreaGroupIDs) == 0 && len(filter.AreaSectorIDs) == 0 {
			return []domain.Queue{}, nil
		}
	}
	tickets, err := store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx, clientID)
	if err != nil {
		return nil, err
	}

	index := map[areaKey]int{}
	queues := []domain.Queue{}
	for _, t := range tickets {
		k := keyOf(t.AreaGroupID, t.AreaSectorID)
		i, ok := index[k]
		if !ok {
			i = len(queues)
			index[k] = i
			queues = append(queues, domain.Queue{
				GroupID:    t.AreaGroupID,
				GroupName:  names.group(t.AreaGroupID),
				SectorID:   t.AreaSectorID,
				SectorName: names.sector(t.AreaSectorID),
			})
		}
		queues[i].Tickets = append(queues[i].Tickets, t)
	}
	return queues, nil
}

// AreasSummary returns flat per-area counts: every area for admins, managed
// areas for everyone else.
func (s *AggregationService) AreasSummary(ctx context.Context, actorID, clientID string) ([]domain.AreaSummary, error) {
	scope, store, err := s.open(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	filter := areaFilter{all: scope.IsAdmin()}
	if !filter.all {
		managed, err := s.users.ListManagedAreas(ctx, actorID)
		if err != nil {
			return nil, err
		}
		var groups, sectors []string
		for _, a := range managed {
			if a.GroupID != nil {
				groups = append(groups, *a.GroupID)
			}
			if a.SectorID != nil {
				sectors = append(sectors, *a.SectorID)
			}
		}
		filter.groups, filter.sectors = toSet(groups), toSet(sectors)
	}

	counts, err := store.Tickets().CountByArea(ctx, nil)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx, clientID)
	if err != nil {
		return nil, err
	}

	index := map[areaKey]int{}
	out := []domain.AreaSummary{}
	for _, c := range counts {
		if !filter.allows(c.GroupID, c.SectorID) {
			continue
		}
		k := keyOf(c.GroupID, c.SectorID)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, domain.AreaSummary{
				GroupID:    c.GroupID,
				GroupName:  names.group(c.GroupID),
				SectorID:   c.SectorID,
				SectorName: names.sector(c.SectorID),
				ByStatus:   map[domain.TicketStatus]int{},
			})
		}
		out[i].Total += c.Count
		out[i].ByStatus[c.Status] += c.Count
	}
	return out, nil
}

// Tree builds Group → Sector → Status counts with names. Admins see every
// group and sector; others see the areas of their queue scope that hold tickets.
func (s *AggregationService) Tree(ctx context.Context, actorID, clientID string) ([]domain.TreeGroup, error) {
	scope, store, err := s.open(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	filter := areaFilter{all: scope.IsAdmin(), groups: toSet(scope.GroupIDs()), sectors: toSet(scope.SectorIDs())}

	counts, err := store.Tickets().CountByArea(ctx, nil)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx, clientID)
	if err != nil {
		return nil, err
	}

	groupCounts := map[string]map[domain.TicketStatus]int{}
	sectorCounts := map[string]map[domain.TicketStatus]int{}
	add := func(m map[string]map[domain.TicketStatus]int, id string, st domain.TicketStatus, n int) {
		if m[id] == nil {
			m[id] = map[domain.TicketStatus]int{}
		}
		m[id][st] += n
	}
	for _, c := range counts {
		if !filter.allows(c.GroupID, c.SectorID) {
			continue
		}
		groupID := ""
		if c.GroupID != nil {
			groupID = *c.GroupID
		}
		if c.SectorID != nil {
			add(sectorCounts, *c.SectorID, c.Status, c.Count)
			if groupID == "" {
				groupID = names.sectors[*c.SectorID].GroupID
			}
		}
		if groupID != "" {
			add(groupCounts, groupID, c.Status, c.Count)
		}
	}

	sectorsByGroup := map[string][]domain.Sector{}
	for _, sec := range names.sectors {
		sectorsByGroup[sec.GroupID] = append(sectorsByGroup[sec.GroupID], sec)
	}

	tree := []domain.TreeGroup{}
	for _, g := range names.ordered {
		node := domain.TreeGroup{GroupID: g.ID, Name: g.Name, ByStatus: groupCounts[g.ID]}
		node.Total = total(node.ByStatus)
		for _, sec := range sortSectors(sectorsByGroup[g.ID]) {
			leaf := domain.TreeSector{SectorID: sec.ID, Name: sec.Name, ByStatus: sectorCounts[sec.ID]}
			leaf.Total = total(leaf.ByStatus)
			if leaf.Total == 0 && !filter.all {
				continue
			}
			if leaf.ByStatus == nil {
				leaf.ByStatus = map[domain.TicketStatus]int{}
			}
			node.Sectors = append(node.Sectors, leaf)
		}
		if node.Total == 0 && !filter.all {
			continue
		}
		if node.ByStatus == nil {
			node.ByStatus = map[domain.TicketStatus]int{}
		}
		tree = append(tree, node)
	}
	return tree, nil
}

func total(byStatus map[domain.TicketStatus]int) int {
	n := 0
	for _, c := range byStatus {
		n += c
	}
	return n
}

func sortSectors(sectors []domain.Sector) []domain.Sector {
	out := append([]domain.Sector(nil), sectors...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
