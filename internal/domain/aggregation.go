package domain

// AreaCount is a per-area, per-status ticket count.
type AreaCount struct {
	GroupID  *string
	SectorID *string
	Status   TicketStatus
	Count    int
}

// AreaSummary is the flat per-area rollup for managers.
type AreaSummary struct {
	GroupID    *string
	GroupName  string
	SectorID   *string
	SectorName string
	Total      int
	ByStatus   map[TicketStatus]int
}

// Queue lists awaiting-attendance tickets of one area.
type Queue struct {
	GroupID    *string
	GroupName  string
	SectorID   *string
	SectorName string
	Tickets    []Ticket
}

// TreeGroup is the root level of the Group → Sector → Status tree.
type TreeGroup struct {
	GroupID  string
	Name     string
	Total    int
	ByStatus map[TicketStatus]int
	Sectors  []TreeSector
}

// TreeSector is the second level of the tree.
type TreeSector struct {
	SectorID string
	Name     string
	Total    int
	ByStatus map[TicketStatus]int
}
