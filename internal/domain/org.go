package domain

// Client is a tenant organization of the portal.
type Client struct {
	ID     string
	Name   string
	Active bool
}

// Group is the coarse organizational unit ("Setor").
type Group struct {
	ID       string
	ClientID string
	Name     string
}

// Sector is the fine unit ("Grupo") and belongs to exactly one group.
type Sector struct {
	ID       string
	GroupID  string
	ClientID string
	Name     string
	Code     *string
}
