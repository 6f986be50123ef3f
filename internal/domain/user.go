package domain

import "time"

// User is a portal account read from the central directory.
type User struct {
	ID                string
	Name              string
	Email             string
	IsAdmin           bool
	CanReceiveTickets bool
	CanForwardTickets bool
	PrimaryGroupID    *string
	PrimarySectorID   *string
	Active            bool
	CreatedAt         time.Time
}

// Permission grants a user access to a client, optionally narrowed to a group or sector.
type Permission struct {
	UserID   string
	ClientID string
	GroupID  *string
	SectorID *string
}

// AreaRef points at a group or a sector.
type AreaRef struct {
	GroupID  *string
	SectorID *string
}
