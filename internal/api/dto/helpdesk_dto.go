package dto

import (
	"time"

	"github.com/hubportal/hub/internal/domain"
)

// RequestTypeRequest is the create and replace payload of a taxonomy node.
type RequestTypeRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parentId"`
	Code     *string `json:"code" validate:"omitempty,max=100"`
	Weight   int     `json:"weight"`
	Active   *bool   `json:"active"`
}

// RequestTypeStatusRequest toggles a node.
type RequestTypeStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// RequestTypeResponse is one taxonomy node.
type RequestTypeResponse struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parentId"`
	Name      string    `json:"name"`
	Code      *string   `json:"code"`
	Weight    int       `json:"weight"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApproverPayload is an approver with its optional chain position and level.
type ApproverPayload struct {
	UserID string `json:"userId" validate:"required"`
	Ordem  *int   `json:"ordem" validate:"omitempty,gte=0"`
	Nivel  *int   `json:"nivel" validate:"omitempty,gte=0"`
}

// CreateApprovalConfigRequest payload.
type CreateApprovalConfigRequest struct {
	ClientID         string               `json:"clientId" validate:"required"`
	GroupID          *string              `json:"groupId"`
	SectorID         *string              `json:"sectorId"`
	RequestTypeID    *string              `json:"requestTypeId"`
	RequiresApproval bool                 `json:"exigeAprovacao"`
	WorkflowStyle    domain.WorkflowStyle `json:"workflowStyle" validate:"omitempty,oneof=hierarchical by_level"`
	Approvers        []ApproverPayload    `json:"approvers" validate:"dive"`
}

// UpdateApprovalConfigRequest payload. Approvers replaces the list when present.
type UpdateApprovalConfigRequest struct {
	RequiresApproval *bool                 `json:"exigeAprovacao"`
	WorkflowStyle    *domain.WorkflowStyle `json:"workflowStyle" validate:"omitempty,oneof=hierarchical by_level"`
	Approvers        *[]ApproverPayload    `json:"approvers" validate:"omitempty,dive"`
}

// ApprovalConfigResponse is one configuration.
type ApprovalConfigResponse struct {
	ID               string               `json:"id"`
	ClientID         string               `json:"clientId"`
	GroupID          *string              `json:"groupId"`
	SectorID         *string              `json:"sectorId"`
	RequestTypeID    *string              `json:"requestTypeId"`
	RequiresApproval bool                 `json:"exigeAprovacao"`
	WorkflowStyle    domain.WorkflowStyle `json:"workflowStyle"`
	Approvers        []ApproverPayload    `json:"approvers"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// QueueResponse lists the awaiting tickets of one area.
type QueueResponse struct {
	GroupID    *string          `json:"groupId"`
	GroupName  string           `json:"groupName"`
	SectorID   *string          `json:"sectorId"`
	SectorName string           `json:"sectorName"`
	Tickets    []TicketResponse `json:"tickets"`
}

// AreaSummaryResponse is the flat per-area rollup.
type AreaSummaryResponse struct {
	GroupID    *string                     `json:"groupId"`
	GroupName  string                      `json:"groupName"`
	SectorID   *string                     `json:"sectorId"`
	SectorName string                      `json:"sectorName"`
	Total      int                         `json:"total"`
	ByStatus   map[domain.TicketStatus]int `json:"byStatus"`
}

// TreeSectorResponse is a sector leaf.
type TreeSectorResponse struct {
	SectorID string                      `json:"sectorId"`
	Name     string                      `json:"name"`
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"byStatus"`
}

// TreeGroupResponse is a group node.
type TreeGroupResponse struct {
	GroupID  string                      `json:"groupId"`
	Name     string                      `json:"name"`
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"byStatus"`
	Sectors  []TreeSectorResponse        `json:"sectors"`
}

// TenantResponse describes a provisioned tenant. The password never leaves the directory.
type TenantResponse struct {
	ClientID        string                   `json:"clientId"`
	Database        string                   `json:"database"`
	Host            string                   `json:"host"`
	Port            int                      `json:"port"`
	AlreadyExisted  *bool                    `json:"alreadyExisted,omitempty"`
	DatabaseCreated *bool                    `json:"databaseCreated,omitempty"`
	Applied         *int                     `json:"migrationsApplied,omitempty"`
	Seeded          *bool                    `json:"taxonomySeeded,omitempty"`
	Migrations      []MigrationStateResponse `json:"migrations,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
}

// MigrationStateResponse is one ledger row.
type MigrationStateResponse struct {
	Version   int64      `json:"version"`
	Source    string     `json:"source"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"appliedAt"`
}
