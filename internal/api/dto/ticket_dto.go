package dto

import (
	"time"

	"github.com/hubportal/hub/internal/domain"
)

// AttachmentRequest references a file already uploaded to storage.
type AttachmentRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	MimeType    string `json:"mimeType" validate:"required,max=255"`
	SizeBytes   int64  `json:"sizeBytes" validate:"gte=0"`
	StoragePath string `json:"storagePath" validate:"required"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ClientID      string                `json:"clientId" validate:"required"`
	Subject       string                `json:"subject" validate:"max=255"`
	Content       string                `json:"content" validate:"required"`
	AssigneeType  domain.AssigneeType   `json:"assigneeType" validate:"required,oneof=user group sector"`
	AssigneeID    string                `json:"assigneeId" validate:"required"`
	RequestTypeID *string               `json:"requestTypeId"`
	Amount        *float64              `json:"amount" validate:"omitempty,gte=0"`
	Priority      domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SLAHours      *int                  `json:"slaLimitHours" validate:"omitempty,gt=0"`
	Attachments   []AttachmentRequest   `json:"attachments" validate:"dive"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content     string              `json:"content" validate:"required"`
	Attachments []AttachmentRequest `json:"attachments" validate:"dive"`
}

// ForwardTicketRequest payload.
type ForwardTicketRequest struct {
	NewAssigneeID string     `json:"novoResponsavelUserId" validate:"required"`
	AuxiliaryIDs  []string   `json:"operadoresAuxiliaresIds"`
	ScheduledAt   *time.Time `json:"scheduledAt"`
	Comment       string     `json:"comentario"`
}

// FinalizeTicketRequest payload.
type FinalizeTicketRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required"`
}

// DecisionRequest carries the optional approval comment, required on reject.
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// TicketResponse is the ticket representation.
type TicketResponse struct {
	ID               string                `json:"id"`
	Protocol         string                `json:"protocol"`
	ClientID         string                `json:"clientId"`
	Subject          string                `json:"subject"`
	Status           domain.TicketStatus   `json:"status"`
	AssigneeType     domain.AssigneeType   `json:"assigneeType"`
	AssigneeUserID   *string               `json:"assigneeUserId"`
	AssigneeGroupID  *string               `json:"assigneeGroupId"`
	AssigneeSectorID *string               `json:"assigneeSectorId"`
	AreaGroupID      *string               `json:"areaGroupId"`
	AreaSectorID     *string               `json:"areaSectorId"`
	AuxiliaryIDs     []string              `json:"operadoresAuxiliaresIds"`
	CreatedBy        string                `json:"createdBy"`
	RequestTypeID    *string               `json:"requestTypeId"`
	Amount           *float64              `json:"amount"`
	Priority         domain.TicketPriority `json:"priority"`
	SLAHours         *int                  `json:"slaLimitHours"`
	SLABreached      bool                  `json:"slaBreached"`
	ScheduledAt      *time.Time            `json:"scheduledAt"`
	WorkflowStep     *string               `json:"workflowStep"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	ClosedAt         *time.Time            `json:"closedAt"`
}

// AttachmentResponse describes a stored attachment.
type AttachmentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes"`
	StoragePath string `json:"storagePath"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticketId"`
	AuthorID    string               `json:"authorId"`
	Content     string               `json:"content"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// ApprovalLogResponse is one approval decision.
type ApprovalLogResponse struct {
	ID        string                  `json:"id"`
	ActorID   string                  `json:"actorId"`
	Decision  domain.ApprovalDecision `json:"decision"`
	Step      *string                 `json:"workflowStep"`
	Comment   *string                 `json:"comment"`
	CreatedAt time.Time               `json:"createdAt"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Messages  []TicketMessageResponse `json:"messages"`
	Approvals []ApprovalLogResponse   `json:"approvals"`
}

// TicketSummaryResponse counts visible tickets.
type TicketSummaryResponse struct {
	Total       int                         `json:"total"`
	SLABreached int                         `json:"slaBreached"`
	ByStatus    map[domain.TicketStatus]int `json:"byStatus"`
}

// NotificationResponse is one inbox row.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  string                  `json:"ticketId"`
	MessageID *string                 `json:"messageId"`
	Type      domain.NotificationType `json:"type"`
	ReadAt    *time.Time              `json:"readAt"`
	CreatedAt time.Time               `json:"createdAt"`
}
