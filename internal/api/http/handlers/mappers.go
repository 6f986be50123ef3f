package handlers

import (
	"time"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/service"
	"github.com/hubportal/hub/internal/tenancy"
)

func optionalStep(step domain.WorkflowStep) *string {
	if step == domain.WorkflowStepNone {
		return nil
	}
	s := string(step)
	return &s
}

func ticketResponse(t *domain.Ticket, now time.Time) dto.TicketResponse {
	userID, groupID, sectorID := t.Assignee.Columns()
	auxiliaries := t.AuxiliaryIDs
	if auxiliaries == nil {
		auxiliaries = []string{}
	}
	return dto.TicketResponse{
		ID:               t.ID,
		Protocol:         t.Protocol,
		ClientID:         t.ClientID,
		Subject:          t.Subject,
		Status:           t.Status,
		AssigneeType:     t.Assignee.Type(),
		AssigneeUserID:   userID,
		AssigneeGroupID:  groupID,
		AssigneeSectorID: sectorID,
		AreaGroupID:      t.AreaGroupID,
		AreaSectorID:     t.AreaSectorID,
		AuxiliaryIDs:     auxiliaries,
		CreatedBy:        t.CreatedBy,
		RequestTypeID:    t.RequestTypeID,
		Amount:           t.Amount,
		Priority:         t.Priority,
		SLAHours:         t.SLAHours,
		SLABreached:      t.SLABreached(now),
		ScheduledAt:      t.ScheduledAt,
		WorkflowStep:     optionalStep(t.WorkflowStep),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		ClosedAt:         t.ClosedAt,
	}
}

func ticketResponses(tickets []domain.Ticket, now time.Time) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i], now))
	}
	return items
}

func messageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:          att.ID,
			Filename:    att.Filename,
			MimeType:    att.MimeType,
			SizeBytes:   att.SizeBytes,
			StoragePath: att.StoragePath,
		})
	}
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		TicketID:    msg.TicketID,
		AuthorID:    msg.AuthorID,
		Content:     msg.Content,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}
}

func ticketDetail(detail *service.TicketDetail, now time.Time) dto.TicketDetailResponse {
	msgs := make([]dto.TicketMessageResponse, 0, len(detail.Messages))
	for i := range detail.Messages {
		msgs = append(msgs, messageResponse(&detail.Messages[i]))
	}
	approvals := make([]dto.ApprovalLogResponse, 0, len(detail.Approvals))
	for _, entry := range detail.Approvals {
		approvals = append(approvals, dto.ApprovalLogResponse{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			Decision:  entry.Decision,
			Step:      optionalStep(entry.Step),
			Comment:   entry.Comment,
			CreatedAt: entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(detail.Ticket, now),
		Messages:       msgs,
		Approvals:      approvals,
	}
}

func attachmentInputs(reqs []dto.AttachmentRequest) []service.AttachmentInput {
	out := make([]service.AttachmentInput, 0, len(reqs))
	for _, a := range reqs {
		out = append(out, service.AttachmentInput{
			Filename:    a.Filename,
			MimeType:    a.MimeType,
			SizeBytes:   a.SizeBytes,
			StoragePath: a.StoragePath,
		})
	}
	return out
}

func notificationResponses(items []domain.Notification) []dto.NotificationResponse {
	out := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			MessageID: n.MessageID,
			Type:      n.Type,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

func requestTypeResponse(rt *domain.RequestType) dto.RequestTypeResponse {
	return dto.RequestTypeResponse{
		ID:        rt.ID,
		ParentID:  rt.ParentID,
		Name:      rt.Name,
		Code:      rt.Code,
		Weight:    rt.Weight,
		Active:    rt.Active,
		CreatedAt: rt.CreatedAt,
		UpdatedAt: rt.UpdatedAt,
	}
}

func approvers(payload []dto.ApproverPayload) []domain.Approver {
	out := make([]domain.Approver, 0, len(payload))
	for _, a := range payload {
		out = append(out, domain.Approver{UserID: a.UserID, Ordem: a.Ordem, Nivel: a.Nivel})
	}
	return out
}

func approvalConfigResponse(cfg *domain.ApprovalConfig) dto.ApprovalConfigResponse {
	groupID, sectorID, requestTypeID := cfg.Destination.Columns()
	list := make([]dto.ApproverPayload, 0, len(cfg.Approvers))
	for _, a := range cfg.Approvers {
		list = append(list, dto.ApproverPayload{UserID: a.UserID, Ordem: a.Ordem, Nivel: a.Nivel})
	}
	return dto.ApprovalConfigResponse{
		ID:               cfg.ID,
		ClientID:         cfg.ClientID,
		GroupID:          groupID,
		SectorID:         sectorID,
		RequestTypeID:    requestTypeID,
		RequiresApproval: cfg.RequiresApproval,
		WorkflowStyle:    cfg.WorkflowStyle,
		Approvers:        list,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

func tenantResponse(rec *domain.TenantRecord) dto.TenantResponse {
	return dto.TenantResponse{
		ClientID:  rec.ClientID,
		Database:  rec.Database,
		Host:      rec.Host,
		Port:      rec.Port,
		CreatedAt: rec.CreatedAt,
	}
}

func provisionResponse(res *tenancy.ProvisionResult) dto.TenantResponse {
	resp := tenantResponse(res.Record)
	resp.AlreadyExisted = &res.AlreadyExisted
	resp.DatabaseCreated = &res.DatabaseCreated
	resp.Applied = &res.Applied
	resp.Seeded = &res.Seeded
	return resp
}
