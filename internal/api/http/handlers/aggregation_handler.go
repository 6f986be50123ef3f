package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/service"
)

// AggregationHandler serves queue and tree rollups.
type AggregationHandler struct {
	service *service.AggregationService
	now     func() time.Time
}

// NewAggregationHandler constructs handler.
func NewAggregationHandler(aggregation *service.AggregationService) *AggregationHandler {
	return &AggregationHandler{service: aggregation, now: time.Now}
}

// Queues GET /helpdesk/queues.
func (h *AggregationHandler) Queues(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	queues, err := h.service.Queues(c.UserContext(), actor, clientID(c))
	if err != nil {
		return err
	}
	now := h.now()
	items := make([]dto.QueueResponse, 0, len(queues))
	for _, q := range queues {
		items = append(items, dto.QueueResponse{
			GroupID:    q.GroupID,
			GroupName:  q.GroupName,
			SectorID:   q.SectorID,
			SectorName: q.SectorName,
			Tickets:    ticketResponses(q.Tickets, now),
		})
	}
	return data(c, items)
}

// AreasSummary GET /helpdesk/areas/summary.
func (h *AggregationHandler) AreasSummary(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	areas, err := h.service.AreasSummary(c.UserContext(), actor, clientID(c))
	if err != nil {
		return err
	}
	items := make([]dto.AreaSummaryResponse, 0, len(areas))
	for _, a := range areas {
		items = append(items, dto.AreaSummaryResponse{
			GroupID:    a.GroupID,
			GroupName:  a.GroupName,
			SectorID:   a.SectorID,
			SectorName: a.SectorName,
			Total:      a.Total,
			ByStatus:   a.ByStatus,
		})
	}
	return data(c, items)
}

// Tree GET /helpdesk/tree.
func (h *AggregationHandler) Tree(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	groups, err := h.service.Tree(c.UserContext(), actor, clientID(c))
	if err != nil {
		return err
	}
	items := make([]dto.TreeGroupResponse, 0, len(groups))
	for _, g := range groups {
		sectors := make([]dto.TreeSectorResponse, 0, len(g.Sectors))
		for _, s := range g.Sectors {
			sectors = append(sectors, dto.TreeSectorResponse{
				SectorID: s.SectorID,
				Name:     s.Name,
				Total:    s.Total,
				ByStatus: s.ByStatus,
			})
		}
		items = append(items, dto.TreeGroupResponse{
			GroupID:  g.GroupID,
			Name:     g.Name,
			Total:    g.Total,
			ByStatus: g.ByStatus,
			Sectors:  sectors,
		})
	}
	return data(c, items)
}
