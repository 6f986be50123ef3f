// Package tenancytest provides an in-memory tenant store for tests.
package tenancytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

type data struct {
	tickets       map[string]domain.Ticket
	messages      []domain.TicketMessage
	attachments   []domain.Attachment
	notifications []domain.Notification
	approvals     []domain.ApprovalLogEntry
	requestTypes  map[string]domain.RequestType
}

func (d data) clone() data {
	out := data{
		tickets:       make(map[string]domain.Ticket, len(d.tickets)),
		messages:      append([]domain.TicketMessage(nil), d.messages...),
		attachments:   append([]domain.Attachment(nil), d.attachments...),
		notifications: append([]domain.Notification(nil), d.notifications...),
		approvals:     append([]domain.ApprovalLogEntry(nil), d.approvals...),
		requestTypes:  make(map[string]domain.RequestType, len(d.requestTypes)),
	}
	for k, v := range d.tickets {
		v.AuxiliaryIDs = append([]string(nil), v.AuxiliaryIDs...)
		out.tickets[k] = v
	}
	for k, v := range d.requestTypes {
		out.requestTypes[k] = v
	}
	return out
}

// Store is a tenancy.Store kept in memory. InTx rolls back on error.
type Store struct {
	// OnLock runs, outside the store mutex, each time a ticket row is
	// locked. Tests use it to interleave a competing writer.
	OnLock func(ticketID string)

	mu    sync.Mutex
	seq   int
	tick  time.Time
	d     data
	locks int
}

func NewStore() *Store {
	return &Store{
		tick: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		d: data{
			tickets:      map[string]domain.Ticket{},
			requestTypes: map[string]domain.RequestType{},
		},
	}
}

var _ tenancy.Store = (*Store)(nil)

func (s *Store) Tickets() repository.TicketRepository             { return ticketRepo{s} }
func (s *Store) Messages() repository.TicketMessageRepository     { return messageRepo{s} }
func (s *Store) Attachments() repository.AttachmentRepository     { return attachmentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) ApprovalLog() repository.ApprovalLogRepository    { return approvalRepo{s} }
func (s *Store) RequestTypes() repository.RequestTypeRepository   { return requestTypeRepo{s} }

func (s *Store) InTx(_ context.Context, fn func(tenancy.Store) error) error {
	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// AllNotifications returns every written notification row.
func (s *Store) AllNotifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.d.notifications...)
}

// Recipients lists the recipients of notifications of type kind for ticketID.
func (s *Store) Recipients(ticketID string, kind domain.NotificationType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.d.notifications {
		if n.TicketID == ticketID && n.Type == kind {
			out = append(out, n.RecipientID)
		}
	}
	sort.Strings(out)
	return out
}

// PutTicket stores t as is, assigning an id when missing.
func (s *Store) PutTicket(t domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = s.nextID("ticket")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
		t.UpdatedAt = t.CreatedAt
	}
	s.d.tickets[t.ID] = t
	return t
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// now advances a fake clock so rows get distinct timestamps.
func (s *Store) now() time.Time {
	s.tick = s.tick.Add(time.Second)
	return s.tick
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextID("ticket")
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	stored.AuxiliaryIDs = nil
	r.s.d.tickets[t.ID] = stored
	return nil
}

func (r ticketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.d.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = r.s.now()
	stored := *t
	stored.AuxiliaryIDs = existing.AuxiliaryIDs
	r.s.d.tickets[t.ID] = stored
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.AuxiliaryIDs = append([]string(nil), t.AuxiliaryIDs...)
	return &t, nil
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	r.s.locks++
	hook := r.s.OnLock
	r.s.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return r.GetByID(ctx, id)
}

// Locks counts GetForUpdate calls.
func (s *Store) Locks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.d.tickets {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		if (len(f.AreaGroupIDs) > 0 || len(f.AreaSectorIDs) > 0) &&
			!(ptrIn(t.AreaGroupID, f.AreaGroupIDs) || ptrIn(t.AreaSectorID, f.AreaSectorIDs)) {
			continue
		}
		if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
			continue
		}
		t.AuxiliaryIDs = append([]string(nil), t.AuxiliaryIDs...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r ticketRepo) ReplaceAuxiliaries(_ context.Context, ticketID string, userIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	t.AuxiliaryIDs = ids
	r.s.d.tickets[ticketID] = t
	return nil
}

func (r ticketRepo) CountByArea(_ context.Context, statuses []domain.TicketStatus) ([]domain.AreaCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	type key struct{ group, sector, status string }
	counts := map[key]int{}
	refs := map[key]domain.AreaCount{}
	for _, t := range r.s.d.tickets {
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		k := key{deref(t.AreaGroupID), deref(t.AreaSectorID), string(t.Status)}
		counts[k]++
		refs[k] = domain.AreaCount{GroupID: t.AreaGroupID, SectorID: t.AreaSectorID, Status: t.Status}
	}
	var out []domain.AreaCount
	for k, n := range counts {
		c := refs[k]
		c.Count = n
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if deref(a.GroupID) != deref(b.GroupID) {
			return deref(a.GroupID) < deref(b.GroupID)
		}
		if deref(a.SectorID) != deref(b.SectorID) {
			return deref(a.SectorID) < deref(b.SectorID)
		}
		return a.Status < b.Status
	})
	return out, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.tickets[msg.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	msg.ID = r.s.nextID("msg")
	msg.CreatedAt = r.s.now()
	stored := *msg
	stored.Attachments = nil
	r.s.d.messages = append(r.s.d.messages, stored)
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range r.s.d.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type attachmentRepo struct{ s *Store }

func (r attachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.nextID("att")
	a.CreatedAt = r.s.now()
	r.s.d.attachments = append(r.s.d.attachments, *a)
	return nil
}

func (r attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	messages := map[string]bool{}
	for _, m := range r.s.d.messages {
		if m.TicketID == ticketID {
			messages[m.ID] = true
		}
	}
	var out []domain.Attachment
	for _, a := range r.s.d.attachments {
		if messages[a.MessageID] {
			out = append(out, a)
		}
	}
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) CreateBatch(_ context.Context, ns []domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range ns {
		n.ID = r.s.nextID("notif")
		n.CreatedAt = r.s.now()
		r.s.d.notifications = append(r.s.d.notifications, n)
	}
	return nil
}

func (r notificationRepo) ListUnread(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for i := len(r.s.d.notifications) - 1; i >= 0; i-- {
		n := r.s.d.notifications[i]
		if n.RecipientID == recipientID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) CountUnread(_ context.Context, recipientID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, row := range r.s.d.notifications {
		if row.RecipientID == recipientID && row.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r notificationRepo) MarkTicketRead(_ context.Context, recipientID, ticketID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := r.s.now()
	for i := range r.s.d.notifications {
		row := &r.s.d.notifications[i]
		if row.RecipientID == recipientID && row.TicketID == ticketID && row.ReadAt == nil {
			row.ReadAt = &now
			n++
		}
	}
	return n, nil
}

type approvalRepo struct{ s *Store }

func (r approvalRepo) Append(_ context.Context, e *domain.ApprovalLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.nextID("approval")
	e.CreatedAt = r.s.now()
	r.s.d.approvals = append(r.s.d.approvals, *e)
	return nil
}

func (r approvalRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ApprovalLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ApprovalLogEntry
	for _, e := range r.s.d.approvals {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r approvalRepo) HasApproved(_ context.Context, ticketID, actorID string, step domain.WorkflowStep) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.d.approvals {
		if e.TicketID == ticketID && e.ActorID == actorID && e.Step == step && e.Decision == domain.DecisionApproved {
			return true, nil
		}
	}
	return false, nil
}

func (r approvalRepo) CountApprovers(_ context.Context, ticketID string, step domain.WorkflowStep) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	for _, e := range r.s.d.approvals {
		if e.TicketID == ticketID && e.Step == step && e.Decision == domain.DecisionApproved {
			seen[e.ActorID] = true
		}
	}
	return len(seen), nil
}

type requestTypeRepo struct{ s *Store }

func (r requestTypeRepo) Create(_ context.Context, rt *domain.RequestType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rt.Code != nil && r.codeTaken(*rt.Code, "") {
		return repository.ErrDuplicate
	}
	rt.ID = r.s.nextID("rt")
	rt.CreatedAt = r.s.now()
	rt.UpdatedAt = rt.CreatedAt
	r.s.d.requestTypes[rt.ID] = *rt
	return nil
}

func (r requestTypeRepo) codeTaken(code, except string) bool {
	for id, existing := range r.s.d.requestTypes {
		if id != except && existing.Code != nil && *existing.Code == code {
			return true
		}
	}
	return false
}

func (r requestTypeRepo) Update(_ context.Context, rt *domain.RequestType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.d.requestTypes[rt.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if rt.Code != nil && r.codeTaken(*rt.Code, rt.ID) {
		return repository.ErrDuplicate
	}
	rt.CreatedAt = existing.CreatedAt
	rt.UpdatedAt = r.s.now()
	r.s.d.requestTypes[rt.ID] = *rt
	return nil
}

func (r requestTypeRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.requestTypes[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.d.requestTypes, id)
	for k, child := range r.s.d.requestTypes {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			r.s.d.requestTypes[k] = child
		}
	}
	return nil
}

func (r requestTypeRepo) GetByID(_ context.Context, id string) (*domain.RequestType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rt, ok := r.s.d.requestTypes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rt, nil
}

func (r requestTypeRepo) GetByCode(_ context.Context, code string) (*domain.RequestType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rt := range r.s.d.requestTypes {
		if rt.Code != nil && *rt.Code == code {
			return &rt, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r requestTypeRepo) List(_ context.Context, activeOnly bool) ([]domain.RequestType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.RequestType
	for _, rt := range r.s.d.requestTypes {
		if activeOnly && !rt.Active {
			continue
		}
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r requestTypeRepo) CountActiveChildren(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, rt := range r.s.d.requestTypes {
		if rt.Active && rt.ParentID != nil && *rt.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r requestTypeRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.d.requestTypes), nil
}

// Resolver maps client ids to memory stores; unknown clients are not provisioned.
type Resolver map[string]*Store

func (r Resolver) StoreFor(_ context.Context, clientID string) (tenancy.Store, error) {
	s, ok := r[clientID]
	if !ok {
		return nil, errorutil.NewNotProvisioned(clientID)
	}
	return s, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func ptrIn(p *string, values []string) bool {
	if p == nil {
		return false
	}
	for _, v := range values {
		if v == *p {
			return true
		}
	}
	return false
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
