// Package repositorytest holds in-memory central repositories for tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
)

// Central is an in-memory copy of the central database tables.
type Central struct {
	mu           sync.Mutex
	seq          int
	users        map[string]domain.User
	permissions  []domain.Permission
	managed      map[string][]domain.AreaRef
	clients      map[string]domain.Client
	groups       map[string]domain.Group
	sectors      map[string]domain.Sector
	proprietors  map[string][]string
	configs      map[string]domain.ApprovalConfig
	configOrder  []string
	tenants      map[string]repository.TenantRow
	tenantWrites int
}

func NewCentral() *Central {
	return &Central{
		users:       map[string]domain.User{},
		managed:     map[string][]domain.AreaRef{},
		clients:     map[string]domain.Client{},
		groups:      map[string]domain.Group{},
		sectors:     map[string]domain.Sector{},
		proprietors: map[string][]string{},
		configs:     map[string]domain.ApprovalConfig{},
		tenants:     map[string]repository.TenantRow{},
	}
}

func (c *Central) AddClient(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[id] = domain.Client{ID: id, Name: name, Active: true}
}

func (c *Central) AddGroup(id, clientID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[id] = domain.Group{ID: id, ClientID: clientID, Name: name}
}

func (c *Central) AddSector(id, groupID, name, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := domain.Sector{ID: id, GroupID: groupID, ClientID: c.groups[groupID].ClientID, Name: name}
	if code != "" {
		s.Code = &code
	}
	c.sectors[id] = s
}

// AddUser stores u, defaulting it to active.
func (c *Central) AddUser(u domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u.Active = true
	c.users[u.ID] = u
}

func (c *Central) Grant(p domain.Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissions = append(c.permissions, p)
}

func (c *Central) AddProprietor(clientID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proprietors[clientID] = append(c.proprietors[clientID], userID)
}

func (c *Central) Manage(userID string, area domain.AreaRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.managed[userID] = append(c.managed[userID], area)
}

// TenantWrites counts tenant rows created.
func (c *Central) TenantWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenantWrites
}

func (c *Central) Users() repository.UserRepository                     { return userRepo{c} }
func (c *Central) Org() repository.OrgRepository                        { return orgRepo{c} }
func (c *Central) ApprovalConfigs() repository.ApprovalConfigRepository { return configRepo{c} }
func (c *Central) Tenants() repository.TenantRepository                 { return tenantRepo{c} }

func (c *Central) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%d", prefix, c.seq)
}

type userRepo struct{ c *Central }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	u, ok := r.c.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.c.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r userRepo) ListPermissions(_ context.Context, userID string) ([]domain.Permission, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.Permission
	for _, p := range r.c.permissions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r userRepo) ListAreaMembers(_ context.Context, clientID string, area domain.AreaRef) ([]domain.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.User
	for _, u := range r.c.users {
		if !u.Active || !u.CanReceiveTickets {
			continue
		}
		if r.c.inArea(u, clientID, area) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Central) inArea(u domain.User, clientID string, area domain.AreaRef) bool {
	if area.GroupID != nil && eq(u.PrimaryGroupID, *area.GroupID) {
		return true
	}
	if area.SectorID != nil && eq(u.PrimarySectorID, *area.SectorID) {
		return true
	}
	for _, p := range c.permissions {
		if p.UserID != u.ID || p.ClientID != clientID {
			continue
		}
		if area.GroupID != nil && eq(p.GroupID, *area.GroupID) {
			return true
		}
		if area.SectorID != nil && eq(p.SectorID, *area.SectorID) {
			return true
		}
	}
	return false
}

func (r userRepo) ListManagedAreas(_ context.Context, userID string) ([]domain.AreaRef, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return append([]domain.AreaRef(nil), r.c.managed[userID]...), nil
}

type orgRepo struct{ c *Central }

func (r orgRepo) GetClient(_ context.Context, id string) (*domain.Client, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cl, ok := r.c.clients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &cl, nil
}

func (r orgRepo) GetGroup(_ context.Context, id string) (*domain.Group, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	g, ok := r.c.groups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &g, nil
}

func (r orgRepo) GetSector(_ context.Context, id string) (*domain.Sector, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.sectors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (r orgRepo) GetSectorByCode(_ context.Context, clientID, code string) (*domain.Sector, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, s := range r.c.sectors {
		if s.ClientID == clientID && eq(s.Code, code) {
			return &s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r orgRepo) ListGroups(_ context.Context, clientID string) ([]domain.Group, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.Group
	for _, g := range r.c.groups {
		if g.ClientID == clientID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r orgRepo) ListSectors(_ context.Context, clientID string) ([]domain.Sector, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.Sector
	for _, s := range r.c.sectors {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r orgRepo) ListProprietors(_ context.Context, clientID string) ([]string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return append([]string(nil), r.c.proprietors[clientID]...), nil
}

func (r orgRepo) ListClientIDs(_ context.Context) ([]string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []string
	for id, cl := range r.c.clients {
		if cl.Active {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type configRepo struct{ c *Central }

func (r configRepo) Create(_ context.Context, cfg *domain.ApprovalConfig) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, existing := range r.c.configs {
		if existing.ClientID == cfg.ClientID && existing.Destination == cfg.Destination {
			return repository.ErrDuplicate
		}
	}
	cfg.ID = r.c.nextID("cfg")
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	r.c.configs[cfg.ID] = cloneConfig(*cfg)
	r.c.configOrder = append(r.c.configOrder, cfg.ID)
	return nil
}

func (r configRepo) Update(_ context.Context, cfg *domain.ApprovalConfig) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	existing, ok := r.c.configs[cfg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.RequiresApproval = cfg.RequiresApproval
	existing.WorkflowStyle = cfg.WorkflowStyle
	existing.Approvers = append([]domain.Approver(nil), cfg.Approvers...)
	existing.UpdatedAt = time.Now()
	cfg.UpdatedAt = existing.UpdatedAt
	r.c.configs[cfg.ID] = existing
	return nil
}

func (r configRepo) Delete(_ context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.configs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.c.configs, id)
	return nil
}

func (r configRepo) GetByID(_ context.Context, id string) (*domain.ApprovalConfig, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cfg, ok := r.c.configs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneConfig(cfg)
	return &out, nil
}

func (r configRepo) ListByClient(_ context.Context, clientID string) ([]domain.ApprovalConfig, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []domain.ApprovalConfig
	for _, id := range r.c.configOrder {
		if cfg, ok := r.c.configs[id]; ok && cfg.ClientID == clientID {
			out = append(out, cloneConfig(cfg))
		}
	}
	return out, nil
}

func (r configRepo) FindByDestination(_ context.Context, clientID string, dest domain.Destination) (*domain.ApprovalConfig, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, cfg := range r.c.configs {
		if cfg.ClientID == clientID && cfg.Destination == dest {
			out := cloneConfig(cfg)
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func cloneConfig(cfg domain.ApprovalConfig) domain.ApprovalConfig {
	cfg.Approvers = append([]domain.Approver(nil), cfg.Approvers...)
	return cfg
}

type tenantRepo struct{ c *Central }

func (r tenantRepo) Get(_ context.Context, clientID string) (*repository.TenantRow, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	row, ok := r.c.tenants[clientID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (r tenantRepo) Create(_ context.Context, row *repository.TenantRow) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.tenants[row.ClientID]; ok {
		return repository.ErrDuplicate
	}
	row.CreatedAt = time.Now()
	r.c.tenants[row.ClientID] = *row
	r.c.tenantWrites++
	return nil
}

func (r tenantRepo) List(_ context.Context) ([]repository.TenantRow, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []repository.TenantRow
	for _, row := range r.c.tenants {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func eq(p *string, v string) bool {
	return p != nil && *p == v
}
