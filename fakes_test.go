package authcore

import (
	"context"
	"sync"
	"time"

	"github.com/luminhr/authcore/store"
)

// fakeDirectory is an in-memory DirectoryStore.
type fakeDirectory struct {
	mu       sync.Mutex
	tenants  []*store.Tenant
	groups   map[string][]store.TenantGroup // email -> groups
	grants   map[string]*store.TenantAccess // email + "|" + tenantID
	switches []store.SwitchRecord
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		groups: make(map[string][]store.TenantGroup),
		grants: make(map[string]*store.TenantAccess),
	}
}

func (d *fakeDirectory) addTenant(t *store.Tenant) { d.tenants = append(d.tenants, t) }

func (d *fakeDirectory) addGrant(g *store.TenantAccess) {
	d.grants[g.Email+"|"+g.TenantID] = g
}

func (d *fakeDirectory) TenantBySlug(_ context.Context, slug string) (*store.Tenant, error) {
	for _, t := range d.tenants {
		if t.Slug == slug && t.DeletedAt == nil {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *fakeDirectory) TenantByDomain(_ context.Context, domain string) (*store.Tenant, error) {
	for _, t := range d.tenants {
		if (t.CustomDomain == domain || t.Slug == domain) && t.DeletedAt == nil {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *fakeDirectory) TenantByID(_ context.Context, id string) (*store.Tenant, error) {
	for _, t := range d.tenants {
		if t.ID == id && t.DeletedAt == nil {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *fakeDirectory) AccessibleTenants(_ context.Context, email string) ([]store.TenantGroup, error) {
	return d.groups[email], nil
}

func (d *fakeDirectory) SwitchGrant(_ context.Context, email, targetTenantID string) (*store.TenantAccess, error) {
	g, ok := d.grants[email+"|"+targetTenantID]
	if !ok || !g.CanAccess || !g.CanSwitch || g.RevokedAt != nil {
		return nil, store.ErrNotFound
	}
	return g, nil
}

func (d *fakeDirectory) AppendSwitch(_ context.Context, rec store.SwitchRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switches = append(d.switches, rec)
	return nil
}

func (d *fakeDirectory) switchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.switches)
}

// fakeTenantStore is an in-memory TenantStore for one tenant.
type fakeTenantStore struct {
	mu          sync.Mutex
	tenantID    string
	principals  map[string]*store.Principal // by id
	activeCodes []string
	grants      map[string][]store.Permission // principal id -> grant union
	companies   map[string][]store.Company

	resetTokens  map[string]resetToken // principal id -> pending reset
	verifyTokens map[string]string     // principal id -> pending verification
}

type resetToken struct {
	token     string
	expiresAt time.Time
}

func newFakeTenantStore(tenantID string) *fakeTenantStore {
	return &fakeTenantStore{
		tenantID:     tenantID,
		principals:   make(map[string]*store.Principal),
		grants:       make(map[string][]store.Permission),
		companies:    make(map[string][]store.Company),
		resetTokens:  make(map[string]resetToken),
		verifyTokens: make(map[string]string),
	}
}

func (s *fakeTenantStore) addPrincipal(p *store.Principal) {
	s.principals[p.ID] = p
}

func (s *fakeTenantStore) PrincipalByIdentifier(_ context.Context, identifier string) (*store.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.principals {
		if (p.Email == identifier || p.FullName == identifier) && p.DeletedAt == nil {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeTenantStore) PrincipalByEmail(_ context.Context, email string) (*store.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.principals {
		if p.Email == email && p.DeletedAt == nil {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeTenantStore) PrincipalByID(_ context.Context, id string) (*store.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok || p.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *fakeTenantStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.FailedLoginAttempts = 0
		p.LastLoginAt = &at
	}
	return nil
}

func (s *fakeTenantStore) RecordLoginFailure(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.FailedLoginAttempts++
	}
	return nil
}

func (s *fakeTenantStore) UpdatePasswordHash(_ context.Context, id, hash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.PasswordHash = hash
		p.PasswordChangedAt = &changedAt
	}
	return nil
}

func (s *fakeTenantStore) SetTwoFactorSecret(_ context.Context, id, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.TwoFactorSecret = secret
		p.TwoFactorEnabled = false
	}
	return nil
}

func (s *fakeTenantStore) EnableTwoFactor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.TwoFactorEnabled = true
	}
	return nil
}

func (s *fakeTenantStore) DisableTwoFactor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.TwoFactorEnabled = false
		p.TwoFactorSecret = ""
	}
	return nil
}

func (s *fakeTenantStore) SetVerificationToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyTokens[id] = token
	return nil
}

func (s *fakeTenantStore) ConsumeVerificationToken(_ context.Context, email, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.principals {
		if p.Email != email || p.DeletedAt != nil {
			continue
		}
		if pending, ok := s.verifyTokens[id]; ok && pending == token && token != "" {
			p.IsVerified = true
			delete(s.verifyTokens, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTenantStore) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[id] = resetToken{token: token, expiresAt: expiresAt}
	return nil
}

func (s *fakeTenantStore) ConsumeResetToken(_ context.Context, email, token, newHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.principals {
		if p.Email != email || p.DeletedAt != nil {
			continue
		}
		pending, ok := s.resetTokens[id]
		if !ok || pending.token != token || token == "" || !pending.expiresAt.After(now) {
			continue
		}
		p.PasswordHash = newHash
		p.PasswordChangedAt = &now
		delete(s.resetTokens, id)
		return true, nil
	}
	return false, nil
}

func (s *fakeTenantStore) SoftDeletePrincipal(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.DeletedAt = &at
	}
	return nil
}

func (s *fakeTenantStore) ActiveModuleCodes(_ context.Context, _ string, _ time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activeCodes...), nil
}

func (s *fakeTenantStore) GrantsFor(_ context.Context, id string) ([]store.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Permission(nil), s.grants[id]...), nil
}

func (s *fakeTenantStore) CompaniesFor(_ context.Context, id string) ([]store.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Company(nil), s.companies[id]...), nil
}

// fakeRouter routes to in-memory stores.
type fakeRouter struct {
	directory *fakeDirectory
	stores    map[string]*fakeTenantStore
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{directory: newFakeDirectory(), stores: make(map[string]*fakeTenantStore)}
}

func (r *fakeRouter) addTenant(t *store.Tenant) *fakeTenantStore {
	r.directory.addTenant(t)
	ts := newFakeTenantStore(t.ID)
	r.stores[t.ID] = ts
	return ts
}

func (r *fakeRouter) Directory() store.DirectoryStore { return r.directory }

func (r *fakeRouter) Tenant(_ context.Context, tenantID string) (store.TenantStore, error) {
	ts, ok := r.stores[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ts, nil
}
