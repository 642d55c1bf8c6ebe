package authcore

import (
	"sync"
	"testing"
	"time"

	"github.com/luminhr/authcore/password"
	"github.com/luminhr/authcore/store"
)

// Light argon2 parameters keep the suite fast; NewHasher enforces these
// as the floor.
var testHashParams = password.Params{
	MemoryKB:    8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   16,
}

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func newTestClock() *testClock {
	return &testClock{at: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func hashPassword(t *testing.T, secret string) string {
	t.Helper()
	h, err := password.NewHasher(testHashParams)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := h.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789ab")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789a")
	cfg.Password = testHashParams
	cfg.Reset.EnumerationDelay = 0
	cfg.Audit.Enabled = false
	return cfg
}

// testEnv is the standard two-tenant fixture: jane has accounts in both
// acme and beta, a directory grant allowing the switch to beta, HR and
// REPORTS grants in acme but only the HR module active there.
type testEnv struct {
	engine *Engine
	router *fakeRouter
	clock  *testClock
	acme   *fakeTenantStore
	beta   *fakeTenantStore
}

const (
	janeEmail    = "jane@acme.example"
	janePassword = "correct horse battery"
)

func newTestEnv(t *testing.T, mutate ...func(cfg *Config, b *Builder)) *testEnv {
	t.Helper()

	router := newFakeRouter()
	clock := newTestClock()

	acme := router.addTenant(&store.Tenant{ID: "t-acme", Name: "Acme", Slug: "acme", CustomDomain: "acme.example"})
	beta := router.addTenant(&store.Tenant{ID: "t-beta", Name: "Beta", Slug: "beta"})

	hash := hashPassword(t, janePassword)
	acme.addPrincipal(&store.Principal{
		ID:           "u-jane-acme",
		Email:        janeEmail,
		FullName:     "Jane Doe",
		PasswordHash: hash,
		IsVerified:   true,
	})
	beta.addPrincipal(&store.Principal{
		ID:           "u-jane-beta",
		Email:        janeEmail,
		FullName:     "Jane Doe",
		PasswordHash: hash,
		IsVerified:   true,
	})

	acme.activeCodes = []string{"HR"}
	acme.grants["u-jane-acme"] = []store.Permission{
		{ID: "p1", ModuleCode: "HR", Code: "hr.employees.view", Action: "view", Category: "HR"},
		{ID: "p2", ModuleCode: "HR", Code: "hr.employees.edit", Action: "edit", Category: "HR"},
		{ID: "p3", ModuleCode: "REPORTS", Code: "reports.view", Action: "view", Category: "REPORTS"},
	}
	acme.companies["u-jane-acme"] = []store.Company{
		{ID: "c-main", Name: "Acme Main", IsPrimary: true},
		{ID: "c-sub", Name: "Acme Sub"},
	}

	beta.activeCodes = []string{"TICKETS"}
	beta.grants["u-jane-beta"] = []store.Permission{
		{ID: "p9", ModuleCode: "TICKETS", Code: "tickets.view", Action: "view", Category: "TICKETS"},
	}

	router.directory.groups[janeEmail] = []store.TenantGroup{{
		ID:   "g-1",
		Name: "Acme Group",
		Tenants: []store.GroupTenant{
			{TenantID: "t-acme", TenantName: "Acme", TenantSlug: "acme", CanSwitch: true, DisplayOrder: 1},
			{TenantID: "t-beta", TenantName: "Beta", TenantSlug: "beta", CanSwitch: true, DisplayOrder: 2},
		},
	}}
	router.directory.addGrant(&store.TenantAccess{
		Email:         janeEmail,
		TenantID:      "t-beta",
		TenantGroupID: "g-1",
		CanAccess:     true,
		CanSwitch:     true,
		GrantedAt:     clock.Now(),
	})

	cfg := testConfig()
	builder := New().WithRouter(router).WithClock(clock.Now)
	for _, m := range mutate {
		m(&cfg, builder)
	}
	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, router: router, clock: clock, acme: acme, beta: beta}
}
