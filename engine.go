package authcore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/luminhr/authcore/internal/audit"
	"github.com/luminhr/authcore/internal/rate"
	"github.com/luminhr/authcore/moduleinfo"
	"github.com/luminhr/authcore/password"
	"github.com/luminhr/authcore/permission"
	"github.com/luminhr/authcore/store"
	"github.com/luminhr/authcore/token"
	"golang.org/x/sync/errgroup"
)

// Engine is the authentication and authorization resolution engine. It
// holds no cross-request mutable state: every operation is a short-lived
// call against the routed stores, safe under arbitrary concurrency
// across tenants and principals.
//
// Construct through [Builder.Build] and treat as immutable afterwards.
type Engine struct {
	config      Config
	router      store.Router
	tokens      *token.Issuer
	passwords   *password.Hasher
	totp        *totpManager
	limiter     *rate.Limiter
	totpLimiter *rate.TOTPLimiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	notifier    NotificationSender
	meta        moduleinfo.Lookup
	logger      *slog.Logger
	now         func() time.Time
}

// Close flushes the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil {
		e.metrics.inc(id)
	}
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, principalID, email, tenantID string, cause error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp:   e.now(),
		EventType:   eventType,
		PrincipalID: principalID,
		Email:       email,
		TenantID:    tenantID,
		IP:          clientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.Emit(ctx, event)
}

// resolveTenant looks up a tenant by explicit slug or, when no slug is
// given, by the domain portion of the email against slug and custom
// domain. Not-found comes back as ErrTenantNotFound; login paths must
// collapse it into ErrInvalidCredentials before it reaches a caller.
func (e *Engine) resolveTenant(ctx context.Context, slug, email string) (*store.Tenant, error) {
	dir := e.router.Directory()

	if slug != "" {
		t, err := dir.TenantBySlug(ctx, slug)
		return mapTenantLookup(t, err)
	}

	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return nil, ErrTenantNotFound
	}
	t, err := dir.TenantByDomain(ctx, strings.ToLower(domain))
	return mapTenantLookup(t, err)
}

func mapTenantLookup(t *store.Tenant, err error) (*store.Tenant, error) {
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

// grantContext is everything a token needs beyond the principal row:
// the effective permission snapshot, company memberships, and the
// cross-tenant access picture for the email.
type grantContext struct {
	permissions []string
	companies   []store.Company
	groupID     string
	switchable  []string
}

// resolveGrants fans out the three independent reads: permission
// aggregation (itself two concurrent queries), company membership, and
// the directory access-group lookup.
func (e *Engine) resolveGrants(ctx context.Context, ts store.TenantStore, tenant *store.Tenant, p *store.Principal) (*grantContext, error) {
	var (
		perms     []store.Permission
		companies []store.Company
		groups    []store.TenantGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		perms, err = permission.Effective(gctx, ts, tenant.ID, p.ID, e.now())
		return err
	})
	g.Go(func() error {
		var err error
		companies, err = ts.CompaniesFor(gctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = e.router.Directory().AccessibleTenants(gctx, p.Email)
		return err
	})
	if err := g.Wait(); err != nil {
		// Fail closed: no token is issued from a partial aggregation.
		return nil, err
	}

	gc := &grantContext{permissions: permission.Codes(perms)}
	gc.companies = companies
	for _, group := range groups {
		for _, gt := range group.Tenants {
			if gt.TenantID == tenant.ID {
				gc.groupID = group.ID
			}
			if gt.CanSwitch && gt.TenantID != tenant.ID {
				gc.switchable = append(gc.switchable, gt.TenantID)
			}
		}
	}
	return gc, nil
}

// accessClaimsFor flattens a resolved grant into the access token
// payload.
func accessClaimsFor(tenant *store.Tenant, p *store.Principal, gc *grantContext) token.AccessClaims {
	var (
		companyIDs []string
		primaryID  string
	)
	for _, c := range gc.companies {
		companyIDs = append(companyIDs, c.ID)
		if c.IsPrimary {
			primaryID = c.ID
		}
	}

	return token.AccessClaims{
		Email:             p.Email,
		Name:              p.FullName,
		Admin:             p.IsAdmin,
		TenantID:          tenant.ID,
		TenantSlug:        tenant.Slug,
		TenantGroupID:     gc.groupID,
		SwitchableTenants: gc.switchable,
		CompanyIDs:        companyIDs,
		PrimaryCompanyID:  primaryID,
		Permissions:       gc.permissions,
		RegisteredClaims:  token.SubjectClaims(p.ID),
	}
}

// issueTokens mints the access/refresh pair for a fully resolved grant.
func (e *Engine) issueTokens(tenant *store.Tenant, p *store.Principal, gc *grantContext) (*TokenPair, error) {
	access, err := e.tokens.SignAccess(accessClaimsFor(tenant, p, gc))
	if err != nil {
		return nil, err
	}

	refresh, err := e.tokens.SignRefresh(p.ID, tenant.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// authenticated parses an access token and re-resolves its principal in
// the tenant store. Used by every operation that takes a bearer token.
func (e *Engine) authenticated(ctx context.Context, accessToken string) (*token.AccessClaims, *store.Tenant, store.TenantStore, *store.Principal, error) {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, nil, nil, nil, ErrTokenInvalid
	}

	tenant, err := e.router.Directory().TenantByID(ctx, claims.TenantID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, nil, nil, ErrTokenInvalid
		}
		return nil, nil, nil, nil, err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	p, err := ts.PrincipalByID(ctx, claims.Subject)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, nil, nil, ErrTokenInvalid
		}
		return nil, nil, nil, nil, err
	}
	return claims, tenant, ts, p, nil
}
