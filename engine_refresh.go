package authcore

import (
	"context"

	"github.com/luminhr/authcore/store"
)

const auditRefresh = "token_refresh"

// Refresh exchanges a valid refresh token for a fresh access token. The
// principal is re-resolved and permissions, companies and switchable
// tenants are recomputed from source, so revocations and module
// expirations take effect at the next refresh rather than living on in
// old snapshots. The refresh token itself is returned unchanged; it is
// stateless and stays valid until its own expiry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}

	tenant, err := e.router.Directory().TenantByID(ctx, claims.TenantID)
	if err != nil {
		if err == store.ErrNotFound {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	p, err := ts.PrincipalByID(ctx, claims.Subject)
	if err != nil {
		if err == store.ErrNotFound {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditRefresh, false, claims.Subject, "", tenant.ID, ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if p.Deleted() {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, p.ID, p.Email, tenant.ID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}
	// Locked accounts are refused like any other invalid token; refresh
	// is a verification path and must not reveal account state.
	if p.LockedUntil != nil && p.LockedUntil.After(e.now()) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, p.ID, p.Email, tenant.ID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	gc, err := e.resolveGrants(ctx, ts, tenant, p)
	if err != nil {
		return nil, err
	}

	access, err := e.tokens.SignAccess(accessClaimsFor(tenant, p, gc))
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefresh, true, p.ID, p.Email, tenant.ID, nil, nil)
	return &TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}
