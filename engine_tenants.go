package authcore

import (
	"context"

	"github.com/google/uuid"
	"github.com/luminhr/authcore/store"
)

const auditSwitch = "tenant_switch"

// AvailableTenants lists the access groups and tenants the email can
// reach, in display order. Revoked grants and deleted tenants are
// already filtered out by the directory.
func (e *Engine) AvailableTenants(ctx context.Context, email string) ([]TenantGroup, error) {
	return e.router.Directory().AccessibleTenants(ctx, email)
}

// SwitchTenant exchanges a valid access token for a token pair scoped to
// targetTenantID. The switch is allowed only when the directory holds an
// unrevoked grant with the switch flag for this email and target, and
// the principal exists (and is not deleted) in the target tenant.
// Permissions in the new token are the target tenant's, computed fresh.
//
// Both outcomes are audited: a denied switch is as interesting to an
// operator as a granted one.
func (e *Engine) SwitchTenant(ctx context.Context, accessToken, targetTenantID string) (*TokenPair, error) {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if targetTenantID == claims.TenantID {
		return nil, ErrSwitchForbidden
	}

	dir := e.router.Directory()

	grant, err := dir.SwitchGrant(ctx, claims.Email, targetTenantID)
	if err != nil {
		if err == store.ErrNotFound {
			e.metricInc(MetricSwitchForbidden)
			e.emitAudit(ctx, auditSwitch, false, claims.Subject, claims.Email, claims.TenantID, ErrSwitchForbidden,
				map[string]string{"target_tenant": targetTenantID})
			return nil, ErrSwitchForbidden
		}
		return nil, err
	}

	target, err := dir.TenantByID(ctx, targetTenantID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSwitchForbidden
		}
		return nil, err
	}

	ts, err := e.router.Tenant(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	p, err := ts.PrincipalByEmail(ctx, claims.Email)
	if err != nil {
		if err == store.ErrNotFound {
			e.metricInc(MetricSwitchForbidden)
			e.emitAudit(ctx, auditSwitch, false, claims.Subject, claims.Email, claims.TenantID, ErrSwitchForbidden,
				map[string]string{"target_tenant": targetTenantID, "reason": "no principal in target"})
			return nil, ErrSwitchForbidden
		}
		return nil, err
	}
	if p.Deleted() {
		e.metricInc(MetricSwitchForbidden)
		return nil, ErrSwitchForbidden
	}

	gc, err := e.resolveGrants(ctx, ts, target, p)
	if err != nil {
		return nil, err
	}
	tokens, err := e.issueTokens(target, p, gc)
	if err != nil {
		return nil, err
	}

	record := store.SwitchRecord{
		ID:            uuid.NewString(),
		Email:         claims.Email,
		FromTenantID:  claims.TenantID,
		ToTenantID:    target.ID,
		TenantGroupID: grant.TenantGroupID,
		IP:            clientIPFromContext(ctx),
		UserAgent:     userAgentFromContext(ctx),
		OccurredAt:    e.now(),
	}
	if err := dir.AppendSwitch(ctx, record); err != nil {
		// The switch already happened from the caller's point of view;
		// a lost audit row is logged, not fatal.
		e.logger.WarnContext(ctx, "appending switch record", "error", err.Error())
	}

	e.metricInc(MetricSwitchSuccess)
	e.emitAudit(ctx, auditSwitch, true, p.ID, p.Email, claims.TenantID, nil,
		map[string]string{"target_tenant": target.ID, "group": grant.TenantGroupID})
	return tokens, nil
}
