package authcore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/luminhr/authcore/internal/rate"
	"github.com/luminhr/authcore/store"
)

const (
	auditLogin     = "login"
	auditTwoFactor = "login_2fa"
)

// Login resolves the tenant, verifies the credential and either returns
// a token pair or a two-factor challenge. tenantSlug may be empty, in
// which case the tenant is inferred from the email domain.
//
// Every failure that depends on account state — unknown tenant, unknown
// principal, deleted principal, wrong password — surfaces as
// ErrInvalidCredentials so the response shape never confirms that an
// account exists. ErrAccountLocked and ErrLoginRateLimited are the only
// state-revealing outcomes, and both are deliberate.
func (e *Engine) Login(ctx context.Context, identifier, secret, tenantSlug string) (*LoginResult, error) {
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.Check(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditLogin, false, "", identifier, "", ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			// Fail closed when the throttle backend is down.
			return nil, err
		}
	}

	tenant, ts, p, err := e.verifyCredentials(ctx, identifier, secret, tenantSlug)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.metricInc(MetricLoginFailure)
			if e.limiter != nil {
				if rerr := e.limiter.RecordFailure(ctx, identifier, ip); rerr != nil && !errors.Is(rerr, rate.ErrRateLimited) {
					e.logger.WarnContext(ctx, "recording login failure", slog.String("error", rerr.Error()))
				}
			}
		}
		tenantID := ""
		if tenant != nil {
			tenantID = tenant.ID
		}
		e.emitAudit(ctx, auditLogin, false, "", identifier, tenantID, err, nil)
		return nil, err
	}

	if p.TwoFactorEnabled {
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditLogin, true, p.ID, p.Email, tenant.ID, nil, map[string]string{"stage": "2fa_challenge"})
		return &LoginResult{
			TwoFactorRequired: true,
			SubjectID:         p.ID,
			Email:             p.Email,
			TenantID:          tenant.ID,
			TenantSlug:        tenant.Slug,
		}, nil
	}

	return e.completeLogin(ctx, tenant, ts, p, identifier, auditLogin)
}

// VerifyTwoFactor finishes a login that returned TwoFactorRequired. The
// caller re-identifies the pending account by email and tenant; the code
// is checked against the enrolled secret with the configured skew.
func (e *Engine) VerifyTwoFactor(ctx context.Context, email, tenantSlug, code string) (*LoginResult, error) {
	tenant, err := e.resolveTenant(ctx, tenantSlug, email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	p, err := ts.PrincipalByEmail(ctx, email)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if p.Deleted() {
		return nil, ErrInvalidCredentials
	}
	if !p.TwoFactorEnabled || p.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotEnabled
	}

	// A six-digit code inside a skew window is guessable; budget the
	// attempts per principal before doing any HMAC work.
	if e.totpLimiter != nil {
		if err := e.totpLimiter.Check(ctx, p.ID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditTwoFactor, false, p.ID, p.Email, tenant.ID, ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			return nil, err
		}
	}

	ok, err := e.totp.VerifyCode(p.TwoFactorSecret, code, e.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		if e.totpLimiter != nil {
			if rerr := e.totpLimiter.RecordFailure(ctx, p.ID); rerr != nil && !errors.Is(rerr, rate.ErrRateLimited) {
				e.logger.WarnContext(ctx, "recording two-factor failure", slog.String("error", rerr.Error()))
			}
		}
		e.emitAudit(ctx, auditTwoFactor, false, p.ID, p.Email, tenant.ID, ErrInvalidTwoFactorCode, nil)
		return nil, ErrInvalidTwoFactorCode
	}

	if e.totpLimiter != nil {
		if err := e.totpLimiter.Reset(ctx, p.ID); err != nil {
			e.logger.WarnContext(ctx, "resetting two-factor counter", slog.String("error", err.Error()))
		}
	}
	e.metricInc(MetricTwoFactorSuccess)
	return e.completeLogin(ctx, tenant, ts, p, email, auditTwoFactor)
}

// verifyCredentials resolves tenant and principal and checks the
// password. It returns the tenant even on failure so audit records can
// carry it; the error is already collapsed for enumeration safety.
func (e *Engine) verifyCredentials(ctx context.Context, identifier, secret, tenantSlug string) (*store.Tenant, store.TenantStore, *store.Principal, error) {
	tenant, err := e.resolveTenant(ctx, tenantSlug, identifier)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, nil, nil, ErrInvalidCredentials
		}
		return nil, nil, nil, err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return tenant, nil, nil, err
	}

	p, err := ts.PrincipalByIdentifier(ctx, identifier)
	if err != nil {
		if err == store.ErrNotFound {
			// Burn a hash anyway so the miss is not observable by timing.
			e.passwords.DummyVerify(secret)
			return tenant, nil, nil, ErrInvalidCredentials
		}
		return tenant, nil, nil, err
	}
	if p.Deleted() {
		return tenant, nil, nil, ErrInvalidCredentials
	}

	// Lockout is an explicit gate: only the stored timestamp locks, never
	// the attempt counter by itself.
	if p.LockedUntil != nil && p.LockedUntil.After(e.now()) {
		return tenant, nil, nil, ErrAccountLocked
	}

	ok, err := e.passwords.Verify(secret, p.PasswordHash)
	if err != nil {
		return tenant, nil, nil, err
	}
	if !ok {
		if err := ts.RecordLoginFailure(ctx, p.ID); err != nil {
			e.logger.WarnContext(ctx, "recording failed attempt",
				slog.String("tenant", tenant.ID), slog.String("error", err.Error()))
		}
		return tenant, nil, nil, ErrInvalidCredentials
	}

	return tenant, ts, p, nil
}

// completeLogin is shared by the password and second-factor paths once
// the principal is fully authenticated.
func (e *Engine) completeLogin(ctx context.Context, tenant *store.Tenant, ts store.TenantStore, p *store.Principal, identifier, eventType string) (*LoginResult, error) {
	gc, err := e.resolveGrants(ctx, ts, tenant, p)
	if err != nil {
		return nil, err
	}
	tokens, err := e.issueTokens(tenant, p, gc)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := ts.RecordLoginSuccess(ctx, p.ID, now); err != nil {
		e.logger.WarnContext(ctx, "recording login success",
			slog.String("tenant", tenant.ID), slog.String("error", err.Error()))
	}
	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, identifier, clientIPFromContext(ctx)); err != nil {
			e.logger.WarnContext(ctx, "resetting login counters", slog.String("error", err.Error()))
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, eventType, true, p.ID, p.Email, tenant.ID, nil, nil)

	return &LoginResult{
		Tokens:     tokens,
		SubjectID:  p.ID,
		Email:      p.Email,
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
	}, nil
}
