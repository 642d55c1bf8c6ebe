package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luminhr/authcore/internal"
	"github.com/luminhr/authcore/store"
)

const (
	auditPasswordReset  = "password_reset"
	auditPasswordChange = "password_change"
	auditDeactivate     = "account_deactivated"
)

// ForgotPassword starts a reset: a single-use token is stored with its
// expiry and mailed out. Like SendVerificationEmail, it returns success
// for unknown accounts, and pads that path with a small delay so timing
// does not separate the two outcomes either.
func (e *Engine) ForgotPassword(ctx context.Context, email, tenantSlug string) error {
	e.metricInc(MetricPasswordResetRequest)

	tenant, err := e.resolveTenant(ctx, tenantSlug, email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			e.enumerationPause(ctx)
			return nil
		}
		return err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return err
	}

	p, err := ts.PrincipalByEmail(ctx, email)
	if err != nil {
		if err == store.ErrNotFound {
			e.enumerationPause(ctx)
			return nil
		}
		return err
	}
	if p.Deleted() {
		e.enumerationPause(ctx)
		return nil
	}

	tok, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	expiresAt := e.now().Add(e.config.Reset.TokenTTL)
	if err := ts.SetResetToken(ctx, p.ID, tok, expiresAt); err != nil {
		return err
	}

	e.emitAudit(ctx, auditPasswordReset, true, p.ID, p.Email, tenant.ID, nil,
		map[string]string{"stage": "requested"})
	e.deliver(ctx, p.Email, tenant.ID, "Reset your password",
		resetBody(tenant.Slug, tok, expiresAt))
	return nil
}

// ResetPassword redeems a reset token and installs the new password.
// Redemption is a single compare-and-clear: the token must match, be
// unexpired and unused, and it is cleared in the same statement that
// writes the new hash. Replaying a redeemed token fails.
func (e *Engine) ResetPassword(ctx context.Context, email, tenantSlug, resetToken, newPassword string) error {
	tenant, err := e.resolveTenant(ctx, tenantSlug, email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	ts, err := e.router.Tenant(ctx, tenant.ID)
	if err != nil {
		return err
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	consumed, err := ts.ConsumeResetToken(ctx, email, resetToken, hash, e.now())
	if err != nil {
		return err
	}
	if !consumed {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordReset, false, "", email, tenant.ID, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordReset, true, "", email, tenant.ID, nil,
		map[string]string{"stage": "redeemed"})
	return nil
}

// ChangePassword rotates the password for an authenticated principal.
// The current password is re-proved, and the new one must differ from
// it.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return err
	}

	ok, err := e.passwords.Verify(currentPassword, p.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	same, err := e.passwords.Verify(newPassword, p.PasswordHash)
	if err != nil {
		return err
	}
	if same {
		return ErrPasswordReuse
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := ts.UpdatePasswordHash(ctx, p.ID, hash, e.now()); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditPasswordChange, true, p.ID, p.Email, tenant.ID, nil, nil)
	return nil
}

// Deactivate soft-deletes the authenticated principal. The row survives
// for audit; logins and refreshes against it fail from this point on.
func (e *Engine) Deactivate(ctx context.Context, accessToken string) error {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := ts.SoftDeletePrincipal(ctx, p.ID, e.now()); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, auditDeactivate, true, p.ID, p.Email, tenant.ID, nil, nil)
	return nil
}

// enumerationPause holds the not-found path for roughly as long as the
// found path takes to store a token and queue a mail.
func (e *Engine) enumerationPause(ctx context.Context) {
	if e.config.Reset.EnumerationDelay <= 0 {
		return
	}
	t := time.NewTimer(e.config.Reset.EnumerationDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func resetBody(tenantSlug, token string, expiresAt time.Time) string {
	return fmt.Sprintf(
		"<p>A password reset was requested for your account.</p>"+
			"<p>Tenant: %s</p><p>Reset code: <strong>%s</strong></p>"+
			"<p>The code expires at %s.</p>",
		tenantSlug, token, expiresAt.UTC().Format(time.RFC3339))
}
