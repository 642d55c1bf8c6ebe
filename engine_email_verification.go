package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luminhr/authcore/internal"
	"github.com/luminhr/authcore/store"
)

const auditVerifyEmail = "email_verification"

// SendVerificationEmail issues a fresh single-use verification token for
// the account and hands it to the notifier. It reports success whether
// or not the account exists or is already verified: the response shape
// must not confirm either.
func (e *Engine) SendVerificationEmail(ctx context.Context, email, tenantSlug string) error {
	tenant, err := e.resolveTenant(ctx, tenantSlug, email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
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
			return nil
		}
		return err
	}
	if p.Deleted() || p.IsVerified {
		return nil
	}

	tok, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := ts.SetVerificationToken(ctx, p.ID, tok); err != nil {
		return err
	}

	e.deliver(ctx, p.Email, tenant.ID, e.config.Verification.Subject,
		verificationBody(tenant.Slug, tok))
	return nil
}

// ResendVerification reissues a verification token for the caller's own
// account. The caller is already authenticated, so here a verified
// account is an explicit error rather than a silent success.
func (e *Engine) ResendVerification(ctx context.Context, accessToken string) error {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return err
	}
	if p.IsVerified {
		return ErrAlreadyVerified
	}

	tok, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := ts.SetVerificationToken(ctx, p.ID, tok); err != nil {
		return err
	}

	e.deliver(ctx, p.Email, tenant.ID, e.config.Verification.Subject,
		verificationBody(tenant.Slug, tok))
	return nil
}

// VerifyEmail redeems a verification token. Consumption is atomic: the
// matching row is flipped to verified and the token cleared in one
// statement, so a second redemption of the same token fails.
func (e *Engine) VerifyEmail(ctx context.Context, email, tenantSlug, verificationToken string) error {
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

	consumed, err := ts.ConsumeVerificationToken(ctx, email, verificationToken)
	if err != nil {
		return err
	}
	if !consumed {
		e.emitAudit(ctx, auditVerifyEmail, false, "", email, tenant.ID, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditVerifyEmail, true, "", email, tenant.ID, nil, nil)
	return nil
}

// deliver hands a message to the notifier, if any. Delivery failures are
// logged and swallowed so they cannot leak account state to the caller.
func (e *Engine) deliver(ctx context.Context, toEmail, tenantID, subject, body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, toEmail, tenantID, subject, body); err != nil {
		e.logger.WarnContext(ctx, "sending notification",
			slog.String("tenant", tenantID), slog.String("error", err.Error()))
	}
}

func verificationBody(tenantSlug, token string) string {
	return fmt.Sprintf(
		"<p>Confirm your email address to activate your account.</p>"+
			"<p>Tenant: %s</p><p>Verification code: <strong>%s</strong></p>",
		tenantSlug, token)
}
