package authcore

import (
	"context"
)

const auditTwoFactorAdmin = "2fa_settings"

// BeginTwoFactorSetup generates and stores a fresh TOTP secret for the
// authenticated principal and returns it with the otpauth:// enrollment
// URI. The second factor stays disabled until [Engine.ConfirmTwoFactor]
// sees a valid code, so an abandoned setup never locks anyone out.
// Calling it again replaces any pending secret. Once the factor is
// confirmed, setup is refused with ErrTwoFactorAlreadyEnabled: storing a
// new secret clears the enabled flag, so allowing it here would let a
// bearer token strip an enrolled factor without the password re-proof
// that [Engine.DisableTwoFactor] demands.
func (e *Engine) BeginTwoFactorSetup(ctx context.Context, accessToken string) (*TwoFactorSetup, error) {
	_, _, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if p.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := ts.SetTwoFactorSecret(ctx, p.ID, secret); err != nil {
		return nil, err
	}

	return &TwoFactorSetup{
		Secret:    secret,
		QRPayload: e.totp.ProvisionURI(secret, p.Email),
	}, nil
}

// ConfirmTwoFactor proves possession of the enrolled secret and flips
// the second factor on. A wrong code leaves the pending secret in place
// so the user can retry from the same QR code.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, accessToken, code string) error {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return err
	}
	if p.TwoFactorSecret == "" {
		return ErrTwoFactorNotProvisioned
	}

	ok, err := e.totp.VerifyCode(p.TwoFactorSecret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		return ErrInvalidTwoFactorCode
	}

	if err := ts.EnableTwoFactor(ctx, p.ID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditTwoFactorAdmin, true, p.ID, p.Email, tenant.ID, nil,
		map[string]string{"action": "enabled"})
	return nil
}

// DisableTwoFactor turns the second factor off after re-proving the
// password. The stored secret is cleared along with the flag.
func (e *Engine) DisableTwoFactor(ctx context.Context, accessToken, currentPassword string) error {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return err
	}
	if !p.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := e.passwords.Verify(currentPassword, p.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := ts.DisableTwoFactor(ctx, p.ID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditTwoFactorAdmin, true, p.ID, p.Email, tenant.ID, nil,
		map[string]string{"action": "disabled"})
	return nil
}
