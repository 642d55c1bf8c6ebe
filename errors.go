package authcore

import "errors"

// Caller-facing outcomes. Everything here is recoverable: the engine
// never crashes the process on bad input, and infrastructure faults are
// wrapped separately and fail closed.
var (
	// ErrInvalidCredentials covers unknown identifier, wrong password and
	// missing or soft-deleted accounts alike, so none of those sub-cases
	// is observable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned only when locked_until is explicitly
	// set and still in the future. Attempt counting alone never locks.
	ErrAccountLocked = errors.New("account locked")

	ErrLoginRateLimited = errors.New("login rate limited")

	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")

	// ErrTwoFactorNotEnabled rejects a two-factor login completion for an
	// account that has no confirmed second factor; that path must never
	// silently bypass the factor.
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrTwoFactorNotProvisioned = errors.New("two-factor secret not provisioned")

	// ErrTwoFactorAlreadyEnabled blocks re-provisioning while a confirmed
	// second factor is active. The only way out of the enabled state is
	// DisableTwoFactor with a password re-proof; a bearer token alone must
	// never weaken an enrolled factor.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")

	// ErrTokenInvalid uniformly covers bad signature, expiry and
	// "principal no longer exists".
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrSwitchForbidden rejects a tenant switch without an active
	// can-switch grant, even when the email has an account there.
	ErrSwitchForbidden = errors.New("tenant switch not permitted")

	ErrTenantNotFound = errors.New("tenant not found")

	ErrPasswordReuse   = errors.New("new password must differ from the current password")
	ErrAlreadyVerified = errors.New("email already verified")

	ErrEngineNotReady = errors.New("engine not initialized")
)
