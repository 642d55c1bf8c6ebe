package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist. Callers on
// the login path must not let it surface distinctly from a credential
// failure.
var ErrNotFound = errors.New("store: not found")

// DirectoryStore is the main directory: tenants, cross-tenant access
// grants, and the switch audit trail. One logical database for the whole
// installation.
type DirectoryStore interface {
	// TenantBySlug returns the active tenant with the given slug.
	TenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	// TenantByDomain returns the active tenant whose slug or custom
	// domain equals the given email domain.
	TenantByDomain(ctx context.Context, domain string) (*Tenant, error)
	// TenantByID returns the active tenant with the given id.
	TenantByID(ctx context.Context, id string) (*Tenant, error)

	// AccessibleTenants lists every tenant the email may access
	// (canAccess, unrevoked, tenant and group active), grouped by tenant
	// group and ordered by the group-membership display order.
	AccessibleTenants(ctx context.Context, email string) ([]TenantGroup, error)
	// SwitchGrant returns the unrevoked access row permitting a switch to
	// the target tenant (canAccess and canSwitch both set), or ErrNotFound.
	SwitchGrant(ctx context.Context, email, targetTenantID string) (*TenantAccess, error)

	// AppendSwitch records a completed tenant switch.
	AppendSwitch(ctx context.Context, rec SwitchRecord) error
}

// TenantStore is a handle to one tenant's isolated data store. Every
// method operates inside that tenant only; there are no cross-tenant
// queries.
type TenantStore interface {
	// PrincipalByIdentifier matches on email or full name equality.
	// Soft-deleted rows are not returned.
	PrincipalByIdentifier(ctx context.Context, identifier string) (*Principal, error)
	PrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	PrincipalByID(ctx context.Context, id string) (*Principal, error)

	// RecordLoginSuccess clears the failed-attempt counter and stamps the
	// last login time.
	RecordLoginSuccess(ctx context.Context, principalID string, at time.Time) error
	// RecordLoginFailure increments the failed-attempt counter. It never
	// locks the account by itself; locking is an explicit locked_until set
	// by an administrative collaborator.
	RecordLoginFailure(ctx context.Context, principalID string) error

	UpdatePasswordHash(ctx context.Context, principalID, hash string, changedAt time.Time) error

	// SetTwoFactorSecret stores a freshly provisioned secret with the
	// enabled flag cleared, overwriting any prior unconfirmed secret.
	SetTwoFactorSecret(ctx context.Context, principalID, secret string) error
	EnableTwoFactor(ctx context.Context, principalID string) error
	DisableTwoFactor(ctx context.Context, principalID string) error

	SetVerificationToken(ctx context.Context, principalID, token string) error
	// ConsumeVerificationToken marks the account verified and clears the
	// token in one guarded update. Returns false when the token does not
	// match (already consumed, or never issued).
	ConsumeVerificationToken(ctx context.Context, email, token string) (bool, error)

	SetResetToken(ctx context.Context, principalID, token string, expiresAt time.Time) error
	// ConsumeResetToken applies the new password hash and clears the reset
	// token in one guarded update keyed on exact token equality and
	// unexpired lifetime. Concurrent redemptions of the same token have
	// exactly one winner.
	ConsumeResetToken(ctx context.Context, email, token, newHash string, now time.Time) (bool, error)

	SoftDeletePrincipal(ctx context.Context, principalID string, at time.Time) error

	// ActiveModuleCodes returns the module codes currently active for the
	// tenant: enabled, not soft-deleted, not expired. Empty is a valid
	// result.
	ActiveModuleCodes(ctx context.Context, tenantID string, now time.Time) ([]string, error)
	// GrantsFor returns the union of direct and profile-inherited grants
	// for the principal, deduplicated by permission id, excluding
	// soft-deleted permissions. Module gating is applied by the caller at
	// read time, not here.
	GrantsFor(ctx context.Context, principalID string) ([]Permission, error)

	CompaniesFor(ctx context.Context, principalID string) ([]Company, error)
}

// Router resolves data store handles. It is the seam to the connection
// router collaborator; pooling and lifecycle of the underlying
// connections stay outside the engine.
type Router interface {
	Directory() DirectoryStore
	Tenant(ctx context.Context, tenantID string) (TenantStore, error)
}
