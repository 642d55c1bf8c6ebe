package store

import "time"

// Tenant is an isolated organization resolved from the main directory.
// Rows are created by provisioning; the engine only reads them.
type Tenant struct {
	ID           string
	Name         string
	Slug         string
	CustomDomain string
	DeletedAt    *time.Time
}

// Principal is a tenant-scoped user account. One row per tenant per real
// person; cross-tenant linkage exists only through email equality plus an
// explicit TenantAccess grant in the directory.
type Principal struct {
	ID                  string
	Email               string
	PasswordHash        string
	FullName            string
	IsAdmin             bool
	IsVerified          bool
	TwoFactorEnabled    bool
	TwoFactorSecret     string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordChangedAt   *time.Time
	LastLoginAt         *time.Time
	DeletedAt           *time.Time
}

// Deleted reports whether the principal has been soft-deleted.
func (p *Principal) Deleted() bool {
	return p == nil || p.DeletedAt != nil
}

// Permission is one entry of the per-tenant permission catalogue.
// Category equals the owning module's code and is the join key used to
// gate permissions by active modules.
type Permission struct {
	ID         string
	ModuleCode string
	Code       string
	Action     string
	Category   string
}

// Company is a company membership of a principal inside its tenant.
type Company struct {
	ID        string
	Name      string
	IsPrimary bool
}

// TenantAccess is the directory-side authorization record that lets an
// email hold and switch between accounts in multiple tenants. It is
// independent of the per-tenant Principal row existing.
type TenantAccess struct {
	Email         string
	TenantID      string
	TenantGroupID string
	CanAccess     bool
	CanSwitch     bool
	AccessLevel   string
	GrantedAt     time.Time
	RevokedAt     *time.Time
}

// GroupTenant is one tenant entry inside a TenantGroup listing.
type GroupTenant struct {
	TenantID     string
	TenantName   string
	TenantSlug   string
	CanSwitch    bool
	DisplayOrder int
}

// TenantGroup is a set of tenants one identity may move between,
// assembled for presentation in display order.
type TenantGroup struct {
	ID      string
	Name    string
	Tenants []GroupTenant
}

// SwitchRecord is the audit row appended on every tenant switch.
// Switching is a privilege-boundary crossing and is recorded even on
// success.
type SwitchRecord struct {
	ID            string
	Email         string
	FromTenantID  string
	ToTenantID    string
	TenantGroupID string
	IP            string
	UserAgent     string
	OccurredAt    time.Time
}
