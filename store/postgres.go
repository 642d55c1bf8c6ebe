package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ DirectoryStore = (*PGDirectory)(nil)

// PGDirectory implements DirectoryStore over the main directory database.
// Open the handle with the pgx stdlib driver: sql.Open("pgx", dsn).
type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(db *sql.DB) *PGDirectory {
	return &PGDirectory{db: db}
}

const tenantColumns = `id, name, slug, coalesce(custom_domain, ''), deleted_at`

func (s *PGDirectory) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.tenantWhere(ctx, `slug = $1`, slug)
}

func (s *PGDirectory) TenantByDomain(ctx context.Context, domain string) (*Tenant, error) {
	domain = strings.ToLower(domain)
	return s.tenantWhere(ctx, `(slug = $1 or lower(custom_domain) = $1)`, domain)
}

func (s *PGDirectory) TenantByID(ctx context.Context, id string) (*Tenant, error) {
	return s.tenantWhere(ctx, `id = $1`, id)
}

func (s *PGDirectory) tenantWhere(ctx context.Context, cond string, arg any) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where `+cond+` and deleted_at is null`, arg)

	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CustomDomain, &t.DeletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("directory: tenant lookup: %w", err)
	}
	return &t, nil
}

func (s *PGDirectory) AccessibleTenants(ctx context.Context, email string) ([]TenantGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		select g.id, g.name, t.id, t.name, t.slug, a.can_switch, m.display_order
		from user_tenant_access a
		join tenants t on t.id = a.tenant_id and t.deleted_at is null
		join tenant_access_groups g on g.id = a.tenant_group_id and g.deleted_at is null
		join tenant_group_members m on m.group_id = g.id and m.tenant_id = t.id
		where a.email = $1 and a.can_access and a.revoked_at is null
		order by g.id, m.display_order`, email)
	if err != nil {
		return nil, fmt.Errorf("directory: accessible tenants: %w", err)
	}
	defer rows.Close()

	var (
		groups []TenantGroup
		cur    *TenantGroup
	)
	for rows.Next() {
		var (
			gid, gname string
			gt         GroupTenant
		)
		if err := rows.Scan(&gid, &gname, &gt.TenantID, &gt.TenantName, &gt.TenantSlug, &gt.CanSwitch, &gt.DisplayOrder); err != nil {
			return nil, fmt.Errorf("directory: accessible tenants: %w", err)
		}
		if cur == nil || cur.ID != gid {
			groups = append(groups, TenantGroup{ID: gid, Name: gname})
			cur = &groups[len(groups)-1]
		}
		cur.Tenants = append(cur.Tenants, gt)
	}
	return groups, rows.Err()
}

func (s *PGDirectory) SwitchGrant(ctx context.Context, email, targetTenantID string) (*TenantAccess, error) {
	row := s.db.QueryRowContext(ctx, `
		select a.email, a.tenant_id, a.tenant_group_id, a.can_access, a.can_switch,
		       coalesce(a.access_level, ''), a.granted_at, a.revoked_at
		from user_tenant_access a
		join tenants t on t.id = a.tenant_id and t.deleted_at is null
		join tenant_access_groups g on g.id = a.tenant_group_id and g.deleted_at is null
		where a.email = $1 and a.tenant_id = $2
		  and a.can_access and a.can_switch and a.revoked_at is null`,
		email, targetTenantID)

	var a TenantAccess
	err := row.Scan(&a.Email, &a.TenantID, &a.TenantGroupID, &a.CanAccess, &a.CanSwitch,
		&a.AccessLevel, &a.GrantedAt, &a.RevokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("directory: switch grant: %w", err)
	}
	return &a, nil
}

func (s *PGDirectory) AppendSwitch(ctx context.Context, rec SwitchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenant_switch_audit
			(id, email, from_tenant_id, to_tenant_id, tenant_group_id, ip, user_agent, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.Email, rec.FromTenantID, rec.ToTenantID, rec.TenantGroupID,
		rec.IP, rec.UserAgent, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("directory: append switch: %w", err)
	}
	return nil
}
