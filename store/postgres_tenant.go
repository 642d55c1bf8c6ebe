package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ TenantStore = (*PGTenant)(nil)

// PGTenant implements TenantStore over one tenant's isolated database.
type PGTenant struct {
	db       *sql.DB
	tenantID string
}

func NewPGTenant(db *sql.DB, tenantID string) *PGTenant {
	return &PGTenant{db: db, tenantID: tenantID}
}

const principalColumns = `id, email, password_hash, coalesce(full_name, ''), is_admin, is_verified,
	two_factor_enabled, coalesce(two_factor_secret, ''), failed_login_attempts,
	locked_until, password_changed_at, last_login_at, deleted_at`

func (s *PGTenant) PrincipalByIdentifier(ctx context.Context, identifier string) (*Principal, error) {
	return s.principalWhere(ctx, `(email = $1 or full_name = $1)`, identifier)
}

func (s *PGTenant) PrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.principalWhere(ctx, `email = $1`, email)
}

func (s *PGTenant) PrincipalByID(ctx context.Context, id string) (*Principal, error) {
	return s.principalWhere(ctx, `id = $1`, id)
}

func (s *PGTenant) principalWhere(ctx context.Context, cond string, arg any) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where `+cond+` and deleted_at is null`, arg)

	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.IsAdmin, &p.IsVerified,
		&p.TwoFactorEnabled, &p.TwoFactorSecret, &p.FailedLoginAttempts,
		&p.LockedUntil, &p.PasswordChangedAt, &p.LastLoginAt, &p.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant %s: principal lookup: %w", s.tenantID, err)
	}
	return &p, nil
}

func (s *PGTenant) RecordLoginSuccess(ctx context.Context, principalID string, at time.Time) error {
	return s.exec(ctx, `update users set failed_login_attempts = 0, last_login_at = $2 where id = $1`,
		principalID, at)
}

func (s *PGTenant) RecordLoginFailure(ctx context.Context, principalID string) error {
	return s.exec(ctx, `update users set failed_login_attempts = failed_login_attempts + 1 where id = $1`,
		principalID)
}

func (s *PGTenant) UpdatePasswordHash(ctx context.Context, principalID, hash string, changedAt time.Time) error {
	return s.exec(ctx,
		`update users set password_hash = $2, password_changed_at = $3 where id = $1 and deleted_at is null`,
		principalID, hash, changedAt)
}

func (s *PGTenant) SetTwoFactorSecret(ctx context.Context, principalID, secret string) error {
	return s.exec(ctx,
		`update users set two_factor_secret = $2, two_factor_enabled = false where id = $1 and deleted_at is null`,
		principalID, secret)
}

func (s *PGTenant) EnableTwoFactor(ctx context.Context, principalID string) error {
	return s.exec(ctx,
		`update users set two_factor_enabled = true where id = $1 and deleted_at is null`, principalID)
}

func (s *PGTenant) DisableTwoFactor(ctx context.Context, principalID string) error {
	return s.exec(ctx,
		`update users set two_factor_enabled = false, two_factor_secret = null where id = $1`, principalID)
}

func (s *PGTenant) SetVerificationToken(ctx context.Context, principalID, token string) error {
	return s.exec(ctx,
		`update users set verification_token = $2 where id = $1 and deleted_at is null`, principalID, token)
}

func (s *PGTenant) ConsumeVerificationToken(ctx context.Context, email, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update users set is_verified = true, verification_token = null
		where email = $1 and verification_token = $2 and deleted_at is null`,
		email, token)
	if err != nil {
		return false, fmt.Errorf("tenant %s: consume verification token: %w", s.tenantID, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PGTenant) SetResetToken(ctx context.Context, principalID, token string, expiresAt time.Time) error {
	return s.exec(ctx, `
		update users set reset_token = $2, reset_token_expires_at = $3
		where id = $1 and deleted_at is null`,
		principalID, token, expiresAt)
}

func (s *PGTenant) ConsumeResetToken(ctx context.Context, email, token, newHash string, now time.Time) (bool, error) {
	// Single guarded update: token equality plus unexpired lifetime. Under
	// concurrent redemption the row matches at most once.
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $3, password_changed_at = $4,
			reset_token = null, reset_token_expires_at = null
		where email = $1 and reset_token = $2 and reset_token_expires_at > $4
		  and deleted_at is null`,
		email, token, newHash, now)
	if err != nil {
		return false, fmt.Errorf("tenant %s: consume reset token: %w", s.tenantID, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PGTenant) SoftDeletePrincipal(ctx context.Context, principalID string, at time.Time) error {
	return s.exec(ctx,
		`update users set deleted_at = $2 where id = $1 and deleted_at is null`, principalID, at)
}

func (s *PGTenant) ActiveModuleCodes(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select module_code from tenant_module_activations
		where tenant_id = $1 and is_enabled and deleted_at is null
		  and (expires_at is null or expires_at > $2)`,
		tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: active modules: %w", s.tenantID, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *PGTenant) GrantsFor(ctx context.Context, principalID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id, p.module_code, p.code, p.action, p.category
		from permissions p
		where p.deleted_at is null
		  and (
			p.id in (select permission_id from user_permissions where user_id = $1)
			or p.id in (
				select pp.permission_id
				from profile_permissions pp
				join user_profile_members pm on pm.profile_id = pp.profile_id
				where pm.user_id = $1))`,
		principalID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: permissions: %w", s.tenantID, err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ModuleCode, &p.Code, &p.Action, &p.Category); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGTenant) CompaniesFor(ctx context.Context, principalID string) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		select c.id, c.name, uc.is_primary
		from user_companies uc
		join companies c on c.id = uc.company_id and c.deleted_at is null
		where uc.user_id = $1
		order by uc.is_primary desc, c.name`,
		principalID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: companies: %w", s.tenantID, err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.IsPrimary); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *PGTenant) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("tenant %s: %w", s.tenantID, err)
	}
	return nil
}
