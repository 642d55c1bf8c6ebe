package authcore

import (
	"context"

	"github.com/luminhr/authcore/permission"
)

// EffectivePermissions recomputes the caller's permission set from
// source and returns it grouped by module with display metadata. Unlike
// the snapshot embedded in the access token, this reflects grant and
// module changes immediately.
func (e *Engine) EffectivePermissions(ctx context.Context, accessToken string) ([]ModulePermissions, error) {
	_, tenant, ts, p, err := e.authenticated(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	perms, err := permission.Effective(ctx, ts, tenant.ID, p.ID, e.now())
	if err != nil {
		return nil, err
	}
	return permission.GroupedByModule(perms, e.meta), nil
}
