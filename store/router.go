package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OpenTenantDB returns the *sql.DB handle for one tenant's database. The
// function owns pooling and reuse; the router never closes what it is
// handed back.
type OpenTenantDB func(ctx context.Context, tenantID string) (*sql.DB, error)

// SQLRouter is the stock Router over database/sql handles: one main
// directory database plus a per-tenant opener supplied by the host
// application's connection router.
type SQLRouter struct {
	directory *PGDirectory
	open      OpenTenantDB
}

func NewSQLRouter(directory *sql.DB, open OpenTenantDB) *SQLRouter {
	return &SQLRouter{
		directory: NewPGDirectory(directory),
		open:      open,
	}
}

func (r *SQLRouter) Directory() DirectoryStore {
	return r.directory
}

func (r *SQLRouter) Tenant(ctx context.Context, tenantID string) (TenantStore, error) {
	db, err := r.open(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("route tenant %s: %w", tenantID, err)
	}
	return NewPGTenant(db, tenantID), nil
}
