// Package permission computes the effective permission set of a
// principal within its tenant. Two sources of truth — direct grants and
// profile-inherited grants — are merged at query time, then gated by the
// modules currently active for the tenant. The gate is a read-time
// filter: a permission whose owning module is disabled or expired
// disappears from every principal's effective set without per-user
// bookkeeping.
package permission

import (
	"context"
	"sort"
	"time"

	"github.com/luminhr/authcore/moduleinfo"
	"github.com/luminhr/authcore/store"
	"golang.org/x/sync/errgroup"
)

// Effective returns the principal's effective permissions: the grant
// union restricted to permissions whose category is an active module
// code. Zero active modules yields an empty set, not an error.
//
// The active-module query and the grant-union query are independent and
// run concurrently.
func Effective(ctx context.Context, ts store.TenantStore, tenantID, principalID string, now time.Time) ([]store.Permission, error) {
	var (
		active []string
		grants []store.Permission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = ts.ActiveModuleCodes(gctx, tenantID, now)
		return err
	})
	g.Go(func() error {
		var err error
		grants, err = ts.GrantsFor(gctx, principalID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(active) == 0 {
		return nil, nil
	}

	activeSet := make(map[string]struct{}, len(active))
	for _, code := range active {
		activeSet[code] = struct{}{}
	}

	effective := grants[:0]
	for _, p := range grants {
		if _, ok := activeSet[p.Category]; ok {
			effective = append(effective, p)
		}
	}
	return effective, nil
}

// Codes extracts the sorted permission code list for token embedding.
func Codes(perms []store.Permission) []string {
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code)
	}
	sort.Strings(codes)
	return codes
}

// Module is one module's slice of a principal's effective permissions,
// decorated for presentation.
type Module struct {
	Code        string
	Name        string
	Icon        string
	Permissions []store.Permission
}

// GroupedByModule arranges the effective set per module, resolving the
// human label and icon through the metadata lookup. Ordering is stable
// by module code.
func GroupedByModule(perms []store.Permission, meta moduleinfo.Lookup) []Module {
	byCode := make(map[string][]store.Permission)
	for _, p := range perms {
		byCode[p.ModuleCode] = append(byCode[p.ModuleCode], p)
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	modules := make([]Module, 0, len(codes))
	for _, code := range codes {
		modules = append(modules, Module{
			Code:        code,
			Name:        meta.Name(code),
			Icon:        meta.Icon(code),
			Permissions: byCode[code],
		})
	}
	return modules
}
