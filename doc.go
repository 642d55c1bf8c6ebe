// Package authcore is a multi-tenant authentication and authorization
// resolution engine. It resolves a tenant from a slug or email domain,
// verifies credentials against per-tenant stores, aggregates effective
// permissions gated by each tenant's active modules, and mints stateless
// signed access/refresh tokens carrying the result. Account lifecycle
// flows (email verification, password reset and change, TOTP second
// factor, tenant switching, deactivation) are part of the same engine.
//
// Build an engine with the fluent builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRouter(router).
//		WithRedis(redisClient).
//		WithNotifier(mailer).
//		Build()
//
// The engine is transport-agnostic: it exposes plain methods and leaves
// HTTP or gRPC surfaces to the caller.
package authcore
