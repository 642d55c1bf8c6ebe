package authcore

import (
	"context"
	"io"

	internalaudit "github.com/luminhr/authcore/internal/audit"
	"github.com/luminhr/authcore/permission"
	"github.com/luminhr/authcore/store"
)

// TokenPair is a freshly minted access + refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login]. Either Tokens is set, or
// TwoFactorRequired is true and the challenge fields identify the
// pending account. A required second factor is a successful-but-
// incomplete outcome, not an error.
type LoginResult struct {
	Tokens *TokenPair

	TwoFactorRequired bool
	SubjectID         string
	Email             string
	TenantID          string
	TenantSlug        string
}

// TwoFactorSetup is returned by [Engine.BeginTwoFactorSetup]: the raw
// base32 secret and the otpauth:// URI to render as a QR code. The
// second factor stays disabled until the first code is confirmed.
type TwoFactorSetup struct {
	Secret    string
	QRPayload string
}

// TenantGroup re-exports the directory grouping used by
// [Engine.AvailableTenants].
type TenantGroup = store.TenantGroup

// ModulePermissions is one module's share of an effective permission
// set, decorated with display metadata.
type ModulePermissions = permission.Module

// NotificationSender delivers lifecycle emails. Fire-and-forget: the
// engine logs failures and never surfaces them to the caller, so error
// shape cannot reveal account existence.
type NotificationSender interface {
	Send(ctx context.Context, toEmail, tenantID, subject, htmlBody string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer], one per
// line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
