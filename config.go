package authcore

import (
	"errors"
	"time"

	"github.com/luminhr/authcore/password"
	"github.com/luminhr/authcore/token"
)

// Config is the engine's static configuration. It is copied at Build
// time and treated as immutable afterwards.
type Config struct {
	Token        token.Config
	TOTP         TOTPConfig
	Password     password.Params
	Reset        ResetConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// TOTPConfig tunes the RFC 6238 second factor.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the tolerated clock drift in steps on each side of now.
	Skew int
}

// ResetConfig controls password reset tokens.
type ResetConfig struct {
	TokenTTL time.Duration
	// EnumerationDelay pads the not-found path of ForgotPassword so
	// timing does not reveal account existence.
	EnumerationDelay time.Duration
}

// VerificationConfig controls email verification.
type VerificationConfig struct {
	Subject string
}

// RateLimitConfig enables Redis-backed login throttling. Ignored when no
// Redis client is supplied to the builder.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
	// TwoFactorMaxAttempts and TwoFactorCooldown bound code guesses on
	// the two-factor completion path, counted per principal.
	TwoFactorMaxAttempts int
	TwoFactorCooldown    time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns a working configuration for everything except
// the token secrets, which have no safe default and must be set by the
// caller.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 14 * 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer: "authcore",
			Digits: 6,
			Period: 30,
			Skew:   2,
		},
		Password: password.DefaultParams(),
		Reset: ResetConfig{
			TokenTTL:         time.Hour,
			EnumerationDelay: 80 * time.Millisecond,
		},
		Verification: VerificationConfig{
			Subject: "Verify your email address",
		},
		RateLimit: RateLimitConfig{
			Enabled:              true,
			EnableIPThrottle:     true,
			MaxAttempts:          10,
			Cooldown:             15 * time.Minute,
			TwoFactorMaxAttempts: 5,
			TwoFactorCooldown:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func (c Config) validate() error {
	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("authcore: token secrets are required")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("authcore: totp digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("authcore: totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("authcore: totp skew must be between 0 and 4 steps")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("authcore: reset token TTL must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxAttempts < 1 {
		return errors.New("authcore: rate limit max attempts must be >= 1")
	}
	if c.RateLimit.Enabled && c.RateLimit.TwoFactorMaxAttempts < 1 {
		return errors.New("authcore: two-factor rate limit max attempts must be >= 1")
	}
	return nil
}
