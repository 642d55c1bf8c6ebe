package authcore

import (
	"context"
	"testing"
)

func TestBuildRequiresRouter(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err != ErrEngineNotReady {
		t.Fatalf("err = %v, want ErrEngineNotReady", err)
	}
}

func TestBuildValidatesConfig(t *testing.T) {
	router := newFakeRouter()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secrets", func(c *Config) { c.Token.AccessSecret = nil }},
		{"identical secrets", func(c *Config) { c.Token.RefreshSecret = c.Token.AccessSecret }},
		{"bad digits", func(c *Config) { c.TOTP.Digits = 4 }},
		{"bad skew", func(c *Config) { c.TOTP.Skew = 9 }},
		{"zero reset ttl", func(c *Config) { c.Reset.TokenTTL = 0 }},
		{"zero 2fa attempts", func(c *Config) { c.RateLimit.TwoFactorMaxAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := New().WithRouter(router).WithConfig(cfg).Build(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, janeEmail, "wrong", "acme"); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := env.engine.Login(ctx, janeEmail, janePassword, "acme"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("failures = %d, want 1", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("successes = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
}

func TestMetricsDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) { cfg.Metrics.Enabled = false })

	if _, err := env.engine.Login(context.Background(), janeEmail, janePassword, "acme"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	snap := env.engine.MetricsSnapshot()
	for id, v := range snap.Counters {
		if v != 0 {
			t.Fatalf("counter %d = %d with metrics disabled", id, v)
		}
	}
}
