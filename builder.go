package authcore

import (
	"log/slog"
	"time"

	internalaudit "github.com/luminhr/authcore/internal/audit"
	"github.com/luminhr/authcore/internal/rate"
	"github.com/luminhr/authcore/moduleinfo"
	"github.com/luminhr/authcore/password"
	"github.com/luminhr/authcore/store"
	"github.com/luminhr/authcore/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Zero value is not usable; start from
// [New] and chain the With* methods. Build validates the result.
type Builder struct {
	config   Config
	router   store.Router
	redis    redis.UniversalClient
	notifier NotificationSender
	sink     internalaudit.Sink
	meta     moduleinfo.Lookup
	logger   *slog.Logger
	now      func() time.Time
}

// New starts a builder with the default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig(), now: time.Now}
}

// WithConfig replaces the whole configuration. Call before other With*
// methods that read config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRouter sets the store router. Required.
func (b *Builder) WithRouter(r store.Router) *Builder {
	b.router = r
	return b
}

// WithRedis enables the Redis-backed login and two-factor attempt
// limiters. Without it, throttling is skipped regardless of
// configuration.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNotifier sets the outbound email sender. Without it, verification
// and reset flows still rotate tokens but deliver nothing.
func (b *Builder) WithNotifier(n NotificationSender) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets where audit events land. Without it, an enabled
// dispatcher feeds a no-op sink.
func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.sink = s
	return b
}

// WithModuleInfo overrides the module display metadata source.
func (b *Builder) WithModuleInfo(l moduleinfo.Lookup) *Builder {
	b.meta = l
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the engine's time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates configuration and wires the engine. The returned
// engine owns the audit dispatcher goroutine; call [Engine.Close] when
// done.
func (b *Builder) Build() (*Engine, error) {
	if b.router == nil {
		return nil, ErrEngineNotReady
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(b.config.Token)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	meta := b.meta
	if meta == nil {
		meta = moduleinfo.NewStatic()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	issuer.WithClock(now)

	var (
		limiter     *rate.Limiter
		totpLimiter *rate.TOTPLimiter
	)
	if b.redis != nil && b.config.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: b.config.RateLimit.EnableIPThrottle,
			MaxAttempts:      b.config.RateLimit.MaxAttempts,
			Cooldown:         b.config.RateLimit.Cooldown,
		})
		totpLimiter = rate.NewTOTP(b.redis, rate.TOTPConfig{
			MaxAttempts: b.config.RateLimit.TwoFactorMaxAttempts,
			Cooldown:    b.config.RateLimit.TwoFactorCooldown,
		})
	}

	sink := b.sink
	if sink == nil {
		sink = internalaudit.NoOpSink{}
	}
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, sink)

	return &Engine{
		config:      b.config,
		router:      b.router,
		tokens:      issuer,
		passwords:   hasher,
		totp:        newTOTPManager(b.config.TOTP),
		limiter:     limiter,
		totpLimiter: totpLimiter,
		audit:       dispatcher,
		metrics:     newMetrics(b.config.Metrics),
		notifier:    b.notifier,
		meta:        meta,
		logger:      logger.With(slog.String("component", "authcore")),
		now:         now,
	}, nil
}
