// Package token mints and verifies the signed, stateless artifacts that
// carry a resolved identity between requests. Access tokens embed a
// point-in-time permission snapshot; refresh tokens carry only the
// subject and tenant and are signed with a distinct secret so a leaked
// access token can never mint new access tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid covers every verification failure: bad signature, wrong
// token class, expiry. Callers must not distinguish further.
var ErrInvalid = errors.New("token: invalid or expired")

// Config holds signing material and lifetimes. AccessSecret and
// RefreshSecret must differ; the access TTL bounds how stale an embedded
// permission snapshot can get.
type Config struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessClaims is the access token payload: everything needed to
// authorize a request without a database round trip.
type AccessClaims struct {
	Email             string   `json:"email"`
	Name              string   `json:"name,omitempty"`
	Admin             bool     `json:"adm,omitempty"`
	TenantID          string   `json:"tid"`
	TenantSlug        string   `json:"tsl"`
	TenantGroupID     string   `json:"tgr,omitempty"`
	SwitchableTenants []string `json:"swt,omitempty"`
	CompanyIDs        []string `json:"cids,omitempty"`
	PrimaryCompanyID  string   `json:"pcid,omitempty"`
	Permissions       []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only subject and tenant. Companies and
// permissions are recomputed from source on every refresh.
type RefreshClaims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// SubjectClaims seeds a RegisteredClaims with just the subject. The
// issuer fills in jti, issuer and lifetimes at signing time.
func SubjectClaims(subjectID string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subjectID}
}

// Issuer signs and parses both token classes. Safe for concurrent use.
type Issuer struct {
	config Config
	now    func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both signing secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	return &Issuer{config: cfg, now: time.Now}, nil
}

// WithClock overrides the time source. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) SignAccess(claims AccessClaims) (string, error) {
	now := i.now()
	claims.RegisteredClaims.ID = uuid.NewString()
	claims.RegisteredClaims.Issuer = i.config.Issuer
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(i.config.AccessTTL))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.AccessSecret)
}

func (i *Issuer) SignRefresh(subjectID, tenantID string) (string, error) {
	now := i.now()
	claims := RefreshClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.RefreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.RefreshSecret)
}

// ParseAccess verifies signature, expiry and issuer of an access token.
func (i *Issuer) ParseAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(raw, &claims, i.config.AccessSecret); err != nil {
		return nil, err
	}
	return &claims, nil
}

// ParseRefresh verifies a refresh token against the refresh secret. An
// access token handed in here fails signature verification.
func (i *Issuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(raw, &claims, i.config.RefreshSecret); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	tok, err := jwt.NewParser(options...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return ErrInvalid
	}
	return nil
}
