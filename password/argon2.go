// Package password provides Argon2id hashing with PHC-formatted encoded
// hashes and constant-time verification.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

// Params are the Argon2id cost parameters. Out-of-range values are
// rejected by NewHasher; DefaultParams is a reasonable interactive-login
// baseline.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the RFC 9106 low-memory recommendation.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies secrets. Safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.MemoryKB < 8*1024:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case p.Time < 1:
		return nil, errors.New("password: time cost must be >= 1")
	case p.Parallelism < 1:
		return nil, errors.New("password: parallelism must be >= 1")
	case p.SaltLength < 16:
		return nil, errors.New("password: salt length must be >= 16")
	case p.KeyLength < 16:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives a new salted hash and returns it in PHC string format:
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt,
		h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		h.params.MemoryKB, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether secret matches the encoded hash. The comparison
// is constant-time over the derived key; cost parameters come from the
// stored hash, so existing hashes keep verifying after parameter changes.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	salt, key, p, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), salt,
		p.Time, p.MemoryKB, p.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// DummyVerify burns one full key derivation against a fixed salt. Called
// on the unknown-account path so its latency matches a real mismatch.
func (h *Hasher) DummyVerify(secret string) {
	salt := make([]byte, h.params.SaltLength)
	argon2.IDKey([]byte(secret), salt,
		h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)
}

func decode(encoded string) (salt, key []byte, p Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, p, errors.New("password: malformed PHC hash")
	}
	if parts[1] != phcAlgorithm {
		return nil, nil, p, errors.New("password: unsupported algorithm")
	}

	var version int
	if _, serr := fmt.Sscanf(parts[2], "v=%d", &version); serr != nil || version != argon2.Version {
		return nil, nil, p, errors.New("password: unsupported argon2 version")
	}

	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, nil, p, errors.New("password: malformed parameters")
		}
		n, convErr := strconv.ParseUint(v, 10, 32)
		if convErr != nil {
			return nil, nil, p, errors.New("password: malformed parameters")
		}
		switch k {
		case "m":
			p.MemoryKB = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return nil, nil, p, errors.New("password: malformed parameters")
			}
			p.Parallelism = uint8(n)
		default:
			return nil, nil, p, errors.New("password: unknown parameter")
		}
	}
	if p.MemoryKB == 0 || p.Time == 0 || p.Parallelism == 0 {
		return nil, nil, p, errors.New("password: missing parameters")
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, errors.New("password: malformed salt")
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, errors.New("password: malformed key")
	}
	if len(salt) < 8 || len(key) < 16 {
		return nil, nil, p, errors.New("password: hash too short")
	}
	return salt, key, p, nil
}
