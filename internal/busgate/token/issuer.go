// Package token mints and verifies the capability tokens kiosks and
// staff present on every request.  Tokens are signed, stateless, and
// carry only identifiers and scopes — never secrets.  Validity is
// purely signature + expiry; there is no server-side token store.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SubjectType distinguishes device-identity tokens from user-identity
// tokens.  Scope checks branch on this, so it is a closed enum rather
// than a free-form claim.
type SubjectType string

const (
	SubjectDevice SubjectType = "device"
	SubjectUser   SubjectType = "user"
)

// Scopes granted per subject type.
const (
	ScopeHeartbeat  = "heartbeat"
	ScopeLogEvent   = "log-event"
	ScopeReadEvents = "read-events"
)

var (
	// ErrExpired means the token was well formed and correctly signed
	// but its TTL has elapsed.  Callers branch on this separately from
	// ErrInvalid: an expired device token means "re-authenticate", a
	// malformed one means "go away".
	ErrExpired = errors.New("token: expired")

	// ErrInvalid means the token is malformed, tampered with, or
	// signed by an unknown key.
	ErrInvalid = errors.New("token: invalid")
)

// Claims is the signed payload of a capability token.
type Claims struct {
	jwt.RegisteredClaims
	SubjectType SubjectType `json:"sub_type"`
	Scopes      []string    `json:"scopes"`
}

// HasScope reports whether the token grants the named scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Issuer mints and verifies HS256-signed capability tokens.  Minting
// and verification are CPU-only and safe for concurrent use.
type Issuer struct {
	signingKey []byte
	deviceTTL  time.Duration
	userTTL    time.Duration
	now        func() time.Time
}

const minSigningKeyLen = 32

// NewIssuer builds an issuer.  Zero TTLs fall back to 1h for devices
// and 15m for users.
func NewIssuer(signingKey []byte, deviceTTL, userTTL time.Duration) (*Issuer, error) {
	if len(signingKey) < minSigningKeyLen {
		return nil, fmt.Errorf("token: signing key must be at least %d bytes", minSigningKeyLen)
	}
	if deviceTTL <= 0 {
		deviceTTL = time.Hour
	}
	if userTTL <= 0 {
		userTTL = 15 * time.Minute
	}
	return &Issuer{
		signingKey: signingKey,
		deviceTTL:  deviceTTL,
		userTTL:    userTTL,
		now:        time.Now,
	}, nil
}

// IssueDeviceToken mints a device-subject token with the fixed device
// scope set.  Credential checking happens before this is called; the
// issuer only mints.
func (i *Issuer) IssueDeviceToken(deviceID string) (string, time.Time, error) {
	return i.issue(SubjectDevice, deviceID, []string{ScopeHeartbeat, ScopeLogEvent}, i.deviceTTL)
}

// IssueUserToken mints a user-subject token with the default user
// scope set and the shorter user TTL.
func (i *Issuer) IssueUserToken(userID string) (string, time.Time, error) {
	return i.issue(SubjectUser, userID, []string{ScopeReadEvents}, i.userTTL)
}

func (i *Issuer) issue(st SubjectType, subject string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		SubjectType: st,
		Scopes:      scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the claims.  Expired
// tokens yield ErrExpired; everything else wrong yields ErrInvalid.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	if claims.Subject == "" {
		return nil, ErrInvalid
	}
	switch claims.SubjectType {
	case SubjectDevice, SubjectUser:
	default:
		return nil, ErrInvalid
	}

	return claims, nil
}
