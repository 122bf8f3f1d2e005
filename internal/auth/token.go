// Package auth resolves a caller's identity from a bearer credential.
// Token issuance (login, refresh rotation, password storage) lives in a
// separate service; this package only mints tokens for tests and local
// tooling and verifies them for the HTTP and websocket entry points.
package auth

import (
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any credential that fails signature,
// expiry or claim checks.  Callers should not distinguish further; the
// reason is deliberately opaque to clients.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HS256 access tokens and extracts the subject user
// id.  The secret must match the one used by the token issuer.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier bound to the given signing secret.
func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// UserID parses and validates a raw JWT and returns the user id from
// its "sub" claim.  The signing method is checked to be HMAC before the
// secret is handed to the parser.
func (v *Verifier) UserID(raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	return subjectID(claims["sub"])
}

// HandshakeUserID resolves the credential a websocket client presents
// in its connection URI.  The token travels base64-wrapped in a query
// parameter because browsers cannot set an Authorization header on the
// websocket handshake.
func (v *Verifier) HandshakeUserID(encoded string) (uint64, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate URL-safe encoding from clients that use it.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return 0, ErrInvalidToken
		}
	}
	return v.UserID(string(raw))
}

// subjectID normalises the "sub" claim.  Numeric subjects survive a
// JSON round trip as float64; string subjects are parsed.
func subjectID(sub interface{}) (uint64, error) {
	switch s := sub.(type) {
	case float64:
		if s < 1 {
			return 0, ErrInvalidToken
		}
		return uint64(s), nil
	case string:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			return 0, ErrInvalidToken
		}
		return n, nil
	default:
		return 0, ErrInvalidToken
	}
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT
// includes standard claims: subject (sub), expiration (exp) and issued
// at (iat).  Production tokens come from the auth service; this helper
// keeps tests and local tooling self-contained.
func NewAccessToken(secret string, userID uint64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
