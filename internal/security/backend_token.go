package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BackendTokenIssuer mints the short-lived HS256 bearer tokens the backend
// task service verifies. The subject is the user id.
type BackendTokenIssuer struct {
	issuer string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewBackendTokenIssuer(issuer, secret string, ttl time.Duration) *BackendTokenIssuer {
	return &BackendTokenIssuer{issuer: issuer, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign mints a token for userID. The token never outlives notAfter, which
// callers set to the session's own expiry.
func (i *BackendTokenIssuer) Sign(userID string, notAfter time.Time) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("sign backend token: empty subject")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	if !notAfter.IsZero() && notAfter.Before(exp) {
		exp = notAfter
	}
	if !exp.After(now) {
		return "", fmt.Errorf("sign backend token: session already expired")
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
