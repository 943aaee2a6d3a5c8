package service

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/session"
)

// TokenService mints the short-lived bearer tokens the backend task service
// verifies. It satisfies the API client's token source for proxied calls:
// the caller is whatever principal the session middleware put on the
// request context.
type TokenService struct {
	issuer *security.BackendTokenIssuer
}

func NewTokenService(issuer *security.BackendTokenIssuer) *TokenService {
	return &TokenService{issuer: issuer}
}

// Token returns "" when the context carries no principal, so the call goes
// out without an Authorization header and the backend decides.
func (s *TokenService) Token(ctx context.Context) (string, error) {
	p, ok := session.PrincipalFrom(ctx)
	if !ok {
		return "", nil
	}
	return s.BackendToken(p)
}

func (s *TokenService) BackendToken(p *session.Principal) (string, error) {
	if p == nil || p.User.ID == "" {
		return "", fmt.Errorf("backend token: missing principal")
	}
	tok, err := s.issuer.Sign(p.User.ID, p.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("backend token: %w", err)
	}
	return tok, nil
}
