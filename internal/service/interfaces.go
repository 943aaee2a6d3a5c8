package service

import (
	"context"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/session"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta domain.SessionMeta) (*domain.SessionRecord, error)
	Signup(ctx context.Context, email, password, name string, meta domain.SessionMeta) (*domain.SessionRecord, error)
	Logout(ctx context.Context, token string) error
}

type SessionValidator interface {
	ValidateServerSide(ctx context.Context, token string) (*session.Principal, error)
}

var (
	_ AuthServiceInterface = (*AuthService)(nil)
	_ SessionValidator     = (*session.ServerStore)(nil)
)
